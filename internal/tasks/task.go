// Package tasks carries protocol work from the synchronous ACK path to
// background workers.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind identifies what a worker does with a task.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindSearch
	KindSelect
	KindInit
	KindConfirm
	KindStatus
	KindTrack
	KindCancel
	KindUpdate
	KindRating
	KindSupport
	KindIssue
	KindIssueStatus
	KindReceiverRecon
	KindAutoProgress
	KindCleanup
)

var kindNames = map[Kind]string{
	KindSearch:        "search",
	KindSelect:        "select",
	KindInit:          "init",
	KindConfirm:       "confirm",
	KindStatus:        "status",
	KindTrack:         "track",
	KindCancel:        "cancel",
	KindUpdate:        "update",
	KindRating:        "rating",
	KindSupport:       "support",
	KindIssue:         "issue",
	KindIssueStatus:   "issue_status",
	KindReceiverRecon: "receiver_recon",
	KindAutoProgress:  "auto_progress",
	KindCleanup:       "cleanup",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseKind maps a protocol action or housekeeping job name to its Kind.
func ParseKind(name string) (Kind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}

func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown task kind %d", k)
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("unknown task kind %q", string(b))
	}
	*k = parsed
	return nil
}

// Task is one unit of background work. Body is the raw inbound request so
// the handler sees exactly what was acknowledged.
type Task struct {
	Kind       Kind            `json:"kind"`
	Key        string          `json:"key"`
	LogID      string          `json:"log_id,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Handler processes a task. Failures are the handler's to record.
type Handler func(ctx context.Context, t Task)

// Queue decouples enqueueing from execution.
type Queue interface {
	Enqueue(ctx context.Context, t Task) error
	// Run executes tasks with h until ctx is cancelled or the queue is closed.
	Run(ctx context.Context, h Handler) error
	Close() error
}

var (
	ErrQueueFull   = errors.New("task queue full")
	ErrQueueClosed = errors.New("task queue closed")
)
