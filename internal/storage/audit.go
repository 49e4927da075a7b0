package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ondc-bpp/internal/model"
)

// LogRetention is how long daily audit files are kept.
const LogRetention = 30 * 24 * time.Hour

const auditDateLayout = "2006-01-02"

// AuditLog appends compliance records to daily JSONL files under dir.
type AuditLog struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewAuditLog(dir string) *AuditLog {
	return &AuditLog{dir: dir, now: time.Now}
}

// Record appends one compliance entry.
func (a *AuditLog) Record(_ context.Context, entry model.ComplianceLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = a.now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return err
	}
	fpath := filepath.Join(a.dir, fmt.Sprintf("compliance_%s.jsonl", entry.Timestamp.Format(auditDateLayout)))
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(data, '\n'))
	return err
}

// Cleanup removes daily files older than olderThan and returns how many
// were removed.
func (a *AuditLog) Cleanup(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(a.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	cutoff := a.now().UTC().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "compliance_") || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		day, err := time.Parse(auditDateLayout, strings.TrimSuffix(strings.TrimPrefix(name, "compliance_"), ".jsonl"))
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			if err := os.Remove(filepath.Join(a.dir, name)); err != nil {
				log.Printf("AuditLog: remove %s: %v", name, err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// Discard drops compliance records.
type Discard struct{}

func (Discard) Record(context.Context, model.ComplianceLog) error { return nil }
