// Package kstream runs the task queue over Kafka so acknowledged work
// survives a restart and spreads across replicas.
package kstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"ondc-bpp/internal/tasks"
)

// ConsumerGroup is the Kafka consumer group shared by all workers.
const ConsumerGroup = "bpp-workers"

// messageWriter and messageReader are the parts of kafka-go the queue uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Queue implements tasks.Queue on a Kafka topic. Messages are keyed by
// transaction id so one transaction's tasks stay ordered on a partition.
type Queue struct {
	writer messageWriter
	reader messageReader
}

// NewQueue connects to broker for topic.
func NewQueue(broker, topic string) *Queue {
	return &Queue{
		writer: kafkaWriter(broker, topic),
		reader: kafkaReader(broker, topic, ConsumerGroup),
	}
}

// kafkaWriter constructs the task producer. Writes are synchronous so a
// failed enqueue is visible to the dispatcher, which marks the log Failed.
func kafkaWriter(broker, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		BatchBytes:   10485760,
	}
}

// kafkaReader constructs a consumer-group reader with manual commits.
func kafkaReader(broker, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{broker},
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10485760,
		MaxWait:  500 * time.Millisecond,
	})
}

func (q *Queue) Enqueue(ctx context.Context, t tasks.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(t.Key),
		Value: data,
		Time:  time.Now(),
	}
	if err := q.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s task: %w", t.Kind, err)
	}
	return nil
}

// Run consumes the topic. A message is committed after its handler
// returns, so a crash mid-task redelivers it.
func (q *Queue) Run(ctx context.Context, h tasks.Handler) error {
	log.Println("Tasks: consuming from Kafka")
	for {
		msg, err := q.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, kafka.ErrGroupClosed) {
				return ctx.Err()
			}
			return fmt.Errorf("fetch task: %w", err)
		}

		var t tasks.Task
		if err := json.Unmarshal(msg.Value, &t); err != nil {
			log.Printf("Tasks: dropping undecodable message at offset %d: %v", msg.Offset, err)
		} else {
			handle(ctx, h, t)
		}

		if err := q.reader.CommitMessages(ctx, msg); err != nil {
			log.Printf("Tasks: commit offset %d: %v", msg.Offset, err)
		}
	}
}

func handle(ctx context.Context, h tasks.Handler, t tasks.Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Tasks: recovered from panic in %s task: %v", t.Kind, r)
		}
	}()
	h(ctx, t)
}

func (q *Queue) Close() error {
	werr := q.writer.Close()
	rerr := q.reader.Close()
	return errors.Join(werr, rerr)
}
