package kstream

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ondc-bpp/internal/tasks"
)

// fakeBroker loops written messages back to the reader.
type fakeBroker struct {
	mu        sync.Mutex
	msgs      chan kafka.Message
	committed []int64
	writeErr  error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{msgs: make(chan kafka.Message, 16)}
}

func (f *fakeBroker) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	for i, m := range msgs {
		m.Offset = int64(len(f.msgs) + i)
		f.msgs <- m
	}
	return nil
}

func (f *fakeBroker) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-f.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeBroker) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeBroker) Close() error { return nil }

func TestQueueRoundTrip(t *testing.T) {
	broker := newFakeBroker()
	q := &Queue{writer: broker, reader: broker}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Enqueue(ctx, tasks.Task{Kind: tasks.KindConfirm, Key: "txn-1", Body: []byte(`{"a":1}`)}))
	broker.msgs <- kafka.Message{Value: []byte("not json")}
	require.NoError(t, q.Enqueue(ctx, tasks.Task{Kind: tasks.KindStatus, Key: "txn-1"}))

	var got []tasks.Kind
	done := make(chan error)
	go func() {
		done <- q.Run(ctx, func(ctx context.Context, task tasks.Task) {
			got = append(got, task.Kind)
			if len(got) == 2 {
				cancel()
			}
		})
	}()

	err := <-done
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, []tasks.Kind{tasks.KindConfirm, tasks.KindStatus}, got)
	broker.mu.Lock()
	assert.GreaterOrEqual(t, len(broker.committed), 2)
	broker.mu.Unlock()
}

func TestEnqueueKeyedByTransaction(t *testing.T) {
	broker := newFakeBroker()
	q := &Queue{writer: broker, reader: broker}
	require.NoError(t, q.Enqueue(context.Background(), tasks.Task{Kind: tasks.KindSearch, Key: "txn-9"}))
	m := <-broker.msgs
	assert.Equal(t, "txn-9", string(m.Key))
}

func TestEnqueueError(t *testing.T) {
	broker := newFakeBroker()
	broker.writeErr = errors.New("broker down")
	q := &Queue{writer: broker, reader: broker}
	err := q.Enqueue(context.Background(), tasks.Task{Kind: tasks.KindSearch})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
