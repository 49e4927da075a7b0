package tasks

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindText(t *testing.T) {
	for k, name := range kindNames {
		got, ok := ParseKind(name)
		require.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := ParseKind("on_search")
	assert.False(t, ok)

	raw, err := json.Marshal(Task{Kind: KindReceiverRecon, Key: "txn"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kind":"receiver_recon"`)

	var back Task
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, KindReceiverRecon, back.Kind)

	_, err = json.Marshal(Task{Kind: KindUnknown})
	assert.Error(t, err)
}

func TestLocalQueueRunsTasks(t *testing.T) {
	q := NewLocalQueue(4, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	var count int32
	wg.Add(10)
	done := make(chan struct{})
	go func() {
		_ = q.Run(ctx, func(ctx context.Context, t Task) {
			atomic.AddInt32(&count, 1)
			wg.Done()
		})
		close(done)
	}()

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(ctx, Task{Kind: KindSearch}))
	}
	wg.Wait()
	assert.Equal(t, int32(10), atomic.LoadInt32(&count))

	require.NoError(t, q.Close())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("workers did not exit after Close")
	}
	assert.ErrorIs(t, q.Enqueue(ctx, Task{Kind: KindSearch}), ErrQueueClosed)
}

func TestLocalQueueFull(t *testing.T) {
	q := NewLocalQueue(1, 1)
	require.NoError(t, q.Enqueue(context.Background(), Task{Kind: KindSearch}))
	assert.ErrorIs(t, q.Enqueue(context.Background(), Task{Kind: KindSearch}), ErrQueueFull)
}

func TestLocalQueueSurvivesPanics(t *testing.T) {
	q := NewLocalQueue(1, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handled := make(chan Kind, 2)
	go func() {
		_ = q.Run(ctx, func(ctx context.Context, t Task) {
			if t.Kind == KindCancel {
				panic("boom")
			}
			handled <- t.Kind
		})
	}()

	require.NoError(t, q.Enqueue(ctx, Task{Kind: KindCancel}))
	require.NoError(t, q.Enqueue(ctx, Task{Kind: KindStatus}))
	select {
	case k := <-handled:
		assert.Equal(t, KindStatus, k)
	case <-time.After(time.Second):
		t.Fatal("task after panic was not handled")
	}
}
