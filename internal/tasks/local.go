package tasks

import (
	"context"
	"log"
	"sync"
)

// LocalQueue runs tasks on a fixed pool of goroutines fed by a buffered
// channel.
type LocalQueue struct {
	workers int
	ch      chan Task

	mu     sync.RWMutex
	closed bool
}

func NewLocalQueue(workers, buffer int) *LocalQueue {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 1
	}
	return &LocalQueue{workers: workers, ch: make(chan Task, buffer)}
}

// Enqueue never blocks; a full buffer is reported as ErrQueueFull.
func (q *LocalQueue) Enqueue(_ context.Context, t Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *LocalQueue) Run(ctx context.Context, h Handler) error {
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-q.ch:
					if !ok {
						return
					}
					runSafely(ctx, h, t, worker)
				}
			}
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}

// Close stops accepting tasks. Workers drain what is buffered and exit.
func (q *LocalQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	return nil
}

func runSafely(ctx context.Context, h Handler, t Task, worker int) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Tasks: worker %d recovered from panic in %s task: %v", worker, t.Kind, r)
		}
	}()
	h(ctx, t)
}
