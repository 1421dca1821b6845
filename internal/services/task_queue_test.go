package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mergewise/mergewise/internal/config"
)

func TestSyncQueueProcessesInBackground(t *testing.T) {
	q := NewSyncQueue()

	var mu sync.Mutex
	var got []uint
	done := make(chan struct{})
	q.SetProcessor(func(ctx context.Context, task *ReviewTask) error {
		mu.Lock()
		got = append(got, task.RunID)
		mu.Unlock()
		close(done)
		return nil
	})

	if err := q.Enqueue(&ReviewTask{RunID: 7}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not processed")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != 7 {
		t.Errorf("processed = %v, want [7]", got)
	}
}

func TestSyncQueueWithoutProcessorDropsTask(t *testing.T) {
	q := NewSyncQueue()
	if err := q.Enqueue(&ReviewTask{RunID: 1}); err != nil {
		t.Errorf("missing processor should not error: %v", err)
	}
	if q.IsAsync() {
		t.Error("sync queue should report IsAsync() == false")
	}
}

func TestNewTaskQueueFallsBackWithoutRedis(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = false

	q := NewTaskQueue(cfg)
	if q.IsAsync() {
		t.Error("queue should be sync when Redis is disabled")
	}
	q.Close()
}
