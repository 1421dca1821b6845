package services

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/mergewise/mergewise/internal/config"
	"github.com/mergewise/mergewise/pkg/logger"
)

const TaskTypeReview = "review:run"

// ReviewTask is the queue payload: everything else is reloaded from the
// database by the processor.
type ReviewTask struct {
	RunID uint `json:"run_id"`
}

// TaskQueue dispatches review runs for background execution.
type TaskQueue interface {
	Enqueue(task *ReviewTask) error
	IsAsync() bool
	Close() error
}

// NewTaskQueue picks the Redis-backed queue when Redis is configured and
// reachable, otherwise the in-process goroutine queue.
func NewTaskQueue(cfg *config.Config) TaskQueue {
	if cfg.Redis.Enabled {
		queue, err := NewAsyncQueue(&cfg.Redis)
		if err != nil {
			logger.Warnf("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
			return NewSyncQueue()
		}
		logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
		return queue
	}
	logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
	return NewSyncQueue()
}

// AsyncQueue hands tasks to asynq workers via Redis.
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(task *ReviewTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(asynq.NewTask(TaskTypeReview, payload),
		asynq.Queue("default"),
		asynq.MaxRetry(0),
	)
	if err != nil {
		return err
	}

	logger.Infof("[TaskQueue] Enqueued run %d as task %s", task.RunID, info.ID)
	return nil
}

func (q *AsyncQueue) IsAsync() bool { return true }

func (q *AsyncQueue) Close() error { return q.client.Close() }

// SyncQueue executes tasks in a goroutine within this process, used when
// Redis is not configured.
type SyncQueue struct {
	processor func(context.Context, *ReviewTask) error
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor installs the task handler. Must be called before the first
// Enqueue.
func (q *SyncQueue) SetProcessor(processor func(context.Context, *ReviewTask) error) {
	q.processor = processor
}

// Enqueue runs the task in its own goroutine so the webhook response is
// never blocked on pipeline completion.
func (q *SyncQueue) Enqueue(task *ReviewTask) error {
	if q.processor == nil {
		logger.Warnf("[TaskQueue] no processor set, dropping run %d", task.RunID)
		return nil
	}

	go func() {
		if err := q.processor(context.Background(), task); err != nil {
			logger.Errorf("[TaskQueue] run %d failed: %v", task.RunID, err)
		}
	}()
	return nil
}

func (q *SyncQueue) IsAsync() bool { return false }

func (q *SyncQueue) Close() error { return nil }
