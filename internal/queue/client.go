package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/resumeflow/internal/config"
	"github.com/nikhilbhutani/resumeflow/internal/pipeline"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

// Client enqueues pipeline tasks for cmd/worker.
type Client struct {
	client  *asynq.Client
	timeout time.Duration
}

var _ pipeline.Dispatcher = (*Client)(nil)

func NewClient(cfg config.RedisConfig, timeout time.Duration) *Client {
	return &Client{
		client:  asynq.NewClient(RedisOpt(cfg)),
		timeout: timeout,
	}
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Dispatch enqueues t. Queue-level retries are off: the executor retries
// each stage itself, and the lock token in t would not survive a redelivery.
func (c *Client) Dispatch(ctx context.Context, t pipeline.Task) error {
	task, err := NewTask(t)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.MaxRetry(0), asynq.Queue(queueFor(t.Kind))}
	if c.timeout > 0 {
		opts = append(opts, asynq.Timeout(c.timeout))
	}
	if _, err := c.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return nil
}

// extraction is what the uploader is waiting on
func queueFor(kind pipeline.TaskKind) string {
	if kind == pipeline.TaskProcess {
		return QueueCritical
	}
	return QueueDefault
}
