package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	// TaskMirrorStatus asks the worker to copy a license status onto the
	// owning account's options map.
	TaskMirrorStatus = "mirror_status"
	// TaskExpirySweep asks the worker to expire overdue licenses in bulk.
	TaskExpirySweep = "license_sweep"
)

// Task is one unit of deferred work carried over the redis stream. String
// fields only, so it round-trips through stream values without a codec.
type Task struct {
	Type      string
	AccountID string
	LicenseID string
	ToolName  string
	Status    string
}

func (t Task) values() map[string]any {
	return map[string]any{
		"type":      t.Type,
		"accountId": t.AccountID,
		"licenseId": t.LicenseID,
		"toolName":  t.ToolName,
		"status":    t.Status,
	}
}

// TaskFromValues rebuilds a Task from raw stream message values.
func TaskFromValues(values map[string]any) Task {
	get := func(key string) string {
		if v, ok := values[key].(string); ok {
			return v
		}
		return ""
	}
	return Task{
		Type:      get("type"),
		AccountID: get("accountId"),
		LicenseID: get("licenseId"),
		ToolName:  get("toolName"),
		Status:    get("status"),
	}
}

// Producer appends tasks to the entitlement stream.
type Producer struct {
	client *redis.Client
	stream string
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

func (p *Producer) Enqueue(ctx context.Context, task Task) error {
	if p == nil || p.client == nil {
		return nil
	}
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: task.values(),
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type, err)
	}
	return nil
}
