package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	deliveryProcessing = "processing"
	deliveryProcessed  = "processed"
)

// Deliveries records which notification messages were already handled, so a
// redelivered Kafka message does not send the same email twice.
type Deliveries struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDeliveries(client *redis.Client, ttl time.Duration) *Deliveries {
	return &Deliveries{client: client, ttl: ttl}
}

func (d *Deliveries) key(id string) string { return fmt.Sprintf("notification:%s", id) }

// Claim marks id as in flight. It returns false when another handler holds it
// or it was already processed.
func (d *Deliveries) Claim(ctx context.Context, id string) (bool, error) {
	return d.client.SetNX(ctx, d.key(id), deliveryProcessing, d.ttl).Result()
}

func (d *Deliveries) MarkProcessed(ctx context.Context, id string) error {
	return d.client.Set(ctx, d.key(id), deliveryProcessed, d.ttl).Err()
}

// Release drops an in-flight claim so a retry can pick the message up again.
func (d *Deliveries) Release(ctx context.Context, id string) error {
	return d.client.Del(ctx, d.key(id)).Err()
}

func (d *Deliveries) Processed(ctx context.Context, id string) (bool, error) {
	v, err := d.client.Get(ctx, d.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == deliveryProcessed, nil
}
