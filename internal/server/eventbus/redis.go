package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/redis/go-redis/v9"
)

// wireEvent is the published JSON shape.
type wireEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	DocumentID int64     `json:"document_id"`
	Identity   string    `json:"identity"`
	Name       string    `json:"name,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RedisPublisher publishes lifecycle events on a single pub/sub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher constructs a publisher over an existing redis client.
func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel}
}

// Publish serializes the event and publishes it. Callers treat failures as
// non-fatal: the transactionally written event log stays the source of truth.
func (p *RedisPublisher) Publish(ctx context.Context, event *models.Event) error {
	payload, err := marshalEvent(event)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func marshalEvent(event *models.Event) ([]byte, error) {
	w := wireEvent{
		ID:         event.ID,
		Type:       event.Type,
		DocumentID: event.DocumentID,
		Identity:   event.Identity,
		Name:       event.Name,
		RecordedAt: event.RecordedAt,
	}
	payload, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return payload, nil
}
