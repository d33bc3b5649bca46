package broadcast

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher delivers events to the broadcast transport. Delivery is
// fire-and-forget: subscribers connected at publish time receive the event,
// nobody else ever does.
type Publisher interface {
	// PublishGlobal sends an event to every subscribed connection.
	PublishGlobal(ctx context.Context, event Event) error

	// PublishToRoom sends an event to connections that joined the room.
	PublishToRoom(ctx context.Context, room string, event Event) error
}

// RedisPublisher implements Publisher over Redis pub/sub. PUBLISH gives
// at-most-once, no-backlog semantics and fans out across server instances.
type RedisPublisher struct {
	client *redis.Client
}

// NewPublisher creates a Publisher backed by Redis pub/sub.
func NewPublisher(client *redis.Client) Publisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) PublishGlobal(ctx context.Context, event Event) error {
	return p.publish(ctx, ChannelGlobal, event)
}

func (p *RedisPublisher) PublishToRoom(ctx context.Context, room string, event Event) error {
	return p.publish(ctx, RoomChannel(room), event)
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, event Event) error {
	startTime := time.Now()

	payload, err := event.Marshal()
	if err != nil {
		log.Printf("[Broadcast] Publish FAILED: channel=%s type=%s err=%v", channel, event.Type, err)
		return fmt.Errorf("serialize event: %w", err)
	}

	receivers, err := p.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		log.Printf("[Broadcast] Publish FAILED: channel=%s type=%s err=%v", channel, event.Type, err)
		return fmt.Errorf("publish event: %w", err)
	}

	log.Printf("[Broadcast] Publish OK: channel=%s type=%s receivers=%d duration=%v",
		channel, event.Type, receivers, time.Since(startTime))
	return nil
}
