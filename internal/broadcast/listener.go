package broadcast

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Listener bridges Redis pub/sub into the local hub: it subscribes to the
// comment channels and routes every received message to the connections this
// process owns. Events published while the listener is down are lost, which
// is the delivery contract.
type Listener struct {
	client *redis.Client
	hub    *Hub

	pubsub *redis.PubSub
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewListener creates a Listener feeding the given hub.
func NewListener(client *redis.Client, hub *Hub) *Listener {
	return &Listener{client: client, hub: hub}
}

// Start subscribes and begins routing in a background goroutine.
// Call Stop to shut down.
func (l *Listener) Start(ctx context.Context) error {
	ctx, l.cancel = context.WithCancel(ctx)

	l.pubsub = l.client.PSubscribe(ctx, ChannelGlobal, RoomChannelPrefix+"*")

	// Force the subscription onto the wire before publishers start.
	if _, err := l.pubsub.Receive(ctx); err != nil {
		return err
	}

	log.Printf("[Listener] Subscribed: channels=%s,%s*", ChannelGlobal, RoomChannelPrefix)

	l.wg.Add(1)
	go l.run(ctx)
	return nil
}

// Stop closes the subscription and waits for the routing loop to exit.
func (l *Listener) Stop() {
	log.Printf("[Listener] Stopping...")
	l.cancel()
	if l.pubsub != nil {
		l.pubsub.Close()
	}
	l.wg.Wait()
	log.Printf("[Listener] Stopped")
}

func (l *Listener) run(ctx context.Context) {
	defer l.wg.Done()

	ch := l.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			l.route(msg)
		}
	}
}

// route fans a pub/sub message out to the local connections: the global
// channel reaches everyone, a room channel only its members.
func (l *Listener) route(msg *redis.Message) {
	payload := []byte(msg.Payload)

	switch {
	case msg.Channel == ChannelGlobal:
		l.hub.Broadcast(payload)
	case strings.HasPrefix(msg.Channel, RoomChannelPrefix):
		room := strings.TrimPrefix(msg.Channel, RoomChannelPrefix)
		l.hub.BroadcastRoom(room, payload)
	default:
		log.Printf("[Listener] Ignoring message on unexpected channel=%s", msg.Channel)
	}
}
