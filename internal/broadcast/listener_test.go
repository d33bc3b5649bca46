package broadcast

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"commentflow/internal/model"
)

func setupTestRedis(t *testing.T) *redis.Client {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}

	t.Cleanup(func() { client.Close() })
	return client
}

// chanConn delivers through a channel so the test can wait on routed
// messages coming from the listener goroutine.
type chanConn struct {
	ch chan []byte
}

func newChanConn() *chanConn {
	return &chanConn{ch: make(chan []byte, 8)}
}

func (c *chanConn) Send(msg []byte) bool {
	select {
	case c.ch <- msg:
		return true
	default:
		return false
	}
}

func (c *chanConn) Close() {}

func (c *chanConn) waitForMessage(t *testing.T) Event {
	t.Helper()
	select {
	case msg := <-c.ch:
		event, err := ParseEvent(msg)
		if err != nil {
			t.Fatalf("parse routed message: %v", err)
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for routed message")
		return Event{}
	}
}

func (c *chanConn) assertSilent(t *testing.T) {
	t.Helper()
	select {
	case msg := <-c.ch:
		t.Fatalf("unexpected message delivered: %s", msg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestListener_RoutesGlobalEvents(t *testing.T) {
	client := setupTestRedis(t)
	hub := NewHub()
	listener := NewListener(client, hub)

	if err := listener.Start(context.Background()); err != nil {
		t.Fatalf("start listener: %v", err)
	}
	defer listener.Stop()

	a, b := newChanConn(), newChanConn()
	hub.Register(a)
	hub.Register(b)

	publisher := NewPublisher(client)
	event := NewCommentCreatedEvent(&model.Comment{ID: uuid.New(), Content: "hello"})
	if err := publisher.PublishGlobal(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, conn := range []*chanConn{a, b} {
		got := conn.waitForMessage(t)
		if got.Type != EventCommentCreated {
			t.Errorf("routed type = %q, want %q", got.Type, EventCommentCreated)
		}
	}
}

func TestListener_RoutesRoomEventsToMembersOnly(t *testing.T) {
	client := setupTestRedis(t)
	hub := NewHub()
	listener := NewListener(client, hub)

	if err := listener.Start(context.Background()); err != nil {
		t.Fatalf("start listener: %v", err)
	}
	defer listener.Stop()

	parentID := uuid.New()
	member, outsider := newChanConn(), newChanConn()
	hub.Register(member)
	hub.Register(outsider)
	hub.Join(member, parentID.String())

	publisher := NewPublisher(client)
	reply := &model.Comment{ID: uuid.New(), ParentID: &parentID, Content: "reply"}
	event := NewCommentCreatedEvent(reply)
	if err := publisher.PublishToRoom(context.Background(), event.Room(), event); err != nil {
		t.Fatalf("publish to room: %v", err)
	}

	got := member.waitForMessage(t)
	if got.Comment == nil || got.Comment.ID != reply.ID {
		t.Errorf("member received wrong event: %+v", got)
	}
	outsider.assertSilent(t)
}
