package ws

import (
	"encoding/json"
	"testing"

	"commentflow/internal/broadcast"
)

// The pumps never run in these tests, so a nil socket is fine: the hub only
// interacts with a client through Send and Close.
func newTestClient(hub *broadcast.Hub) *Client {
	return newClient(hub, nil, "")
}

func fillSendBuffer(t *testing.T, c *Client) {
	t.Helper()
	for i := 0; i < sendBuffer; i++ {
		if !c.Send([]byte("backlog")) {
			t.Fatalf("send %d refused before the buffer was full", i)
		}
	}
	if c.Send([]byte("overflow")) {
		t.Fatal("send accepted past the buffer capacity")
	}
}

func TestClient_SlowConsumerDropThenDisconnect(t *testing.T) {
	hub := broadcast.NewHub()
	client := newTestClient(hub)
	hub.Register(client)
	hub.Join(client, "thread-1")

	// A full outbound buffer makes the next broadcast drop the client.
	fillSendBuffer(t, client)
	hub.Broadcast([]byte("event"))

	if hub.ConnCount() != 0 {
		t.Fatalf("conn count = %d, want 0 after slow-consumer drop", hub.ConnCount())
	}
	if hub.RoomSize("thread-1") != 0 {
		t.Errorf("room size = %d, want 0 after drop", hub.RoomSize("thread-1"))
	}

	// The peer disconnect lands next: the read pump's exit unregisters the
	// client a second time. The hub already dropped it, so this must be a
	// no-op rather than a second close of the send channel.
	hub.Unregister(client)

	// A broadcast racing the disconnect must see a dead connection, not a
	// send on a closed channel.
	if client.Send([]byte("late")) {
		t.Error("send accepted after close")
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	client := newTestClient(broadcast.NewHub())

	client.Close()
	client.Close()

	if client.Send([]byte("x")) {
		t.Error("send accepted after close")
	}
}

func TestClient_SendDrainsToBuffer(t *testing.T) {
	client := newTestClient(broadcast.NewHub())

	if !client.Send([]byte("hello")) {
		t.Fatal("send refused with an empty buffer")
	}
	select {
	case msg := <-client.send:
		if string(msg) != "hello" {
			t.Errorf("queued message = %q, want %q", msg, "hello")
		}
	default:
		t.Fatal("nothing queued after a successful send")
	}
}

func TestControlMessage_Decoding(t *testing.T) {
	var msg controlMessage
	raw := []byte(`{"action":"join:thread","thread_id":"abc"}`)
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Action != ActionJoinThread || msg.ThreadID != "abc" {
		t.Errorf("decoded = %+v", msg)
	}
}
