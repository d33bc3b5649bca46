package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"commentflow/internal/model"
)

// Event types delivered to subscribed clients
const (
	EventCommentCreated = "comment:created"
	EventCommentUpdated = "comment:updated"
	EventCommentDeleted = "comment:deleted"
	EventCommentReacted = "comment:reacted"
)

// Redis pub/sub channels. Every event goes to ChannelGlobal; events on a
// reply additionally go to the thread room of its parent.
const (
	ChannelGlobal     = "comments:events"
	RoomChannelPrefix = "comments:thread:"
)

// Event is the wire representation of a comment mutation. Created, updated
// and reacted events carry the full comment projection; deleted events carry
// only the id (plus the parent id for room targeting).
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix timestamp when event occurred

	// Created / updated / reacted events
	Comment *model.Comment `json:"comment,omitempty"`

	// Deleted events
	CommentID string  `json:"id,omitempty"`
	ParentID  *string `json:"parent_id,omitempty"`
}

// NewCommentCreatedEvent builds an event for a freshly persisted comment.
func NewCommentCreatedEvent(comment *model.Comment) Event {
	return Event{
		Type:      EventCommentCreated,
		Timestamp: time.Now().Unix(),
		Comment:   comment,
	}
}

// NewCommentUpdatedEvent builds an event for an edited comment.
func NewCommentUpdatedEvent(comment *model.Comment) Event {
	return Event{
		Type:      EventCommentUpdated,
		Timestamp: time.Now().Unix(),
		Comment:   comment,
	}
}

// NewCommentReactedEvent builds an event carrying updated reaction sets.
func NewCommentReactedEvent(comment *model.Comment) Event {
	return Event{
		Type:      EventCommentReacted,
		Timestamp: time.Now().Unix(),
		Comment:   comment,
	}
}

// NewCommentDeletedEvent builds a tombstone event. Only the id (and parent
// id, when the comment was a reply) go on the wire.
func NewCommentDeletedEvent(commentID uuid.UUID, parentID *uuid.UUID) Event {
	e := Event{
		Type:      EventCommentDeleted,
		Timestamp: time.Now().Unix(),
		CommentID: commentID.String(),
	}
	if parentID != nil {
		p := parentID.String()
		e.ParentID = &p
	}
	return e
}

// Room returns the thread room this event targets, or "" for events on
// top-level comments (which only fan out globally).
func (e Event) Room() string {
	switch e.Type {
	case EventCommentDeleted:
		if e.ParentID != nil {
			return *e.ParentID
		}
	default:
		if e.Comment != nil && e.Comment.ParentID != nil {
			return e.Comment.ParentID.String()
		}
	}
	return ""
}

// RoomChannel returns the pub/sub channel for a thread room.
func RoomChannel(room string) string {
	return RoomChannelPrefix + room
}

// Marshal serializes the event for the wire.
func (e Event) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// ParseEvent decodes an event received from a pub/sub channel.
func ParseEvent(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
