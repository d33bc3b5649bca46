package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Comment is a single comment in the reply tree. ParentID is nil for
// top-level comments. Likers/Dislikers hold the user IDs that reacted;
// a user appears in at most one of the two. ReplyCount is derived from
// live non-deleted children, never stored.
type Comment struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	UserID     uuid.UUID      `db:"user_id" json:"user_id"`
	Content    string         `db:"content" json:"content"`
	ParentID   *uuid.UUID     `db:"parent_id" json:"parent_id"`
	Likers     pq.StringArray `db:"likers" json:"likes"`
	Dislikers  pq.StringArray `db:"dislikers" json:"dislikes"`
	IsDeleted  bool           `db:"is_deleted" json:"is_deleted"`
	IsEdited   bool           `db:"is_edited" json:"is_edited"`
	EditedAt   *time.Time     `db:"edited_at" json:"edited_at,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
	Author     *UserSummary   `json:"user,omitempty"` // Joined field
	ReplyCount int            `db:"reply_count" json:"reply_count"`
}

// SortMode controls listing order. Ties for the reaction-count sorts
// break by descending creation time.
type SortMode string

const (
	SortNewest       SortMode = "newest"
	SortMostLiked    SortMode = "most-liked"
	SortMostDisliked SortMode = "most-disliked"
)

// ParseSortMode maps a query-string value to a SortMode, defaulting to newest.
func ParseSortMode(s string) (SortMode, error) {
	switch s {
	case "", string(SortNewest):
		return SortNewest, nil
	case string(SortMostLiked):
		return SortMostLiked, nil
	case string(SortMostDisliked):
		return SortMostDisliked, nil
	default:
		return "", ErrInvalidSortMode
	}
}

// ReactionKind is one of the two mutually exclusive reactions.
type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

// ParseReactionKind validates a reaction type from a request.
func ParseReactionKind(s string) (ReactionKind, error) {
	switch s {
	case string(ReactionLike):
		return ReactionLike, nil
	case string(ReactionDislike):
		return ReactionDislike, nil
	default:
		return "", ErrInvalidReaction
	}
}

// CreateCommentRequest is the request body for creating a comment.
type CreateCommentRequest struct {
	Content  string     `json:"content"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

// UpdateCommentRequest is the request body for editing a comment.
type UpdateCommentRequest struct {
	Content string `json:"content"`
}

// ReactRequest is the request body for reacting to a comment.
type ReactRequest struct {
	Type string `json:"type"`
}

// CommentListResponse is a single page of comments with pagination metadata.
type CommentListResponse struct {
	Comments   []Comment `json:"comments"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	TotalPages int       `json:"total_pages"`
}

// Pagination and content constraints
const (
	DefaultPageSize  = 10
	MaxPageSize      = 100
	MaxCommentLength = 2000 // Unicode code points
)

// Comment errors
var (
	ErrCommentNotFound = errors.New("comment not found")
	ErrNotCommentOwner = errors.New("not the owner of this comment")
	ErrContentRequired = errors.New("comment content is required")
	ErrContentTooLong  = errors.New("comment content too long")
	ErrInvalidSortMode = errors.New("invalid sort mode")
	ErrInvalidReaction = errors.New("invalid reaction type")
)
