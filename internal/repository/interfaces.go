package repository

import (
	"context"

	"github.com/google/uuid"

	"commentflow/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdateAvatar(ctx context.Context, id uuid.UUID, avatarURL, avatarKey string) error
}

type CommentRepository interface {
	// Create inserts a new comment. Timestamps are filled in from the row.
	Create(ctx context.Context, comment *model.Comment) error

	// GetByID returns a non-deleted comment with author, reaction sets and
	// reply count, or model.ErrCommentNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Comment, error)

	// ListByParent returns one page of non-deleted comments in the given
	// scope (nil parentID = top level), ordered by sort.
	ListByParent(ctx context.Context, parentID *uuid.UUID, sort model.SortMode, offset, limit int) ([]model.Comment, error)

	// CountByParent counts non-deleted comments in the given scope.
	CountByParent(ctx context.Context, parentID *uuid.UUID) (int, error)

	// UpdateContent replaces a comment's content and marks it edited.
	UpdateContent(ctx context.Context, id uuid.UUID, content string) error

	// SoftDelete tombstones a comment. Replies are kept.
	SoftDelete(ctx context.Context, id uuid.UUID) error

	// ToggleReaction applies toggle semantics for (comment, user, kind) in a
	// single atomic statement: same kind removes the reaction, otherwise the
	// opposite reaction (if any) is replaced by kind.
	ToggleReaction(ctx context.Context, commentID, userID uuid.UUID, kind model.ReactionKind) error
}
