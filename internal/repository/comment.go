package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"commentflow/internal/model"
)

type commentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) CommentRepository {
	return &commentRepository{db: db}
}

// commentColumns selects a full comment projection: the joined author,
// reaction sets as text arrays and the live reply count. Soft-deleted
// children never count toward reply_count.
const commentColumns = `
	c.id, c.user_id, c.content, c.parent_id, c.is_deleted, c.is_edited,
	c.edited_at, c.created_at, c.updated_at,
	ARRAY(SELECT r.user_id::text FROM comment_reactions r
	      WHERE r.comment_id = c.id AND r.kind = 'like'
	      ORDER BY r.created_at) AS likers,
	ARRAY(SELECT r.user_id::text FROM comment_reactions r
	      WHERE r.comment_id = c.id AND r.kind = 'dislike'
	      ORDER BY r.created_at) AS dislikers,
	(SELECT COUNT(*) FROM comments k
	 WHERE k.parent_id = c.id AND NOT k.is_deleted) AS reply_count,
	(SELECT COUNT(*) FROM comment_reactions r
	 WHERE r.comment_id = c.id AND r.kind = 'like') AS like_count,
	(SELECT COUNT(*) FROM comment_reactions r
	 WHERE r.comment_id = c.id AND r.kind = 'dislike') AS dislike_count,
	u.id AS "author.id", u.name AS "author.name",
	u.email AS "author.email", u.avatar_url AS "author.avatar_url"
`

// commentRow scans the joined projection before assembling a model.Comment.
type commentRow struct {
	ID           uuid.UUID      `db:"id"`
	UserID       uuid.UUID      `db:"user_id"`
	Content      string         `db:"content"`
	ParentID     *uuid.UUID     `db:"parent_id"`
	IsDeleted    bool           `db:"is_deleted"`
	IsEdited     bool           `db:"is_edited"`
	EditedAt     *time.Time     `db:"edited_at"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	Likers       pq.StringArray `db:"likers"`
	Dislikers    pq.StringArray `db:"dislikers"`
	ReplyCount   int            `db:"reply_count"`
	LikeCount    int            `db:"like_count"`
	DislikeCount int            `db:"dislike_count"`
	AuthorID     uuid.UUID      `db:"author.id"`
	AuthorName   string         `db:"author.name"`
	AuthorEmail  string         `db:"author.email"`
	AuthorAvatar *string        `db:"author.avatar_url"`
}

func (row commentRow) toComment() model.Comment {
	return model.Comment{
		ID:         row.ID,
		UserID:     row.UserID,
		Content:    row.Content,
		ParentID:   row.ParentID,
		Likers:     row.Likers,
		Dislikers:  row.Dislikers,
		IsDeleted:  row.IsDeleted,
		IsEdited:   row.IsEdited,
		EditedAt:   row.EditedAt,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
		ReplyCount: row.ReplyCount,
		Author: &model.UserSummary{
			ID:     row.AuthorID,
			Name:   row.AuthorName,
			Email:  row.AuthorEmail,
			Avatar: row.AuthorAvatar,
		},
	}
}

// Create inserts a new comment. Parent validation is the service's job.
func (r *commentRepository) Create(ctx context.Context, comment *model.Comment) error {
	query := `
		INSERT INTO comments (id, user_id, content, parent_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	row := r.db.QueryRowxContext(ctx, query,
		comment.ID, comment.UserID, comment.Content, comment.ParentID)
	if err := row.Scan(&comment.CreatedAt, &comment.UpdatedAt); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// GetByID retrieves a single non-deleted comment with its full projection.
func (r *commentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Comment, error) {
	query := `
		SELECT ` + commentColumns + `
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.id = $1 AND NOT c.is_deleted
	`
	var row commentRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	comment := row.toComment()
	return &comment, nil
}

// ListByParent returns one page of the listing scope. IS NOT DISTINCT FROM
// matches NULL parents when parentID is nil (top-level scope).
func (r *commentRepository) ListByParent(ctx context.Context, parentID *uuid.UUID, sort model.SortMode, offset, limit int) ([]model.Comment, error) {
	var orderBy string
	switch sort {
	case model.SortMostLiked:
		orderBy = "like_count DESC, c.created_at DESC, c.id DESC"
	case model.SortMostDisliked:
		orderBy = "dislike_count DESC, c.created_at DESC, c.id DESC"
	default:
		orderBy = "c.created_at DESC, c.id DESC"
	}

	query := `
		SELECT ` + commentColumns + `
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE NOT c.is_deleted AND c.parent_id IS NOT DISTINCT FROM $1
		ORDER BY ` + orderBy + `
		OFFSET $2 LIMIT $3
	`

	var rows []commentRow
	if err := r.db.SelectContext(ctx, &rows, query, parentID, offset, limit); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	comments := make([]model.Comment, len(rows))
	for i, row := range rows {
		comments[i] = row.toComment()
	}
	return comments, nil
}

func (r *commentRepository) CountByParent(ctx context.Context, parentID *uuid.UUID) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM comments c
		WHERE NOT c.is_deleted AND c.parent_id IS NOT DISTINCT FROM $1
	`, parentID)
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return total, nil
}

// UpdateContent replaces the content and marks the comment edited.
func (r *commentRepository) UpdateContent(ctx context.Context, id uuid.UUID, content string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE comments
		SET content = $1, is_edited = true, edited_at = now(), updated_at = now()
		WHERE id = $2 AND NOT is_deleted
	`, content, id)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrCommentNotFound
	}
	return nil
}

// SoftDelete tombstones the comment. The row stays so existing replies keep
// a valid parent reference.
func (r *commentRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE comments SET is_deleted = true, updated_at = now()
		WHERE id = $1 AND NOT is_deleted
	`, id)
	if err != nil {
		return fmt.Errorf("soft delete comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrCommentNotFound
	}
	return nil
}

// ToggleReaction runs the whole toggle as one statement so concurrent
// reactions on the same comment serialize in the database instead of racing
// through a load-modify-store cycle. The cur CTE locks the user's existing
// reaction row; same kind deletes it, a different kind is upserted.
func (r *commentRepository) ToggleReaction(ctx context.Context, commentID, userID uuid.UUID, kind model.ReactionKind) error {
	query := `
		WITH cur AS (
			SELECT kind FROM comment_reactions
			WHERE comment_id = $1 AND user_id = $2
			FOR UPDATE
		), removed AS (
			DELETE FROM comment_reactions
			WHERE comment_id = $1 AND user_id = $2
			  AND EXISTS (SELECT 1 FROM cur WHERE kind = $3)
			RETURNING user_id
		)
		INSERT INTO comment_reactions (comment_id, user_id, kind)
		SELECT $1, $2, $3
		WHERE NOT EXISTS (SELECT 1 FROM cur WHERE kind = $3)
		ON CONFLICT (comment_id, user_id) DO UPDATE SET kind = EXCLUDED.kind, created_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, commentID, userID, string(kind)); err != nil {
		return fmt.Errorf("toggle reaction: %w", err)
	}
	return nil
}
