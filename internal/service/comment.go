package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"commentflow/internal/broadcast"
	"commentflow/internal/cache"
	"commentflow/internal/model"
	"commentflow/internal/repository"
)

const (
	// cacheTimeout bounds cache reads/writes/invalidation; on expiry the
	// service falls through to the store (fail-open)
	cacheTimeout = 500 * time.Millisecond

	// publishTimeout bounds the fire-and-forget broadcast publish
	publishTimeout = 2 * time.Second
)

// CommentService orchestrates the comment store, the listing cache and the
// broadcast layer. Every mutation runs the same effect sequence: persist,
// invalidate the whole listing cache, publish the event. Cache and broadcast
// failures never fail a committed mutation; store failures are fatal to the
// operation.
type CommentService struct {
	commentRepo repository.CommentRepository
	userRepo    repository.UserRepository
	cache       cache.CommentCache
	publisher   broadcast.Publisher
	sanitizer   *bluemonday.Policy
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	userRepo repository.UserRepository,
	commentCache cache.CommentCache,
	publisher broadcast.Publisher,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		userRepo:    userRepo,
		cache:       commentCache,
		publisher:   publisher,
		sanitizer:   bluemonday.UGCPolicy(),
	}
}

// Create persists a new comment after validating the author and, for
// replies, that the parent exists and is not deleted.
func (s *CommentService) Create(ctx context.Context, userID uuid.UUID, req model.CreateCommentRequest) (*model.Comment, error) {
	content, err := s.cleanContent(req.Content)
	if err != nil {
		return nil, err
	}

	author, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err // model.ErrUserNotFound or wrapped store error
	}

	if req.ParentID != nil {
		// GetByID excludes soft-deleted rows, so a tombstoned parent also
		// fails here. Parent deletion after this point does not cascade:
		// replies stay visible as orphans.
		if _, err := s.commentRepo.GetByID(ctx, *req.ParentID); err != nil {
			return nil, err
		}
	}

	comment := &model.Comment{
		ID:        uuid.New(),
		UserID:    userID,
		Content:   content,
		ParentID:  req.ParentID,
		Likers:    []string{},
		Dislikers: []string{},
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	comment.UpdatedAt = comment.CreatedAt
	comment.Author = author.Summary()

	log.Printf("[CommentService] User %s created comment %s (parent=%v)", userID, comment.ID, req.ParentID)

	s.invalidateListings(ctx)
	s.publish(ctx, broadcast.NewCommentCreatedEvent(comment))

	return comment, nil
}

// List returns one page of the listing scope, served from the cache when a
// fresh entry exists. Single-item reads are never cached; pages are, for up
// to cache.PageTTL or until any mutation invalidates the namespace.
func (s *CommentService) List(ctx context.Context, parentID *uuid.UUID, page, pageSize int, sort model.SortMode) (*model.CommentListResponse, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = model.DefaultPageSize
	}
	if pageSize > model.MaxPageSize {
		pageSize = model.MaxPageSize
	}

	key := cache.PageKey(parentID, sort, page, pageSize)

	{
		cctx, cancel := context.WithTimeout(ctx, cacheTimeout)
		payload, ok, err := s.cache.GetPage(cctx, key)
		cancel()
		if err != nil {
			log.Printf("[CommentService] Cache read failed, falling through to store: %v", err)
		} else if ok {
			var result model.CommentListResponse
			if err := json.Unmarshal(payload, &result); err == nil {
				return &result, nil
			}
			log.Printf("[CommentService] Corrupt cache entry key=%s, falling through: %v", key, err)
		}
	}

	offset := (page - 1) * pageSize
	comments, err := s.commentRepo.ListByParent(ctx, parentID, sort, offset, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if comments == nil {
		// A page past the end serializes as [] rather than null.
		comments = []model.Comment{}
	}
	total, err := s.commentRepo.CountByParent(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}

	result := &model.CommentListResponse{
		Comments:   comments,
		Total:      total,
		Page:       page,
		TotalPages: (total + pageSize - 1) / pageSize,
	}

	if payload, err := json.Marshal(result); err == nil {
		cctx, cancel := context.WithTimeout(ctx, cacheTimeout)
		if err := s.cache.SetPage(cctx, key, payload); err != nil {
			log.Printf("[CommentService] Cache write failed: %v", err)
		}
		cancel()
	}

	return result, nil
}

// GetByID returns a single non-deleted comment. Deliberately uncached so
// direct-link views never see stale data.
func (s *CommentService) GetByID(ctx context.Context, commentID uuid.UUID) (*model.Comment, error) {
	return s.commentRepo.GetByID(ctx, commentID)
}

// Update edits a comment's content. Only the author may edit.
func (s *CommentService) Update(ctx context.Context, commentID, requesterID uuid.UUID, req model.UpdateCommentRequest) (*model.Comment, error) {
	content, err := s.cleanContent(req.Content)
	if err != nil {
		return nil, err
	}

	existing, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if existing.UserID != requesterID {
		return nil, model.ErrNotCommentOwner
	}

	if err := s.commentRepo.UpdateContent(ctx, commentID, content); err != nil {
		return nil, err
	}
	updated, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}

	log.Printf("[CommentService] User %s updated comment %s", requesterID, commentID)

	s.invalidateListings(ctx)
	s.publish(ctx, broadcast.NewCommentUpdatedEvent(updated))

	return updated, nil
}

// Delete soft-deletes a comment. The tombstone keeps existing replies
// reachable. Deleting a comment that is already deleted reports NotFound,
// since reads exclude tombstones.
func (s *CommentService) Delete(ctx context.Context, commentID, requesterID uuid.UUID) error {
	existing, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if existing.UserID != requesterID {
		return model.ErrNotCommentOwner
	}

	if err := s.commentRepo.SoftDelete(ctx, commentID); err != nil {
		return err
	}

	log.Printf("[CommentService] User %s deleted comment %s", requesterID, commentID)

	s.invalidateListings(ctx)
	s.publish(ctx, broadcast.NewCommentDeletedEvent(commentID, existing.ParentID))

	return nil
}

// React applies toggle semantics for (comment, user, kind): reacting with
// the same kind twice removes the reaction, reacting with the opposite kind
// replaces it. The store applies the toggle atomically.
func (s *CommentService) React(ctx context.Context, commentID, userID uuid.UUID, kind model.ReactionKind) (*model.Comment, error) {
	if _, err := s.commentRepo.GetByID(ctx, commentID); err != nil {
		return nil, err
	}

	if err := s.commentRepo.ToggleReaction(ctx, commentID, userID, kind); err != nil {
		return nil, err
	}

	updated, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}

	log.Printf("[CommentService] User %s reacted %s on comment %s", userID, kind, commentID)

	s.invalidateListings(ctx)
	s.publish(ctx, broadcast.NewCommentReactedEvent(updated))

	return updated, nil
}

// cleanContent sanitizes user HTML and enforces the 1-2000 code point limit.
func (s *CommentService) cleanContent(raw string) (string, error) {
	content := strings.TrimSpace(s.sanitizer.Sanitize(strings.TrimSpace(raw)))
	if content == "" {
		return "", model.ErrContentRequired
	}
	if utf8.RuneCountInString(content) > model.MaxCommentLength {
		return "", model.ErrContentTooLong
	}
	return content, nil
}

// invalidateListings clears the entire listing-cache namespace. Coarse and
// unconditional: correctness over hit rate. Detached from the request
// context so a client disconnect right after commit cannot leave stale
// pages behind.
func (s *CommentService) invalidateListings(ctx context.Context) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
	defer cancel()

	if err := s.cache.InvalidateAll(cctx); err != nil {
		log.Printf("[CommentService] Cache invalidation failed (stale entries expire via TTL): %v", err)
	}
}

// publish emits the event globally and, for replies, to the parent's thread
// room. Runs strictly after the store write and cache invalidation; a
// transport failure is logged and never rolls back the mutation.
func (s *CommentService) publish(ctx context.Context, event broadcast.Event) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.PublishGlobal(pctx, event); err != nil {
		log.Printf("[CommentService] Broadcast publish failed: type=%s err=%v", event.Type, err)
	}
	if room := event.Room(); room != "" {
		if err := s.publisher.PublishToRoom(pctx, room, event); err != nil {
			log.Printf("[CommentService] Room publish failed: room=%s type=%s err=%v", room, event.Type, err)
		}
	}
}
