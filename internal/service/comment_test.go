package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"commentflow/internal/broadcast"
	"commentflow/internal/model"
)

// =============================================================================
// IN-MEMORY DOUBLES
// =============================================================================
//
// The comment service depends only on interfaces, so the tests run against
// in-memory stand-ins: a stateful comment store that mirrors the real
// store's semantics (soft delete, atomic toggle, derived reply counts), a
// map-backed cache and a recording publisher.

type memUserRepo struct {
	users map[uuid.UUID]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (m *memUserRepo) addUser(name string) uuid.UUID {
	id := uuid.New()
	m.users[id] = &model.User{ID: id, Name: name, Email: name + "@example.com", IsActive: true}
	return id
}

func (m *memUserRepo) Create(ctx context.Context, user *model.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return user, nil
}

func (m *memUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (m *memUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *memUserRepo) UpdateAvatar(ctx context.Context, id uuid.UUID, avatarURL, avatarKey string) error {
	user, ok := m.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	user.AvatarURL = &avatarURL
	user.AvatarKey = &avatarKey
	return nil
}

// memCommentRepo mirrors the Postgres repository's contract: reads exclude
// soft-deleted rows, reactions toggle atomically, reply counts come from
// live children.
type memCommentRepo struct {
	users     *memUserRepo
	comments  map[uuid.UUID]*model.Comment
	reactions map[uuid.UUID]map[uuid.UUID]model.ReactionKind
	seq       int

	listCalls int
}

func newMemCommentRepo(users *memUserRepo) *memCommentRepo {
	return &memCommentRepo{
		users:     users,
		comments:  make(map[uuid.UUID]*model.Comment),
		reactions: make(map[uuid.UUID]map[uuid.UUID]model.ReactionKind),
	}
}

func (m *memCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	m.seq++
	stored := *comment
	// Monotonic timestamps so "newest" ordering is deterministic.
	stored.CreatedAt = time.Unix(int64(m.seq), 0)
	stored.UpdatedAt = stored.CreatedAt
	m.comments[comment.ID] = &stored
	comment.CreatedAt = stored.CreatedAt
	comment.UpdatedAt = stored.UpdatedAt
	return nil
}

func (m *memCommentRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Comment, error) {
	stored, ok := m.comments[id]
	if !ok || stored.IsDeleted {
		return nil, model.ErrCommentNotFound
	}
	return m.project(stored), nil
}

func (m *memCommentRepo) ListByParent(ctx context.Context, parentID *uuid.UUID, sort model.SortMode, offset, limit int) ([]model.Comment, error) {
	m.listCalls++

	var scoped []*model.Comment
	for _, c := range m.comments {
		if c.IsDeleted || !sameParent(c.ParentID, parentID) {
			continue
		}
		scoped = append(scoped, c)
	}

	projected := make([]model.Comment, len(scoped))
	for i, c := range scoped {
		projected[i] = *m.project(c)
	}
	sortComments(projected, sort)

	if offset >= len(projected) {
		return nil, nil
	}
	end := offset + limit
	if end > len(projected) {
		end = len(projected)
	}
	return projected[offset:end], nil
}

func (m *memCommentRepo) CountByParent(ctx context.Context, parentID *uuid.UUID) (int, error) {
	n := 0
	for _, c := range m.comments {
		if !c.IsDeleted && sameParent(c.ParentID, parentID) {
			n++
		}
	}
	return n, nil
}

func (m *memCommentRepo) UpdateContent(ctx context.Context, id uuid.UUID, content string) error {
	stored, ok := m.comments[id]
	if !ok || stored.IsDeleted {
		return model.ErrCommentNotFound
	}
	now := time.Now()
	stored.Content = content
	stored.IsEdited = true
	stored.EditedAt = &now
	stored.UpdatedAt = now
	return nil
}

func (m *memCommentRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	stored, ok := m.comments[id]
	if !ok || stored.IsDeleted {
		return model.ErrCommentNotFound
	}
	stored.IsDeleted = true
	return nil
}

func (m *memCommentRepo) ToggleReaction(ctx context.Context, commentID, userID uuid.UUID, kind model.ReactionKind) error {
	if m.reactions[commentID] == nil {
		m.reactions[commentID] = make(map[uuid.UUID]model.ReactionKind)
	}
	if current, ok := m.reactions[commentID][userID]; ok && current == kind {
		delete(m.reactions[commentID], userID)
	} else {
		m.reactions[commentID][userID] = kind
	}
	return nil
}

func (m *memCommentRepo) project(stored *model.Comment) *model.Comment {
	c := *stored
	c.Likers, c.Dislikers = []string{}, []string{}
	for userID, kind := range m.reactions[c.ID] {
		if kind == model.ReactionLike {
			c.Likers = append(c.Likers, userID.String())
		} else {
			c.Dislikers = append(c.Dislikers, userID.String())
		}
	}
	c.ReplyCount = 0
	for _, other := range m.comments {
		if !other.IsDeleted && other.ParentID != nil && *other.ParentID == c.ID {
			c.ReplyCount++
		}
	}
	if user, ok := m.users.users[c.UserID]; ok {
		c.Author = user.Summary()
	}
	return &c
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sortComments(comments []model.Comment, sort model.SortMode) {
	less := func(i, j int) bool {
		switch sort {
		case model.SortMostLiked:
			if len(comments[i].Likers) != len(comments[j].Likers) {
				return len(comments[i].Likers) > len(comments[j].Likers)
			}
		case model.SortMostDisliked:
			if len(comments[i].Dislikers) != len(comments[j].Dislikers) {
				return len(comments[i].Dislikers) > len(comments[j].Dislikers)
			}
		}
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	}
	for i := 1; i < len(comments); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			comments[j], comments[j-1] = comments[j-1], comments[j]
		}
	}
}

// fakeCache is a map-backed CommentCache with failure injection.
type fakeCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	invalidated int
	getErr      error
	setErr      error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (f *fakeCache) GetPage(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	payload, ok := f.entries[key]
	return payload, ok, nil
}

func (f *fakeCache) SetPage(ctx context.Context, key string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key] = payload
	return nil
}

func (f *fakeCache) InvalidateAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
	f.entries = make(map[string][]byte)
	return nil
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	global []broadcast.Event
	rooms  map[string][]broadcast.Event
	err    error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{rooms: make(map[string][]broadcast.Event)}
}

func (f *fakePublisher) PublishGlobal(ctx context.Context, event broadcast.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.global = append(f.global, event)
	return nil
}

func (f *fakePublisher) PublishToRoom(ctx context.Context, room string, event broadcast.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rooms[room] = append(f.rooms[room], event)
	return nil
}

type fixture struct {
	users     *memUserRepo
	comments  *memCommentRepo
	cache     *fakeCache
	publisher *fakePublisher
	svc       *CommentService
	authorID  uuid.UUID
}

func newFixture() *fixture {
	users := newMemUserRepo()
	comments := newMemCommentRepo(users)
	cache := newFakeCache()
	publisher := newFakePublisher()
	return &fixture{
		users:     users,
		comments:  comments,
		cache:     cache,
		publisher: publisher,
		svc:       NewCommentService(comments, users, cache, publisher),
		authorID:  users.addUser("alice"),
	}
}

func (f *fixture) mustCreate(t *testing.T, content string, parentID *uuid.UUID) *model.Comment {
	t.Helper()
	comment, err := f.svc.Create(context.Background(), f.authorID, model.CreateCommentRequest{
		Content:  content,
		ParentID: parentID,
	})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	return comment
}

// =============================================================================
// CREATE
// =============================================================================

func TestCommentService_Create_Success(t *testing.T) {
	f := newFixture()

	comment := f.mustCreate(t, "first!", nil)

	if comment.UserID != f.authorID {
		t.Errorf("user id = %s, want %s", comment.UserID, f.authorID)
	}
	if comment.Author == nil || comment.Author.Name != "alice" {
		t.Errorf("author not populated: %+v", comment.Author)
	}
	if comment.ParentID != nil {
		t.Errorf("expected top-level comment, got parent %v", comment.ParentID)
	}
	if f.cache.invalidated != 1 {
		t.Errorf("cache invalidations = %d, want 1", f.cache.invalidated)
	}
	if len(f.publisher.global) != 1 || f.publisher.global[0].Type != broadcast.EventCommentCreated {
		t.Fatalf("expected one created event, got %+v", f.publisher.global)
	}
	if len(f.publisher.rooms) != 0 {
		t.Errorf("top-level comment should not target a room, got %v", f.publisher.rooms)
	}
}

func TestCommentService_Create_ReplyTargetsParentRoom(t *testing.T) {
	f := newFixture()
	parent := f.mustCreate(t, "parent", nil)

	reply := f.mustCreate(t, "reply", &parent.ID)

	if reply.ParentID == nil || *reply.ParentID != parent.ID {
		t.Fatalf("reply parent = %v, want %s", reply.ParentID, parent.ID)
	}
	room := parent.ID.String()
	if len(f.publisher.rooms[room]) != 1 {
		t.Errorf("expected one event in room %s, got %v", room, f.publisher.rooms)
	}
}

func TestCommentService_Create_ParentNotFound(t *testing.T) {
	f := newFixture()
	missing := uuid.New()

	_, err := f.svc.Create(context.Background(), f.authorID, model.CreateCommentRequest{
		Content:  "orphan reply",
		ParentID: &missing,
	})
	if !errors.Is(err, model.ErrCommentNotFound) {
		t.Fatalf("err = %v, want ErrCommentNotFound", err)
	}
	if len(f.publisher.global) != 0 {
		t.Errorf("no event should be published for a failed create")
	}
}

func TestCommentService_Create_DeletedParentRejected(t *testing.T) {
	f := newFixture()
	parent := f.mustCreate(t, "doomed parent", nil)
	if err := f.svc.Delete(context.Background(), parent.ID, f.authorID); err != nil {
		t.Fatalf("delete parent: %v", err)
	}

	_, err := f.svc.Create(context.Background(), f.authorID, model.CreateCommentRequest{
		Content:  "reply to tombstone",
		ParentID: &parent.ID,
	})
	if !errors.Is(err, model.ErrCommentNotFound) {
		t.Fatalf("err = %v, want ErrCommentNotFound", err)
	}
}

func TestCommentService_Create_ContentValidation(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.Create(context.Background(), f.authorID, model.CreateCommentRequest{Content: "   "}); !errors.Is(err, model.ErrContentRequired) {
		t.Errorf("blank content err = %v, want ErrContentRequired", err)
	}

	long := strings.Repeat("a", model.MaxCommentLength+1)
	if _, err := f.svc.Create(context.Background(), f.authorID, model.CreateCommentRequest{Content: long}); !errors.Is(err, model.ErrContentTooLong) {
		t.Errorf("long content err = %v, want ErrContentTooLong", err)
	}
}

func TestCommentService_Create_SanitizesContent(t *testing.T) {
	f := newFixture()

	comment := f.mustCreate(t, `hello <script>alert("x")</script>world`, nil)

	if strings.Contains(comment.Content, "script") {
		t.Errorf("script tag survived sanitization: %q", comment.Content)
	}
	if !strings.Contains(comment.Content, "hello") {
		t.Errorf("text content lost during sanitization: %q", comment.Content)
	}
}

func TestCommentService_Create_UnknownAuthor(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), uuid.New(), model.CreateCommentRequest{Content: "hi"})
	if !errors.Is(err, model.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

// =============================================================================
// LIST + CACHE
// =============================================================================

func TestCommentService_List_CacheMissThenHit(t *testing.T) {
	f := newFixture()
	f.mustCreate(t, "one", nil)
	f.mustCreate(t, "two", nil)

	first, err := f.svc.List(context.Background(), nil, 1, 10, model.SortNewest)
	if err != nil {
		t.Fatalf("first list: %v", err)
	}
	if first.Total != 2 || len(first.Comments) != 2 {
		t.Fatalf("first list = total %d len %d, want 2/2", first.Total, len(first.Comments))
	}
	callsAfterMiss := f.comments.listCalls

	second, err := f.svc.List(context.Background(), nil, 1, 10, model.SortNewest)
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if f.comments.listCalls != callsAfterMiss {
		t.Errorf("second list hit the store (%d calls), expected cache hit", f.comments.listCalls)
	}
	if second.Total != first.Total {
		t.Errorf("cached total = %d, want %d", second.Total, first.Total)
	}
}

func TestCommentService_List_NewestOrder(t *testing.T) {
	f := newFixture()
	f.mustCreate(t, "older", nil)
	newer := f.mustCreate(t, "newer", nil)

	result, err := f.svc.List(context.Background(), nil, 1, 10, model.SortNewest)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Comments[0].ID != newer.ID {
		t.Errorf("first comment = %q, want the newest", result.Comments[0].Content)
	}
}

func TestCommentService_List_MostLikedOrder(t *testing.T) {
	f := newFixture()
	popular := f.mustCreate(t, "popular", nil)
	f.mustCreate(t, "ignored", nil)

	reactor := f.users.addUser("bob")
	if _, err := f.svc.React(context.Background(), popular.ID, reactor, model.ReactionLike); err != nil {
		t.Fatalf("react: %v", err)
	}

	result, err := f.svc.List(context.Background(), nil, 1, 10, model.SortMostLiked)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Comments[0].ID != popular.ID {
		t.Errorf("most-liked order wrong: first = %q", result.Comments[0].Content)
	}
}

func TestCommentService_List_ClampsPagination(t *testing.T) {
	f := newFixture()
	f.mustCreate(t, "a", nil)

	result, err := f.svc.List(context.Background(), nil, 0, model.MaxPageSize+500, model.SortNewest)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Page != 1 {
		t.Errorf("page = %d, want 1", result.Page)
	}
	if result.TotalPages != 1 {
		t.Errorf("total pages = %d, want 1", result.TotalPages)
	}
}

func TestCommentService_List_PagePastEndIsEmptyArray(t *testing.T) {
	f := newFixture()
	f.mustCreate(t, "only one", nil)

	result, err := f.svc.List(context.Background(), nil, 99, 10, model.SortNewest)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(result.Comments) != 0 {
		t.Fatalf("past-end page has %d comments, want 0", len(result.Comments))
	}
	if result.Comments == nil {
		t.Error("past-end page is nil, want empty slice")
	}

	// The wire shape stays "comments": [], never null.
	payload, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(payload), `"comments":[]`) {
		t.Errorf("serialized page = %s, want an empty comments array", payload)
	}
}

func TestCommentService_List_CacheFailOpen(t *testing.T) {
	f := newFixture()
	f.mustCreate(t, "still readable", nil)
	f.cache.getErr = errors.New("redis down")
	f.cache.setErr = errors.New("redis down")

	result, err := f.svc.List(context.Background(), nil, 1, 10, model.SortNewest)
	if err != nil {
		t.Fatalf("list with broken cache should fall through to store: %v", err)
	}
	if result.Total != 1 {
		t.Errorf("total = %d, want 1", result.Total)
	}
}

func TestCommentService_MutationInvalidatesCachedPages(t *testing.T) {
	f := newFixture()
	f.mustCreate(t, "first", nil)

	if _, err := f.svc.List(context.Background(), nil, 1, 10, model.SortNewest); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	f.mustCreate(t, "second", nil)

	result, err := f.svc.List(context.Background(), nil, 1, 10, model.SortNewest)
	if err != nil {
		t.Fatalf("list after mutation: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("stale cache served after mutation: total = %d, want 2", result.Total)
	}
}

func TestCommentService_ReplyCountExcludesDeleted(t *testing.T) {
	f := newFixture()
	parent := f.mustCreate(t, "parent", nil)
	f.mustCreate(t, "reply 1", &parent.ID)
	reply2 := f.mustCreate(t, "reply 2", &parent.ID)

	if err := f.svc.Delete(context.Background(), reply2.ID, f.authorID); err != nil {
		t.Fatalf("delete reply: %v", err)
	}

	got, err := f.svc.GetByID(context.Background(), parent.ID)
	if err != nil {
		t.Fatalf("get parent: %v", err)
	}
	if got.ReplyCount != 1 {
		t.Errorf("reply count = %d, want 1 (deleted reply excluded)", got.ReplyCount)
	}
}

// =============================================================================
// UPDATE / DELETE
// =============================================================================

func TestCommentService_Update_Success(t *testing.T) {
	f := newFixture()
	comment := f.mustCreate(t, "draft", nil)

	updated, err := f.svc.Update(context.Background(), comment.ID, f.authorID, model.UpdateCommentRequest{Content: "final"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != "final" {
		t.Errorf("content = %q, want %q", updated.Content, "final")
	}
	if !updated.IsEdited || updated.EditedAt == nil {
		t.Errorf("edited flag not set: edited=%t editedAt=%v", updated.IsEdited, updated.EditedAt)
	}
	last := f.publisher.global[len(f.publisher.global)-1]
	if last.Type != broadcast.EventCommentUpdated {
		t.Errorf("last event = %s, want %s", last.Type, broadcast.EventCommentUpdated)
	}
}

func TestCommentService_Update_Forbidden(t *testing.T) {
	f := newFixture()
	comment := f.mustCreate(t, "mine", nil)
	stranger := f.users.addUser("mallory")

	_, err := f.svc.Update(context.Background(), comment.ID, stranger, model.UpdateCommentRequest{Content: "hijacked"})
	if !errors.Is(err, model.ErrNotCommentOwner) {
		t.Fatalf("err = %v, want ErrNotCommentOwner", err)
	}
}

func TestCommentService_Update_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Update(context.Background(), uuid.New(), f.authorID, model.UpdateCommentRequest{Content: "x"})
	if !errors.Is(err, model.ErrCommentNotFound) {
		t.Fatalf("err = %v, want ErrCommentNotFound", err)
	}
}

func TestCommentService_Delete_Lifecycle(t *testing.T) {
	f := newFixture()
	parent := f.mustCreate(t, "parent", nil)
	reply := f.mustCreate(t, "reply", &parent.ID)

	if err := f.svc.Delete(context.Background(), parent.ID, f.authorID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Reads now exclude the tombstone.
	if _, err := f.svc.GetByID(context.Background(), parent.ID); !errors.Is(err, model.ErrCommentNotFound) {
		t.Errorf("get deleted comment err = %v, want ErrCommentNotFound", err)
	}

	// Deleting again reports NotFound.
	if err := f.svc.Delete(context.Background(), parent.ID, f.authorID); !errors.Is(err, model.ErrCommentNotFound) {
		t.Errorf("double delete err = %v, want ErrCommentNotFound", err)
	}

	// The orphaned reply stays readable.
	if _, err := f.svc.GetByID(context.Background(), reply.ID); err != nil {
		t.Errorf("orphaned reply should survive parent deletion: %v", err)
	}

	// The deleted event carries only the id and parent id.
	var deletedEvent *broadcast.Event
	for i := range f.publisher.global {
		if f.publisher.global[i].Type == broadcast.EventCommentDeleted {
			deletedEvent = &f.publisher.global[i]
		}
	}
	if deletedEvent == nil {
		t.Fatal("no deleted event published")
	}
	if deletedEvent.Comment != nil {
		t.Errorf("deleted event must not carry the comment body")
	}
	if deletedEvent.CommentID != parent.ID.String() {
		t.Errorf("deleted event id = %s, want %s", deletedEvent.CommentID, parent.ID)
	}
}

func TestCommentService_Delete_Forbidden(t *testing.T) {
	f := newFixture()
	comment := f.mustCreate(t, "mine", nil)
	stranger := f.users.addUser("mallory")

	if err := f.svc.Delete(context.Background(), comment.ID, stranger); !errors.Is(err, model.ErrNotCommentOwner) {
		t.Fatalf("err = %v, want ErrNotCommentOwner", err)
	}
}

// =============================================================================
// REACTIONS
// =============================================================================

func TestCommentService_React_ToggleAndSwitch(t *testing.T) {
	f := newFixture()
	comment := f.mustCreate(t, "react to me", nil)
	user := f.users.addUser("bob")
	ctx := context.Background()

	// Like: user appears in likers.
	got, err := f.svc.React(ctx, comment.ID, user, model.ReactionLike)
	if err != nil {
		t.Fatalf("react: %v", err)
	}
	if len(got.Likers) != 1 || got.Likers[0] != user.String() {
		t.Fatalf("likers = %v, want [%s]", got.Likers, user)
	}

	// Same reaction again: toggle off, no accumulation.
	got, err = f.svc.React(ctx, comment.ID, user, model.ReactionLike)
	if err != nil {
		t.Fatalf("react: %v", err)
	}
	if len(got.Likers) != 0 || len(got.Dislikers) != 0 {
		t.Fatalf("double like should toggle off, got likers=%v dislikers=%v", got.Likers, got.Dislikers)
	}

	// Like then dislike: the opposite reaction replaces the first.
	if _, err = f.svc.React(ctx, comment.ID, user, model.ReactionLike); err != nil {
		t.Fatalf("react: %v", err)
	}
	got, err = f.svc.React(ctx, comment.ID, user, model.ReactionDislike)
	if err != nil {
		t.Fatalf("react: %v", err)
	}
	if len(got.Likers) != 0 {
		t.Errorf("likers = %v, want empty after switching to dislike", got.Likers)
	}
	if len(got.Dislikers) != 1 || got.Dislikers[0] != user.String() {
		t.Errorf("dislikers = %v, want [%s]", got.Dislikers, user)
	}

	last := f.publisher.global[len(f.publisher.global)-1]
	if last.Type != broadcast.EventCommentReacted {
		t.Errorf("last event = %s, want %s", last.Type, broadcast.EventCommentReacted)
	}
}

func TestCommentService_React_MutualExclusion(t *testing.T) {
	f := newFixture()
	comment := f.mustCreate(t, "popular", nil)
	ctx := context.Background()

	users := []uuid.UUID{f.users.addUser("u1"), f.users.addUser("u2"), f.users.addUser("u3")}
	sequence := []model.ReactionKind{
		model.ReactionLike, model.ReactionDislike, model.ReactionLike,
		model.ReactionLike, model.ReactionDislike, model.ReactionDislike,
	}

	var got *model.Comment
	var err error
	for i, kind := range sequence {
		got, err = f.svc.React(ctx, comment.ID, users[i%len(users)], kind)
		if err != nil {
			t.Fatalf("react %d: %v", i, err)
		}
		seen := make(map[string]bool)
		for _, id := range got.Likers {
			seen[id] = true
		}
		for _, id := range got.Dislikers {
			if seen[id] {
				t.Fatalf("user %s in both likers and dislikers after step %d", id, i)
			}
		}
	}
}

func TestCommentService_React_NotFound(t *testing.T) {
	f := newFixture()
	user := f.users.addUser("bob")

	_, err := f.svc.React(context.Background(), uuid.New(), user, model.ReactionLike)
	if !errors.Is(err, model.ErrCommentNotFound) {
		t.Fatalf("err = %v, want ErrCommentNotFound", err)
	}
}

// =============================================================================
// PARTIAL FAILURE
// =============================================================================

func TestCommentService_BroadcastFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture()
	f.publisher.err = errors.New("transport down")

	comment, err := f.svc.Create(context.Background(), f.authorID, model.CreateCommentRequest{Content: "still persisted"})
	if err != nil {
		t.Fatalf("create must succeed despite broadcast failure: %v", err)
	}

	if _, err := f.svc.GetByID(context.Background(), comment.ID); err != nil {
		t.Errorf("comment should be persisted: %v", err)
	}
}
