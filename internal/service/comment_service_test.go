package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"algo-collab-be/internal/apperror"
	"algo-collab-be/internal/dto"
	"algo-collab-be/internal/entity"
	"algo-collab-be/internal/repository/contract"
	"algo-collab-be/internal/repository/specification"
	"algo-collab-be/internal/repository/unitofwork"
	"algo-collab-be/pkg/events"

	"github.com/google/uuid"
)

type fakeCommentRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*entity.Comment
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{rows: make(map[uuid.UUID]*entity.Comment)}
}

func (f *fakeCommentRepo) Create(_ context.Context, c *entity.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.rows[c.Id] = &cp
	return nil
}

func (f *fakeCommentRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, spec := range specs {
		if byID, ok := spec.(specification.ByID); ok {
			if c, found := f.rows[byID.ID]; found {
				cp := *c
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeCommentRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	match := func(c *entity.Comment) bool {
		for _, spec := range specs {
			switch s := spec.(type) {
			case specification.ByProjectID:
				if c.ProjectId != s.ProjectID {
					return false
				}
			case specification.ByFilePath:
				if c.FilePath != s.FilePath {
					return false
				}
			case specification.ThreadOf:
				if c.Id != s.RootID && (c.ParentId == nil || *c.ParentId != s.RootID) {
					return false
				}
			}
		}
		return true
	}
	var out []*entity.Comment
	for _, c := range f.rows {
		if match(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeCommentRepo) Count(context.Context, ...specification.Specification) (int64, error) {
	return int64(len(f.rows)), nil
}

func (f *fakeCommentRepo) MarkResolved(_ context.Context, id uuid.UUID, by uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.rows[id]; ok && !c.Resolved {
		now := time.Now()
		c.Resolved = true
		c.ResolvedBy = &by
		c.ResolvedAt = &now
	}
	return nil
}

func (f *fakeCommentRepo) MarkReopened(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.rows[id]; ok {
		c.Resolved = false
		c.ResolvedBy = nil
		c.ResolvedAt = nil
	}
	return nil
}

func (f *fakeCommentRepo) HideThread(_ context.Context, rootID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, rootID)
	for id, c := range f.rows {
		if c.ParentId != nil && *c.ParentId == rootID {
			delete(f.rows, id)
		}
	}
	return nil
}

type commentUow struct {
	comments *fakeCommentRepo
}

func (f *commentUow) Begin(context.Context) error { return nil }
func (f *commentUow) Commit() error               { return nil }
func (f *commentUow) Rollback() error             { return nil }

func (f *commentUow) SessionRepository() contract.SessionRepository   { return nil }
func (f *commentUow) CommentRepository() contract.CommentRepository   { return f.comments }
func (f *commentUow) SnapshotRepository() contract.SnapshotRepository { return nil }
func (f *commentUow) UserRepository() contract.UserRepository         { return nil }

type commentUowFactory struct{ uow *commentUow }

func (f *commentUowFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return f.uow }

type capturingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturingPublisher) typesSeen() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int)
	for _, e := range p.events {
		out[e.EventType()]++
	}
	return out
}

func newTestCommentService() (ICommentService, *fakeCommentRepo, *capturingPublisher) {
	repo := newFakeCommentRepo()
	pub := &capturingPublisher{}
	svc := NewCommentService(&commentUowFactory{uow: &commentUow{comments: repo}}, pub, nil)
	return svc, repo, pub
}

// waitForEvents gives the fire-and-forget publish goroutines a moment.
func waitForEvents(pub *capturingPublisher, want int) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pub.mu.Lock()
		n := len(pub.events)
		pub.mu.Unlock()
		if n >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCommentThreadLifecycle(t *testing.T) {
	svc, _, pub := newTestCommentService()
	ctx := context.Background()
	projectID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	// Alice comments on a line, mentioning Bob.
	root, err := svc.Create(ctx, alice, &dto.CreateCommentRequest{
		ProjectId:  projectID,
		FilePath:   "solution.go",
		LineNumber: 42,
		Content:    "off-by-one here?",
		Mentions:   []uuid.UUID{bob},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Bob replies on the thread.
	reply, err := svc.Reply(ctx, bob, &dto.ReplyCommentRequest{
		RootId:  root.Id,
		Content: "good catch, fixing",
	})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply.ParentId == nil || *reply.ParentId != root.Id {
		t.Errorf("reply parent = %v, want %v", reply.ParentId, root.Id)
	}
	if reply.FilePath != "solution.go" || reply.LineNumber != 42 {
		t.Error("reply did not inherit the root's anchor")
	}

	// Alice resolves.
	resolved, err := svc.Resolve(ctx, alice, root.Id)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !resolved.Resolved || resolved.ResolvedBy == nil || *resolved.ResolvedBy != alice {
		t.Errorf("resolved state wrong: %+v", resolved)
	}

	thread, err := svc.GetThread(ctx, root.Id)
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}
	if !thread.Root.Resolved {
		t.Error("thread root not resolved")
	}
	if len(thread.Replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(thread.Replies))
	}

	waitForEvents(pub, 4)
	seen := pub.typesSeen()
	for _, want := range []string{
		events.TypeCommentCreated, events.TypeMention,
		events.TypeCommentReplied, events.TypeCommentResolved,
	} {
		if seen[want] == 0 {
			t.Errorf("event %s never published: %v", want, seen)
		}
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	svc, _, pub := newTestCommentService()
	ctx := context.Background()
	alice := uuid.New()

	root, err := svc.Create(ctx, alice, &dto.CreateCommentRequest{
		ProjectId:  uuid.New(),
		FilePath:   "a.go",
		LineNumber: 1,
		Content:    "x",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := svc.Resolve(ctx, alice, root.Id)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// A second resolve by someone else changes nothing.
	other := uuid.New()
	second, err := svc.Resolve(ctx, other, root.Id)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if second.ResolvedBy == nil || *second.ResolvedBy != *first.ResolvedBy {
		t.Errorf("resolver changed on repeat resolve: %v -> %v", first.ResolvedBy, second.ResolvedBy)
	}

	waitForEvents(pub, 2)
	if n := pub.typesSeen()[events.TypeCommentResolved]; n != 1 {
		t.Errorf("resolved events = %d, want 1", n)
	}
}

func TestReplyDoesNotReopenResolvedThread(t *testing.T) {
	svc, _, _ := newTestCommentService()
	ctx := context.Background()
	alice := uuid.New()

	root, err := svc.Create(ctx, alice, &dto.CreateCommentRequest{
		ProjectId:  uuid.New(),
		FilePath:   "a.go",
		LineNumber: 1,
		Content:    "x",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Resolve(ctx, alice, root.Id); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if _, err := svc.Reply(ctx, uuid.New(), &dto.ReplyCommentRequest{
		RootId:  root.Id,
		Content: "late addition",
	}); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	thread, err := svc.GetThread(ctx, root.Id)
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}
	if !thread.Root.Resolved {
		t.Error("reply reopened a resolved thread")
	}
}

func TestReopenIsExplicit(t *testing.T) {
	svc, _, pub := newTestCommentService()
	ctx := context.Background()
	alice := uuid.New()

	root, err := svc.Create(ctx, alice, &dto.CreateCommentRequest{
		ProjectId:  uuid.New(),
		FilePath:   "a.go",
		LineNumber: 1,
		Content:    "x",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Resolve(ctx, alice, root.Id); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	reopened, err := svc.Reopen(ctx, alice, root.Id)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if reopened.Resolved || reopened.ResolvedBy != nil {
		t.Errorf("thread still resolved after reopen: %+v", reopened)
	}

	waitForEvents(pub, 3)
	if n := pub.typesSeen()[events.TypeCommentReopened]; n != 1 {
		t.Errorf("reopened events = %d, want 1", n)
	}
}

func TestReplyToUnknownThreadFails(t *testing.T) {
	svc, _, _ := newTestCommentService()
	_, err := svc.Reply(context.Background(), uuid.New(), &dto.ReplyCommentRequest{
		RootId:  uuid.New(),
		Content: "into the void",
	})
	if !apperror.IsCode(err, apperror.CodeNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
}

func TestReplyToReplyAttachesToRoot(t *testing.T) {
	svc, _, _ := newTestCommentService()
	ctx := context.Background()

	root, err := svc.Create(ctx, uuid.New(), &dto.CreateCommentRequest{
		ProjectId:  uuid.New(),
		FilePath:   "a.go",
		LineNumber: 1,
		Content:    "root",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	reply, err := svc.Reply(ctx, uuid.New(), &dto.ReplyCommentRequest{RootId: root.Id, Content: "r1"})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}

	nested, err := svc.Reply(ctx, uuid.New(), &dto.ReplyCommentRequest{RootId: reply.Id, Content: "r2"})
	if err != nil {
		t.Fatalf("nested Reply: %v", err)
	}
	if nested.ParentId == nil || *nested.ParentId != root.Id {
		t.Errorf("nested reply parent = %v, want root %v", nested.ParentId, root.Id)
	}
}

func TestDeleteHidesWholeThread(t *testing.T) {
	svc, repo, _ := newTestCommentService()
	ctx := context.Background()
	alice := uuid.New()

	root, err := svc.Create(ctx, alice, &dto.CreateCommentRequest{
		ProjectId:  uuid.New(),
		FilePath:   "a.go",
		LineNumber: 1,
		Content:    "root",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Reply(ctx, uuid.New(), &dto.ReplyCommentRequest{RootId: root.Id, Content: "r"}); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	// Only the author can delete.
	if err := svc.Delete(ctx, uuid.New(), root.Id); err == nil {
		t.Error("non-author delete succeeded")
	}

	if err := svc.Delete(ctx, alice, root.Id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	repo.mu.Lock()
	remaining := len(repo.rows)
	repo.mu.Unlock()
	if remaining != 0 {
		t.Errorf("%d comments survived thread delete", remaining)
	}
}

func TestGetFileCommentsGroupsThreads(t *testing.T) {
	svc, _, _ := newTestCommentService()
	ctx := context.Background()
	projectID := uuid.New()

	a, err := svc.Create(ctx, uuid.New(), &dto.CreateCommentRequest{
		ProjectId: projectID, FilePath: "x.go", LineNumber: 1, Content: "first",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, uuid.New(), &dto.CreateCommentRequest{
		ProjectId: projectID, FilePath: "x.go", LineNumber: 9, Content: "second",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Reply(ctx, uuid.New(), &dto.ReplyCommentRequest{RootId: a.Id, Content: "re"}); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	// Another file's comment stays out.
	if _, err := svc.Create(ctx, uuid.New(), &dto.CreateCommentRequest{
		ProjectId: projectID, FilePath: "y.go", LineNumber: 1, Content: "elsewhere",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	threads, err := svc.GetFileComments(ctx, projectID, "x.go")
	if err != nil {
		t.Fatalf("GetFileComments: %v", err)
	}
	if len(threads) != 2 {
		t.Fatalf("threads = %d, want 2", len(threads))
	}
	total := 0
	for _, th := range threads {
		total += len(th.Replies)
	}
	if total != 1 {
		t.Errorf("replies across threads = %d, want 1", total)
	}
}
