package document

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"algo-collab-be/internal/entity"
	"algo-collab-be/internal/repository/contract"
	"algo-collab-be/internal/repository/unitofwork"
	"algo-collab-be/pkg/crdt"

	"github.com/google/uuid"
)

type fakeSink struct {
	mu        sync.Mutex
	snapshots []*entity.DocumentSnapshot
	fail      bool
}

func (f *fakeSink) Enqueue(s *entity.DocumentSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("queue closed")
	}
	f.snapshots = append(f.snapshots, s)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}

func (f *fakeSink) last() *entity.DocumentSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.snapshots) == 0 {
		return nil
	}
	return f.snapshots[len(f.snapshots)-1]
}

type fakeSnapshotRepo struct {
	stored map[string]*entity.DocumentSnapshot
}

func snapKey(projectID uuid.UUID, filePath string) string {
	return projectID.String() + ":" + filePath
}

func (f *fakeSnapshotRepo) Upsert(_ context.Context, s *entity.DocumentSnapshot) error {
	f.stored[snapKey(s.ProjectId, s.FilePath)] = s
	return nil
}

func (f *fakeSnapshotRepo) Find(_ context.Context, projectID uuid.UUID, filePath string) (*entity.DocumentSnapshot, error) {
	return f.stored[snapKey(projectID, filePath)], nil
}

type fakeUow struct {
	snapshots *fakeSnapshotRepo
}

func (f *fakeUow) Begin(context.Context) error { return nil }
func (f *fakeUow) Commit() error               { return nil }
func (f *fakeUow) Rollback() error             { return nil }

func (f *fakeUow) SessionRepository() contract.SessionRepository   { return nil }
func (f *fakeUow) CommentRepository() contract.CommentRepository   { return nil }
func (f *fakeUow) SnapshotRepository() contract.SnapshotRepository { return f.snapshots }
func (f *fakeUow) UserRepository() contract.UserRepository         { return nil }

type fakeFactory struct {
	uow *fakeUow
}

func (f *fakeFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return f.uow }

func newTestStore(grace time.Duration, sink FlushSink) (*Store, *fakeSnapshotRepo) {
	snaps := &fakeSnapshotRepo{stored: make(map[string]*entity.DocumentSnapshot)}
	return NewStore(grace, sink, &fakeFactory{uow: &fakeUow{snapshots: snaps}}, nil), snaps
}

func TestApplyBroadcastsToOtherListeners(t *testing.T) {
	store, _ := newTestStore(time.Minute, nil)
	ctx := context.Background()
	projectID := uuid.New()

	var fromA, fromB []crdt.Op
	if err := store.Subscribe(ctx, projectID, "main.go", "conn-a", func(op crdt.Op, _ string) {
		fromA = append(fromA, op)
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := store.Subscribe(ctx, projectID, "main.go", "conn-b", func(op crdt.Op, _ string) {
		fromB = append(fromB, op)
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	res, err := store.Apply(ctx, projectID, "main.go", RawOp{
		OpID:     "op-1",
		Kind:     crdt.OpInsert,
		Position: 0,
		Data:     "hello",
	}, "conn-a")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.Applied {
		t.Error("first delivery reported as duplicate")
	}

	if len(fromA) != 0 {
		t.Errorf("origin received its own op back, got %d", len(fromA))
	}
	if len(fromB) != 1 {
		t.Fatalf("other listener got %d ops, want 1", len(fromB))
	}

	text, _, err := store.Snapshot(ctx, projectID, "main.go")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if text != "hello" {
		t.Errorf("text = %q, want hello", text)
	}
}

func TestDuplicateOpIDIsNoop(t *testing.T) {
	store, _ := newTestStore(time.Minute, nil)
	ctx := context.Background()
	projectID := uuid.New()

	raw := RawOp{OpID: "op-dup", Kind: crdt.OpInsert, Position: 0, Data: "x"}
	first, err := store.Apply(ctx, projectID, "a.go", raw, "c1")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// Reconnect replay delivers the same client op again.
	second, err := store.Apply(ctx, projectID, "a.go", raw, "c1")
	if err != nil {
		t.Fatalf("replay Apply: %v", err)
	}
	if second.Applied {
		t.Error("replay reported as fresh apply")
	}
	if second.Op.ID != first.Op.ID {
		t.Error("replay returned a different op")
	}

	text, _, _ := store.Snapshot(ctx, projectID, "a.go")
	if text != "x" {
		t.Errorf("text = %q, want x", text)
	}
}

func TestApplyWithoutOpIDRejected(t *testing.T) {
	store, _ := newTestStore(time.Minute, nil)
	_, err := store.Apply(context.Background(), uuid.New(), "a.go", RawOp{
		Kind: crdt.OpInsert,
		Data: "x",
	}, "c1")
	if err == nil {
		t.Fatal("expected error for missing opId")
	}
}

func TestJoinSeedsFromSnapshot(t *testing.T) {
	store, snaps := newTestStore(time.Minute, nil)
	ctx := context.Background()
	projectID := uuid.New()

	snaps.stored[snapKey(projectID, "seed.go")] = &entity.DocumentSnapshot{
		ProjectId: projectID,
		FilePath:  "seed.go",
		Content:   "package main",
	}

	text, vv, err := store.Join(ctx, projectID, "seed.go", "conn-1")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if text != "package main" {
		t.Errorf("seeded text = %q", text)
	}
	if len(vv) == 0 {
		t.Error("seeded doc has empty version vector")
	}
}

func TestEvictionFlushesAfterGrace(t *testing.T) {
	sink := &fakeSink{}
	store, _ := newTestStore(20*time.Millisecond, sink)
	ctx := context.Background()
	projectID := uuid.New()

	if _, _, err := store.Join(ctx, projectID, "evict.go", "c1"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if _, err := store.Apply(ctx, projectID, "evict.go", RawOp{
		OpID: "op-1", Kind: crdt.OpInsert, Data: "bye",
	}, "c1"); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	store.Leave(projectID, "evict.go", "c1")
	time.Sleep(80 * time.Millisecond)

	if sink.count() == 0 {
		t.Fatal("no snapshot flushed on eviction")
	}
	if got := sink.last().Content; got != "bye" {
		t.Errorf("flushed content = %q, want bye", got)
	}

	store.mu.RLock()
	_, alive := store.docs[docKey{Project: projectID, Path: "evict.go"}]
	store.mu.RUnlock()
	if alive {
		t.Error("replica still resident after grace period")
	}
}

func TestJoinDuringGraceCancelsEviction(t *testing.T) {
	sink := &fakeSink{}
	store, _ := newTestStore(50*time.Millisecond, sink)
	ctx := context.Background()
	projectID := uuid.New()

	if _, _, err := store.Join(ctx, projectID, "keep.go", "c1"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	store.Leave(projectID, "keep.go", "c1")

	// Rejoin before the grace period elapses.
	time.Sleep(10 * time.Millisecond)
	if _, _, err := store.Join(ctx, projectID, "keep.go", "c1"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	store.mu.RLock()
	_, alive := store.docs[docKey{Project: projectID, Path: "keep.go"}]
	store.mu.RUnlock()
	if !alive {
		t.Error("replica evicted despite rejoin during grace")
	}
}

func TestSecondConnectionKeepsReplicaAlive(t *testing.T) {
	sink := &fakeSink{}
	store, _ := newTestStore(20*time.Millisecond, sink)
	ctx := context.Background()
	projectID := uuid.New()

	// Same user, two tabs: each connection holds its own stake.
	if _, _, err := store.Join(ctx, projectID, "shared.go", "tab-1"); err != nil {
		t.Fatalf("Join tab-1: %v", err)
	}
	if _, _, err := store.Join(ctx, projectID, "shared.go", "tab-2"); err != nil {
		t.Fatalf("Join tab-2: %v", err)
	}

	var received []crdt.Op
	if err := store.Subscribe(ctx, projectID, "shared.go", "tab-2", func(op crdt.Op, _ string) {
		received = append(received, op)
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	store.Leave(projectID, "shared.go", "tab-1")
	time.Sleep(80 * time.Millisecond)

	store.mu.RLock()
	_, alive := store.docs[docKey{Project: projectID, Path: "shared.go"}]
	store.mu.RUnlock()
	if !alive {
		t.Fatal("replica evicted while a connection was still attached")
	}

	if _, err := store.Apply(ctx, projectID, "shared.go", RawOp{
		OpID: "op-1", Kind: crdt.OpInsert, Data: "x",
	}, "tab-1"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(received) != 1 {
		t.Errorf("remaining connection got %d ops, want 1", len(received))
	}
}

func TestApplyRemoteMergesAndNotifies(t *testing.T) {
	store, _ := newTestStore(time.Minute, nil)
	ctx := context.Background()
	projectID := uuid.New()

	var received []crdt.Op
	if err := store.Subscribe(ctx, projectID, "r.go", "local", func(op crdt.Op, _ string) {
		received = append(received, op)
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// Build an op on an independent replica, as another instance would.
	peer := crdt.NewDoc("peer-1")
	op, err := peer.LocalInsert(0, "remote")
	if err != nil {
		t.Fatalf("LocalInsert: %v", err)
	}

	if err := store.ApplyRemote(ctx, projectID, "r.go", op, "redis"); err != nil {
		t.Fatalf("ApplyRemote: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("listener got %d ops, want 1", len(received))
	}

	text, _, _ := store.Snapshot(ctx, projectID, "r.go")
	if text != "remote" {
		t.Errorf("text = %q, want remote", text)
	}

	// Second delivery of the same op must not re-notify.
	if err := store.ApplyRemote(ctx, projectID, "r.go", op, "redis"); err != nil {
		t.Fatalf("redeliver: %v", err)
	}
	if len(received) != 1 {
		t.Errorf("duplicate remote op re-broadcast, total %d", len(received))
	}
}

func TestFlushDirtySkipsCleanDocuments(t *testing.T) {
	sink := &fakeSink{}
	store, _ := newTestStore(time.Minute, sink)
	ctx := context.Background()
	projectID := uuid.New()

	if _, err := store.Apply(ctx, projectID, "d.go", RawOp{
		OpID: "op-1", Kind: crdt.OpInsert, Data: "v1",
	}, "c1"); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	store.FlushDirty()
	if sink.count() != 1 {
		t.Fatalf("flushes = %d, want 1", sink.count())
	}

	// No edits since the last flush; nothing to write.
	store.FlushDirty()
	if sink.count() != 1 {
		t.Errorf("clean document re-flushed, total %d", sink.count())
	}
}

func TestFailedFlushStaysDirty(t *testing.T) {
	sink := &fakeSink{fail: true}
	store, _ := newTestStore(time.Minute, sink)
	ctx := context.Background()
	projectID := uuid.New()

	if _, err := store.Apply(ctx, projectID, "f.go", RawOp{
		OpID: "op-1", Kind: crdt.OpInsert, Data: "v1",
	}, "c1"); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	store.FlushDirty()

	sink.mu.Lock()
	sink.fail = false
	sink.mu.Unlock()

	// The failed flush left the document dirty, so the next pass retries.
	store.FlushDirty()
	if sink.count() != 1 {
		t.Errorf("flushes after recovery = %d, want 1", sink.count())
	}
}

func TestFlushProjectCoversAllOpenDocuments(t *testing.T) {
	sink := &fakeSink{}
	store, _ := newTestStore(time.Minute, sink)
	ctx := context.Background()
	projectID := uuid.New()
	otherProject := uuid.New()

	for i, path := range []string{"a.go", "b.go"} {
		if _, err := store.Apply(ctx, projectID, path, RawOp{
			OpID: path, Kind: crdt.OpInsert, Position: 0, Data: "x",
		}, "c1"); err != nil {
			t.Fatalf("Apply %d: %v", i, err)
		}
	}
	if _, err := store.Apply(ctx, otherProject, "c.go", RawOp{
		OpID: "c", Kind: crdt.OpInsert, Data: "y",
	}, "c1"); err != nil {
		t.Fatalf("Apply other: %v", err)
	}

	store.FlushProject(projectID)
	if sink.count() != 2 {
		t.Errorf("flushes = %d, want 2 (one per project document)", sink.count())
	}
}
