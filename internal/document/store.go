package document

import (
	"context"
	"sync"
	"time"

	"algo-collab-be/internal/apperror"
	"algo-collab-be/internal/entity"
	"algo-collab-be/internal/pkg/logger"
	"algo-collab-be/internal/repository/unitofwork"
	"algo-collab-be/pkg/crdt"

	"github.com/google/uuid"
)

// RawOp is a client edit as it arrives on the wire: index-based, tagged
// with a client-unique op id for idempotent replay after reconnect.
type RawOp struct {
	OpID     string
	Kind     crdt.OpKind
	Position int
	Data     string // insert text
	Length   int    // delete length
}

type AppliedResult struct {
	Applied       bool // false for duplicate delivery
	Op            crdt.Op
	VersionVector crdt.VersionVector
}

// Listener receives merged ops for fan-out. origin is the subscriber id
// whose client produced the op; the gateway skips echoing to it.
type Listener func(op crdt.Op, origin string)

// FlushSink accepts snapshots for durable persistence. Implementations
// must enqueue and return quickly; retries happen downstream.
type FlushSink interface {
	Enqueue(snapshot *entity.DocumentSnapshot) error
}

type docKey struct {
	Project uuid.UUID
	Path    string
}

type replica struct {
	mu           sync.Mutex
	doc          *crdt.Doc
	participants map[string]struct{} // connection ids, one entry per attached tab
	listeners    map[string]Listener
	seenRawOps   map[string]crdt.Op // client op id -> resulting op, for replay acks
	dirty        bool
	evictTimer   *time.Timer
}

// Store holds one authoritative replica per open document. Access is
// serialized per document; independent documents proceed in parallel.
type Store struct {
	mu     sync.RWMutex
	docs   map[docKey]*replica
	grace  time.Duration
	sink   FlushSink
	uow    unitofwork.RepositoryFactory
	logger logger.ILogger
}

func NewStore(grace time.Duration, sink FlushSink, uowFactory unitofwork.RepositoryFactory, log logger.ILogger) *Store {
	return &Store{
		docs:   make(map[docKey]*replica),
		grace:  grace,
		sink:   sink,
		uow:    uowFactory,
		logger: log,
	}
}

// Join attaches a connection to a document, creating the replica
// lazily. Participants are keyed by connection id, not user id: a user
// editing the same file from two tabs holds two independent stakes, and
// closing one tab must not release the other's. A join during the
// eviction grace period cancels eviction. The seeded text (snapshot
// catch-up) is returned for the client.
func (s *Store) Join(ctx context.Context, projectID uuid.UUID, filePath string, connID string) (string, crdt.VersionVector, error) {
	r, err := s.getOrCreate(ctx, projectID, filePath)
	if err != nil {
		return "", nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants[connID] = struct{}{}
	if r.evictTimer != nil {
		r.evictTimer.Stop()
		r.evictTimer = nil
	}
	return r.doc.Text(), r.doc.VersionVector(), nil
}

// Leave detaches one connection. When the last one leaves, eviction is
// scheduled after the grace period so quick reconnects stay cheap.
func (s *Store) Leave(projectID uuid.UUID, filePath string, connID string) {
	key := docKey{Project: projectID, Path: filePath}
	s.mu.RLock()
	r, ok := s.docs[key]
	s.mu.RUnlock()
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.participants, connID)
	if len(r.participants) == 0 && r.evictTimer == nil {
		r.evictTimer = time.AfterFunc(s.grace, func() { s.evict(key) })
	}
}

// Apply merges a client edit into the authoritative replica and returns
// the resulting CRDT op for broadcast. Duplicate op ids are no-ops that
// still return the original op so acks stay consistent on replay.
func (s *Store) Apply(ctx context.Context, projectID uuid.UUID, filePath string, raw RawOp, origin string) (*AppliedResult, error) {
	if raw.OpID == "" {
		return nil, apperror.Invalid("doc.op requires an opId")
	}
	r, err := s.getOrCreate(ctx, projectID, filePath)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, seen := r.seenRawOps[raw.OpID]; seen {
		return &AppliedResult{Applied: false, Op: prev, VersionVector: r.doc.VersionVector()}, nil
	}

	var op crdt.Op
	switch raw.Kind {
	case crdt.OpInsert:
		op, err = r.doc.LocalInsert(raw.Position, raw.Data)
	case crdt.OpDelete:
		op, err = r.doc.LocalDelete(raw.Position, raw.Length)
	default:
		return nil, apperror.Invalid("unknown op kind")
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeInvalid, "malformed document operation", err)
	}

	r.seenRawOps[raw.OpID] = op
	r.dirty = true
	vv := r.doc.VersionVector()
	s.notify(r, op, origin)
	return &AppliedResult{Applied: true, Op: op, VersionVector: vv}, nil
}

// ApplyRemote merges a CRDT op produced by another instance (cross-node
// fan-out). Duplicates and reordered deletes are handled by the CRDT.
func (s *Store) ApplyRemote(ctx context.Context, projectID uuid.UUID, filePath string, op crdt.Op, origin string) error {
	r, err := s.getOrCreate(ctx, projectID, filePath)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	changed, err := r.doc.Apply(op)
	if err != nil {
		// A merge failure indicates corrupted input, never a conflict;
		// log loudly and drop rather than retry.
		s.logError("CRDT merge rejected op", map[string]interface{}{
			"project_id": projectID,
			"file_path":  filePath,
			"op_id":      op.ID.String(),
			"error":      err.Error(),
		})
		return apperror.Wrap(apperror.CodeInvalid, "malformed replicated operation", err)
	}
	if changed {
		r.dirty = true
		s.notify(r, op, origin)
	}
	return nil
}

// Snapshot returns the current visible text and version vector.
func (s *Store) Snapshot(ctx context.Context, projectID uuid.UUID, filePath string) (string, crdt.VersionVector, error) {
	r, err := s.getOrCreate(ctx, projectID, filePath)
	if err != nil {
		return "", nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.Text(), r.doc.VersionVector(), nil
}

// Subscribe registers a listener for merged ops on a document.
func (s *Store) Subscribe(ctx context.Context, projectID uuid.UUID, filePath string, id string, fn Listener) error {
	r, err := s.getOrCreate(ctx, projectID, filePath)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[id] = fn
	return nil
}

func (s *Store) Unsubscribe(projectID uuid.UUID, filePath string, id string) {
	s.mu.RLock()
	r, ok := s.docs[docKey{Project: projectID, Path: filePath}]
	s.mu.RUnlock()
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listeners, id)
}

// FlushProject enqueues snapshots for every open document of a project.
// Called on session end so final state reaches the durable store.
func (s *Store) FlushProject(projectID uuid.UUID) {
	s.mu.RLock()
	keys := make([]docKey, 0)
	for k := range s.docs {
		if k.Project == projectID {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()
	for _, k := range keys {
		s.flush(k, false)
	}
}

// FlushDirty enqueues snapshots for documents edited since their last
// flush. Driven by the autosave ticker.
func (s *Store) FlushDirty() {
	s.mu.RLock()
	keys := make([]docKey, 0, len(s.docs))
	for k := range s.docs {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	for _, k := range keys {
		s.flush(k, true)
	}
}

// Run drives the autosave loop until the context is cancelled.
func (s *Store) Run(ctx context.Context, autosave time.Duration) {
	ticker := time.NewTicker(autosave)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.FlushDirty()
		}
	}
}

func (s *Store) getOrCreate(ctx context.Context, projectID uuid.UUID, filePath string) (*replica, error) {
	if filePath == "" {
		return nil, apperror.Invalid("file path required")
	}
	key := docKey{Project: projectID, Path: filePath}

	s.mu.RLock()
	r, ok := s.docs[key]
	s.mu.RUnlock()
	if ok {
		return r, nil
	}

	// Seed outside the map lock; snapshot loading is I/O.
	seeded := crdt.NewDoc("server:" + uuid.NewString()[:8])
	snap, err := s.loadSnapshot(ctx, projectID, filePath)
	if err != nil {
		s.logWarn("Snapshot load failed, starting empty", map[string]interface{}{
			"project_id": projectID,
			"file_path":  filePath,
			"error":      err.Error(),
		})
	} else if snap != nil {
		if err := seeded.Seed(snap.Content); err != nil {
			return nil, apperror.Wrap(apperror.CodeInvalid, "corrupt snapshot", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.docs[key]; ok {
		// Lost the creation race; use the winner.
		return existing, nil
	}
	r = &replica{
		doc:          seeded,
		participants: make(map[string]struct{}),
		listeners:    make(map[string]Listener),
		seenRawOps:   make(map[string]crdt.Op),
	}
	s.docs[key] = r
	return r, nil
}

func (s *Store) loadSnapshot(ctx context.Context, projectID uuid.UUID, filePath string) (*entity.DocumentSnapshot, error) {
	if s.uow == nil {
		return nil, nil
	}
	uow := s.uow.NewUnitOfWork(ctx)
	return uow.SnapshotRepository().Find(ctx, projectID, filePath)
}

// notify fans the op out to all listeners except the origin. Callers
// hold the replica lock; listeners must only enqueue, never block.
func (s *Store) notify(r *replica, op crdt.Op, origin string) {
	for id, fn := range r.listeners {
		if id == origin {
			continue
		}
		fn(op, origin)
	}
}

func (s *Store) flush(key docKey, onlyDirty bool) {
	s.mu.RLock()
	r, ok := s.docs[key]
	s.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.Lock()
	if onlyDirty && !r.dirty {
		r.mu.Unlock()
		return
	}
	snapshot := &entity.DocumentSnapshot{
		ProjectId:     key.Project,
		FilePath:      key.Path,
		Content:       r.doc.Text(),
		VersionVector: r.doc.VersionVector(),
		UpdatedAt:     time.Now(),
	}
	r.dirty = false
	r.mu.Unlock()

	if s.sink == nil {
		return
	}
	if err := s.sink.Enqueue(snapshot); err != nil {
		s.logError("Failed to enqueue snapshot flush", map[string]interface{}{
			"project_id": key.Project,
			"file_path":  key.Path,
			"error":      err.Error(),
		})
		// Leave the document marked dirty so the next autosave retries.
		r.mu.Lock()
		r.dirty = true
		r.mu.Unlock()
	}
}

// evict flushes and removes a document whose grace period elapsed with
// no participants. Content survives in the durable snapshot and the
// replica is recreated from it on the next join.
func (s *Store) evict(key docKey) {
	s.mu.Lock()
	r, ok := s.docs[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	r.mu.Lock()
	if len(r.participants) > 0 {
		// A participant joined between timer fire and lock acquisition.
		r.evictTimer = nil
		r.mu.Unlock()
		s.mu.Unlock()
		return
	}
	delete(s.docs, key)
	r.mu.Unlock()
	s.mu.Unlock()

	s.flushReplica(key, r)
	if s.logger != nil {
		s.logger.Info("DocumentStore", "Document evicted after grace period", map[string]interface{}{
			"project_id": key.Project,
			"file_path":  key.Path,
		})
	}
}

func (s *Store) flushReplica(key docKey, r *replica) {
	r.mu.Lock()
	snapshot := &entity.DocumentSnapshot{
		ProjectId:     key.Project,
		FilePath:      key.Path,
		Content:       r.doc.Text(),
		VersionVector: r.doc.VersionVector(),
		UpdatedAt:     time.Now(),
	}
	r.mu.Unlock()
	if s.sink == nil {
		return
	}
	if err := s.sink.Enqueue(snapshot); err != nil {
		s.logError("Failed to flush evicted document", map[string]interface{}{
			"project_id": key.Project,
			"file_path":  key.Path,
			"error":      err.Error(),
		})
	}
}

func (s *Store) logWarn(msg string, details map[string]interface{}) {
	if s.logger != nil {
		s.logger.Warn("DocumentStore", msg, details)
	}
}

func (s *Store) logError(msg string, details map[string]interface{}) {
	if s.logger != nil {
		s.logger.Error("DocumentStore", msg, details)
	}
}
