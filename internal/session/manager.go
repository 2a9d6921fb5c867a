package session

import (
	"context"
	"sync"
	"time"

	"algo-collab-be/internal/apperror"
	"algo-collab-be/internal/entity"
	"algo-collab-be/internal/pkg/logger"
	"algo-collab-be/internal/repository/specification"
	"algo-collab-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// MembershipToken proves a user joined a session; the gateway carries it
// on the connection for the rest of its lifetime.
type MembershipToken struct {
	SessionID uuid.UUID
	ProjectID uuid.UUID
	UserID    uuid.UUID
	JoinedAt  time.Time
}

// member ref-counts a user's live connections. Join and Leave happen
// once per connection, so a user with several tabs open stays a member
// until the last one detaches.
type member struct {
	joinedAt time.Time
	conns    int
}

type liveSession struct {
	mu          sync.Mutex
	session     *entity.Session
	members     map[uuid.UUID]*member
	pendingSave bool // created while the durable store was unreachable
}

// Manager owns the live session registry. Durable state goes through the
// unit-of-work repositories; the registry keeps membership and survives
// short persistence outages in degraded mode.
type Manager struct {
	uow    unitofwork.RepositoryFactory
	logger logger.ILogger

	mu   sync.RWMutex
	live map[uuid.UUID]*liveSession

	// onEnd runs exactly once per session, on the active->ended
	// transition. The bootstrap wires presence eviction, document
	// flushing and event publishing here.
	onEnd func(s *entity.Session)
}

func NewManager(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) *Manager {
	return &Manager{
		uow:    uowFactory,
		logger: log,
		live:   make(map[uuid.UUID]*liveSession),
	}
}

func (m *Manager) OnEnd(fn func(s *entity.Session)) {
	m.onEnd = fn
}

// Create starts a new collaboration session. When the durable store is
// unreachable the session still starts, held in memory with the save
// queued for the retry loop.
func (m *Manager) Create(ctx context.Context, projectID, userID uuid.UUID, sessionType entity.SessionType, name string) (*entity.Session, error) {
	if !sessionType.Valid() {
		return nil, apperror.Invalid("unknown session type: " + string(sessionType))
	}
	if name == "" {
		return nil, apperror.Invalid("session name required")
	}

	uow := m.uow.NewUnitOfWork(ctx)
	exists, err := uow.UserRepository().ProjectExists(ctx, projectID)
	if err != nil {
		// Identity lookup down: proceed degraded rather than block the
		// session start on an outage.
		m.logWarn("Project lookup failed, skipping validation", map[string]interface{}{
			"project_id": projectID,
			"error":      err.Error(),
		})
	} else if !exists {
		return nil, apperror.InvalidProjectKind(projectID.String())
	}

	s := &entity.Session{
		Id:          uuid.New(),
		ProjectId:   projectID,
		SessionType: sessionType,
		SessionName: name,
		CreatedBy:   userID,
		StartedAt:   time.Now(),
	}

	ls := &liveSession{
		session: s,
		members: map[uuid.UUID]*member{userID: {joinedAt: s.StartedAt, conns: 1}},
	}

	if err := uow.SessionRepository().Create(ctx, s); err != nil {
		ls.pendingSave = true
		m.logError("Session persisted in memory only, save queued", map[string]interface{}{
			"session_id": s.Id,
			"project_id": projectID,
			"error":      err.Error(),
		})
	}

	m.mu.Lock()
	m.live[s.Id] = ls
	m.mu.Unlock()
	return s, nil
}

// Join adds a user to an active session. Ended sessions never accept
// joins again.
func (m *Manager) Join(ctx context.Context, sessionID, userID uuid.UUID) (*MembershipToken, error) {
	ls, err := m.resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if !ls.session.Active() {
		return nil, apperror.SessionEnded(sessionID.String())
	}
	entry, already := ls.members[userID]
	if !already {
		entry = &member{joinedAt: time.Now()}
		ls.members[userID] = entry
	}
	entry.conns++
	return &MembershipToken{
		SessionID: sessionID,
		ProjectID: ls.session.ProjectId,
		UserID:    userID,
		JoinedAt:  entry.joinedAt,
	}, nil
}

// Leave releases one of a member's connections; the user drops out of
// the session only when the last one goes. Leaving with no connections
// left, or leaving a session the user never joined, is a no-op.
func (m *Manager) Leave(sessionID, userID uuid.UUID) {
	m.mu.RLock()
	ls, ok := m.live[sessionID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	ls.mu.Lock()
	if entry, present := ls.members[userID]; present {
		entry.conns--
		if entry.conns <= 0 {
			delete(ls.members, userID)
		}
	}
	ls.mu.Unlock()
}

// End terminates a session. Idempotent: ending an already-ended session
// returns nil without re-running the end hook.
func (m *Manager) End(ctx context.Context, sessionID uuid.UUID) error {
	ls, err := m.resolve(ctx, sessionID)
	if err != nil {
		if apperror.IsCode(err, apperror.CodeSessionEnded) {
			return nil
		}
		return err
	}

	ls.mu.Lock()
	if !ls.session.Active() {
		ls.mu.Unlock()
		return nil
	}
	now := time.Now()
	ls.session.EndedAt = &now
	ls.members = make(map[uuid.UUID]*member)
	ended := *ls.session
	pending := ls.pendingSave
	ls.mu.Unlock()

	uow := m.uow.NewUnitOfWork(ctx)
	if pending {
		// Never persisted; write the full row (already ended) instead
		// of an UPDATE that would match nothing.
		if err := uow.SessionRepository().Create(ctx, &ended); err != nil {
			m.logError("Failed to persist session end", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	} else if err := uow.SessionRepository().End(ctx, sessionID); err != nil {
		m.logError("Failed to persist session end", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}

	if m.onEnd != nil {
		m.onEnd(&ended)
	}

	m.mu.Lock()
	delete(m.live, sessionID)
	m.mu.Unlock()
	return nil
}

// ListActive returns the active sessions of a project, including any
// degraded-mode sessions not yet flushed to the durable store.
func (m *Manager) ListActive(ctx context.Context, projectID uuid.UUID) ([]*entity.Session, error) {
	uow := m.uow.NewUnitOfWork(ctx)
	sessions, err := uow.SessionRepository().FindAll(ctx,
		specification.ByProjectID{ProjectID: projectID},
		specification.ActiveSessions{},
	)
	if err != nil {
		m.logWarn("Active session query failed, serving live registry only", map[string]interface{}{
			"project_id": projectID,
			"error":      err.Error(),
		})
		sessions = nil
	}

	seen := make(map[uuid.UUID]struct{}, len(sessions))
	for _, s := range sessions {
		seen[s.Id] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ls := range m.live {
		ls.mu.Lock()
		s := ls.session
		include := ls.pendingSave && s.Active() && s.ProjectId == projectID
		ls.mu.Unlock()
		if _, dup := seen[s.Id]; include && !dup {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

// Members returns the current member ids of a live session.
func (m *Manager) Members(sessionID uuid.UUID) []uuid.UUID {
	m.mu.RLock()
	ls, ok := m.live[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	out := make([]uuid.UUID, 0, len(ls.members))
	for id := range ls.members {
		out = append(out, id)
	}
	return out
}

// RetryPendingSaves re-attempts durable writes for sessions created
// during a persistence outage.
func (m *Manager) RetryPendingSaves(ctx context.Context) {
	m.mu.RLock()
	queued := make([]*liveSession, 0)
	for _, ls := range m.live {
		queued = append(queued, ls)
	}
	m.mu.RUnlock()

	for _, ls := range queued {
		ls.mu.Lock()
		if !ls.pendingSave {
			ls.mu.Unlock()
			continue
		}
		s := *ls.session
		ls.mu.Unlock()

		uow := m.uow.NewUnitOfWork(ctx)
		if err := uow.SessionRepository().Create(ctx, &s); err != nil {
			m.logWarn("Queued session save still failing", map[string]interface{}{
				"session_id": s.Id,
				"error":      err.Error(),
			})
			continue
		}
		ls.mu.Lock()
		ls.pendingSave = false
		ls.mu.Unlock()
		m.logInfo("Queued session save flushed", map[string]interface{}{
			"session_id": s.Id,
		})
	}
}

// Run drives the queued-save retry loop until the context is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RetryPendingSaves(ctx)
		}
	}
}

// resolve returns the live entry for a session, hydrating it from the
// durable store when this instance has not seen it yet.
func (m *Manager) resolve(ctx context.Context, sessionID uuid.UUID) (*liveSession, error) {
	m.mu.RLock()
	ls, ok := m.live[sessionID]
	m.mu.RUnlock()
	if ok {
		return ls, nil
	}

	uow := m.uow.NewUnitOfWork(ctx)
	s, err := uow.SessionRepository().FindOne(ctx, specification.ByID{ID: sessionID})
	if err != nil {
		return nil, apperror.PersistenceUnavailable(err)
	}
	if s == nil {
		return nil, apperror.SessionNotFound(sessionID.String())
	}
	if !s.Active() {
		return nil, apperror.SessionEnded(sessionID.String())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.live[sessionID]; ok {
		return existing, nil
	}
	ls = &liveSession{
		session: s,
		members: make(map[uuid.UUID]*member),
	}
	m.live[sessionID] = ls
	return ls, nil
}

func (m *Manager) logInfo(msg string, details map[string]interface{}) {
	if m.logger != nil {
		m.logger.Info("SessionManager", msg, details)
	}
}

func (m *Manager) logWarn(msg string, details map[string]interface{}) {
	if m.logger != nil {
		m.logger.Warn("SessionManager", msg, details)
	}
}

func (m *Manager) logError(msg string, details map[string]interface{}) {
	if m.logger != nil {
		m.logger.Error("SessionManager", msg, details)
	}
}
