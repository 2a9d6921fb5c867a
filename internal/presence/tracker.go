package presence

import (
	"context"
	"sync"
	"time"

	"algo-collab-be/internal/entity"
	"algo-collab-be/internal/pkg/logger"
	"algo-collab-be/internal/repository/memory"

	"github.com/google/uuid"
)

// Update carries the fields of a presence refresh. Nil/zero fields keep
// their prior values; the heartbeat is always refreshed.
type Update struct {
	Status       entity.PresenceStatus
	CurrentFile  *string
	CursorLine   *int
	CursorColumn *int
}

// Tracker owns ephemeral presence state. Correctness never depends on
// sweep timing: readers filter stale records by heartbeat age.
type Tracker struct {
	repo    *memory.PresenceRepository
	timeout time.Duration
	sweep   time.Duration
	logger  logger.ILogger

	mu      sync.Mutex // serializes read-merge-write cycles
	onLeave func(p *entity.Presence)

	now func() time.Time // overridable in tests
}

func NewTracker(heartbeatTimeout time.Duration, log logger.ILogger) *Tracker {
	t := &Tracker{
		repo:    memory.NewPresenceRepository(heartbeatTimeout),
		timeout: heartbeatTimeout,
		sweep:   heartbeatTimeout / 2,
		logger:  log,
		now:     time.Now,
	}
	t.repo.OnEvicted(func(p *entity.Presence) {
		if t.logger != nil {
			t.logger.Info("Presence", "Presence record evicted", map[string]interface{}{
				"user_id":    p.UserId,
				"session_id": p.SessionId,
			})
		}
		if t.onLeave != nil {
			t.onLeave(p)
		}
	})
	return t
}

// OnLeave registers the departure callback; fired for sweep evictions
// and explicit removes so the gateway can notify remaining members.
func (t *Tracker) OnLeave(fn func(p *entity.Presence)) {
	t.onLeave = fn
}

// Update merges the given fields into the record for (user, session),
// creating it when absent, and always refreshes the heartbeat.
func (t *Tracker) Update(userID, sessionID, projectID uuid.UUID, upd Update) *entity.Presence {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, found := t.repo.Get(sessionID, userID)
	if !found {
		p = &entity.Presence{
			UserId:    userID,
			SessionId: sessionID,
			ProjectId: projectID,
			Status:    entity.PresenceActive,
		}
	}

	merged := *p
	if upd.Status != "" {
		merged.Status = upd.Status
	}
	if upd.CurrentFile != nil {
		merged.CurrentFile = *upd.CurrentFile
	}
	if upd.CursorLine != nil {
		merged.CursorLine = *upd.CursorLine
	}
	if upd.CursorColumn != nil {
		merged.CursorColumn = *upd.CursorColumn
	}
	merged.LastHeartbeatAt = t.now()

	t.repo.Save(&merged)
	return &merged
}

// GetActiveUsers returns non-stale presence for a project. Records past
// the heartbeat timeout are excluded even before a sweep removes them.
func (t *Tracker) GetActiveUsers(projectID uuid.UUID) []*entity.Presence {
	now := t.now()
	var out []*entity.Presence
	for _, p := range t.repo.All() {
		if p.ProjectId != projectID {
			continue
		}
		if p.Stale(now, t.timeout) || p.Status == entity.PresenceOffline {
			continue
		}
		out = append(out, p)
	}
	return out
}

// GetSessionUsers returns non-stale presence for a session.
func (t *Tracker) GetSessionUsers(sessionID uuid.UUID) []*entity.Presence {
	now := t.now()
	var out []*entity.Presence
	for _, p := range t.repo.All() {
		if p.SessionId != sessionID {
			continue
		}
		if p.Stale(now, t.timeout) || p.Status == entity.PresenceOffline {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Remove drops the record for (user, session). Safe to race with the
// sweep: whichever removal lands first wins, neither errors.
func (t *Tracker) Remove(userID, sessionID uuid.UUID) {
	t.repo.Delete(sessionID, userID)
}

// RemoveSession evicts every record belonging to an ended session.
func (t *Tracker) RemoveSession(sessionID uuid.UUID) {
	for _, p := range t.repo.All() {
		if p.SessionId == sessionID {
			t.repo.Delete(sessionID, p.UserId)
		}
	}
}

// SweepStale physically deletes expired records. The eviction callback
// announces each departure; this is the backstop that detects silent
// disconnects when the transport close event is lost.
func (t *Tracker) SweepStale() {
	t.repo.DeleteExpired()
}

// Run sweeps on a fixed interval (half the heartbeat timeout) until the
// context is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.SweepStale()
		}
	}
}
