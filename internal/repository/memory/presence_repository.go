package memory

import (
	"fmt"
	"time"

	"algo-collab-be/internal/entity"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// PresenceRepository keeps ephemeral presence records in a TTL cache.
// Entries expire at the heartbeat timeout; physical removal happens on
// DeleteExpired (the sweep) or explicit Delete, both of which fire the
// eviction callback so the gateway can announce the departure.
type PresenceRepository struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewPresenceRepository(heartbeatTimeout time.Duration) *PresenceRepository {
	// Cleanup interval 0: the tracker drives DeleteExpired itself so
	// sweep timing stays under test control.
	c := cache.New(heartbeatTimeout, 0)
	return &PresenceRepository{cache: c, ttl: heartbeatTimeout}
}

func presenceKey(sessionID, userID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", sessionID, userID)
}

func (r *PresenceRepository) Save(p *entity.Presence) {
	r.cache.Set(presenceKey(p.SessionId, p.UserId), p, cache.DefaultExpiration)
}

func (r *PresenceRepository) Get(sessionID, userID uuid.UUID) (*entity.Presence, bool) {
	if x, found := r.cache.Get(presenceKey(sessionID, userID)); found {
		return x.(*entity.Presence), true
	}
	return nil, false
}

func (r *PresenceRepository) Delete(sessionID, userID uuid.UUID) {
	r.cache.Delete(presenceKey(sessionID, userID))
}

// All returns every unexpired record. The tracker applies its own
// heartbeat-age filter on top so staleness never depends on sweep timing.
func (r *PresenceRepository) All() []*entity.Presence {
	items := r.cache.Items()
	out := make([]*entity.Presence, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(*entity.Presence))
	}
	return out
}

// OnEvicted registers the callback fired when a record is physically
// removed (sweep or explicit delete).
func (r *PresenceRepository) OnEvicted(fn func(p *entity.Presence)) {
	r.cache.OnEvicted(func(_ string, v interface{}) {
		fn(v.(*entity.Presence))
	})
}

// DeleteExpired removes records past their TTL, firing OnEvicted for
// each. This is the sweep's physical deletion step.
func (r *PresenceRepository) DeleteExpired() {
	r.cache.DeleteExpired()
}
