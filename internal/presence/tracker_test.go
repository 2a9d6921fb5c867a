package presence

import (
	"testing"
	"time"

	"algo-collab-be/internal/entity"

	"github.com/google/uuid"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestUpdateMergesFields(t *testing.T) {
	tr := NewTracker(30*time.Second, nil)
	userID := uuid.New()
	sessionID := uuid.New()
	projectID := uuid.New()

	tr.Update(userID, sessionID, projectID, Update{
		Status:       entity.PresenceActive,
		CurrentFile:  strPtr("main.go"),
		CursorLine:   intPtr(10),
		CursorColumn: intPtr(4),
	})

	// A cursor-only update keeps the file and status.
	p := tr.Update(userID, sessionID, projectID, Update{
		CursorLine:   intPtr(11),
		CursorColumn: intPtr(0),
	})

	if p.CurrentFile != "main.go" {
		t.Errorf("CurrentFile = %q, want main.go", p.CurrentFile)
	}
	if p.Status != entity.PresenceActive {
		t.Errorf("Status = %q, want active", p.Status)
	}
	if p.CursorLine != 11 || p.CursorColumn != 0 {
		t.Errorf("cursor = (%d,%d), want (11,0)", p.CursorLine, p.CursorColumn)
	}
}

func TestHeartbeatAlwaysRefreshed(t *testing.T) {
	tr := NewTracker(30*time.Second, nil)
	base := time.Now()
	tr.now = func() time.Time { return base }

	userID, sessionID, projectID := uuid.New(), uuid.New(), uuid.New()
	first := tr.Update(userID, sessionID, projectID, Update{})

	tr.now = func() time.Time { return base.Add(5 * time.Second) }
	second := tr.Update(userID, sessionID, projectID, Update{})

	if !second.LastHeartbeatAt.After(first.LastHeartbeatAt) {
		t.Error("LastHeartbeatAt not refreshed by empty update")
	}
}

// Stale records must be invisible to readers even before a sweep runs.
func TestStaleRecordsExcludedBeforeSweep(t *testing.T) {
	tr := NewTracker(30*time.Second, nil)
	base := time.Now()
	tr.now = func() time.Time { return base }

	projectID := uuid.New()
	tr.Update(uuid.New(), uuid.New(), projectID, Update{})

	if got := len(tr.GetActiveUsers(projectID)); got != 1 {
		t.Fatalf("active users = %d, want 1", got)
	}

	// Time passes beyond the timeout; no sweep has run.
	tr.now = func() time.Time { return base.Add(31 * time.Second) }
	if got := len(tr.GetActiveUsers(projectID)); got != 0 {
		t.Errorf("active users = %d after timeout, want 0", got)
	}
}

func TestSweepEmitsLeaveEvents(t *testing.T) {
	tr := NewTracker(10*time.Millisecond, nil)

	var left []*entity.Presence
	tr.OnLeave(func(p *entity.Presence) {
		left = append(left, p)
	})

	userID, sessionID, projectID := uuid.New(), uuid.New(), uuid.New()
	tr.Update(userID, sessionID, projectID, Update{})

	time.Sleep(20 * time.Millisecond)
	tr.SweepStale()

	if len(left) != 1 {
		t.Fatalf("leave events = %d, want 1", len(left))
	}
	if left[0].UserId != userID {
		t.Errorf("leave event for wrong user: %s", left[0].UserId)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	tr := NewTracker(30*time.Second, nil)
	userID, sessionID, projectID := uuid.New(), uuid.New(), uuid.New()
	tr.Update(userID, sessionID, projectID, Update{})

	tr.Remove(userID, sessionID)
	tr.Remove(userID, sessionID) // second remove must not panic or error
	tr.SweepStale()

	if got := len(tr.GetActiveUsers(projectID)); got != 0 {
		t.Errorf("active users = %d after remove, want 0", got)
	}
}

func TestOfflineStatusHidesUser(t *testing.T) {
	tr := NewTracker(30*time.Second, nil)
	userID, sessionID, projectID := uuid.New(), uuid.New(), uuid.New()

	tr.Update(userID, sessionID, projectID, Update{})
	tr.Update(userID, sessionID, projectID, Update{Status: entity.PresenceOffline})

	if got := len(tr.GetSessionUsers(sessionID)); got != 0 {
		t.Errorf("session users = %d for offline user, want 0", got)
	}
}

func TestRemoveSessionEvictsAllMembers(t *testing.T) {
	tr := NewTracker(30*time.Second, nil)
	sessionID, projectID := uuid.New(), uuid.New()
	tr.Update(uuid.New(), sessionID, projectID, Update{})
	tr.Update(uuid.New(), sessionID, projectID, Update{})
	tr.Update(uuid.New(), uuid.New(), projectID, Update{}) // other session

	tr.RemoveSession(sessionID)

	if got := len(tr.GetSessionUsers(sessionID)); got != 0 {
		t.Errorf("session users = %d after RemoveSession, want 0", got)
	}
	if got := len(tr.GetActiveUsers(projectID)); got != 1 {
		t.Errorf("project users = %d, want 1 (other session)", got)
	}
}
