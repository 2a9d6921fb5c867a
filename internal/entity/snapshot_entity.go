package entity

import (
	"time"

	"github.com/google/uuid"
)

// DocumentSnapshot is the durable form of a document replica, flushed
// before eviction and on the autosave interval.
type DocumentSnapshot struct {
	ProjectId     uuid.UUID
	FilePath      string
	Content       string
	VersionVector map[string]uint64
	UpdatedAt     time.Time
}
