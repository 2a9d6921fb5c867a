package dto

import (
	"time"

	"github.com/google/uuid"
)

// FlushSnapshotMessage travels over the in-process flush queue from the
// document store to the flush worker.
type FlushSnapshotMessage struct {
	ProjectId     uuid.UUID         `json:"project_id"`
	FilePath      string            `json:"file_path"`
	Content       string            `json:"content"`
	VersionVector map[string]uint64 `json:"version_vector"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
