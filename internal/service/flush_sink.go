package service

import (
	"context"
	"encoding/json"

	"algo-collab-be/internal/document"
	"algo-collab-be/internal/dto"
	"algo-collab-be/internal/entity"
)

// snapshotSink bridges the document store to the flush queue.
type snapshotSink struct {
	publisher IPublisherService
}

func NewSnapshotSink(publisher IPublisherService) document.FlushSink {
	return &snapshotSink{publisher: publisher}
}

func (s *snapshotSink) Enqueue(snapshot *entity.DocumentSnapshot) error {
	msg := dto.FlushSnapshotMessage{
		ProjectId:     snapshot.ProjectId,
		FilePath:      snapshot.FilePath,
		Content:       snapshot.Content,
		VersionVector: snapshot.VersionVector,
		UpdatedAt:     snapshot.UpdatedAt,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.publisher.Publish(context.Background(), payload)
}
