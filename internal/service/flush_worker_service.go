package service

import (
	"context"
	"encoding/json"
	"time"

	"algo-collab-be/internal/dto"
	"algo-collab-be/internal/entity"
	"algo-collab-be/internal/pkg/logger"
	"algo-collab-be/internal/repository/unitofwork"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IFlushWorkerService interface {
	Consume(ctx context.Context) error
}

// flushWorkerService drains the snapshot flush queue into the durable
// store. Writes retry with exponential backoff; past the alert
// threshold failures are logged at Error level so an operator sees the
// outage, and the message is requeued rather than dropped.
type flushWorkerService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
	retryLimit int
	baseDelay  time.Duration
}

func NewFlushWorkerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	log logger.ILogger,
	retryLimit int,
) IFlushWorkerService {
	if retryLimit <= 0 {
		retryLimit = 5
	}
	return &flushWorkerService{
		pubSub:     pubSub,
		topicName:  topicName,
		uowFactory: uowFactory,
		logger:     log,
		retryLimit: retryLimit,
		baseDelay:  200 * time.Millisecond,
	}
}

func (fw *flushWorkerService) Consume(ctx context.Context) error {
	messages, err := fw.pubSub.Subscribe(ctx, fw.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			fw.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (fw *flushWorkerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.FlushSnapshotMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		fw.logger.Error("FlushWorker", "Malformed flush message dropped", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // malformed payloads never become valid
		return
	}

	snapshot := &entity.DocumentSnapshot{
		ProjectId:     payload.ProjectId,
		FilePath:      payload.FilePath,
		Content:       payload.Content,
		VersionVector: payload.VersionVector,
		UpdatedAt:     payload.UpdatedAt,
	}

	delay := fw.baseDelay
	for attempt := 1; ; attempt++ {
		uow := fw.uowFactory.NewUnitOfWork(ctx)
		err := uow.SnapshotRepository().Upsert(ctx, snapshot)
		if err == nil {
			msg.Ack()
			return
		}

		if attempt >= fw.retryLimit {
			fw.logger.Error("FlushWorker", "Snapshot flush exhausted retries, requeueing", map[string]interface{}{
				"project_id": payload.ProjectId,
				"file_path":  payload.FilePath,
				"attempts":   attempt,
				"error":      err.Error(),
			})
			msg.Nack()
			return
		}

		fw.logger.Warn("FlushWorker", "Snapshot flush failed, retrying", map[string]interface{}{
			"project_id": payload.ProjectId,
			"file_path":  payload.FilePath,
			"attempt":    attempt,
			"error":      err.Error(),
		})

		select {
		case <-ctx.Done():
			msg.Nack()
			return
		case <-time.After(delay):
		}
		delay *= 2
	}
}
