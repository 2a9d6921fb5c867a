package service

import (
	"context"
	"fmt"

	"algo-collab-be/internal/pkg/logger"
	"algo-collab-be/internal/pkg/mailer"
	"algo-collab-be/internal/repository/unitofwork"
	natsbus "algo-collab-be/pkg/nats"
	"algo-collab-be/pkg/events"

	"github.com/google/uuid"
)

type IMentionWorkerService interface {
	Start() error
}

// mentionWorkerService turns mention events into emails. It runs off
// the durable NATS consumer so mentions fired while the worker was down
// are still delivered on restart.
type mentionWorkerService struct {
	subscriber *natsbus.Subscriber
	uowFactory unitofwork.RepositoryFactory
	email      mailer.IEmailService
	logger     logger.ILogger
}

func NewMentionWorkerService(
	subscriber *natsbus.Subscriber,
	uowFactory unitofwork.RepositoryFactory,
	email mailer.IEmailService,
	log logger.ILogger,
) IMentionWorkerService {
	return &mentionWorkerService{
		subscriber: subscriber,
		uowFactory: uowFactory,
		email:      email,
		logger:     log,
	}
}

func (w *mentionWorkerService) Start() error {
	return w.subscriber.Subscribe("collab."+events.TypeMention, "mention-mailer", w.handle)
}

func (w *mentionWorkerService) handle(ctx context.Context, event events.Event) error {
	payload := event.Payload()

	mentionedID, err := uuid.Parse(stringField(payload, "mentioned_id"))
	if err != nil {
		// Unparseable ids never become valid; drop instead of retrying.
		w.logger.Warn("MentionWorker", "Dropping mention event with bad mentioned_id", map[string]interface{}{
			"payload": payload,
		})
		return nil
	}
	authorID, _ := uuid.Parse(stringField(payload, "author_id"))

	uow := w.uowFactory.NewUnitOfWork(ctx)
	mentioned, err := uow.UserRepository().FindByID(ctx, mentionedID)
	if err != nil {
		return err // retriable
	}
	if mentioned == nil || mentioned.Email == "" {
		w.logger.Warn("MentionWorker", "Mentioned user unknown, skipping email", map[string]interface{}{
			"mentioned_id": mentionedID,
		})
		return nil
	}

	authorName := "Someone"
	if author, err := uow.UserRepository().FindByID(ctx, authorID); err == nil && author != nil {
		authorName = author.DisplayName
		if authorName == "" {
			authorName = author.Username
		}
	}

	filePath := stringField(payload, "file_path")
	link := fmt.Sprintf("/projects/%s/comments/%s",
		stringField(payload, "project_id"), stringField(payload, "comment_id"))

	if err := w.email.SendMentionNotice(mentioned.Email, authorName, filePath, "", link); err != nil {
		return err // retriable; NATS redelivers
	}

	w.logger.Info("MentionWorker", "Mention email sent", map[string]interface{}{
		"mentioned_id": mentionedID,
		"comment_id":   stringField(payload, "comment_id"),
	})
	return nil
}

func stringField(payload map[string]interface{}, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
