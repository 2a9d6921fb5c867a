package service

import (
	"context"
	"time"

	"algo-collab-be/internal/document"
	"algo-collab-be/internal/dto"
	"algo-collab-be/internal/entity"
	"algo-collab-be/internal/pkg/logger"
	"algo-collab-be/internal/presence"
	"algo-collab-be/internal/session"
	"algo-collab-be/pkg/events"

	"github.com/google/uuid"
)

type ISessionService interface {
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	Join(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.JoinSessionResponse, error)
	Leave(sessionId uuid.UUID, userId uuid.UUID)
	End(ctx context.Context, sessionId uuid.UUID) error
	ListActive(ctx context.Context, projectId uuid.UUID) ([]*dto.SessionResponse, error)
	GetSessionPresence(sessionId uuid.UUID) []*dto.PresenceResponse
	GetProjectPresence(projectId uuid.UUID) []*dto.PresenceResponse
}

// sessionService glues the live registry to presence, open documents
// and the event bus. Ending a session evicts its presence records and
// flushes every open document of the project.
type sessionService struct {
	manager        *session.Manager
	tracker        *presence.Tracker
	documents      *document.Store
	eventPublisher IEventPublisher
	logger         logger.ILogger
}

func NewSessionService(
	manager *session.Manager,
	tracker *presence.Tracker,
	documents *document.Store,
	eventPublisher IEventPublisher,
	log logger.ILogger,
) ISessionService {
	s := &sessionService{
		manager:        manager,
		tracker:        tracker,
		documents:      documents,
		eventPublisher: eventPublisher,
		logger:         log,
	}
	manager.OnEnd(s.onSessionEnded)
	return s
}

func (s *sessionService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	created, err := s.manager.Create(ctx, req.ProjectId, userId,
		entity.SessionType(req.SessionType), req.SessionName)
	if err != nil {
		return nil, err
	}

	s.publish(events.NewSessionCreated(
		created.Id.String(), created.ProjectId.String(), created.CreatedBy.String(),
		string(created.SessionType), created.SessionName,
	))
	return &dto.CreateSessionResponse{
		Id:        created.Id,
		StartedAt: created.StartedAt,
	}, nil
}

func (s *sessionService) Join(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.JoinSessionResponse, error) {
	token, err := s.manager.Join(ctx, sessionId, userId)
	if err != nil {
		return nil, err
	}

	// A joining user is immediately visible to the others.
	s.tracker.Update(userId, sessionId, token.ProjectID, presence.Update{
		Status: entity.PresenceActive,
	})

	return &dto.JoinSessionResponse{
		SessionId: token.SessionID,
		ProjectId: token.ProjectID,
		JoinedAt:  token.JoinedAt,
	}, nil
}

func (s *sessionService) Leave(sessionId uuid.UUID, userId uuid.UUID) {
	s.manager.Leave(sessionId, userId)
	s.tracker.Remove(userId, sessionId)
}

func (s *sessionService) End(ctx context.Context, sessionId uuid.UUID) error {
	return s.manager.End(ctx, sessionId)
}

func (s *sessionService) ListActive(ctx context.Context, projectId uuid.UUID) ([]*dto.SessionResponse, error) {
	sessions, err := s.manager.ListActive(ctx, projectId)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toSessionResponse(sess))
	}
	return out, nil
}

func (s *sessionService) GetSessionPresence(sessionId uuid.UUID) []*dto.PresenceResponse {
	return toPresenceResponses(s.tracker.GetSessionUsers(sessionId))
}

func (s *sessionService) GetProjectPresence(projectId uuid.UUID) []*dto.PresenceResponse {
	return toPresenceResponses(s.tracker.GetActiveUsers(projectId))
}

// onSessionEnded runs once per session on the active->ended transition.
func (s *sessionService) onSessionEnded(sess *entity.Session) {
	s.tracker.RemoveSession(sess.Id)
	s.documents.FlushProject(sess.ProjectId)
	s.publish(events.NewSessionEnded(sess.Id.String(), sess.ProjectId.String(), sess.StartedAt))

	if s.logger != nil {
		s.logger.Info("SessionService", "Session ended", map[string]interface{}{
			"session_id": sess.Id,
			"project_id": sess.ProjectId,
		})
	}
}

// publish fires an event without blocking the caller; the bus is never
// on the critical path of a session operation.
func (s *sessionService) publish(event events.Event) {
	if s.eventPublisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.eventPublisher.Publish(ctx, event); err != nil && s.logger != nil {
			s.logger.Warn("SessionService", "Event publish failed", map[string]interface{}{
				"event_type": event.EventType(),
				"error":      err.Error(),
			})
		}
	}()
}

func toSessionResponse(s *entity.Session) *dto.SessionResponse {
	return &dto.SessionResponse{
		Id:           s.Id,
		ProjectId:    s.ProjectId,
		SessionType:  string(s.SessionType),
		SessionName:  s.SessionName,
		CreatedBy:    s.CreatedBy,
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
		RecordingUrl: s.RecordingUrl,
	}
}

func toPresenceResponses(records []*entity.Presence) []*dto.PresenceResponse {
	out := make([]*dto.PresenceResponse, 0, len(records))
	for _, p := range records {
		out = append(out, &dto.PresenceResponse{
			UserId:          p.UserId,
			SessionId:       p.SessionId,
			Status:          string(p.Status),
			CurrentFile:     p.CurrentFile,
			CursorLine:      p.CursorLine,
			CursorColumn:    p.CursorColumn,
			LastHeartbeatAt: p.LastHeartbeatAt,
		})
	}
	return out
}
