package events

import "time"

// Event is the contract for everything that crosses the bus.
type Event interface {
	// EventType returns the subject suffix, e.g. "session.created".
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

const (
	TypeSessionCreated  = "session.created"
	TypeSessionEnded    = "session.ended"
	TypeCommentCreated  = "comment.created"
	TypeCommentReplied  = "comment.replied"
	TypeCommentResolved = "comment.resolved"
	TypeCommentReopened = "comment.reopened"
	TypeMention         = "comment.mention"
)

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

func newBase(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
}

func NewSessionCreated(sessionID, projectID, createdBy, sessionType, name string) Event {
	return newBase(TypeSessionCreated, map[string]interface{}{
		"session_id":   sessionID,
		"project_id":   projectID,
		"created_by":   createdBy,
		"session_type": sessionType,
		"session_name": name,
	})
}

func NewSessionEnded(sessionID, projectID string, startedAt time.Time) Event {
	return newBase(TypeSessionEnded, map[string]interface{}{
		"session_id": sessionID,
		"project_id": projectID,
		"started_at": startedAt.Format(time.RFC3339),
	})
}

func NewCommentCreated(commentID, projectID, filePath, authorID string, lineNumber int) Event {
	return newBase(TypeCommentCreated, map[string]interface{}{
		"comment_id":  commentID,
		"project_id":  projectID,
		"file_path":   filePath,
		"author_id":   authorID,
		"line_number": lineNumber,
	})
}

func NewCommentReplied(replyID, rootID, projectID, authorID string) Event {
	return newBase(TypeCommentReplied, map[string]interface{}{
		"comment_id": replyID,
		"root_id":    rootID,
		"project_id": projectID,
		"author_id":  authorID,
	})
}

func NewCommentResolved(commentID, projectID, resolvedBy string) Event {
	return newBase(TypeCommentResolved, map[string]interface{}{
		"comment_id":  commentID,
		"project_id":  projectID,
		"resolved_by": resolvedBy,
	})
}

func NewCommentReopened(commentID, projectID, reopenedBy string) Event {
	return newBase(TypeCommentReopened, map[string]interface{}{
		"comment_id":  commentID,
		"project_id":  projectID,
		"reopened_by": reopenedBy,
	})
}

// NewMention fires once per mention so downstream workers (email, in-app
// notifications) handle each recipient independently.
func NewMention(commentID, projectID, filePath, authorID, mentionedUserID string) Event {
	return newBase(TypeMention, map[string]interface{}{
		"comment_id":   commentID,
		"project_id":   projectID,
		"file_path":    filePath,
		"author_id":    authorID,
		"mentioned_id": mentionedUserID,
	})
}
