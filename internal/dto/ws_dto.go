package dto

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Websocket message kinds. Every inbound kind gets either a
// "<kind>.ack" or a "<kind>.error" reply on the same connection.
const (
	WsDocOp          = "doc.op"
	WsDocSync        = "doc.sync"
	WsPresenceUpdate = "presence.update"
	WsCommentCreate  = "comment.create"
	WsCommentReply   = "comment.reply"
	WsCommentResolve = "comment.resolve"
	WsCommentReopen  = "comment.reopen"
	WsSessionJoin    = "session.join"
	WsSessionLeave   = "session.leave"
	WsSessionEnd     = "session.end"
	WsUserJoined     = "user.joined"
	WsUserLeft       = "user.left"
)

// WsMessage is the envelope for every frame in both directions.
type WsMessage struct {
	Type      string          `json:"type"`
	SessionId uuid.UUID       `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type WsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type WsDocOpPayload struct {
	FilePath string `json:"file_path" validate:"required"`
	OpId     string `json:"op_id" validate:"required"`
	Kind     string `json:"kind" validate:"required,oneof=insert delete"`
	Position int    `json:"position" validate:"min=0"`
	Data     string `json:"data"`
	Length   int    `json:"length"`
}

// WsDocOpBroadcast carries a merged CRDT op to the other members. The
// op is opaque to clients that only render text; replica clients merge
// it into their local copy.
type WsDocOpBroadcast struct {
	FilePath string          `json:"file_path"`
	Op       json.RawMessage `json:"op"`
}

type WsDocSyncPayload struct {
	FilePath string `json:"file_path" validate:"required"`
}

type WsDocSyncResponse struct {
	FilePath      string            `json:"file_path"`
	Content       string            `json:"content"`
	VersionVector map[string]uint64 `json:"version_vector"`
}

type WsDocOpAck struct {
	OpId          string            `json:"op_id"`
	VersionVector map[string]uint64 `json:"version_vector"`
}

type WsPresenceBroadcast struct {
	Users []*PresenceResponse `json:"users"`
}

type WsUserEventPayload struct {
	UserId uuid.UUID `json:"user_id"`
}
