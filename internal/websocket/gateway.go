package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"algo-collab-be/internal/apperror"
	"algo-collab-be/internal/document"
	"algo-collab-be/internal/dto"
	"algo-collab-be/internal/entity"
	"algo-collab-be/internal/pkg/logger"
	"algo-collab-be/internal/presence"
	"algo-collab-be/internal/service"
	"algo-collab-be/pkg/crdt"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Gateway routes websocket frames to the collaboration services and
// fans results back out through the hub.
type Gateway struct {
	hub       *Hub
	sessions  service.ISessionService
	comments  service.ICommentService
	documents *document.Store
	tracker   *presence.Tracker
	logger    logger.ILogger
	buffer    int
}

func NewGateway(
	hub *Hub,
	sessions service.ISessionService,
	comments service.ICommentService,
	documents *document.Store,
	tracker *presence.Tracker,
	log logger.ILogger,
	outboundBuffer int,
) *Gateway {
	if outboundBuffer <= 0 {
		outboundBuffer = 256
	}
	return &Gateway{
		hub:       hub,
		sessions:  sessions,
		comments:  comments,
		documents: documents,
		tracker:   tracker,
		logger:    log,
		buffer:    outboundBuffer,
	}
}

// ServeWs joins the user to the session and runs the connection's pump
// pair. The jwt middleware on the upgrade route supplies user_id.
func (g *Gateway) ServeWs(conn *websocket.Conn) {
	userIDStr, _ := conn.Locals("user_id").(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		conn.WriteJSON(dto.WsMessage{Type: "session.join.error", Payload: mustJSON(dto.WsError{
			Code: string(apperror.CodeInvalid), Message: "missing identity",
		})})
		conn.Close()
		return
	}
	sessionID, err := uuid.Parse(conn.Params("session_id"))
	if err != nil {
		conn.WriteJSON(dto.WsMessage{Type: "session.join.error", Payload: mustJSON(dto.WsError{
			Code: string(apperror.CodeInvalid), Message: "bad session id",
		})})
		conn.Close()
		return
	}

	joined, err := g.sessions.Join(context.Background(), userID, sessionID)
	if err != nil {
		conn.WriteJSON(dto.WsMessage{Type: "session.join.error", SessionId: sessionID, Payload: mustJSON(dto.WsError{
			Code: string(codeOf(err)), Message: err.Error(),
		})})
		conn.Close()
		return
	}

	client := newClient(g.hub, g, conn, userID, sessionID, joined.ProjectId, g.buffer)
	client.Hub.register <- client

	client.enqueue(g.frame(dto.WsSessionJoin+".ack", sessionID, joined))
	g.hub.BroadcastFrame(sessionID, g.frame(dto.WsUserJoined, sessionID, dto.WsUserEventPayload{UserId: userID}), client.ConnID)

	go client.writePump()
	client.readPump()
}

// route dispatches one inbound frame. Errors go back as
// "<type>.error" frames; the connection stays up.
func (g *Gateway) route(c *Client, data []byte) {
	var msg dto.WsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.enqueue(g.errorFrame("message", c.SessionID, apperror.Invalid("malformed frame")))
		return
	}

	var err error
	switch msg.Type {
	case dto.WsDocOp:
		err = g.handleDocOp(c, msg.Payload)
	case dto.WsDocSync:
		err = g.handleDocSync(c, msg.Payload)
	case dto.WsPresenceUpdate:
		err = g.handlePresence(c, msg.Payload)
	case dto.WsCommentCreate:
		err = g.handleCommentCreate(c, msg.Payload)
	case dto.WsCommentReply:
		err = g.handleCommentReply(c, msg.Payload)
	case dto.WsCommentResolve:
		err = g.handleCommentAction(c, msg.Payload, dto.WsCommentResolve, g.comments.Resolve)
	case dto.WsCommentReopen:
		err = g.handleCommentAction(c, msg.Payload, dto.WsCommentReopen, g.comments.Reopen)
	case dto.WsSessionLeave:
		g.sessions.Leave(c.SessionID, c.UserID)
		c.enqueue(g.frame(dto.WsSessionLeave+".ack", c.SessionID, nil))
		return
	case dto.WsSessionEnd:
		if err = g.sessions.End(context.Background(), c.SessionID); err == nil {
			c.enqueue(g.frame(dto.WsSessionEnd+".ack", c.SessionID, nil))
			g.hub.BroadcastFrame(c.SessionID, g.frame(dto.WsSessionEnd, c.SessionID, nil), c.ConnID)
		}
	default:
		err = apperror.Invalid("unknown message type: " + msg.Type)
		msg.Type = "message"
	}

	if err != nil {
		c.enqueue(g.errorFrame(msg.Type, c.SessionID, err))
	}
}

func (g *Gateway) handleDocSync(c *Client, payload json.RawMessage) error {
	var req dto.WsDocSyncPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return apperror.Invalid("malformed doc.sync payload")
	}
	if req.FilePath == "" {
		return apperror.Invalid("file_path required")
	}

	text, vv, err := g.attachDoc(c, req.FilePath)
	if err != nil {
		return err
	}

	return enqueueOrErr(c, g.frame(dto.WsDocSync+".ack", c.SessionID, dto.WsDocSyncResponse{
		FilePath:      req.FilePath,
		Content:       text,
		VersionVector: vv,
	}))
}

func (g *Gateway) handleDocOp(c *Client, payload json.RawMessage) error {
	var req dto.WsDocOpPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return apperror.Invalid("malformed doc.op payload")
	}

	var kind crdt.OpKind
	switch req.Kind {
	case "insert":
		kind = crdt.OpInsert
	case "delete":
		kind = crdt.OpDelete
	default:
		return apperror.Invalid("unknown op kind: " + req.Kind)
	}

	// Editing a file implies having it open.
	if _, _, err := g.attachDoc(c, req.FilePath); err != nil {
		return err
	}

	res, err := g.documents.Apply(context.Background(), c.ProjectID, req.FilePath, document.RawOp{
		OpID:     req.OpId,
		Kind:     kind,
		Position: req.Position,
		Data:     req.Data,
		Length:   req.Length,
	}, c.ConnID)
	if err != nil {
		return err
	}

	// Other instances merge the op into their replicas; local members
	// already got it through the document store listeners.
	if res.Applied {
		g.hub.PublishDocOp(c.SessionID, c.ProjectID, req.FilePath, res.Op)
	}

	return enqueueOrErr(c, g.frame(dto.WsDocOp+".ack", c.SessionID, dto.WsDocOpAck{
		OpId:          req.OpId,
		VersionVector: res.VersionVector,
	}))
}

func (g *Gateway) handlePresence(c *Client, payload json.RawMessage) error {
	var req dto.PresenceUpdateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return apperror.Invalid("malformed presence payload")
	}

	upd := presence.Update{
		CurrentFile:  req.CurrentFile,
		CursorLine:   req.CursorLine,
		CursorColumn: req.CursorColumn,
	}
	if req.Status != "" {
		upd.Status = entity.PresenceStatus(req.Status)
	}
	g.tracker.Update(c.UserID, c.SessionID, c.ProjectID, upd)

	g.broadcastPresence(c.SessionID, "")
	return enqueueOrErr(c, g.frame(dto.WsPresenceUpdate+".ack", c.SessionID, nil))
}

func (g *Gateway) handleCommentCreate(c *Client, payload json.RawMessage) error {
	var req dto.CreateCommentRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return apperror.Invalid("malformed comment payload")
	}
	req.ProjectId = c.ProjectID

	res, err := g.comments.Create(context.Background(), c.UserID, &req)
	if err != nil {
		return err
	}
	g.hub.BroadcastFrame(c.SessionID, g.frame(dto.WsCommentCreate, c.SessionID, res), c.ConnID)
	return enqueueOrErr(c, g.frame(dto.WsCommentCreate+".ack", c.SessionID, res))
}

func (g *Gateway) handleCommentReply(c *Client, payload json.RawMessage) error {
	var req dto.ReplyCommentRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return apperror.Invalid("malformed reply payload")
	}
	var raw struct {
		RootId uuid.UUID `json:"root_id"`
	}
	if err := json.Unmarshal(payload, &raw); err == nil && raw.RootId != uuid.Nil {
		req.RootId = raw.RootId
	}

	res, err := g.comments.Reply(context.Background(), c.UserID, &req)
	if err != nil {
		return err
	}
	g.hub.BroadcastFrame(c.SessionID, g.frame(dto.WsCommentReply, c.SessionID, res), c.ConnID)
	return enqueueOrErr(c, g.frame(dto.WsCommentReply+".ack", c.SessionID, res))
}

func (g *Gateway) handleCommentAction(
	c *Client,
	payload json.RawMessage,
	kind string,
	action func(ctx context.Context, userID, commentID uuid.UUID) (*dto.CommentResponse, error),
) error {
	var raw struct {
		CommentId uuid.UUID `json:"comment_id"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil || raw.CommentId == uuid.Nil {
		return apperror.Invalid("comment_id required")
	}

	res, err := action(context.Background(), c.UserID, raw.CommentId)
	if err != nil {
		return err
	}
	g.hub.BroadcastFrame(c.SessionID, g.frame(kind, c.SessionID, res), c.ConnID)
	return enqueueOrErr(c, g.frame(kind+".ack", c.SessionID, res))
}

// attachDoc joins the connection to a document on first touch and
// subscribes it to merged ops.
func (g *Gateway) attachDoc(c *Client, filePath string) (string, crdt.VersionVector, error) {
	text, vv, err := g.documents.Join(context.Background(), c.ProjectID, filePath, c.ConnID)
	if err != nil {
		return "", nil, err
	}
	if c.trackDoc(filePath) {
		client := c
		path := filePath
		err = g.documents.Subscribe(context.Background(), c.ProjectID, filePath, c.ConnID, func(op crdt.Op, origin string) {
			opJSON, err := json.Marshal(op)
			if err != nil {
				return
			}
			frame := g.frame(dto.WsDocOp, client.SessionID, dto.WsDocOpBroadcast{
				FilePath: path,
				Op:       opJSON,
			})
			if !client.enqueue(frame) {
				g.hub.unregister <- client
			}
		})
		if err != nil {
			return "", nil, err
		}
	}
	return text, vv, nil
}

// onDisconnect is the fast path for a closed transport: the user drops
// out of presence and membership immediately instead of waiting for the
// stale sweep.
func (g *Gateway) onDisconnect(c *Client) {
	for _, path := range c.joinedDocs() {
		g.documents.Unsubscribe(c.ProjectID, path, c.ConnID)
		g.documents.Leave(c.ProjectID, path, c.ConnID)
	}
	g.sessions.Leave(c.SessionID, c.UserID)

	g.hub.BroadcastFrame(c.SessionID, g.frame(dto.WsUserLeft, c.SessionID, dto.WsUserEventPayload{UserId: c.UserID}), c.ConnID)
	g.broadcastPresence(c.SessionID, c.ConnID)
}

// NotifyLeft announces a presence eviction (stale sweep) to the
// remaining members. Wired to the tracker's leave callback.
func (g *Gateway) NotifyLeft(p *entity.Presence) {
	g.hub.BroadcastFrame(p.SessionId, g.frame(dto.WsUserLeft, p.SessionId, dto.WsUserEventPayload{UserId: p.UserId}), "")
	g.broadcastPresence(p.SessionId, "")
}

func (g *Gateway) broadcastPresence(sessionID uuid.UUID, exceptConnID string) {
	users := g.sessions.GetSessionPresence(sessionID)
	frame := g.frame(dto.WsPresenceUpdate, sessionID, dto.WsPresenceBroadcast{Users: users})
	g.hub.BroadcastPresence(sessionID, frame, exceptConnID)
}

func (g *Gateway) frame(kind string, sessionID uuid.UUID, payload interface{}) []byte {
	msg := dto.WsMessage{Type: kind, SessionId: sessionID}
	if payload != nil {
		msg.Payload = mustJSON(payload)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		g.logger.Error("Gateway", "Frame marshal failed", map[string]interface{}{
			"type":  kind,
			"error": err.Error(),
		})
		return []byte(`{"type":"` + kind + `"}`)
	}
	return data
}

func (g *Gateway) errorFrame(kind string, sessionID uuid.UUID, err error) []byte {
	return g.frame(kind+".error", sessionID, dto.WsError{
		Code:    string(codeOf(err)),
		Message: err.Error(),
	})
}

func enqueueOrErr(c *Client, frame []byte) error {
	if !c.enqueue(frame) {
		return errors.New("outbound queue full")
	}
	return nil
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}

func codeOf(err error) apperror.Code {
	if code, ok := apperror.CodeOf(err); ok {
		return code
	}
	return "INTERNAL"
}

