package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"algo-collab-be/internal/pkg/logger"
	"algo-collab-be/pkg/crdt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "collab_cluster"

// clusterMessage travels over redis so instances share sessions. Frames
// are delivered verbatim to local members; doc ops are merged into the
// local replica first so every instance's authoritative copy converges.
type clusterMessage struct {
	InstanceID string          `json:"instance_id"`
	SessionID  string          `json:"session_id"`
	Kind       string          `json:"kind"` // "frame" | "docop"
	Frame      json.RawMessage `json:"frame,omitempty"`
	ProjectID  string          `json:"project_id,omitempty"`
	FilePath   string          `json:"file_path,omitempty"`
	Op         *crdt.Op        `json:"op,omitempty"`
}

// RemoteOpSink receives document ops published by other instances.
type RemoteOpSink interface {
	ApplyRemote(ctx context.Context, projectID uuid.UUID, filePath string, op crdt.Op, origin string) error
}

// Hub tracks the connections of each live session on this instance.
type Hub struct {
	instanceID string

	// sessionID -> connections of members on this instance
	clients map[uuid.UUID]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb       *redis.Client
	remoteOps RemoteOpSink
	logger    logger.ILogger
}

func NewHub(rdb *redis.Client, remoteOps RemoteOpSink, log logger.ILogger) *Hub {
	return &Hub{
		instanceID: uuid.NewString(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		rdb:        rdb,
		remoteOps:  remoteOps,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.SessionID] == nil {
				h.clients[client.SessionID] = make(map[*Client]struct{})
			}
			h.clients[client.SessionID][client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{
				"user_id":    client.UserID,
				"session_id": client.SessionID,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if members, ok := h.clients[client.SessionID]; ok {
				if _, present := members[client]; present {
					delete(members, client)
					// Signal shutdown instead of closing Send: a
					// broadcast may still be parked sending to it.
					client.close()
				}
				if len(members) == 0 {
					delete(h.clients, client.SessionID)
				}
			}
			h.mu.Unlock()
			h.logger.Info("Hub", "Client unregistered", map[string]interface{}{
				"user_id":    client.UserID,
				"session_id": client.SessionID,
			})
		}
	}
}

// BroadcastFrame delivers a frame to every member of a session except
// the origin connection, on this instance and, via redis, on the others.
func (h *Hub) BroadcastFrame(sessionID uuid.UUID, frame []byte, exceptConnID string) {
	h.deliverLocal(sessionID, frame, exceptConnID, false)
	h.publish(clusterMessage{
		InstanceID: h.instanceID,
		SessionID:  sessionID.String(),
		Kind:       "frame",
		Frame:      frame,
	})
}

// BroadcastPresence is like BroadcastFrame but uses each client's
// latest-wins presence slot, so a slow consumer only ever sees the most
// recent presence state instead of a growing backlog.
func (h *Hub) BroadcastPresence(sessionID uuid.UUID, frame []byte, exceptConnID string) {
	h.deliverLocal(sessionID, frame, exceptConnID, true)
	h.publish(clusterMessage{
		InstanceID: h.instanceID,
		SessionID:  sessionID.String(),
		Kind:       "frame",
		Frame:      frame,
	})
}

// PublishDocOp ships a merged CRDT op to the other instances so their
// replicas converge. Local members were already notified through the
// document store's listeners.
func (h *Hub) PublishDocOp(sessionID, projectID uuid.UUID, filePath string, op crdt.Op) {
	h.publish(clusterMessage{
		InstanceID: h.instanceID,
		SessionID:  sessionID.String(),
		Kind:       "docop",
		ProjectID:  projectID.String(),
		FilePath:   filePath,
		Op:         &op,
	})
}

func (h *Hub) deliverLocal(sessionID uuid.UUID, frame []byte, exceptConnID string, presence bool) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.clients[sessionID]))
	for client := range h.clients[sessionID] {
		if client.ConnID == exceptConnID {
			continue
		}
		members = append(members, client)
	}
	h.mu.RUnlock()

	for _, client := range members {
		if presence {
			client.enqueuePresence(frame)
		} else if !client.enqueue(frame) {
			// Queue stayed full past the deadline; the connection is
			// wedged. Drop it and let the client reconnect and resync.
			h.logger.Warn("Hub", "Outbound queue full, dropping connection", map[string]interface{}{
				"user_id":    client.UserID,
				"session_id": client.SessionID,
			})
			h.unregister <- client
		}
	}
}

func (h *Hub) publish(msg clusterMessage) {
	if h.rdb == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.rdb.Publish(context.Background(), clusterChannel, payload)
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Malformed cluster message", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		if payload.InstanceID == h.instanceID {
			continue // already delivered locally
		}

		sessionID, err := uuid.Parse(payload.SessionID)
		if err != nil {
			continue
		}

		switch payload.Kind {
		case "frame":
			h.deliverLocal(sessionID, payload.Frame, "", false)
		case "docop":
			if h.remoteOps == nil || payload.Op == nil {
				continue
			}
			projectID, err := uuid.Parse(payload.ProjectID)
			if err != nil {
				continue
			}
			// Merging notifies this instance's subscribers, which
			// fans the op out to its local members.
			if err := h.remoteOps.ApplyRemote(ctx, projectID, payload.FilePath, *payload.Op, "cluster"); err != nil {
				h.logger.Warn("Hub", "Remote op rejected", map[string]interface{}{
					"project_id": payload.ProjectID,
					"file_path":  payload.FilePath,
					"error":      err.Error(),
				})
			}
		}
	}
}
