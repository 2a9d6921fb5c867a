package handler

import (
	"os"

	"algo-collab-be/internal/pkg/logger"
	internalWS "algo-collab-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CollabHandler authenticates websocket handshakes and hands the
// connection to the gateway.
type CollabHandler struct {
	gateway *internalWS.Gateway
	logger  logger.ILogger
}

func NewCollabHandler(gateway *internalWS.Gateway, log logger.ILogger) *CollabHandler {
	return &CollabHandler{
		gateway: gateway,
		logger:  log,
	}
}

func (h *CollabHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/ws/session/:session_id", h.ServeWs)
}

// ServeWs validates the token and upgrades. Browsers cannot set headers
// on websocket requests, so a `token` query param is accepted too.
func (h *CollabHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token (Query 'token' or Header 'Authorization')"})
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		h.logger.Warn("CollabHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}
	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing user_id"})
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID format in token"})
	}

	c.Locals("user_id", userID.String())

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("CollabHandler", "Starting collaboration socket", map[string]interface{}{
				"user_id":    userID,
				"session_id": c.Params("session_id"),
			})
			h.gateway.ServeWs(conn)
			h.logger.Info("CollabHandler", "Collaboration socket closed", map[string]interface{}{
				"user_id": userID,
			})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}
