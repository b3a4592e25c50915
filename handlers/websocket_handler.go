package handlers

import (
	"fmt"

	"github.com/dancehub/marketplace/websocket"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

type wsAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// ServeNotifications authenticates the socket with a first {"type":"auth"}
// message, then keeps it registered with the hub until the client leaves.
func (h *Handler) ServeNotifications(c *websocketcontrib.Conn) {
	var auth wsAuthMessage
	if err := c.ReadJSON(&auth); err != nil || auth.Type != "auth" {
		h.Log.WithError(err).Debug("websocket auth message missing")
		_ = c.WriteJSON(fiber.Map{"error": "Invalid or missing auth message"})
		_ = c.Close()
		return
	}

	userID, err := h.userFromToken(auth.Token)
	if err != nil {
		h.Log.WithError(err).Debug("websocket auth failed")
		_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
		_ = c.Close()
		return
	}

	client := &websocket.Client{UserID: userID, Conn: c}
	h.Hub.Register(client)
	defer func() {
		h.Hub.Unregister(client)
		_ = c.Close()
	}()
	_ = c.WriteJSON(fiber.Map{"type": "ready"})

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if !websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseNormalClosure) {
				h.Log.WithError(err).WithField("user_id", userID).Debug("websocket read error")
			}
			return
		}
	}
}

func (h *Handler) userFromToken(raw string) (uuid.UUID, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.JWTSecret), nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid token claims")
	}
	raw, _ = claims["user_id"].(string)
	return uuid.Parse(raw)
}
