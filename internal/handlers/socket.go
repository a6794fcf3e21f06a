package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"github.com/TeaToe17/jalev1/internal/database"
	"github.com/TeaToe17/jalev1/internal/moderation"
	"github.com/TeaToe17/jalev1/internal/models"
	"github.com/TeaToe17/jalev1/internal/realtime"
	"github.com/TeaToe17/jalev1/pkg/utils"
)

const (
	pongWait = 60 * time.Second

	// Inbound message cap per user, enforced via the Redis counter.
	chatMessageLimit  = 30
	chatMessageWindow = time.Minute
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// inboundFrame is the wire contract for client -> server frames.
type inboundFrame struct {
	Message string `json:"message"`
}

// HandleChatSocket upgrades the connection, authenticates the caller and
// joins it to the canonical pair-room with the peer from the URL.
// GET /ws/chat/:userId?token=...&product=...&owner=...
func (h *ChatHandler) HandleChatSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.Query("auth_token")
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	claims, err := utils.ValidateToken(token, h.jwtSecret)
	if err != nil {
		h.log.Warn().Err(err).Msg("socket connection rejected: invalid token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	senderID := claims.UserID

	peerID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil || peerID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid peer id"})
		return
	}

	// Optional marketplace context echoed into every outbound frame.
	productID := c.Query("product")
	ownerID := c.Query("owner")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	session := realtime.NewSession(senderID, ws)
	roomID := realtime.RoomID(senderID, peerID)
	h.hub.Join(roomID, session)
	h.log.Info().Int64("user_id", senderID).Str("room", roomID).Msg("websocket connected")

	defer func() {
		h.hub.Leave(session)
		session.Close(websocket.CloseNormalClosure, "bye")
		h.log.Info().Int64("user_id", senderID).Str("room", roomID).Msg("websocket disconnected")
	}()

	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}

		if !h.allowMessage(c.Request.Context(), senderID) {
			_ = session.Send([]byte(`{"error":"rate limit exceeded"}`))
			continue
		}

		h.handleInbound(session, roomID, senderID, peerID, productID, ownerID, frame.Message)
	}
}

// handleInbound moderates, broadcasts and persists one message. The
// broadcast is fire-and-forget; ledger writes run detached so a storage
// hiccup or a closing socket never takes back a delivered frame.
func (h *ChatHandler) handleInbound(session *realtime.Session, roomID string, senderID, peerID int64, productID, ownerID, content string) {
	if !h.gate.Approve(content) {
		content = moderation.Notice
		go h.recordViolation(senderID)
	}

	out := map[string]interface{}{
		"text":        content,
		"sender_id":   senderID,
		"receiver_id": peerID,
		"created_at":  time.Now().Format("15:04"),
	}
	if productID != "" && ownerID != "" {
		out["product_id"] = productID
		out["owner_id"] = ownerID
	}

	payload, err := json.Marshal(out)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode outbound frame")
		return
	}
	h.hub.Broadcast(roomID, payload)

	// A violation notice is broadcast but never persisted and never
	// counted as unread.
	if content == moderation.Notice {
		return
	}

	go h.persistMessage(senderID, peerID, content)
}

// persistMessage appends to the ledger and refreshes the preview. Runs
// with a background context: closing the connection must not cancel an
// in-flight write.
func (h *ChatHandler) persistMessage(senderID, peerID int64, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := h.ledger.Append(ctx, senderID, peerID, content); err != nil {
		h.log.Error().Err(err).Int64("sender_id", senderID).Int64("receiver_id", peerID).
			Msg("ledger append failed, message delivered live only")
		return
	}
	if err := h.ledger.UpsertPreview(ctx, senderID, peerID, content, time.Now()); err != nil {
		h.log.Error().Err(err).Int64("sender_id", senderID).Int64("receiver_id", peerID).
			Msg("preview upsert failed")
	}
}

// allowMessage consults the Redis counter; a Redis outage disables the
// limit rather than blocking chat.
func (h *ChatHandler) allowMessage(ctx context.Context, userID int64) bool {
	if h.redis == nil {
		return true
	}
	ok, err := database.CheckRateLimit(ctx, h.redis, fmt.Sprintf("chat:%d", userID), chatMessageLimit, chatMessageWindow)
	if err != nil {
		return true
	}
	return ok
}

func (h *ChatHandler) recordViolation(userID int64) {
	err := h.db.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("contact_violation_count", gorm.Expr("contact_violation_count + ?", 1)).Error
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to record contact violation")
	}
}
