package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/TeaToe17/jalev1/internal/moderation"
	"github.com/TeaToe17/jalev1/internal/realtime"
	"github.com/TeaToe17/jalev1/internal/services"
	apperrors "github.com/TeaToe17/jalev1/pkg/errors"
)

// ChatHandler carries the injected collaborators for the conversation
// endpoints. No package-level state.
type ChatHandler struct {
	ledger     *services.Ledger
	dispatcher *services.Dispatcher
	hub        *realtime.Hub
	gate       moderation.Gate
	db         *gorm.DB
	redis      *redis.Client
	log        zerolog.Logger

	jwtSecret   string
	frontendURL string
}

func NewChatHandler(ledger *services.Ledger, dispatcher *services.Dispatcher, hub *realtime.Hub, gate moderation.Gate, db *gorm.DB, rdb *redis.Client, jwtSecret, frontendURL string, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		ledger:      ledger,
		dispatcher:  dispatcher,
		hub:         hub,
		gate:        gate,
		db:          db,
		redis:       rdb,
		log:         log,
		jwtSecret:   jwtSecret,
		frontendURL: frontendURL,
	}
}

// GetMessages returns the chronological history with a peer.
// GET /chat/messages?userId=...
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID := c.MustGet("userId").(int64)

	peerID, err := strconv.ParseInt(c.Query("userId"), 10, 64)
	if err != nil {
		c.Error(apperrors.BadRequest("userId required"))
		return
	}

	messages, err := h.ledger.Messages(c.Request.Context(), userID, peerID)
	if err != nil {
		c.Error(apperrors.Internal("Failed to fetch messages"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// GetPreviews returns the caller's conversation previews, newest first.
// GET /chat/previews
func (h *ChatHandler) GetPreviews(c *gin.Context) {
	userID := c.MustGet("userId").(int64)

	previews, err := h.ledger.Previews(c.Request.Context(), userID)
	if err != nil {
		c.Error(apperrors.Internal("Failed to fetch previews"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"previews": previews})
}

// MarkConversationRead marks every unread message between the caller and
// the peer, both directions.
// POST /chat/read/:peerId
func (h *ChatHandler) MarkConversationRead(c *gin.Context) {
	userID := c.MustGet("userId").(int64)

	peerID, err := strconv.ParseInt(c.Param("peerId"), 10, 64)
	if err != nil {
		c.Error(apperrors.BadRequest("invalid peer id"))
		return
	}

	count, err := h.ledger.MarkConversationRead(c.Request.Context(), userID, peerID)
	if err != nil {
		c.Error(apperrors.Internal("Failed to mark read"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated_count": count})
}

// SendNotification is the ad-hoc notify trigger retained for the web
// client: it pushes "New Message" for a message the receiver may have
// missed. Delivery failure is not an error at this boundary.
// POST /chat/notify
func (h *ChatHandler) SendNotification(c *gin.Context) {
	var req struct {
		ReceiverID int64  `json:"receiverId" binding:"required"`
		Message    string `json:"message" binding:"required"`
		SenderID   int64  `json:"senderId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.BadRequest("Invalid request"))
		return
	}

	url := fmt.Sprintf("%s/chat/%d", h.frontendURL, req.SenderID)
	result := h.dispatcher.Notify(c.Request.Context(), req.ReceiverID, "New Message", req.Message, url)

	c.JSON(http.StatusOK, gin.H{"sent": result.Sent, "channel": result.Channel})
}
