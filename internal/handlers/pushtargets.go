package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TeaToe17/jalev1/internal/models"
	apperrors "github.com/TeaToe17/jalev1/pkg/errors"
)

// RegisterPushTarget stores a delivery endpoint for the caller: a direct
// FCM token, a browser push subscription, or both. Re-registering an
// existing endpoint is tolerated.
// POST /push/targets
func (h *ChatHandler) RegisterPushTarget(c *gin.Context) {
	userID := c.MustGet("userId").(int64)

	var req struct {
		Token        string `json:"token"`
		Subscription string `json:"subscription"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || (req.Token == "" && req.Subscription == "") {
		c.Error(apperrors.BadRequest("token or subscription required"))
		return
	}

	var existing int64
	query := h.db.WithContext(c.Request.Context()).Model(&models.PushTarget{}).Where("user_id = ?", userID)
	if req.Token != "" {
		query = query.Where("token = ?", req.Token)
	} else {
		query = query.Where("subscription = ?", req.Subscription)
	}
	if err := query.Count(&existing).Error; err == nil && existing > 0 {
		c.JSON(http.StatusOK, gin.H{"message": "Target already registered"})
		return
	}

	target := models.PushTarget{
		UserID:       userID,
		Token:        req.Token,
		Subscription: req.Subscription,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&target).Error; err != nil {
		c.Error(apperrors.Internal("Failed to register push target"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"target": target})
}

// DeletePushTargets removes every registered endpoint for the caller.
// DELETE /push/targets
func (h *ChatHandler) DeletePushTargets(c *gin.Context) {
	userID := c.MustGet("userId").(int64)

	res := h.db.WithContext(c.Request.Context()).Where("user_id = ?", userID).Delete(&models.PushTarget{})
	if res.Error != nil {
		c.Error(apperrors.Internal("Failed to delete push targets"))
		return
	}
	if res.RowsAffected == 0 {
		c.Error(apperrors.NotFound("No push targets found"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Targets deleted successfully"})
}
