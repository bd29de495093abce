package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"notifyhub/services/gateway"
	"notifyhub/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NotificationHandler serves the notification gateway over HTTP.
type NotificationHandler struct {
	Gateway      gateway.Gateway
	DefaultLimit int
}

// NewNotificationHandler creates a handler around the gateway.
func NewNotificationHandler(gw gateway.Gateway, defaultLimit int) *NotificationHandler {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	return &NotificationHandler{Gateway: gw, DefaultLimit: defaultLimit}
}

// sessionUserID extracts the authenticated user id placed by the auth
// middleware. Returns false after writing the error response.
func sessionUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		utils.JSONError(c, http.StatusUnauthorized, "Unauthorized", "no session in context")
		return "", false
	}
	id, ok := userID.(string)
	if !ok || id == "" {
		utils.JSONError(c, http.StatusUnauthorized, "Unauthorized", "invalid session in context")
		return "", false
	}
	return id, true
}

// GetUnreadCountHandler returns the caller's unread notification count.
func (h *NotificationHandler) GetUnreadCountHandler(c *gin.Context) {
	logger := getLogger(c)
	userID, ok := sessionUserID(c)
	if !ok {
		return
	}

	count, err := h.Gateway.FetchUnreadCount(c.Request.Context(), userID)
	if err != nil {
		logger.Error("Failed to fetch unread count", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to fetch unread count", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// ListNotificationsHandler returns the caller's notifications, newest first.
func (h *NotificationHandler) ListNotificationsHandler(c *gin.Context) {
	logger := getLogger(c)
	userID, ok := sessionUserID(c)
	if !ok {
		return
	}

	limit := h.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.JSONError(c, http.StatusBadRequest, "Invalid limit", raw)
			return
		}
		limit = parsed
	}

	records, err := h.Gateway.FetchList(c.Request.Context(), userID, limit)
	if err != nil {
		logger.Error("Failed to list notifications", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to list notifications", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": records})
}

// MarkReadHandler marks one delivery row read. The row must belong to the
// caller.
func (h *NotificationHandler) MarkReadHandler(c *gin.Context) {
	logger := getLogger(c)
	userID, ok := sessionUserID(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if id == "" {
		utils.JSONError(c, http.StatusBadRequest, "Missing notification id", "")
		return
	}

	err := h.Gateway.MarkOneRead(c.Request.Context(), userID, id)
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		utils.JSONError(c, http.StatusNotFound, "Notification not found", id)
	case errors.Is(err, gateway.ErrNotOwner):
		// Logged server-side; the caller sees a generic forbidden.
		logger.Warn("Mark read on foreign notification",
			zap.String("userID", userID), zap.String("id", id))
		utils.JSONError(c, http.StatusForbidden, "Forbidden", "")
	case err != nil:
		logger.Error("Failed to mark notification read", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to mark notification read", "")
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// MarkAllReadHandler marks every unread row of the caller read.
func (h *NotificationHandler) MarkAllReadHandler(c *gin.Context) {
	logger := getLogger(c)
	userID, ok := sessionUserID(c)
	if !ok {
		return
	}

	if err := h.Gateway.MarkAllRead(c.Request.Context(), userID); err != nil {
		logger.Error("Failed to mark all notifications read", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to mark all read", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ClearReadHandler deletes the caller's read rows. Destructive and
// irreversible, so the client must send confirm=true explicitly.
func (h *NotificationHandler) ClearReadHandler(c *gin.Context) {
	logger := getLogger(c)
	userID, ok := sessionUserID(c)
	if !ok {
		return
	}

	if c.Query("confirm") != "true" {
		utils.JSONError(c, http.StatusBadRequest, "Confirmation required",
			"clearing read notifications is irreversible; pass confirm=true")
		return
	}

	if err := h.Gateway.ClearRead(c.Request.Context(), userID); err != nil {
		logger.Error("Failed to clear read notifications", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to clear read notifications", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// StreamHandler bridges the realtime channel to the browser as server-sent
// events. The subscription is released when the client disconnects.
func (h *NotificationHandler) StreamHandler(c *gin.Context) {
	logger := getLogger(c)
	userID, ok := sessionUserID(c)
	if !ok {
		return
	}

	handle, err := h.Gateway.Subscribe(c.Request.Context(), userID)
	if err != nil {
		logger.Error("Failed to open notification stream", zap.Error(err))
		utils.JSONError(c, http.StatusServiceUnavailable, "Failed to open notification stream", "")
		return
	}
	defer func() {
		_ = h.Gateway.Unsubscribe(handle)
	}()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case rec, open := <-handle.Records():
			if !open {
				return false
			}
			c.SSEvent("notification", rec)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
