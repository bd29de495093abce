package handlers

import (
	"net/http"

	deviceRepo "notifyhub/database/repository/device"
	"notifyhub/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DeviceHandler manages the FCM token a session registers for device alerts.
type DeviceHandler struct {
	Repo deviceRepo.DeviceRepository
}

// NewDeviceHandler creates the device handler.
func NewDeviceHandler(repo deviceRepo.DeviceRepository) *DeviceHandler {
	return &DeviceHandler{Repo: repo}
}

// UpdateFCMTokenHandler stores the caller's device push token. An empty
// token unregisters the device.
func (h *DeviceHandler) UpdateFCMTokenHandler(c *gin.Context) {
	logger := getLogger(c)
	userID, ok := sessionUserID(c)
	if !ok {
		return
	}

	var req struct {
		FCMToken string `json:"fcmToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Invalid FCM token request", zap.Error(err))
		utils.JSONError(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	if err := h.Repo.SetFCMToken(c.Request.Context(), userID, req.FCMToken); err != nil {
		logger.Error("Failed to update FCM token", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to update FCM token", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
