package handlers

import (
	"net/http"

	"notifyhub/services/dispatch"
	"notifyhub/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler serves the administrative publish endpoint.
type AdminHandler struct {
	Dispatch dispatch.DispatchService
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(svc dispatch.DispatchService) *AdminHandler {
	return &AdminHandler{Dispatch: svc}
}

// PublishNotificationHandler accepts a notification and hands it to the
// dispatcher; delivery to the audience happens asynchronously.
func (h *AdminHandler) PublishNotificationHandler(c *gin.Context) {
	logger := getLogger(c)
	adminID, ok := sessionUserID(c)
	if !ok {
		return
	}

	var input dispatch.PublishInput
	if err := c.ShouldBindJSON(&input); err != nil {
		logger.Error("Invalid publish request", zap.Error(err))
		utils.JSONError(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	n, err := h.Dispatch.Publish(c.Request.Context(), adminID, input)
	if err != nil {
		logger.Error("Failed to publish notification", zap.Error(err))
		utils.JSONError(c, http.StatusUnprocessableEntity, "Failed to publish notification", err.Error())
		return
	}

	c.JSON(http.StatusAccepted, n)
}
