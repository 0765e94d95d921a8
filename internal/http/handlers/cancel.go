package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fleetctl/masterctl/internal/controller"
	"github.com/fleetctl/masterctl/internal/http/response"
	"github.com/fleetctl/masterctl/internal/platform/apierr"
)

type CancelHandler struct {
	svc *controller.Service
}

func NewCancelHandler(svc *controller.Service) *CancelHandler {
	return &CancelHandler{svc: svc}
}

// POST /cancel/:task_id
func (h *CancelHandler) Cancel(c *gin.Context) {
	taskID, err := strconv.ParseInt(c.Param("task_id"), 10, 64)
	if err != nil {
		response.RespondError(c, apierr.New(http.StatusBadRequest, "invalid_task_id", err))
		return
	}
	if err := h.svc.Cancel(c.Request.Context(), taskID); err != nil {
		response.RespondError(c, apierr.New(http.StatusInternalServerError, "cancel_failed", err))
		return
	}
	response.RespondOK(c, gin.H{"task_id": taskID, "cancelled": true})
}
