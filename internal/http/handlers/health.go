package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetctl/masterctl/internal/controller"
	"github.com/fleetctl/masterctl/internal/http/response"
)

type HealthHandler struct {
	svc *controller.Service
}

func NewHealthHandler(svc *controller.Service) *HealthHandler {
	return &HealthHandler{svc: svc}
}

// GET /healthcheck — liveness only, no dependency on the controller service.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /health — spec §6: { status, active_master, workers_healthy }.
func (h *HealthHandler) Health(c *gin.Context) {
	response.RespondOK(c, h.svc.Health())
}
