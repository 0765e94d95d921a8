package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/fleetctl/masterctl/internal/controller"
	"github.com/fleetctl/masterctl/internal/http/response"
)

type StatsHandler struct {
	svc *controller.Service
}

func NewStatsHandler(svc *controller.Service) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// GET /stats
func (h *StatsHandler) Stats(c *gin.Context) {
	response.RespondOK(c, h.svc.Stats())
}
