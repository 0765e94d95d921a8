package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetctl/masterctl/internal/controller"
	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/http/response"
	"github.com/fleetctl/masterctl/internal/platform/apierr"
)

// WorkerHandler exposes the two endpoints a worker process itself calls to
// join the pool and stay live: POST /register and POST /heartbeat.
type WorkerHandler struct {
	svc *controller.Service
}

func NewWorkerHandler(svc *controller.Service) *WorkerHandler {
	return &WorkerHandler{svc: svc}
}

type registerReq struct {
	Name       string `json:"name" binding:"required"`
	Host       string `json:"host" binding:"required"`
	Port       int    `json:"port" binding:"required"`
	Capability string `json:"capability" binding:"required"`
}

// POST /register
func (h *WorkerHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.New(http.StatusBadRequest, "invalid_request", err))
		return
	}
	h.svc.RegisterWorker(domain.Worker{
		Name:       req.Name,
		Host:       req.Host,
		Port:       req.Port,
		Capability: domain.Capability(req.Capability),
	})
	response.RespondOK(c, gin.H{"registered": req.Name})
}

type heartbeatReq struct {
	Name        string  `json:"name" binding:"required"`
	Status      string  `json:"status"`
	CPU         float64 `json:"cpu"`
	Memory      float64 `json:"memory"`
	Temperature float64 `json:"temperature"`
}

// POST /heartbeat
func (h *WorkerHandler) Heartbeat(c *gin.Context) {
	var req heartbeatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.New(http.StatusBadRequest, "invalid_request", err))
		return
	}
	status := domain.WorkerStatus(req.Status)
	if status == "" {
		status = domain.WorkerIdle
	}
	h.svc.Heartbeat(req.Name, status, req.CPU, req.Memory, req.Temperature)
	response.RespondOK(c, gin.H{"acknowledged": req.Name})
}
