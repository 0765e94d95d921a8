package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetctl/masterctl/internal/controller"
	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/http/response"
	"github.com/fleetctl/masterctl/internal/platform/apierr"
)

type ChatHandler struct {
	svc *controller.Service
}

func NewChatHandler(svc *controller.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type chatFileReq struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Summary string `json:"summary"`
}

type chatReq struct {
	Message        string        `json:"message" binding:"required"`
	ConversationID string        `json:"conversation_id"`
	UserID         string        `json:"user_id"`
	Files          []chatFileReq `json:"files"`
}

// POST /chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.New(http.StatusBadRequest, "invalid_request", err))
		return
	}

	files := make([]domain.FileSummary, len(req.Files))
	for i, f := range req.Files {
		files[i] = domain.FileSummary{Name: f.Name, Kind: f.Kind, Summary: f.Summary}
	}

	result, err := h.svc.Chat(c.Request.Context(), req.ConversationID, req.UserID, req.Message, files)
	if err != nil {
		if errors.Is(err, controller.ErrNotLeader) {
			response.RespondError(c, apierr.New(http.StatusServiceUnavailable, "not_leader", err))
			return
		}
		response.RespondError(c, apierr.New(http.StatusInternalServerError, "chat_failed", err))
		return
	}
	response.RespondOK(c, result)
}
