package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetctl/masterctl/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error     APIError `json:"error"`
	TraceID   string   `json:"trace_id,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// RespondError writes apiErr's status/code/message as the §6 error envelope,
// stamping in the trace/request IDs AttachTraceContext already attached to
// this request.
func RespondError(c *gin.Context, apiErr *apierr.Error) {
	status := apiErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	traceID := c.GetString("trace_id")
	requestID := c.GetString("request_id")
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: apiErr.Error(),
			Code:    apiErr.Code,
		},
		TraceID:   traceID,
		RequestID: requestID,
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
