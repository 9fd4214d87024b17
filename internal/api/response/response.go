package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
)

// Meta contains response metadata.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
}

// SuccessResponse is the standard success response format.
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// JSON writes a success response with data.
func JSON(w http.ResponseWriter, status int, data any) {
	resp := SuccessResponse{
		Data: data,
		Meta: Meta{Timestamp: time.Now().UTC()},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// Error writes an error response. Coded errors surface their code and
// message; everything else is reported as INTERNAL_ERROR.
func Error(w http.ResponseWriter, status int, err error) {
	detail := ErrorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		detail.Code = coreErr.Code
		detail.Message = coreErr.Message
		if coreErr.Cause != nil {
			detail.Cause = coreErr.Cause.Error()
		}
	}

	resp := ErrorResponse{Error: detail}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// StatusFor maps a coded error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNoData), errors.Is(err, core.ErrInsufficientData):
		return http.StatusNotFound
	case errors.Is(err, core.ErrRiskRejected):
		return http.StatusConflict
	case errors.Is(err, core.ErrConfigInvalid), errors.Is(err, core.ErrConfigMissing):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrProviderTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
