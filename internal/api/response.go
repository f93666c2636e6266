package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"finge/pkg/finge"
)

// ErrorResponse represents an error API response with structured information.
type ErrorResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeErrorResponse writes an error response whose HTTP status follows the
// error's code. Errors without a code are reported as internal errors.
func writeErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	response := ErrorResponse{
		Code:      http.StatusInternalServerError,
		Message:   err.Error(),
		ErrorCode: string(finge.ErrCodeInternal),
		RequestID: middleware.GetReqID(r.Context()),
	}

	var fingeErr *finge.Error
	if errors.As(err, &fingeErr) {
		response.ErrorCode = string(fingeErr.Code)
		response.Code = mapErrorCodeToHTTPStatus(fingeErr.Code)
	}

	if lw, ok := w.(*loggingResponseWriter); ok {
		lw.SetErrorMessage(response.Message)
		lw.SetErrorCode(response.ErrorCode)
	}
	writeJSON(w, response.Code, response)
}

// mapErrorCodeToHTTPStatus maps business error codes to HTTP status codes.
func mapErrorCodeToHTTPStatus(code finge.ErrorCode) int {
	switch code {
	case finge.ErrCodeInvalidInput, finge.ErrCodeValidation, finge.ErrCodeDegenerateVector:
		return http.StatusBadRequest
	case finge.ErrCodeNotFound:
		return http.StatusNotFound
	case finge.ErrCodeNotPublic:
		return http.StatusUnprocessableEntity
	case finge.ErrCodeUpstream:
		return http.StatusBadGateway
	case finge.ErrCodeUnsupported:
		return http.StatusNotImplemented
	case finge.ErrCodeDatabase, finge.ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
