package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/pkg/logger"
)

const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func respondUnauthorized(w http.ResponseWriter) {
	respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
		case errors.Is(err, io.EOF):
			respondError(w, http.StatusBadRequest, "invalid_request", "request body is required")
		default:
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		}
		return false
	}
	return true
}

// handleError turns service errors into HTTP responses. Application errors
// carry their gRPC status; anything else is an internal error.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	if errors.Is(err, context.DeadlineExceeded) {
		log.Warn("request timed out", zap.String("path", r.URL.Path), zap.Error(err))
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
		return
	}

	var (
		st     *status.Status
		appErr *domain.Error
	)
	if errors.As(err, &appErr) {
		st = appErr.GRPCStatus()
	} else if s, ok := status.FromError(err); ok {
		st = s
	} else {
		log.Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	httpStatus, code := httpStatusFor(st.Code())
	if appErr != nil {
		code = string(appErr.Kind)
	}
	if errors.Is(err, domain.ErrIllegalTransition) {
		httpStatus, code = http.StatusConflict, domain.ErrIllegalTransition.Error()
	}

	if httpStatus >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", httpStatus),
			zap.Error(err),
		)
	}
	respondError(w, httpStatus, code, st.Message())
}

func httpStatusFor(c codes.Code) (int, string) {
	switch c {
	case codes.InvalidArgument:
		return http.StatusBadRequest, "invalid_argument"
	case codes.NotFound:
		return http.StatusNotFound, "not_found"
	case codes.AlreadyExists:
		return http.StatusConflict, "already_exists"
	case codes.Aborted:
		return http.StatusConflict, "conflict"
	case codes.Unauthenticated:
		return http.StatusUnauthorized, "unauthenticated"
	case codes.PermissionDenied:
		return http.StatusForbidden, "permission_denied"
	case codes.FailedPrecondition:
		// only unpaid gateway orders use this code
		return http.StatusPaymentRequired, "failed_precondition"
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests, "rate_limit_exceeded"
	case codes.Unavailable:
		return http.StatusServiceUnavailable, "service_unavailable"
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
