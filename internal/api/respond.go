package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"cakeshop-notifier/internal/common/auth"
	apperrors "cakeshop-notifier/internal/common/errors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	msg := err.Error()
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		msg = stdErr.Message
		if stdErr.Details != "" && code != apperrors.ErrCodeInternal {
			msg += ": " + stdErr.Details
		}
	}
	writeJSON(w, statusFor(code), errorBody{Code: string(code), Message: msg})
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeInvalidSubscription, apperrors.ErrCodeInvalidNotificationIn:
		return http.StatusBadRequest
	case apperrors.ErrCodeActorNotFound, apperrors.ErrCodeNoActiveSubscription:
		return http.StatusNotFound
	case apperrors.ErrCodePushDisabled, apperrors.ErrCodeEmailDisabled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type claimsKey struct{}

func claimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return c
}

// requireRole verifies the bearer token and stores its claims on the
// request context.
func (s *Server) requireRole(role string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.deps.Verifier.VerifyRole(auth.BearerToken(r), role)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("handler panicked", map[string]interface{}{
					"path":  r.URL.Path,
					"panic": rec,
				})
				writeError(w, apperrors.NewInternalError(fmt.Errorf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
