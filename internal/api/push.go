package api

import (
	"encoding/json"
	"io"
	"net/http"

	apperrors "cakeshop-notifier/internal/common/errors"
	"cakeshop-notifier/internal/common/validation"
	"cakeshop-notifier/internal/models"
	"cakeshop-notifier/pkg/registry"
)

type subscribeRequest struct {
	Subscription models.PushSubscription `json:"subscription"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, apperrors.NewInvalidSubscriptionError("unreadable body"))
		return
	}

	if schema := s.deps.Activities.InputSchema(registry.BodyPushSubscribe); schema != nil {
		result, err := validation.ValidateJSON(schema, string(body))
		if err != nil {
			writeError(w, apperrors.NewInvalidSubscriptionError(err.Error()))
			return
		}
		if !result.Valid {
			writeError(w, apperrors.NewInvalidSubscriptionError(result.Summary()))
			return
		}
	}

	var req subscribeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, apperrors.NewInvalidSubscriptionError(err.Error()))
		return
	}

	if err := s.deps.Push.Subscribe(r.Context(), claims.UserID, req.Subscription); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Push subscription saved",
	})
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	if err := s.deps.Push.Unsubscribe(r.Context(), claims.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Push subscription removed",
	})
}

func (s *Server) handleVAPIDKey(w http.ResponseWriter, _ *http.Request) {
	if !s.deps.Push.Enabled() {
		writeError(w, apperrors.NewPushDisabledError())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": s.deps.Push.PublicKey()})
}
