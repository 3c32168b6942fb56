package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	apperrors "cakeshop-notifier/internal/common/errors"
	"cakeshop-notifier/internal/common/logger"
	"cakeshop-notifier/internal/common/metrics"
	"cakeshop-notifier/internal/common/validation"
	"cakeshop-notifier/internal/models"
)

// Service combines the subscription store with the push transport.
type Service struct {
	store     Store
	transport Transport
	publicKey string
	logger    logger.Logger
}

// NewService builds the push service. A nil transport disables delivery;
// subscriptions are still stored.
func NewService(store Store, transport Transport, publicKey string, log logger.Logger) *Service {
	l := logger.ForComponent(log, "push")
	if transport == nil {
		l.Warn("VAPID keys not configured, push notifications disabled", nil)
	}
	return &Service{
		store:     store,
		transport: transport,
		publicKey: publicKey,
		logger:    l,
	}
}

// Enabled reports whether push delivery is configured.
func (s *Service) Enabled() bool { return s.transport != nil }

// PublicKey returns the VAPID public key browsers subscribe with.
func (s *Service) PublicKey() string { return s.publicKey }

// Subscribe validates and stores sub as the actor's only active subscription.
func (s *Service) Subscribe(ctx context.Context, actorID int64, sub models.PushSubscription) error {
	if !validation.ValidatePushEndpoint(sub.Endpoint) {
		return apperrors.NewInvalidSubscriptionError("endpoint must be an https URL")
	}
	if sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return apperrors.NewInvalidSubscriptionError("keys.p256dh and keys.auth are required")
	}
	if err := s.store.Save(ctx, actorID, sub); err != nil {
		return err
	}
	s.logger.Info("push subscription saved", map[string]interface{}{"actorId": actorID})
	return nil
}

// Unsubscribe deactivates the actor's subscription.
func (s *Service) Unsubscribe(ctx context.Context, actorID int64) error {
	if err := s.store.Deactivate(ctx, actorID); err != nil {
		return err
	}
	s.logger.Info("push subscription deactivated", map[string]interface{}{"actorId": actorID, "reason": "unsubscribe"})
	return nil
}

// SendPush delivers payload to the actor's active subscription. It fails
// fast with NO_ACTIVE_SUBSCRIPTION without touching the transport, and
// deactivates the subscription when the push service reports it gone.
func (s *Service) SendPush(ctx context.Context, actorID int64, payload []byte) error {
	if s.transport == nil {
		return apperrors.NewPushDisabledError()
	}

	rec, err := s.store.Get(ctx, actorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperrors.NewNoActiveSubscriptionError(actorID)
		}
		return err
	}

	status, err := s.transport.Deliver(ctx, rec.Subscription(), payload)
	if err != nil {
		return apperrors.NewPushDeliveryFailedError(actorID, err)
	}

	switch {
	case status == http.StatusGone || status == http.StatusNotFound:
		if err := s.store.Deactivate(ctx, actorID); err != nil {
			s.logger.Error("failed to deactivate gone subscription", map[string]interface{}{"actorId": actorID, "error": err})
		} else {
			metrics.PushSubscriptionsDeactivated.Inc()
			s.logger.Info("push subscription deactivated", map[string]interface{}{"actorId": actorID, "reason": "gone", "status": status})
		}
		return apperrors.NewSubscriptionGoneError(actorID, status)
	case status >= 400:
		return apperrors.NewPushDeliveryFailedError(actorID, fmt.Errorf("push service returned status %d", status))
	}
	return nil
}
