// Package notify fans order events out to the realtime, push, email and SMS
// channels.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cakeshop-notifier/internal/audit"
	apperrors "cakeshop-notifier/internal/common/errors"
	"cakeshop-notifier/internal/common/logger"
	"cakeshop-notifier/internal/common/metrics"
	"cakeshop-notifier/internal/common/observability"
	"cakeshop-notifier/internal/email"
	"cakeshop-notifier/internal/models"
	"cakeshop-notifier/internal/realtime"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel/attribute"
)

// Channel names used in logs, metrics and spans.
const (
	ChannelRealTime = "realtime"
	ChannelEmail    = "email"
	ChannelPush     = "push"
	ChannelSMS      = "sms"
)

// NewOrder outcomes.
const (
	RealTimeSent           = "sent"
	RealTimeNoAdminsOnline = "no_admins_online"
)

const defaultChannelTimeout = 10 * time.Second

// PushSender delivers a payload to an actor's push subscription.
type PushSender interface {
	SendPush(ctx context.Context, actorID int64, payload []byte) error
}

// SMSSender publishes a text message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, text string) error
}

// AssignmentResult reports which channels delivered an order assignment.
type AssignmentResult struct {
	RealTime bool `json:"realTime"`
	Email    bool `json:"email"`
	Push     bool `json:"push"`
	SMS      bool `json:"sms"`
}

// NewOrderResult reports the admin broadcast for a new order.
type NewOrderResult struct {
	RealTimeNotification string `json:"realTimeNotification"`
	AdminCount           int    `json:"adminCount"`
}

// Options wires the dispatcher's collaborators. Email, SMS, Audit and
// Observability may be nil.
type Options struct {
	Registry       *realtime.Registry
	Push           PushSender
	Email          email.Sender
	Composer       *email.Composer
	SMS            SMSSender
	Audit          audit.Recorder
	Observability  *observability.Observability
	ChannelTimeout time.Duration
	Logger         logger.Logger
}

// Dispatcher delivers notifications over every available channel. Channel
// failures are isolated from each other and never surface as errors.
type Dispatcher struct {
	registry *realtime.Registry
	push     PushSender
	email    email.Sender
	composer *email.Composer
	sms      SMSSender
	audit    audit.Recorder
	obs      *observability.Observability
	timeout  time.Duration
	logger   logger.Logger
}

func NewDispatcher(opts Options) *Dispatcher {
	d := &Dispatcher{
		registry: opts.Registry,
		push:     opts.Push,
		email:    opts.Email,
		composer: opts.Composer,
		sms:      opts.SMS,
		audit:    opts.Audit,
		obs:      opts.Observability,
		timeout:  opts.ChannelTimeout,
		logger:   logger.ForComponent(opts.Logger, "dispatcher"),
	}
	if d.composer == nil {
		d.composer = email.NewComposer("")
	}
	if d.audit == nil {
		d.audit = audit.Nop{}
	}
	if d.obs == nil {
		d.obs = observability.NewNoop()
	}
	if d.timeout <= 0 {
		d.timeout = defaultChannelTimeout
	}
	return d
}

// NotifyOrderAssignment tells actor about a newly assigned order on every
// channel concurrently and waits for all of them.
func (d *Dispatcher) NotifyOrderAssignment(ctx context.Context, actor models.Actor, order models.Order, details *models.OrderDetails) AssignmentResult {
	start := time.Now()
	kind := models.TypeOrderAssigned
	ctx, span := d.obs.StartSpan(ctx, "notify.order_assigned",
		attribute.Int64("actor.id", actor.ID),
		attribute.Int64("order.id", order.ID),
	)
	defer span.End()

	msg := fmt.Sprintf("New order %s has been assigned to you", order.OrderNumber)
	n := models.NewNotification(kind, order, msg, details)

	var (
		result AssignmentResult
		wg     conc.WaitGroup
	)
	wg.Go(func() {
		result.RealTime = d.attempt(ctx, kind, ChannelRealTime, actor.ID, func(context.Context) (bool, error) {
			return d.registry.Delivery().Send(actor.ID, n), nil
		})
	})
	wg.Go(func() {
		result.Push = d.attempt(ctx, kind, ChannelPush, actor.ID, func(ctx context.Context) (bool, error) {
			return d.sendPush(ctx, actor.ID, n)
		})
	})
	wg.Go(func() {
		result.Email = d.attempt(ctx, kind, ChannelEmail, actor.ID, func(ctx context.Context) (bool, error) {
			return d.sendEmail(ctx, actor, order, details)
		})
	})
	wg.Go(func() {
		result.SMS = d.attempt(ctx, kind, ChannelSMS, actor.ID, func(ctx context.Context) (bool, error) {
			return d.sendSMS(ctx, actor, order)
		})
	})
	wg.Wait()

	span.SetAttributes(
		attribute.Bool("channel.realtime", result.RealTime),
		attribute.Bool("channel.push", result.Push),
		attribute.Bool("channel.email", result.Email),
		attribute.Bool("channel.sms", result.SMS),
	)

	elapsed := time.Since(start)
	delivered := result.RealTime || result.Push || result.Email || result.SMS
	d.obs.RecordDispatch(ctx, string(kind), elapsed, delivered)
	d.record(ctx, models.DispatchRecord{
		Kind:        kind,
		ActorID:     actor.ID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Channels:    models.ChannelFlags(result),
		DurationMs:  elapsed.Milliseconds(),
	})

	d.logger.Info("order assignment dispatched", map[string]interface{}{
		"actorId":     actor.ID,
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"realTime":    result.RealTime,
		"push":        result.Push,
		"email":       result.Email,
		"sms":         result.SMS,
		"durationMs":  elapsed.Milliseconds(),
	})
	return result
}

// NotifyOrderUpdate sends a reassignment or cancellation notice over the
// realtime channel only.
func (d *Dispatcher) NotifyOrderUpdate(ctx context.Context, actorID int64, order models.Order, message string, kind models.NotificationType) bool {
	if kind != models.TypeOrderCancelled {
		kind = models.TypeOrderUpdated
	}

	start := time.Now()
	ctx, span := d.obs.StartSpan(ctx, "notify."+string(kind),
		attribute.Int64("actor.id", actorID),
		attribute.Int64("order.id", order.ID),
	)
	defer span.End()

	n := models.NewNotification(kind, order, message, nil)
	sent := d.attempt(ctx, kind, ChannelRealTime, actorID, func(context.Context) (bool, error) {
		return d.registry.Delivery().Send(actorID, n), nil
	})
	span.SetAttributes(attribute.Bool("channel.realtime", sent))

	elapsed := time.Since(start)
	d.obs.RecordDispatch(ctx, string(kind), elapsed, sent)
	d.record(ctx, models.DispatchRecord{
		Kind:        kind,
		ActorID:     actorID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Channels:    models.ChannelFlags{RealTime: sent},
		DurationMs:  elapsed.Milliseconds(),
	})
	return sent
}

// NotifyNewOrder broadcasts a new order to every connected admin.
func (d *Dispatcher) NotifyNewOrder(ctx context.Context, order models.Order, details *models.OrderDetails) NewOrderResult {
	start := time.Now()
	kind := models.TypeNewOrder
	ctx, span := d.obs.StartSpan(ctx, "notify.new_order", attribute.Int64("order.id", order.ID))
	defer span.End()

	n := models.NewNotification(kind, order, fmt.Sprintf("New order %s received", order.OrderNumber), details)

	count := 0
	var pc panics.Catcher
	pc.Try(func() { count = d.registry.Admin().Broadcast(n) })
	if r := pc.Recovered(); r != nil {
		d.logger.Error("admin broadcast panicked", map[string]interface{}{"orderId": order.ID, "error": r.AsError()})
		count = 0
	}

	result := NewOrderResult{RealTimeNotification: RealTimeNoAdminsOnline, AdminCount: count}
	outcome := metrics.OutcomeUnavailable
	if count > 0 {
		result.RealTimeNotification = RealTimeSent
		outcome = metrics.OutcomeSent
	}
	metrics.DispatchTotal.WithLabelValues(string(kind), ChannelRealTime, outcome).Inc()
	span.SetAttributes(attribute.Int("admin.count", count))

	elapsed := time.Since(start)
	d.obs.RecordDispatch(ctx, string(kind), elapsed, count > 0)
	d.record(ctx, models.DispatchRecord{
		Kind:        kind,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Channels:    models.ChannelFlags{RealTime: count > 0},
		AdminCount:  count,
		DurationMs:  elapsed.Milliseconds(),
	})

	d.logger.Info("new order broadcast", map[string]interface{}{
		"orderId":    order.ID,
		"adminCount": count,
	})
	return result
}

type outcome struct {
	ok  bool
	err error
}

// attempt runs one channel under its own timeout. It converts panics and
// errors into false, logging only real failures. A channel that ignores ctx
// is abandoned once the timeout passes.
func (d *Dispatcher) attempt(ctx context.Context, kind models.NotificationType, channel string, actorID int64, fn func(context.Context) (bool, error)) bool {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		var (
			o  outcome
			pc panics.Catcher
		)
		pc.Try(func() { o.ok, o.err = fn(ctx) })
		if r := pc.Recovered(); r != nil {
			o = outcome{err: r.AsError()}
		}
		done <- o
	}()

	var o outcome
	select {
	case o = <-done:
	case <-ctx.Done():
		o = outcome{err: fmt.Errorf("%s channel gave up after %s: %w", channel, d.timeout, ctx.Err())}
	}
	ok, err := o.ok, o.err

	fields := map[string]interface{}{"channel": channel, "kind": string(kind), "actorId": actorID}
	switch {
	case err != nil && unavailable(err):
		ok = false
		d.logger.Debug("channel unavailable", withError(fields, err))
		metrics.DispatchTotal.WithLabelValues(string(kind), channel, metrics.OutcomeUnavailable).Inc()
	case err != nil:
		ok = false
		d.logger.Error("channel delivery failed", withError(fields, err))
		metrics.DispatchTotal.WithLabelValues(string(kind), channel, metrics.OutcomeFailed).Inc()
	case ok:
		metrics.DispatchTotal.WithLabelValues(string(kind), channel, metrics.OutcomeSent).Inc()
	default:
		metrics.DispatchTotal.WithLabelValues(string(kind), channel, metrics.OutcomeUnavailable).Inc()
	}
	return ok
}

func withError(fields map[string]interface{}, err error) map[string]interface{} {
	fields["error"] = err.Error()
	return fields
}

// unavailable reports whether err means the channel cannot reach the actor
// rather than that delivery broke.
func unavailable(err error) bool {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeNoActiveSubscription,
		apperrors.ErrCodePushDisabled,
		apperrors.ErrCodeEmailDisabled:
		return true
	}
	return false
}

func (d *Dispatcher) sendPush(ctx context.Context, actorID int64, n models.Notification) (bool, error) {
	if d.push == nil {
		return false, apperrors.NewPushDisabledError()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return false, err
	}
	if err := d.push.SendPush(ctx, actorID, payload); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Dispatcher) sendEmail(ctx context.Context, actor models.Actor, order models.Order, details *models.OrderDetails) (bool, error) {
	if d.email == nil {
		return false, apperrors.NewEmailDisabledError()
	}
	if actor.Email == "" {
		return false, nil
	}
	if err := d.email.Send(ctx, d.composer.OrderAssignment(actor, order, details)); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Dispatcher) sendSMS(ctx context.Context, actor models.Actor, order models.Order) (bool, error) {
	if d.sms == nil || actor.Phone == "" {
		return false, nil
	}
	text := fmt.Sprintf("Order %s has been assigned to you. Open the delivery panel for details.", order.OrderNumber)
	if err := d.sms.SendSMS(ctx, actor.Phone, text); err != nil {
		return false, apperrors.NewSMSSendFailedError(err)
	}
	return true, nil
}

// record writes the audit entry. It survives caller cancellation and only
// logs failures.
func (d *Dispatcher) record(ctx context.Context, rec models.DispatchRecord) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	if err := d.audit.Record(ctx, rec); err != nil {
		d.logger.Warn("failed to record dispatch", map[string]interface{}{
			"kind":  string(rec.Kind),
			"error": err.Error(),
		})
	}
}
