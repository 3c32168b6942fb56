// internal/workers/notification/notify-order-update/handler.go
package notifyorderupdate

import (
	"context"
	"encoding/json"
	"time"

	apperrors "cakeshop-notifier/internal/common/errors"
	"cakeshop-notifier/internal/common/logger"
	"cakeshop-notifier/internal/common/metrics"
	"cakeshop-notifier/internal/common/validation"
	"cakeshop-notifier/internal/models"
	"cakeshop-notifier/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = registry.TaskNotifyOrderUpdate
)

type Dispatcher interface {
	NotifyOrderUpdate(ctx context.Context, actorID int64, order models.Order, message string, kind models.NotificationType) bool
}

type Handler struct {
	config       *Config
	dispatcher   Dispatcher
	schema       map[string]interface{}
	errorHandler *apperrors.JobErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, dispatcher Dispatcher, reg *registry.ActivityRegistry, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		dispatcher:   dispatcher,
		schema:       reg.InputSchema(TaskType),
		errorHandler: apperrors.NewJobErrorHandler(l),
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	defer func() {
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job.Variables)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.CodeOf(err))).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, h.execute(ctx, input))
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	if h.schema != nil {
		result, err := validation.ValidateJSON(h.schema, variables)
		if err != nil {
			return nil, apperrors.NewInvalidNotificationInputError(err.Error())
		}
		if !result.Valid {
			return nil, apperrors.NewInvalidNotificationInputError(result.Summary())
		}
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidNotificationInputError("parse input: " + err.Error())
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) *Output {
	kind := models.TypeOrderUpdated
	if input.Kind == string(models.TypeOrderCancelled) {
		kind = models.TypeOrderCancelled
	}

	order := models.Order{ID: input.OrderID, OrderNumber: input.OrderNumber}
	sent := h.dispatcher.NotifyOrderUpdate(ctx, input.DeliveryBoyID, order, input.Message, kind)
	return &Output{Sent: sent}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err = cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) *Output {
	return h.execute(ctx, input)
}

func (h *Handler) ParseInput(variables string) (*Input, error) {
	return h.parseInput(variables)
}
