// internal/workers/notification/notify-order-assignment/handler.go
package notifyorderassignment

import (
	"context"
	"encoding/json"
	"time"

	apperrors "cakeshop-notifier/internal/common/errors"
	"cakeshop-notifier/internal/common/logger"
	"cakeshop-notifier/internal/common/metrics"
	"cakeshop-notifier/internal/common/validation"
	"cakeshop-notifier/internal/directory"
	"cakeshop-notifier/internal/models"
	"cakeshop-notifier/internal/notify"
	"cakeshop-notifier/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = registry.TaskNotifyOrderAssignment
)

// Dispatcher is the part of notify.Dispatcher this worker uses.
type Dispatcher interface {
	NotifyOrderAssignment(ctx context.Context, actor models.Actor, order models.Order, details *models.OrderDetails) notify.AssignmentResult
}

type Handler struct {
	config       *Config
	dispatcher   Dispatcher
	directory    directory.Directory
	schema       map[string]interface{}
	errorHandler *apperrors.JobErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, dispatcher Dispatcher, dir directory.Directory, reg *registry.ActivityRegistry, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		dispatcher:   dispatcher,
		directory:    dir,
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

	output := h.execute(ctx, input)
	h.completeJob(ctx, client, job, output)
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

// execute resolves the actor and dispatches. A failed lookup only costs the
// email and SMS channels.
func (h *Handler) execute(ctx context.Context, input *Input) *Output {
	actor, err := h.directory.Lookup(ctx, input.DeliveryBoyID)
	if err != nil {
		h.logger.Warn("delivery actor lookup failed, dispatching without contact details", map[string]interface{}{
			"deliveryBoyId": input.DeliveryBoyID,
			"error":         err.Error(),
		})
		actor = models.Actor{ID: input.DeliveryBoyID}
	}

	order := models.Order{ID: input.OrderID, OrderNumber: input.OrderNumber, Status: input.OrderStatus}
	result := h.dispatcher.NotifyOrderAssignment(ctx, actor, order, input.OrderDetails)

	return &Output{
		RealTime: result.RealTime,
		Email:    result.Email,
		Push:     result.Push,
		SMS:      result.SMS,
	}
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

// Execute runs the job body for already parsed input.
func (h *Handler) Execute(ctx context.Context, input *Input) *Output {
	return h.execute(ctx, input)
}

// ParseInput validates raw job variables.
func (h *Handler) ParseInput(variables string) (*Input, error) {
	return h.parseInput(variables)
}
