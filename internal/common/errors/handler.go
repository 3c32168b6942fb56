package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// JobErrorHandler reports notification job failures back to Zeebe.
type JobErrorHandler struct {
	logger Logger
}

// Logger is the subset of logger.Logger the handler needs; declared here to
// avoid an import cycle.
type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewJobErrorHandler(logger Logger) *JobErrorHandler {
	return &JobErrorHandler{logger: logger}
}

// HandleJobError fails the job with retries for retryable infrastructure
// errors and throws a BPMN error for everything else.
func (h *JobErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := normalizeError(err)
	bpmnErr := ConvertToBPMNError(stdErr)

	h.logger.Error("notification job failed", map[string]interface{}{
		"jobKey":    job.Key,
		"jobType":   job.Type,
		"errorCode": string(stdErr.Code),
		"category":  GetErrorCategory(stdErr.Code),
		"message":   bpmnErr.Message,
		"details":   stdErr.Details,
		"retryable": stdErr.Retryable,
	})

	if bpmnErr.Retries > 0 && job.Retries > 0 {
		h.failJob(ctx, client, job, bpmnErr)
		return
	}
	h.throwError(ctx, client, job, bpmnErr)
}

func normalizeError(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

func (h *JobErrorHandler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	retries := bpmnErr.Retries
	if int(job.Retries) < retries {
		retries = int(job.Retries)
	}

	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(int32(retries - 1)).
		ErrorMessage(bpmnErr.Message)

	if vars, err := json.Marshal(bpmnErr.ToErrorVariables()); err == nil {
		if withVars, err := cmd.VariablesFromString(string(vars)); err == nil {
			if _, err := withVars.Send(ctx); err != nil {
				h.logger.Error("failed to send fail job command", map[string]interface{}{"error": err.Error()})
			}
			return
		}
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send fail job command", map[string]interface{}{"error": err.Error()})
	}
}

func (h *JobErrorHandler) throwError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	if vars, err := json.Marshal(bpmnErr.ToErrorVariables()); err == nil {
		if withVars, err := cmd.VariablesFromString(string(vars)); err == nil {
			if _, err := withVars.Send(ctx); err != nil {
				h.logger.Error("failed to throw error", map[string]interface{}{"error": err.Error()})
			}
			return
		}
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{"error": err.Error()})
	}
}
