// internal/common/camunda/worker.go
package camunda

import (
	"sync"

	"cakeshop-notifier/internal/common/config"
	"cakeshop-notifier/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// JobHandlerFunc matches the Zeebe handler signature.
type JobHandlerFunc func(client worker.JobClient, job entities.Job)

// WorkerPool owns the opened job workers so shutdown can close them.
type WorkerPool struct {
	client  *Client
	log     logger.Logger
	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewWorkerPool(client *Client, log logger.Logger) *WorkerPool {
	return &WorkerPool{
		client:  client,
		log:     logger.ForComponent(log, "camunda"),
		workers: make(map[string]worker.JobWorker),
	}
}

// Start opens a job worker for taskType unless wcfg disables it.
func (p *WorkerPool) Start(taskType string, wcfg config.WorkerConfig, handler JobHandlerFunc) {
	if !wcfg.Enabled {
		p.log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return
	}

	jw := p.client.GetClient().NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	p.mu.Lock()
	p.workers[taskType] = jw
	p.mu.Unlock()

	p.log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
}

// Close stops every worker and waits for in-flight jobs.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for taskType, jw := range p.workers {
		jw.Close()
		jw.AwaitClose()
		p.log.Info("worker stopped", map[string]interface{}{"taskType": taskType})
	}
	p.workers = map[string]worker.JobWorker{}
}
