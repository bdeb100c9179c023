package loadtest

import (
	"context"
	"sync"
	"time"

	"github.com/informalsystems/mq-load-test/internal/logging"
	"github.com/informalsystems/mq-load-test/pkg/transport"
	uuid "github.com/satori/go.uuid"
)

// Orchestrator fans a load test out across a fixed number of independent
// workers and waits for all of them to finish.
type Orchestrator struct {
	cfg      *Config
	factory  transport.Factory
	reporter Reporter
	metrics  *Metrics
	logger   logging.Logger

	newWorker func(id int) *Worker
}

// NewOrchestrator creates an orchestrator for the given validated
// configuration.
func NewOrchestrator(cfg *Config, factory transport.Factory, reporter Reporter, metrics *Metrics) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		factory:  factory,
		reporter: reporter,
		metrics:  metrics,
		logger:   logging.NewLogrusLogger("orchestrator"),
	}
	o.newWorker = func(id int) *Worker {
		return NewWorker(id, o.cfg, o.factory, o.reporter, o.metrics)
	}
	return o
}

// Run launches exactly cfg.Threads workers and blocks until every one of them
// has finished, successfully or not. A failing worker never stops its
// siblings. Only the context can stop the run early.
func (o *Orchestrator) Run(ctx context.Context) RunResult {
	res := RunResult{
		RunID:          uuid.NewV4().String(),
		MessagesToSend: o.cfg.MessagesToSend,
		Threads:        o.cfg.Threads,
		MessageSize:    o.cfg.MessageSize,
		BatchSize:      o.cfg.BatchSize,
		BatchMode:      o.cfg.BatchMode,
	}
	logger := o.logger.With("runID", res.RunID)
	logger.Info("Starting load test", "threads", o.cfg.Threads, "transport", o.cfg.Transport)

	errs := make([]error, o.cfg.Threads)
	var wg sync.WaitGroup
	res.Started = time.Now()
	for i := 0; i < o.cfg.Threads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = o.newWorker(i + 1).Run(ctx)
		}(i)
	}
	wg.Wait()
	res.Ended = time.Now()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		logger.Warn("Some workers failed", "failed", failed, "threads", o.cfg.Threads)
	}
	logger.Info("All workers finished", "elapsed", res.Elapsed())
	return res
}
