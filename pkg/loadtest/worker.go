package loadtest

import (
	"context"
	"fmt"
	"time"

	"github.com/informalsystems/mq-load-test/internal/logging"
	"github.com/informalsystems/mq-load-test/pkg/transport"
	"golang.org/x/time/rate"
)

const workerCloseTimeout = 10 * time.Second

// Worker owns a single transport connection and runs the send loop for one
// share of the load test.
type Worker struct {
	id         int
	cfg        *Config
	factory    transport.Factory
	reporter   Reporter
	metrics    *Metrics
	logger     logging.Logger
	limiter    *rate.Limiter                      // Nil when sending at full speed.
	newMessage func(time.Time) *transport.Message // Overridable for testing.
}

// workerState is only ever touched by the goroutine running the worker.
type workerState struct {
	count   int64 // Messages generated so far.
	sent    int64 // Messages successfully sent so far.
	start   time.Time
	batch   []*transport.Message
	lastErr error
}

// NewWorker creates a worker with the given 1-based ID. The configuration
// must already have been validated.
func NewWorker(id int, cfg *Config, factory transport.Factory, reporter Reporter, metrics *Metrics) *Worker {
	w := &Worker{
		id:       id,
		cfg:      cfg,
		factory:  factory,
		reporter: reporter,
		metrics:  metrics,
		logger:   logging.NewLogrusLogger(fmt.Sprintf("worker[%d]", id)),
		newMessage: func(now time.Time) *transport.Message {
			return NewMessage(cfg, now)
		},
	}
	if cfg.Rate > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	return w
}

// Run connects to the broker and sends messages until the configured target
// is reached, the context is cancelled, or a send fails. Only connection and
// send failures are returned; cancellation is not an error.
func (w *Worker) Run(ctx context.Context) error {
	defer w.reporter.WorkerFinished(w.id)

	params := w.cfg.transportParams(transport.NewClientID(fmt.Sprintf("w%d", w.id)))
	params.Logger = w.logger
	tr, err := w.factory.NewTransport(ctx, params)
	if err != nil {
		w.metrics.ConnectFailures.Inc()
		w.logger.Error("Failed to connect", "err", err)
		return NewError(ErrConnectionFailed, err, w.cfg.Transport)
	}
	w.metrics.WorkersActive.Inc()
	defer func() {
		w.metrics.WorkersActive.Dec()
		closeCtx, cancel := context.WithTimeout(context.Background(), workerCloseTimeout)
		defer cancel()
		if err := tr.Close(closeCtx); err != nil {
			w.logger.Error("Failed to close transport", "err", err)
		}
	}()

	w.logger.Debug("Connected", "clientID", params.ClientID)
	w.reporter.WorkerStarted(w.id)
	return w.sendLoop(ctx, tr)
}

func (w *Worker) sendLoop(ctx context.Context, tr transport.Transport) error {
	target := w.cfg.MessagesToSend
	st := &workerState{start: time.Now()}
	if w.cfg.BatchMode {
		st.batch = make([]*transport.Message, 0, w.cfg.BatchSize)
	}

	for ; !w.cfg.IsBounded() || st.count < target; st.count++ {
		if ctx.Err() != nil {
			w.logStop(st)
			return nil
		}
		if w.limiter != nil {
			// also fails early when the next slot lies beyond the context's deadline
			if err := w.limiter.Wait(ctx); err != nil {
				w.logStop(st)
				return nil
			}
		}

		msg := w.newMessage(time.Now())
		if w.cfg.BatchMode {
			st.batch = append(st.batch, msg)
			if len(st.batch) < w.cfg.BatchSize && !isLastOfBoundedRun(st.count, target) {
				continue
			}
			if err := w.sendBatch(ctx, tr, st.batch); err != nil {
				return w.fail(ctx, st, err)
			}
			st.sent += int64(len(st.batch))
			w.reportProgress(st, msg.Size())
			st.batch = st.batch[:0]
			continue
		}

		if err := w.sendOne(ctx, tr, msg); err != nil {
			return w.fail(ctx, st, err)
		}
		st.sent++
		if st.sent%int64(w.cfg.Checkpoint) == 0 {
			w.reportProgress(st, msg.Size())
		}
	}
	w.logger.Debug("Message target reached", "sent", st.sent)
	return nil
}

func (w *Worker) sendOne(ctx context.Context, tr transport.Transport, msg *transport.Message) error {
	startTime := time.Now()
	if err := tr.SendOne(ctx, msg); err != nil {
		return err
	}
	w.metrics.SendLatency.Observe(time.Since(startTime).Seconds())
	w.metrics.MessagesSent.Inc()
	w.metrics.BytesSent.Add(float64(msg.Size()))
	return nil
}

func (w *Worker) sendBatch(ctx context.Context, tr transport.Transport, msgs []*transport.Message) error {
	startTime := time.Now()
	if err := tr.SendBatch(ctx, msgs); err != nil {
		return err
	}
	w.metrics.SendLatency.Observe(time.Since(startTime).Seconds())
	w.metrics.BatchesSent.Inc()
	w.metrics.MessagesSent.Add(float64(len(msgs)))
	bytes := 0
	for _, msg := range msgs {
		bytes += msg.Size()
	}
	w.metrics.BytesSent.Add(float64(bytes))
	return nil
}

// fail records the first transport failure, which ends this worker's loop. A
// failure caused by the run being cancelled is treated as a stop instead.
func (w *Worker) fail(ctx context.Context, st *workerState, err error) error {
	if ctx.Err() != nil {
		w.logStop(st)
		return nil
	}
	w.metrics.SendFailures.Inc()
	st.lastErr = NewError(ErrTransportFailed, err, w.cfg.Transport)
	w.logger.Error("Send failed, stopping worker", "sent", st.sent, "err", err)
	return st.lastErr
}

// logStop records an early stop. Messages still in the batch buffer at that
// point are never sent.
func (w *Worker) logStop(st *workerState) {
	if len(st.batch) > 0 {
		w.logger.Warn("Stopped with unsent messages in batch buffer", "unsent", len(st.batch))
	}
	w.logger.Debug("Worker stopped", "sent", st.sent)
}

func (w *Worker) reportProgress(st *workerState, msgSize int) {
	var r float64
	if elapsed := time.Since(st.start).Seconds(); elapsed > 0 {
		r = float64(st.sent) / elapsed
	}
	w.reporter.Progress(Progress{
		WorkerID:    w.id,
		Sent:        st.sent,
		Target:      w.cfg.MessagesToSend,
		MessageSize: msgSize,
		Rate:        r,
		BatchMode:   w.cfg.BatchMode,
		BatchSize:   w.cfg.BatchSize,
	})
}

// isLastOfBoundedRun reports whether the message at zero-based index count is
// the final message of a bounded run, so a partial batch must be flushed.
func isLastOfBoundedRun(count, target int64) bool {
	return target > 0 && count == target-1
}
