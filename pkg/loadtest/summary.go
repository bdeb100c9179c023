package loadtest

import (
	"time"

	"github.com/informalsystems/mq-load-test/internal/logging"
	"github.com/informalsystems/mq-load-test/pkg/timeutils"
)

// RunResult summarizes a completed load test run. Apart from the timing, all
// of its figures are echoed from the configuration: the summary assumes
// every worker fully met its target, whether or not it actually did.
type RunResult struct {
	RunID          string
	Started        time.Time
	Ended          time.Time
	MessagesToSend int64
	Threads        int
	MessageSize    int
	BatchSize      int
	BatchMode      bool
}

// Elapsed returns the wall-clock time between the start of the first worker
// and the completion of the last one.
func (r RunResult) Elapsed() time.Duration {
	return r.Ended.Sub(r.Started)
}

// MessagesPerSecond is the configured message target divided by the total
// elapsed time. It is an estimate, not a measured delivery rate.
func (r RunResult) MessagesPerSecond() float64 {
	secs := r.Elapsed().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.MessagesToSend) / secs
}

// Log will output the given run result using the specified logger.
func (r RunResult) Log(logger logging.Logger) {
	logger.Info(
		"Load test summary",
		"runID", r.RunID,
		"messages", r.MessagesToSend,
		"threads", r.Threads,
		"messagesPerSec", r.MessagesPerSecond(),
		"elapsed", timeutils.FormatHMS(r.Elapsed()),
	)
}
