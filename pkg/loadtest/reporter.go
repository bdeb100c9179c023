package loadtest

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/informalsystems/mq-load-test/pkg/timeutils"
)

const summaryRuleWidth = 30

// Progress is emitted by a worker at every checkpoint (single mode) or batch
// flush (batch mode).
type Progress struct {
	WorkerID    int
	Sent        int64   // Messages sent so far by this worker.
	Target      int64   // The configured per-worker target (<= 0 if unbounded).
	MessageSize int     // Size of the most recent message body, in bytes.
	Rate        float64 // Messages per second since the worker started.
	BatchMode   bool
	BatchSize   int
}

// Reporter renders worker lifecycle events, progress and the final summary.
// Implementations must be safe for concurrent use by all workers.
type Reporter interface {
	WorkerStarted(id int)
	Progress(p Progress)
	WorkerFinished(id int)
	Summary(r RunResult)
}

// ConsoleReporter writes human-readable lines to an io.Writer. Each line is
// written atomically; lines from different workers interleave freely.
type ConsoleReporter struct {
	mtx sync.Mutex
	w   io.Writer
}

var _ Reporter = (*ConsoleReporter)(nil)

func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

func (r *ConsoleReporter) WorkerStarted(id int) {
	r.printf("Worker: %d, started and connected\n", id)
}

func (r *ConsoleReporter) Progress(p Progress) {
	if p.BatchMode {
		r.printf(
			"Worker: %d, sent: %d / %s messages total, in batches of %d, message size: %d bytes, speed: %.2f msg/sec\n",
			p.WorkerID, p.Sent, formatTarget(p.Target), p.BatchSize, p.MessageSize, p.Rate,
		)
		return
	}
	r.printf(
		"Worker: %d, sent: %d / %s messages, message size: %d bytes, speed: %.2f msg/sec\n",
		p.WorkerID, p.Sent, formatTarget(p.Target), p.MessageSize, p.Rate,
	)
}

func (r *ConsoleReporter) WorkerFinished(id int) {
	r.printf("Worker: %d, finished\n", id)
}

func (r *ConsoleReporter) Summary(res RunResult) {
	var sb strings.Builder
	sb.WriteString(strings.Repeat("-", summaryRuleWidth) + "\n")
	fmt.Fprintf(&sb, "Sent total messages:         %d\n", res.MessagesToSend)
	fmt.Fprintf(&sb, "Thread count:                %d\n", res.Threads)
	fmt.Fprintf(&sb, "Message size:                %d\n", res.MessageSize)
	fmt.Fprintf(&sb, "Batch size:                  %d\n", res.BatchSize)
	fmt.Fprintf(&sb, "Messages/sec:                %.2f\n", res.MessagesPerSecond())
	fmt.Fprintf(&sb, "Time spent:                  %s\n", timeutils.FormatHMS(res.Elapsed()))
	sb.WriteString(strings.Repeat("-", summaryRuleWidth) + "\n")
	r.printf("%s", sb.String())
}

func (r *ConsoleReporter) printf(format string, args ...interface{}) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	fmt.Fprintf(r.w, format, args...)
}

func formatTarget(target int64) string {
	if target <= 0 {
		return "unbounded"
	}
	return fmt.Sprintf("%d", target)
}
