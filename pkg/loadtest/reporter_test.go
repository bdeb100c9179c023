package loadtest_test

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/informalsystems/mq-load-test/pkg/loadtest"
	"github.com/stretchr/testify/require"
)

func TestConsoleReporterLines(t *testing.T) {
	var buf bytes.Buffer
	r := loadtest.NewConsoleReporter(&buf)
	r.WorkerStarted(2)
	r.Progress(loadtest.Progress{WorkerID: 2, Sent: 1000, Target: 5000, MessageSize: 1041, Rate: 512.346})
	r.Progress(loadtest.Progress{WorkerID: 2, Sent: 200, Target: 0, MessageSize: 1041, Rate: 10, BatchMode: true, BatchSize: 100})
	r.WorkerFinished(2)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Equal(t, []string{
		"Worker: 2, started and connected",
		"Worker: 2, sent: 1000 / 5000 messages, message size: 1041 bytes, speed: 512.35 msg/sec",
		"Worker: 2, sent: 200 / unbounded messages total, in batches of 100, message size: 1041 bytes, speed: 10.00 msg/sec",
		"Worker: 2, finished",
	}, lines)
}

func TestConsoleReporterSummary(t *testing.T) {
	var buf bytes.Buffer
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	loadtest.NewConsoleReporter(&buf).Summary(loadtest.RunResult{
		Started:        start,
		Ended:          start.Add(time.Hour + 2*time.Minute + 5*time.Second),
		MessagesToSend: 7450,
		Threads:        4,
		MessageSize:    1024,
		BatchSize:      100,
	})
	rule := strings.Repeat("-", 30)
	expected := strings.Join([]string{
		rule,
		"Sent total messages:         7450",
		"Thread count:                4",
		"Message size:                1024",
		"Batch size:                  100",
		"Messages/sec:                2.00",
		"Time spent:                  01:02:05",
		rule,
	}, "\n") + "\n"
	require.Equal(t, expected, buf.String())
}

func TestConsoleReporterLinesStayIntact(t *testing.T) {
	var buf bytes.Buffer
	r := loadtest.NewConsoleReporter(&buf)
	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Progress(loadtest.Progress{WorkerID: id, Sent: int64(j), Target: 50})
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 400)
	for _, line := range lines {
		require.True(t, strings.HasPrefix(line, "Worker: "), line)
		require.True(t, strings.HasSuffix(line, "msg/sec"), line)
	}
}
