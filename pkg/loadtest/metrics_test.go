package loadtest

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/informalsystems/mq-load-test/internal/logging"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsReflectWorkerActivity(t *testing.T) {
	registry, metrics := newMetricsRegistry()
	cfg := testConfig(func(c *Config) {
		c.Threads = 2
		c.MessagesToSend = 30
		c.MessageSize = 10
		c.BatchMode = true
		c.BatchSize = 10
	})
	NewOrchestrator(cfg, &fakeFactory{}, &recordingReporter{}, metrics).Run(context.Background())

	require.Equal(t, float64(60), testutil.ToFloat64(metrics.MessagesSent))
	require.Equal(t, float64(6), testutil.ToFloat64(metrics.BatchesSent))
	require.Zero(t, testutil.ToFloat64(metrics.SendFailures))
	require.Zero(t, testutil.ToFloat64(metrics.WorkersActive))

	// every body is {"dt":<13 digits>,"payload":"<10 chars>"}
	bodySize := len(`{"dt":1234567890123,"payload":"0123456789"}`)
	require.Equal(t, float64(60*bodySize), testutil.ToFloat64(metrics.BytesSent))

	count, err := testutil.GatherAndCount(registry, "mqloadtest_send_latency_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestMetricsServer(t *testing.T) {
	registry, metrics := newMetricsRegistry()
	metrics.MessagesSent.Add(42)

	ms, err := startMetricsServer("127.0.0.1:0", registry, logging.NewNoopLogger())
	require.NoError(t, err)
	defer ms.shutdown()

	resp, err := http.Get("http://" + ms.addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "mqloadtest_messages_sent_total 42")
	require.Contains(t, string(body), "go_goroutines")
}

func TestMetricsServerRejectsUnusableAddress(t *testing.T) {
	registry, _ := newMetricsRegistry()
	_, err := startMetricsServer("not-a-bind-address", registry, logging.NewNoopLogger())
	require.Error(t, err)
}
