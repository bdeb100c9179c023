package loadtest

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/informalsystems/mq-load-test/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsShutdownTimeout = 5 * time.Second

// Metrics are updated directly by every worker. Prometheus collectors are
// safe for concurrent use, so no additional locking is needed.
type Metrics struct {
	MessagesSent    prometheus.Counter   // Messages successfully handed to the broker.
	BytesSent       prometheus.Counter   // Cumulative message body bytes successfully sent.
	BatchesSent     prometheus.Counter   // Batches successfully sent (batch mode only).
	SendFailures    prometheus.Counter   // Failed SendOne/SendBatch calls.
	ConnectFailures prometheus.Counter   // Workers that could not establish a connection.
	WorkersActive   prometheus.Gauge     // Workers currently connected and sending.
	SendLatency     prometheus.Histogram // Duration of each SendOne/SendBatch call.
}

// NewMetrics creates the load test metrics and registers them with the given
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "mqloadtest_messages_sent_total",
			Help: "The total number of messages successfully sent by all workers",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "mqloadtest_bytes_sent_total",
			Help: "The total cumulative number of message body bytes successfully sent by all workers",
		}),
		BatchesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "mqloadtest_batches_sent_total",
			Help: "The total number of message batches successfully sent by all workers",
		}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "mqloadtest_send_failures_total",
			Help: "The total number of failed send calls (each one stops its worker)",
		}),
		ConnectFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "mqloadtest_connect_failures_total",
			Help: "The total number of workers that failed to connect to the broker",
		}),
		WorkersActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mqloadtest_workers_active",
			Help: "The number of workers currently connected and sending",
		}),
		SendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mqloadtest_send_latency_seconds",
			Help:    "The time taken by each single or batch send call",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
		}),
	}
}

// newMetricsRegistry builds a registry holding the Go runtime and process
// collectors alongside the load test metrics.
func newMetricsRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, NewMetrics(reg)
}

// metricsServer exposes a Prometheus registry over HTTP at /metrics.
type metricsServer struct {
	svr      *http.Server
	listener net.Listener
	stopped  chan struct{} // Closed when the HTTP server has shut down.
	logger   logging.Logger
}

// startMetricsServer binds to the given address immediately, so that an
// unusable address is reported before any load is generated.
func startMetricsServer(bindAddr string, gatherer prometheus.Gatherer, logger logging.Logger) (*metricsServer, error) {
	listener, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	ms := &metricsServer{
		svr: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: listener,
		stopped:  make(chan struct{}),
		logger:   logger,
	}
	go ms.run()
	return ms, nil
}

// addr returns the precise "host:port" on which the server is listening.
func (ms *metricsServer) addr() string {
	return ms.listener.Addr().String()
}

func (ms *metricsServer) run() {
	defer close(ms.stopped)

	ms.logger.Info("Starting metrics server", "addr", ms.addr())
	if err := ms.svr.Serve(ms.listener); err != nil && err != http.ErrServerClosed {
		ms.logger.Error("Metrics server shut down", "err", err)
		return
	}
	ms.logger.Debug("Metrics server shut down")
}

// shutdown gracefully shuts down the HTTP server and waits for it to stop.
func (ms *metricsServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()

	if err := ms.svr.Shutdown(ctx); err != nil {
		ms.logger.Error("Failed to gracefully shut down metrics server", "err", err)
	}
	select {
	case <-ms.stopped:
	case <-ctx.Done():
		ms.logger.Error("Failed to shut down metrics server within the required time period")
	}
}
