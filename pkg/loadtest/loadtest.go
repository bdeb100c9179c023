package loadtest

import (
	"context"
	"io"

	"github.com/informalsystems/mq-load-test/internal/logging"
	"github.com/informalsystems/mq-load-test/pkg/transport"
)

// executeLoadTest runs a complete load test for the given validated
// configuration, writing worker progress and the final summary to out.
// Failures of individual workers are logged but do not fail the run.
func executeLoadTest(ctx context.Context, cfg *Config, out io.Writer) (RunResult, error) {
	logger := logging.NewLogrusLogger("loadtest")

	factory := transport.GetFactory(cfg.Transport)
	if factory == nil {
		return RunResult{}, NewError(ErrInvalidConfig, nil, "unknown transport "+cfg.Transport)
	}

	registry, metrics := newMetricsRegistry()
	if cfg.MetricsBindAddr != "" {
		ms, err := startMetricsServer(cfg.MetricsBindAddr, registry, logger)
		if err != nil {
			return RunResult{}, NewError(ErrMetricsServerFailed, err, cfg.MetricsBindAddr)
		}
		defer ms.shutdown()
	}

	reporter := NewConsoleReporter(out)
	res := NewOrchestrator(cfg, factory, reporter, metrics).Run(ctx)
	reporter.Summary(res)
	res.Log(logger)

	if ctx.Err() != nil {
		logger.Warn("Load test was interrupted before all workers completed", "err", NewError(ErrKilled, ctx.Err()))
	}
	if cfg.StatsOutputFile != "" {
		if err := writeRunStats(cfg.StatsOutputFile, res); err != nil {
			logger.Error("Failed to write statistics", "err", NewError(ErrStatsOutputFailed, err, cfg.StatsOutputFile))
		} else {
			logger.Info("Wrote statistics output", "file", cfg.StatsOutputFile)
		}
	}
	return res, nil
}
