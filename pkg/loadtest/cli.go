package loadtest

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/informalsystems/mq-load-test/internal/logging"
	"github.com/informalsystems/mq-load-test/pkg/timeutils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// CLIConfig allows developers to customize their own load testing tool.
type CLIConfig struct {
	AppName          string
	AppShortDesc     string
	AppLongDesc      string
	DefaultTransport string
}

// flagOverrides copies the value of each named flag from the flag-bound
// configuration onto the effective one. Only flags the user explicitly set
// are applied, so that they win over values from a config file.
var flagOverrides = map[string]func(dst, src *Config){
	"transport":         func(dst, src *Config) { dst.Transport = src.Transport },
	"connection-string": func(dst, src *Config) { dst.ConnectionString = src.ConnectionString },
	"entity":            func(dst, src *Config) { dst.EntityName = src.EntityName },
	"threads":           func(dst, src *Config) { dst.Threads = src.Threads },
	"messages":          func(dst, src *Config) { dst.MessagesToSend = src.MessagesToSend },
	"size":              func(dst, src *Config) { dst.MessageSize = src.MessageSize },
	"batch":             func(dst, src *Config) { dst.BatchMode = src.BatchMode },
	"batch-size":        func(dst, src *Config) { dst.BatchSize = src.BatchSize },
	"checkpoint":        func(dst, src *Config) { dst.Checkpoint = src.Checkpoint },
	"ttl":               func(dst, src *Config) { dst.TTL = src.TTL },
	"label":             func(dst, src *Config) { dst.Label = src.Label },
	"content-type":      func(dst, src *Config) { dst.ContentType = src.ContentType },
	"rate":              func(dst, src *Config) { dst.Rate = src.Rate },
	"metrics-bind":      func(dst, src *Config) { dst.MetricsBindAddr = src.MetricsBindAddr },
	"stats-output":      func(dst, src *Config) { dst.StatsOutputFile = src.StatsOutputFile },
}

type cliFlags struct {
	defaults   Config // Values used for anything neither set by flag nor in the config file.
	cfg        Config
	ttl        time.Duration
	configFile string
	logFormat  string
	verbose    bool
}

func buildCLI(cli *CLIConfig, stdout, stderr io.Writer) (*cobra.Command, *cliFlags) {
	flags := &cliFlags{defaults: DefaultConfig()}
	if cli.DefaultTransport != "" {
		flags.defaults.Transport = cli.DefaultTransport
	}
	flags.cfg = flags.defaults

	rootCmd := &cobra.Command{
		Use:           cli.AppName,
		Short:         cli.AppShortDesc,
		Long:          cli.AppLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Configure(stderr, flags.verbose, flags.logFormat)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogrusLogger("main")
			cfg, err := resolveConfig(cmd.Flags(), flags)
			if err != nil {
				return err
			}
			logger.Debug(fmt.Sprintf("Configuration: %s", cfg.ToJSON()))
			if err := cfg.Validate(); err != nil {
				return NewError(ErrInvalidConfig, err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			cancelTrap := trapInterrupts(cancel, logger)
			defer close(cancelTrap)

			if _, err := executeLoadTest(ctx, &cfg, stdout); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Execution Completed")
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.cfg.Transport, "transport", "t", flags.cfg.Transport, "The transport to use for sending messages")
	pf.StringVarP(&flags.cfg.ConnectionString, "connection-string", "C", "", "The broker connection string or URL")
	pf.StringVarP(&flags.cfg.EntityName, "entity", "e", "", "The queue or topic to which to send messages")
	pf.IntVarP(&flags.cfg.Threads, "threads", "c", DefaultThreads, "The number of concurrent workers, each with its own connection")
	pf.Int64VarP(&flags.cfg.MessagesToSend, "messages", "N", DefaultMessagesToSend, "The number of messages each worker sends - set to 0 to send until interrupted")
	pf.IntVarP(&flags.cfg.MessageSize, "size", "s", DefaultMessageSize, "The size of each random payload, in bytes")
	pf.BoolVarP(&flags.cfg.BatchMode, "batch", "b", false, "Send messages in batches instead of one at a time")
	pf.IntVarP(&flags.cfg.BatchSize, "batch-size", "B", DefaultBatchSize, "The number of messages per batch in batch mode")
	pf.IntVarP(&flags.cfg.Checkpoint, "checkpoint", "k", DefaultCheckpoint, "Report progress every this many messages in single mode")
	pf.DurationVar(&flags.ttl, "ttl", DefaultTTL, "The time-to-live of each message on the broker")
	pf.StringVar(&flags.cfg.Label, "label", DefaultLabel, "The label attached to each message")
	pf.StringVar(&flags.cfg.ContentType, "content-type", DefaultContentType, "The content type attached to each message")
	pf.Float64VarP(&flags.cfg.Rate, "rate", "r", 0, "The maximum number of messages per second, per worker - 0 means unlimited")
	pf.StringVar(&flags.cfg.MetricsBindAddr, "metrics-bind", "", "If set, serve Prometheus metrics on this host:port")
	pf.StringVar(&flags.cfg.StatsOutputFile, "stats-output", "", "Where to store the final summary statistics (in CSV format)")
	pf.StringVar(&flags.configFile, "config", "", "An optional YAML configuration file - explicitly set flags override its values")
	pf.StringVar(&flags.logFormat, "log-format", logging.FormatText, "The log output format (text or json)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Increase output logging verbosity to DEBUG level")
	return rootCmd, flags
}

// resolveConfig combines the defaults, the optional config file and any
// explicitly set flags, in increasing order of precedence.
func resolveConfig(fs *pflag.FlagSet, flags *cliFlags) (Config, error) {
	flags.cfg.TTL = timeutils.ParseableDuration(flags.ttl)
	if flags.configFile == "" {
		return flags.cfg, nil
	}
	cfg, err := LoadConfigFile(flags.configFile, flags.defaults)
	if err != nil {
		return cfg, err
	}
	fs.Visit(func(f *pflag.Flag) {
		if override, ok := flagOverrides[f.Name]; ok {
			override(&cfg, &flags.cfg)
		}
	})
	return cfg, nil
}

// runCLI executes the command line with the given arguments and returns the
// process exit code.
func runCLI(cli *CLIConfig, args []string, stdout, stderr io.Writer) int {
	cmd, _ := buildCLI(cli, stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		if IsConfigurationError(err) {
			fmt.Fprintf(stderr, "Configuration error: %v\nRun '%s --help' for usage.\n", err, cli.AppName)
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// Run must be executed from your `main` function in your Go code. It parses
// the command line, runs the load test and exits the process.
func Run(cli *CLIConfig) {
	os.Exit(runCLI(cli, os.Args[1:], os.Stdout, os.Stderr))
}

func trapInterrupts(onKill func(), logger logging.Logger) chan struct{} {
	sigc := make(chan os.Signal, 1)
	cancelTrap := make(chan struct{})
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigc)
		select {
		case <-sigc:
			logger.Info("Caught kill signal, stopping workers")
			onKill()
		case <-cancelTrap:
			return
		}
	}()
	return cancelTrap
}
