package loadtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/informalsystems/mq-load-test/pkg/timeutils"
	"github.com/informalsystems/mq-load-test/pkg/transport"
	"gopkg.in/yaml.v3"
)

// Defaults for the load test configuration.
const (
	DefaultTransport      = "servicebus"
	DefaultThreads        = 1
	DefaultMessagesToSend = 1000
	DefaultMessageSize    = 1024
	DefaultBatchSize      = 100
	DefaultCheckpoint     = 1000
	DefaultTTL            = 100 * time.Minute
	DefaultLabel          = "MyPayload"
	DefaultContentType    = "application/json"
)

// Config represents the configuration for a single load test run. It is
// immutable once validated and is shared read-only by all workers.
type Config struct {
	Transport        string                      `json:"transport" yaml:"transport"`       // Which transport factory should we use?
	ConnectionString string                      `json:"-" yaml:"connection_string"`       // Broker connection target. Never logged, as it usually carries credentials.
	EntityName       string                      `json:"entity" yaml:"entity"`             // The queue/topic to which to send.
	Threads          int                         `json:"threads" yaml:"threads"`           // The number of concurrent workers, each with its own connection.
	MessagesToSend   int64                       `json:"messages" yaml:"messages"`         // Messages to send per worker. Zero or less runs until stopped.
	MessageSize      int                         `json:"size" yaml:"size"`                 // The size of each random payload filler, in bytes.
	BatchMode        bool                        `json:"batch" yaml:"batch"`               // Send in batches instead of one message at a time?
	BatchSize        int                         `json:"batch_size" yaml:"batch_size"`     // The number of messages per batch.
	Checkpoint       int                         `json:"checkpoint" yaml:"checkpoint"`     // Report progress every this many messages in single mode.
	TTL              timeutils.ParseableDuration `json:"ttl" yaml:"ttl"`                   // Time-to-live of each message on the broker.
	Label            string                      `json:"label" yaml:"label"`               // The label/subject attached to each message.
	ContentType      string                      `json:"content_type" yaml:"content_type"` // The content type attached to each message.
	Rate             float64                     `json:"rate" yaml:"rate"`                 // Maximum messages per second, per worker. 0 means unlimited.
	MetricsBindAddr  string                      `json:"metrics_bind" yaml:"metrics_bind"` // If set, serve Prometheus metrics on this "host:port".
	StatsOutputFile  string                      `json:"stats_output" yaml:"stats_output"` // If set, write the final summary to this CSV file.
}

// DefaultConfig returns the configuration used when nothing else is
// specified.
func DefaultConfig() Config {
	return Config{
		Transport:      DefaultTransport,
		Threads:        DefaultThreads,
		MessagesToSend: DefaultMessagesToSend,
		MessageSize:    DefaultMessageSize,
		BatchSize:      DefaultBatchSize,
		Checkpoint:     DefaultCheckpoint,
		TTL:            timeutils.ParseableDuration(DefaultTTL),
		Label:          DefaultLabel,
		ContentType:    DefaultContentType,
	}
}

// LoadConfigFile reads a YAML configuration file on top of the given
// defaults. Keys missing from the file keep their default values.
func LoadConfigFile(filename string, defaults Config) (Config, error) {
	cfg := defaults
	f, err := os.Open(filename)
	if err != nil {
		return cfg, NewError(ErrFailedToReadConfigFile, err, filename)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, NewError(ErrFailedToDecodeConfig, err, filename)
	}
	return cfg, nil
}

// IsBounded reports whether each worker stops after a fixed number of
// messages.
func (c Config) IsBounded() bool {
	return c.MessagesToSend > 0
}

func (c Config) Validate() error {
	factory := transport.GetFactory(c.Transport)
	if factory == nil {
		return fmt.Errorf("Transport \"%s\" does not exist (supported: %s)", c.Transport, strings.Join(transport.GetSupportedFactoryIDs(), ", "))
	}
	if c.Threads < 1 {
		return fmt.Errorf("Expected threads to be >= 1, but was %d", c.Threads)
	}
	if c.MessageSize < 0 {
		return fmt.Errorf("Expected message size to be >= 0 bytes, but was %d", c.MessageSize)
	}
	if c.BatchMode && c.BatchSize < 1 {
		return fmt.Errorf("Expected batch size to be >= 1 in batch mode, but was %d", c.BatchSize)
	}
	if c.Checkpoint < 1 {
		return fmt.Errorf("Expected checkpoint interval to be >= 1, but was %d", c.Checkpoint)
	}
	if c.TTL < 0 {
		return fmt.Errorf("Expected message TTL to be >= 0, but was %s", c.TTL.Duration())
	}
	if c.Rate < 0 {
		return fmt.Errorf("Expected rate to be >= 0, but was %.2f", c.Rate)
	}
	if err := factory.ValidateParams(c.transportParams("")); err != nil {
		return fmt.Errorf("Invalid %s connection parameters: %w", c.Transport, err)
	}
	return nil
}

func (c Config) ToJSON() string {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("%v", c)
	}
	return string(b)
}

func (c Config) transportParams(clientID string) transport.Params {
	return transport.Params{
		ConnectionString: c.ConnectionString,
		EntityName:       c.EntityName,
		ClientID:         clientID,
	}
}
