package transport

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/informalsystems/mq-load-test/internal/logging"
)

// Message is a single outbound message as handed to a Transport. Transports
// map the envelope attributes onto whatever their broker supports and ignore
// the ones it doesn't.
type Message struct {
	Body        []byte        // The serialized payload.
	ContentType string        // MIME type of the body.
	Label       string        // Application-defined label (subject/type).
	TTL         time.Duration // Time-to-live of the message on the broker (0 = broker default).
}

// Size returns the size of the message body, in bytes.
func (m *Message) Size() int {
	return len(m.Body)
}

// Params encapsulates everything a Factory needs to open one connection.
type Params struct {
	ConnectionString string // Broker-specific connection target.
	EntityName       string // The queue, topic or other entity to which to send.
	ClientID         string // A unique identifier for this connection.
	Logger           logging.Logger
}

// Transport is a single connection to a broker, owned by exactly one load
// testing worker. Implementations need not be safe for concurrent use.
type Transport interface {
	// SendOne sends a single message.
	SendOne(ctx context.Context, msg *Message) error

	// SendBatch sends all of the given messages as one logical unit. It
	// either succeeds or fails as a whole.
	SendBatch(ctx context.Context, msgs []*Message) error

	// Close releases the connection. It is called exactly once.
	Close(ctx context.Context) error
}

// Factory produces transports for a particular kind of broker.
type Factory interface {
	// ValidateParams checks the given parameters without connecting, so that
	// malformed connection targets can be rejected before any load is
	// generated.
	ValidateParams(params Params) error

	// NewTransport opens a new connection to the broker.
	NewTransport(ctx context.Context, params Params) (Transport, error)
}

var factoryRegistry = make(map[string]Factory)

func init() {
	RegisterFactory("servicebus", &ServiceBusFactory{})
	RegisterFactory("amqp", &AMQPFactory{})
	RegisterFactory("mqtt", &MQTTFactory{})
	RegisterFactory("kafka", &KafkaFactory{})
	RegisterFactory("websocket", &WebSocketFactory{})
	RegisterFactory("discard", &DiscardFactory{})
}

// RegisterFactory allows us to register a particular kind of transport
// factory with a unique ID to make it available from the command line.
func RegisterFactory(id string, factory Factory) {
	factoryRegistry[id] = factory
}

// GetFactory will attempt to look up the transport factory with the given ID.
// If it exists, it will be returned. If not, nil will be returned.
func GetFactory(id string) Factory {
	factory, ok := factoryRegistry[id]
	if !ok {
		return nil
	}
	return factory
}

// GetSupportedFactoryIDs returns a sorted list of supported transport
// factory IDs.
func GetSupportedFactoryIDs() []string {
	ids := make([]string, 0, len(factoryRegistry))
	for id := range factoryRegistry {
		ids = append(ids, id)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return strings.Compare(ids[i], ids[j]) < 0
	})
	return ids
}

func loggerOrNoop(params Params) logging.Logger {
	if params.Logger == nil {
		return logging.NewNoopLogger()
	}
	return params.Logger
}
