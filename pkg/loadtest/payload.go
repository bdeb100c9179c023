package loadtest

import (
	"encoding/json"
	"time"

	"github.com/informalsystems/mq-load-test/pkg/transport"
)

// Payload is the synthetic message body: the time at which it was generated
// plus a random filler of a fixed size.
type Payload struct {
	DT      int64  `json:"dt"`      // Milliseconds since the Unix epoch.
	Payload string `json:"payload"` // Random filler.
}

// NewPayload generates a payload whose filler is exactly `size` characters
// long. A non-positive size yields an empty filler.
func NewPayload(size int, now time.Time) Payload {
	return Payload{
		DT:      now.UnixMilli(),
		Payload: randStr(size),
	}
}

// Marshal serializes the payload as {"dt":<ms>,"payload":"<filler>"}.
func (p Payload) Marshal() []byte {
	// an int64 and a string can always be encoded
	b, _ := json.Marshal(p)
	return b
}

// NewMessage generates a fresh payload and wraps it in the message envelope
// described by the given configuration.
func NewMessage(cfg *Config, now time.Time) *transport.Message {
	return &transport.Message{
		Body:        NewPayload(cfg.MessageSize, now).Marshal(),
		ContentType: cfg.ContentType,
		Label:       cfg.Label,
		TTL:         cfg.TTL.Duration(),
	}
}
