package transport

import (
	"context"

	"github.com/informalsystems/mq-load-test/internal/logging"
)

// DiscardFactory produces transports that accept and drop every message.
// Useful for measuring the generator's own overhead.
type DiscardFactory struct{}

// DiscardTransport counts what it is given and sends nothing anywhere.
type DiscardTransport struct {
	logger   logging.Logger
	messages int64
	batches  int64
	bytes    int64
}

var _ Factory = (*DiscardFactory)(nil)
var _ Transport = (*DiscardTransport)(nil)

func (f *DiscardFactory) ValidateParams(_ Params) error {
	return nil
}

func (f *DiscardFactory) NewTransport(_ context.Context, params Params) (Transport, error) {
	return &DiscardTransport{logger: loggerOrNoop(params)}, nil
}

func (t *DiscardTransport) SendOne(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.messages++
	t.bytes += int64(msg.Size())
	return nil
}

func (t *DiscardTransport) SendBatch(ctx context.Context, msgs []*Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.batches++
	for _, msg := range msgs {
		t.messages++
		t.bytes += int64(msg.Size())
	}
	return nil
}

func (t *DiscardTransport) Close(_ context.Context) error {
	t.logger.Debug("Discarded messages", "messages", t.messages, "batches", t.batches, "bytes", t.bytes)
	return nil
}

// Messages returns the number of messages discarded so far.
func (t *DiscardTransport) Messages() int64 {
	return t.messages
}
