package transport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

const (
	amqpDialTimeout = 30 * time.Second
	amqpHeartbeat   = 10 * time.Second
)

// AMQPFactory opens AMQP 0.9.1 channels in publisher-confirm mode. Messages
// are published on the default exchange with the entity name as routing key,
// i.e. straight into the queue of that name.
type AMQPFactory struct{}

// AMQPTransport is one AMQP connection with a single confirming channel.
type AMQPTransport struct {
	conn  *amqp091.Connection
	ch    *amqp091.Channel
	queue string
}

var _ Factory = (*AMQPFactory)(nil)
var _ Transport = (*AMQPTransport)(nil)

// amqpQueueInspector is the part of *amqp091.Channel used to look up a queue.
type amqpQueueInspector interface {
	QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
}

func (f *AMQPFactory) ValidateParams(params Params) error {
	if len(params.EntityName) == 0 {
		return fmt.Errorf("an AMQP queue name is required")
	}
	if _, err := amqp091.ParseURI(params.ConnectionString); err != nil {
		return fmt.Errorf("invalid AMQP URI: %w", err)
	}
	return nil
}

func (f *AMQPFactory) NewTransport(_ context.Context, params Params) (Transport, error) {
	props := amqp091.NewConnectionProperties()
	props.SetClientConnectionName(params.ClientID)
	conn, err := amqp091.DialConfig(params.ConnectionString, amqp091.Config{
		Heartbeat:  amqpHeartbeat,
		Locale:     "en_US",
		Dial:       amqp091.DefaultDial(amqpDialTimeout),
		Properties: props,
	})
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := checkQueueExists(ch, params.EntityName); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to put channel into confirm mode: %w", err)
	}
	loggerOrNoop(params).Debug("Opened AMQP channel", "queue", params.EntityName)
	return &AMQPTransport{
		conn:  conn,
		ch:    ch,
		queue: params.EntityName,
	}, nil
}

// checkQueueExists fails if the queue is missing. Publishing to the default
// exchange with an unknown routing key is silently dropped but still acked.
func checkQueueExists(ch amqpQueueInspector, queue string) error {
	if _, err := ch.QueueDeclarePassive(queue, false, false, false, false, nil); err != nil {
		return fmt.Errorf("AMQP queue \"%s\" is not available: %w", queue, err)
	}
	return nil
}

func (t *AMQPTransport) SendOne(ctx context.Context, msg *Message) error {
	dc, err := t.publish(ctx, msg)
	if err != nil {
		return err
	}
	return waitForConfirm(ctx, dc)
}

// SendBatch publishes every message and then waits for all of the broker's
// confirmations. AMQP has no atomic batches, so the call fails as a whole if
// any single message is rejected.
func (t *AMQPTransport) SendBatch(ctx context.Context, msgs []*Message) error {
	confirms := make([]*amqp091.DeferredConfirmation, 0, len(msgs))
	for _, msg := range msgs {
		dc, err := t.publish(ctx, msg)
		if err != nil {
			return err
		}
		confirms = append(confirms, dc)
	}
	for _, dc := range confirms {
		if err := waitForConfirm(ctx, dc); err != nil {
			return err
		}
	}
	return nil
}

func (t *AMQPTransport) Close(_ context.Context) error {
	return errors.Join(t.ch.Close(), t.conn.Close())
}

func (t *AMQPTransport) publish(ctx context.Context, msg *Message) (*amqp091.DeferredConfirmation, error) {
	return t.ch.PublishWithDeferredConfirmWithContext(ctx, "", t.queue, false, false, toPublishing(msg))
}

func waitForConfirm(ctx context.Context, dc *amqp091.DeferredConfirmation) error {
	if dc == nil {
		return fmt.Errorf("channel is not in confirm mode")
	}
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return fmt.Errorf("broker rejected message with delivery tag %d", dc.DeliveryTag)
	}
	return nil
}

func toPublishing(msg *Message) amqp091.Publishing {
	p := amqp091.Publishing{
		ContentType:  msg.ContentType,
		Type:         msg.Label,
		DeliveryMode: amqp091.Transient,
		Timestamp:    time.Now(),
		Body:         msg.Body,
	}
	if msg.TTL > 0 {
		p.Expiration = strconv.FormatInt(msg.TTL.Milliseconds(), 10)
	}
	return p
}
