package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
)

// ServiceBusFactory opens senders to an Azure Service Bus queue or topic
// using a namespace connection string.
type ServiceBusFactory struct{}

// ServiceBusTransport wraps one Service Bus client and its sender.
type ServiceBusTransport struct {
	client *azservicebus.Client
	sender *azservicebus.Sender
}

var _ Factory = (*ServiceBusFactory)(nil)
var _ Transport = (*ServiceBusTransport)(nil)

// ValidateParams parses the connection string. The Service Bus client
// connects lazily, so constructing one does not touch the network.
func (f *ServiceBusFactory) ValidateParams(params Params) error {
	if len(params.EntityName) == 0 {
		return fmt.Errorf("a Service Bus queue or topic name is required")
	}
	client, err := azservicebus.NewClientFromConnectionString(params.ConnectionString, nil)
	if err != nil {
		return fmt.Errorf("invalid Service Bus connection string: %w", err)
	}
	return client.Close(context.Background())
}

func (f *ServiceBusFactory) NewTransport(ctx context.Context, params Params) (Transport, error) {
	client, err := azservicebus.NewClientFromConnectionString(params.ConnectionString, &azservicebus.ClientOptions{
		ApplicationID: params.ClientID,
	})
	if err != nil {
		return nil, err
	}
	sender, err := client.NewSender(params.EntityName, nil)
	if err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	loggerOrNoop(params).Debug("Created Service Bus sender", "entity", params.EntityName)
	return &ServiceBusTransport{
		client: client,
		sender: sender,
	}, nil
}

func (t *ServiceBusTransport) SendOne(ctx context.Context, msg *Message) error {
	return t.sender.SendMessage(ctx, toServiceBusMessage(msg), nil)
}

// SendBatch packs all messages into a single Service Bus batch. If the
// messages do not fit into one batch the whole call fails and nothing is
// sent.
func (t *ServiceBusTransport) SendBatch(ctx context.Context, msgs []*Message) error {
	batch, err := t.sender.NewMessageBatch(ctx, nil)
	if err != nil {
		return err
	}
	for i, msg := range msgs {
		if err := batch.AddMessage(toServiceBusMessage(msg), nil); err != nil {
			if errors.Is(err, azservicebus.ErrMessageTooLarge) {
				return fmt.Errorf("batch of %d messages exceeds the maximum batch size (%d bytes) at message %d: %w", len(msgs), batch.NumBytes(), i, err)
			}
			return err
		}
	}
	return t.sender.SendMessageBatch(ctx, batch, nil)
}

func (t *ServiceBusTransport) Close(ctx context.Context) error {
	return errors.Join(t.sender.Close(ctx), t.client.Close(ctx))
}

func toServiceBusMessage(msg *Message) *azservicebus.Message {
	m := &azservicebus.Message{Body: msg.Body}
	if len(msg.ContentType) > 0 {
		contentType := msg.ContentType
		m.ContentType = &contentType
	}
	if len(msg.Label) > 0 {
		subject := msg.Label
		m.Subject = &subject
	}
	if msg.TTL > 0 {
		ttl := msg.TTL
		m.TimeToLive = &ttl
	}
	return m
}
