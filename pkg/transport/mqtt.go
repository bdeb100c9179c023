package transport

import (
	"context"
	"fmt"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttQoS               = 1
	mqttConnectTimeout    = 30 * time.Second
	mqttDisconnectQuiesce = 250 // milliseconds
)

var mqttSchemes = map[string]struct{}{
	"tcp":   {},
	"mqtt":  {},
	"ssl":   {},
	"tls":   {},
	"mqtts": {},
	"ws":    {},
	"wss":   {},
}

// MQTTFactory opens MQTT connections that publish to a single topic at QoS 1.
// MQTT 3.1.1 has no notion of message expiry or content type, so those
// envelope attributes are not carried.
type MQTTFactory struct{}

// MQTTTransport is one MQTT client connection.
type MQTTTransport struct {
	client mqtt.Client
	topic  string
}

var _ Factory = (*MQTTFactory)(nil)
var _ Transport = (*MQTTTransport)(nil)

func (f *MQTTFactory) ValidateParams(params Params) error {
	if len(params.EntityName) == 0 {
		return fmt.Errorf("an MQTT topic is required")
	}
	_, err := parseMQTTBroker(params.ConnectionString)
	return err
}

func (f *MQTTFactory) NewTransport(ctx context.Context, params Params) (Transport, error) {
	u, err := parseMQTTBroker(params.ConnectionString)
	if err != nil {
		return nil, err
	}
	opts := mqtt.NewClientOptions().
		SetClientID(params.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(mqttConnectTimeout)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if password, ok := u.User.Password(); ok {
			opts.SetPassword(password)
		}
		u.User = nil
	}
	opts.AddBroker(u.String())

	client := mqtt.NewClient(opts)
	if err := waitForToken(ctx, client.Connect()); err != nil {
		return nil, err
	}
	loggerOrNoop(params).Debug("Connected to MQTT broker", "broker", u.String(), "topic", params.EntityName)
	return &MQTTTransport{
		client: client,
		topic:  params.EntityName,
	}, nil
}

func (t *MQTTTransport) SendOne(ctx context.Context, msg *Message) error {
	return waitForToken(ctx, t.client.Publish(t.topic, mqttQoS, false, msg.Body))
}

// SendBatch publishes every message and waits for every PUBACK. The call
// fails as a whole if any one of them fails.
func (t *MQTTTransport) SendBatch(ctx context.Context, msgs []*Message) error {
	tokens := make([]mqtt.Token, 0, len(msgs))
	for _, msg := range msgs {
		tokens = append(tokens, t.client.Publish(t.topic, mqttQoS, false, msg.Body))
	}
	errs := make([]error, 0, len(tokens))
	for _, token := range tokens {
		errs = append(errs, waitForToken(ctx, token))
	}
	return firstError(errs)
}

func (t *MQTTTransport) Close(_ context.Context) error {
	t.client.Disconnect(mqttDisconnectQuiesce)
	return nil
}

func parseMQTTBroker(broker string) (*url.URL, error) {
	u, err := url.Parse(broker)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT broker URL: %w", err)
	}
	if _, ok := mqttSchemes[u.Scheme]; !ok {
		return nil, fmt.Errorf("unsupported MQTT broker scheme: \"%s\"", u.Scheme)
	}
	if len(u.Host) == 0 {
		return nil, fmt.Errorf("MQTT broker URL is missing a host: %s", broker)
	}
	return u, nil
}

func waitForToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
