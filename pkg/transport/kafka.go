package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

// KafkaFactory opens synchronous Kafka producers. The connection string is a
// comma-separated list of bootstrap brokers and the entity is the topic.
type KafkaFactory struct{}

// KafkaTransport is one synchronous Kafka producer.
type KafkaTransport struct {
	producer sarama.SyncProducer
	topic    string
}

var _ Factory = (*KafkaFactory)(nil)
var _ Transport = (*KafkaTransport)(nil)

func (f *KafkaFactory) ValidateParams(params Params) error {
	if len(params.EntityName) == 0 {
		return fmt.Errorf("a Kafka topic is required")
	}
	if len(splitBrokers(params.ConnectionString)) == 0 {
		return fmt.Errorf("at least one Kafka broker address is required")
	}
	return newKafkaConfig(params.ClientID).Validate()
}

func (f *KafkaFactory) NewTransport(_ context.Context, params Params) (Transport, error) {
	producer, err := sarama.NewSyncProducer(splitBrokers(params.ConnectionString), newKafkaConfig(params.ClientID))
	if err != nil {
		return nil, err
	}
	loggerOrNoop(params).Debug("Created Kafka producer", "topic", params.EntityName)
	return &KafkaTransport{
		producer: producer,
		topic:    params.EntityName,
	}, nil
}

func (t *KafkaTransport) SendOne(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := t.producer.SendMessage(t.toProducerMessage(msg))
	return err
}

func (t *KafkaTransport) SendBatch(ctx context.Context, msgs []*Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := make([]*sarama.ProducerMessage, 0, len(msgs))
	for _, msg := range msgs {
		batch = append(batch, t.toProducerMessage(msg))
	}
	if err := t.producer.SendMessages(batch); err != nil {
		return fmt.Errorf("failed to produce batch of %d messages: %w", len(batch), err)
	}
	return nil
}

func (t *KafkaTransport) Close(_ context.Context) error {
	return t.producer.Close()
}

func (t *KafkaTransport) toProducerMessage(msg *Message) *sarama.ProducerMessage {
	headers := make([]sarama.RecordHeader, 0, 3)
	if len(msg.ContentType) > 0 {
		headers = append(headers, sarama.RecordHeader{Key: []byte("content-type"), Value: []byte(msg.ContentType)})
	}
	if len(msg.Label) > 0 {
		headers = append(headers, sarama.RecordHeader{Key: []byte("label"), Value: []byte(msg.Label)})
	}
	if msg.TTL > 0 {
		headers = append(headers, sarama.RecordHeader{Key: []byte("ttl-ms"), Value: []byte(strconv.FormatInt(msg.TTL.Milliseconds(), 10))})
	}
	return &sarama.ProducerMessage{
		Topic:     t.topic,
		Value:     sarama.ByteEncoder(msg.Body),
		Headers:   headers,
		Timestamp: time.Now(),
	}
}

func newKafkaConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	if len(clientID) > 0 {
		cfg.ClientID = clientID
	}
	// record headers need at least 0.11
	cfg.Version = sarama.V2_1_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Retry.Max = 0
	return cfg
}

func splitBrokers(s string) []string {
	brokers := make([]string, 0)
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); len(b) > 0 {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
