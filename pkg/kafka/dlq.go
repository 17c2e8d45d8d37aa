package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DLQTopicPrefix prefixes dead-letter topics.
const DLQTopicPrefix = TopicPrefix + ".dlq"

// DLQTopic returns the dead-letter topic for name, e.g. poi.dlq.notifications.
func DLQTopic(name string) string {
	return DLQTopicPrefix + "." + name
}

// DLQProducer writes failed messages to dead-letter topics.
type DLQProducer struct {
	writer MessageWriter
	logger *slog.Logger
}

// NewDLQProducer creates a DLQ producer that writes one message per batch.
func NewDLQProducer(brokers []string, logger *slog.Logger) *DLQProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              1,
		BatchTimeout:           100 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return NewDLQProducerWithWriter(w, logger)
}

// NewDLQProducerWithWriter creates a DLQ producer over an existing writer.
func NewDLQProducerWithWriter(w MessageWriter, logger *slog.Logger) *DLQProducer {
	return &DLQProducer{writer: w, logger: logger}
}

// Publish copies a consumed message to the DLQ for its topic, adding headers
// that locate the original and record why it failed.
func (d *DLQProducer) Publish(ctx context.Context, original kafka.Message, cause error, consumerGroup string) error {
	headers := make([]kafka.Header, 0, len(original.Headers)+5)
	headers = append(headers, original.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dlq.original_topic", Value: []byte(original.Topic)},
		kafka.Header{Key: "dlq.original_partition", Value: []byte(strconv.Itoa(original.Partition))},
		kafka.Header{Key: "dlq.original_offset", Value: []byte(strconv.FormatInt(original.Offset, 10))},
		kafka.Header{Key: "dlq.consumer_group", Value: []byte(consumerGroup)},
	)
	if cause != nil {
		headers = append(headers, kafka.Header{Key: "dlq.error", Value: []byte(cause.Error())})
	}
	return d.write(ctx, kafka.Message{
		Topic:   DLQTopic(original.Topic),
		Key:     original.Key,
		Value:   original.Value,
		Headers: headers,
	})
}

// PublishEvent writes an event that could not be delivered to its
// destination straight to the named dead-letter topic.
func (d *DLQProducer) PublishEvent(ctx context.Context, name string, event *Event, cause error) error {
	value, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	msg := kafka.Message{
		Topic: DLQTopic(name),
		Key:   []byte(event.AggregateID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	if cause != nil {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "dlq.error", Value: []byte(cause.Error())})
	}
	return d.write(ctx, msg)
}

func (d *DLQProducer) write(ctx context.Context, msg kafka.Message) error {
	if err := d.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to DLQ %s: %w", msg.Topic, err)
	}
	dlqPublished.WithLabelValues(msg.Topic).Inc()
	d.logger.WarnContext(ctx, "message sent to DLQ", slog.String("dlq_topic", msg.Topic))
	return nil
}

// Close closes the writer.
func (d *DLQProducer) Close() error {
	return d.writer.Close()
}
