package notify

import (
	"context"
	"fmt"

	pkgkafka "github.com/utafrali/PoiCatalog/pkg/kafka"
	"github.com/utafrali/PoiCatalog/services/poi/internal/domain"
)

// DeadLetterTopicName is the dead-letter topic suffix for notifications,
// giving poi.dlq.notifications.
const DeadLetterTopicName = "notifications"

// DeadLetterSink keeps notifications that could not be delivered.
type DeadLetterSink interface {
	DeadLetter(ctx context.Context, n domain.Notification, cause error) error
}

// KafkaDeadLetters writes undeliverable notifications to the dead-letter topic.
type KafkaDeadLetters struct {
	dlq *pkgkafka.DLQProducer
}

// NewKafkaDeadLetters creates a sink backed by dlq.
func NewKafkaDeadLetters(dlq *pkgkafka.DLQProducer) *KafkaDeadLetters {
	return &KafkaDeadLetters{dlq: dlq}
}

// DeadLetter publishes n with cause attached as a header.
func (k *KafkaDeadLetters) DeadLetter(ctx context.Context, n domain.Notification, cause error) error {
	evt, err := pkgkafka.NewEvent("notification."+string(n.Kind), n.PoiID, "notification", "poi-service", n)
	if err != nil {
		return fmt.Errorf("build dead letter: %w", err)
	}
	return k.dlq.PublishEvent(ctx, DeadLetterTopicName, evt, cause)
}
