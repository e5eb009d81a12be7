package repository

import (
	"context"
	"fmt"

	"BetPulse/internal/domain/models"
	domrepo "BetPulse/internal/domain/repository"
	pkgkafka "BetPulse/pkg/kafka"
)

// MessageProducer is the slice of pkg/kafka.Producer the publisher needs.
type MessageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...pkgkafka.Header) error
	Close() error
}

// KafkaDecisionPublisher emits sealed records keyed by fixture id, so every
// version of a fixture lands on the same partition in order.
type KafkaDecisionPublisher struct {
	p     MessageProducer
	topic string
}

func NewKafkaDecisionPublisher(p MessageProducer, topic string) *KafkaDecisionPublisher {
	return &KafkaDecisionPublisher{p: p, topic: topic}
}

func (k *KafkaDecisionPublisher) Publish(ctx context.Context, rec *models.DecisionRecord) error {
	err := k.p.Publish(ctx, k.topic, []byte(rec.FixtureID), rec,
		pkgkafka.Header{Key: "record_id", Value: []byte(rec.ID)},
		pkgkafka.Header{Key: "digest", Value: []byte(rec.Seal.Digest)},
		pkgkafka.Header{Key: "signal", Value: []byte(rec.Signal)},
	)
	if err != nil {
		return fmt.Errorf("publish decision %s: %w", rec.FixtureID, err)
	}
	return nil
}

func (k *KafkaDecisionPublisher) Close() error { return k.p.Close() }

// NopPublisher drops records; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *models.DecisionRecord) error { return nil }
func (NopPublisher) Close() error                                          { return nil }

var (
	_ domrepo.DecisionPublisher = (*KafkaDecisionPublisher)(nil)
	_ domrepo.DecisionPublisher = NopPublisher{}
	_ MessageProducer           = (*pkgkafka.Producer)(nil)
)
