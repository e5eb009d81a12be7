package usecase

import (
	"context"
	"errors"

	"BetPulse/internal/domain/models"
	domrepo "BetPulse/internal/domain/repository"
	"BetPulse/internal/services/consensus"
	"BetPulse/internal/services/schema"
	pkgkafka "BetPulse/pkg/kafka"
)

// KafkaRequestsHandler evaluates fixture requests consumed from Kafka.
// Payloads that can never succeed are marked permanent so the consumer
// dead-letters them without retrying.
type KafkaRequestsHandler struct {
	topic     string
	validator *schema.Validator
	eval      *EvaluateFixture
	metrics   domrepo.Metrics
}

func NewKafkaRequestsHandler(topic string, validator *schema.Validator, eval *EvaluateFixture, metrics domrepo.Metrics) *KafkaRequestsHandler {
	return &KafkaRequestsHandler{topic: topic, validator: validator, eval: eval, metrics: metrics}
}

func (h *KafkaRequestsHandler) Topic() string { return h.topic }

func (h *KafkaRequestsHandler) Handle(ctx context.Context, b []byte) error {
	var req models.EvaluateRequest
	if err := h.validator.Decode(b, &req); err != nil {
		h.metrics.RecordError("consumer_schema")
		return pkgkafka.Permanent(err)
	}
	_, err := h.eval.Execute(ctx, &req)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, consensus.ErrInvalidInput), errors.Is(err, consensus.ErrNoData):
		return pkgkafka.Permanent(err)
	default:
		return err
	}
}

var _ pkgkafka.MessageHandler = (*KafkaRequestsHandler)(nil)
