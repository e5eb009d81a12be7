package repository

import (
	"context"
	"testing"
	"time"

	"BetPulse/internal/domain/models"
	pkgkafka "BetPulse/pkg/kafka"
)

type capturedMessage struct {
	topic   string
	key     string
	value   interface{}
	headers []pkgkafka.Header
}

type fakeProducer struct {
	msgs []capturedMessage
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}, headers ...pkgkafka.Header) error {
	f.msgs = append(f.msgs, capturedMessage{topic, string(key), value, headers})
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func TestKafkaDecisionPublisherKeysByFixture(t *testing.T) {
	fp := &fakeProducer{}
	pub := NewKafkaDecisionPublisher(fp, "decisions")
	rec := record("f9", time.Unix(1700000000, 0), "1x2:Home:VALUE")
	rec.Seal.Digest = "abc"
	rec.Signal = models.SignalValue

	if err := pub.Publish(context.Background(), rec); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fp.msgs) != 1 {
		t.Fatalf("messages = %d", len(fp.msgs))
	}
	m := fp.msgs[0]
	if m.topic != "decisions" || m.key != "f9" || m.value != rec {
		t.Fatalf("message = %+v", m)
	}
	headers := map[string]string{}
	for _, h := range m.headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["record_id"] != rec.ID || headers["digest"] != "abc" || headers["signal"] != "VALUE" {
		t.Fatalf("headers = %v", headers)
	}
}
