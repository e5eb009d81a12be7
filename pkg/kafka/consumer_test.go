package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type countingHandler struct {
	calls int
	errs  []error
}

func (h *countingHandler) Topic() string { return "fixtures" }

func (h *countingHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.calls <= len(h.errs) {
		return h.errs[h.calls-1]
	}
	return nil
}

func newTestConsumer(t *testing.T, retries int) *Consumer {
	t.Helper()
	c, err := NewConsumer(nil,
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(retries, time.Millisecond, 2*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	t.Cleanup(c.cancel)
	return c
}

func TestHandleWithRetry(t *testing.T) {
	transient := errors.New("store unavailable")
	tests := []struct {
		name      string
		errs      []error
		retries   int
		wantCalls int
		wantErr   bool
	}{
		{"first try", nil, 3, 1, false},
		{"recovers", []error{transient, transient}, 3, 3, false},
		{"exhausted", []error{transient, transient, transient}, 2, 3, true},
		{"permanent skips retry", []error{Permanent(errors.New("schema"))}, 3, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConsumer(t, tt.retries)
			h := &countingHandler{errs: tt.errs}
			_, err := c.handleWithRetry(h, kafka.Message{Topic: "fixtures"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if h.calls != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", h.calls, tt.wantCalls)
			}
		})
	}
}

func TestHandlerPanicIsPermanent(t *testing.T) {
	c := newTestConsumer(t, 3)
	_, err := c.handleWithRetry(panicHandler{}, kafka.Message{Topic: "fixtures"})
	if !IsPermanent(err) {
		t.Fatalf("err = %v, want permanent", err)
	}
}

type panicHandler struct{}

func (panicHandler) Topic() string                        { return "fixtures" }
func (panicHandler) Handle(context.Context, []byte) error { panic("boom") }

func TestRegisterHandlerRejectsDuplicates(t *testing.T) {
	c := newTestConsumer(t, 0)
	if err := c.RegisterHandler(&countingHandler{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.RegisterHandler(&countingHandler{}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestBackoffWithJitterBounds(t *testing.T) {
	min, max := 10*time.Millisecond, 80*time.Millisecond
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		if d <= 0 || d > max {
			t.Fatalf("attempt %d: backoff %v out of (0, %v]", attempt, d, max)
		}
	}
}

func TestHookChain(t *testing.T) {
	var order []string
	mk := func(name string) ConsumerHook {
		return HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, d []byte) (context.Context, kafka.Message, []byte, error) {
				order = append(order, "before:"+name)
				return ctx, km, d, nil
			},
			After: func(context.Context, string, kafka.Message, []byte, error) {
				order = append(order, "after:"+name)
			},
		}
	}
	chain := NewHookChain(mk("a"), nil, mk("b"), TraceHook{})
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("t-1")}}}
	ctx, _, _, err := chain.BeforeHandle(context.Background(), "fixtures", km, nil)
	if err != nil {
		t.Fatalf("before: %v", err)
	}
	chain.AfterHandle(ctx, "fixtures", km, nil, nil)

	want := []string{"before:a", "before:b", "after:b", "after:a"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if TraceID(ctx) != "t-1" {
		t.Fatalf("trace id = %q", TraceID(ctx))
	}
}

func TestHookChainContainsPanics(t *testing.T) {
	chain := NewHookChain(HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("bad hook")
		},
	})
	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	if !IsPermanent(err) {
		t.Fatalf("err = %v, want permanent", err)
	}
}
