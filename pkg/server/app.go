package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	xhttp "BetPulse/pkg/http"
	pkgkafka "BetPulse/pkg/kafka"
	applogger "BetPulse/pkg/logger"
)

// Option configures App.
type Option func(*App)

type closer struct {
	name string
	fn   func() error
}

type background struct {
	name string
	run  func(ctx context.Context)
}

// App owns the service lifecycle: HTTP server, Kafka consumer, background
// loops and the infrastructure clients closed on shutdown.
type App struct {
	l               *applogger.Logger
	httpServer      *xhttp.Server
	consumer        *pkgkafka.Consumer
	kafkaHandlers   []pkgkafka.MessageHandler
	backgrounds     []background
	closers         []closer
	shutdownTimeout time.Duration
	wg              sync.WaitGroup
}

// New creates a new App instance with all dependencies.
func New(l *applogger.Logger, httpServer *xhttp.Server, opts ...Option) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{l: l, httpServer: httpServer, shutdownTimeout: 15 * time.Second}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WithConsumer runs c with the given handlers. A nil consumer is ignored.
func WithConsumer(c *pkgkafka.Consumer, handlers ...pkgkafka.MessageHandler) Option {
	return func(a *App) {
		if c != nil {
			a.consumer = c
			a.kafkaHandlers = append(a.kafkaHandlers, handlers...)
		}
	}
}

// WithBackground runs fn until shutdown.
func WithBackground(name string, fn func(ctx context.Context)) Option {
	return func(a *App) { a.backgrounds = append(a.backgrounds, background{name, fn}) }
}

// WithCloser registers fn to run on shutdown, in reverse registration order.
func WithCloser(name string, fn func() error) Option {
	return func(a *App) {
		if fn != nil {
			a.closers = append(a.closers, closer{name, fn})
		}
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts everything and blocks until ctx is done, then shuts down.
func (a *App) RunContext(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, b := range a.backgrounds {
		a.wg.Add(1)
		go func(b background) {
			defer a.wg.Done()
			b.run(bgCtx)
		}(b)
		a.l.Info("background task started", applogger.String("task", b.name))
	}

	if a.consumer != nil && len(a.kafkaHandlers) > 0 {
		topics := make([]string, 0, len(a.kafkaHandlers))
		for _, h := range a.kafkaHandlers {
			if err := a.consumer.RegisterHandler(h); err != nil {
				return err
			}
			topics = append(topics, h.Topic())
		}
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.l.Info("kafka consumer started", applogger.Strings("topics", topics))
	}

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.l.Error("http server start error", applogger.Error(err))
			return err
		}
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops intake first (HTTP, consumer), then background loops,
// then closes clients.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.l.Warn("background tasks did not stop in time")
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.l.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}
	a.l.Info("shutdown complete")
	return nil
}
