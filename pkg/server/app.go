package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Areopagus/internal/usecase"
	"Areopagus/pkg/config"
	xhttp "Areopagus/pkg/http"
	pkgkafka "Areopagus/pkg/kafka"
	applogger "Areopagus/pkg/logger"
	"Areopagus/pkg/queue"
)

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	engine     *usecase.Engine
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	handlers   []pkgkafka.MessageHandler
	intake     *queue.RedisQueue
	watcher    *usecase.SettingsWatcher
	closers    []closer
}

type Option func(*App)

// WithConsumer attaches the Kafka consumer and the handlers it dispatches to.
func WithConsumer(c *pkgkafka.Consumer, handlers ...pkgkafka.MessageHandler) Option {
	return func(a *App) {
		a.consumer = c
		a.handlers = handlers
	}
}

// WithQueueIntake attaches a Redis queue consumer with its jobs registered.
func WithQueueIntake(q *queue.RedisQueue) Option {
	return func(a *App) { a.intake = q }
}

func WithSettingsWatcher(w *usecase.SettingsWatcher) Option {
	return func(a *App) { a.watcher = w }
}

// WithCloser registers fn to run on shutdown. Closers run in reverse order.
func WithCloser(name string, fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, closer{name: name, fn: fn}) }
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, engine *usecase.Engine, httpServer *xhttp.Server, opts ...Option) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{cfg: cfg, logger: l, engine: engine, httpServer: httpServer}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *App) Engine() *usecase.Engine { return a.engine }

// Run starts the consumer, the settings watcher and the HTTP server, then
// blocks until ctx is cancelled or the process receives SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.consumer != nil {
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
		}
		if err := a.consumer.Start(); err != nil {
			return err
		}
		topics := make([]string, 0, len(a.handlers))
		for _, h := range a.handlers {
			topics = append(topics, h.Topic())
		}
		a.logger.Info("kafka intake ready", applogger.Strings("topics", topics))
	}

	if a.intake != nil {
		if err := a.intake.Start(); err != nil {
			a.stopConsumer()
			return err
		}
		a.logger.Info("redis intake ready")
	}

	watchDone := make(chan struct{})
	if a.watcher != nil {
		go func() {
			defer close(watchDone)
			a.watcher.Run(ctx)
		}()
	} else {
		close(watchDone)
	}

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.logger.Error("http server start error", applogger.Error(err))
			return err
		}
	}

	a.logger.Info("engine running",
		applogger.Strings("symbols", a.engine.Symbols()),
		applogger.String("environment", a.cfg.Environment),
	)

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	<-watchDone
	return a.shutdown()
}

// shutdown stops intake first so no tick is in flight when sinks close.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	var errs []error
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.intake != nil {
		if err := a.intake.Stop(ctx); err != nil {
			a.logger.Warn("redis intake stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.logger.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
			errs = append(errs, err)
		}
	}

	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) stopConsumer() {
	if a.consumer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	_ = a.consumer.Stop(ctx)
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg != nil && a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 15 * time.Second
}
