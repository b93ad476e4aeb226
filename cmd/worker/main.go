package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taxbridge/internal/app"
	"github.com/noah-isme/taxbridge/internal/config"
	"github.com/noah-isme/taxbridge/internal/obs"
	"github.com/noah-isme/taxbridge/internal/order"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics("taxbridge", nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName:   "taxbridge-worker",
		Endpoint:      cfg.OTelEndpoint,
		Exporter:      cfg.OTelExporter,
		SamplingRatio: cfg.OTelSamplingRatio,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise tracing")
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	deps, err := app.New(connectCtx, cfg, logger, "taxbridge-worker")
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	redisOpt, err := app.RedisConnOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("configure task queue")
	}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.QueueConcurrency,
		Logger:          queueLogger{logger: logger},
		ShutdownTimeout: 20 * time.Second,
		ErrorHandler: asynq.ErrorHandlerFunc(func(taskCtx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(taskCtx)
			logger.Warn().Err(err).Str("task", task.Type()).Int("retried", retried).Msg("task_failed")
		}),
	})

	handler := &order.TaskHandler{Reconciler: deps.Reconciler(), Logger: logger}

	logger.Info().Int("concurrency", cfg.QueueConcurrency).Msg("worker starting")
	if err := srv.Start(handler.Mux()); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

// queueLogger routes asynq logs through zerolog.
type queueLogger struct {
	logger zerolog.Logger
}

func (l queueLogger) Debug(args ...any) { l.logger.Debug().Msg(sprint(args)) }
func (l queueLogger) Info(args ...any)  { l.logger.Info().Msg(sprint(args)) }
func (l queueLogger) Warn(args ...any)  { l.logger.Warn().Msg(sprint(args)) }
func (l queueLogger) Error(args ...any) { l.logger.Error().Msg(sprint(args)) }
func (l queueLogger) Fatal(args ...any) { l.logger.Fatal().Msg(sprint(args)) }

func sprint(args []any) string { return fmt.Sprint(args...) }
