package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/taxbridge/internal/app"
	"github.com/noah-isme/taxbridge/internal/auth"
	"github.com/noah-isme/taxbridge/internal/config"
	"github.com/noah-isme/taxbridge/internal/health"
	"github.com/noah-isme/taxbridge/internal/migrations"
	"github.com/noah-isme/taxbridge/internal/obs"
	"github.com/noah-isme/taxbridge/internal/order"
	"github.com/noah-isme/taxbridge/internal/ratelimit"
	"github.com/noah-isme/taxbridge/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	obs.MustRegisterDomainMetrics("taxbridge", nil)
	httpMetrics := obs.NewHTTPMetrics("taxbridge", nil, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName:   "taxbridge-api",
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

	if cfg.MigrateOnStart {
		if err := migrations.Up(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	deps, err := app.New(connectCtx, cfg, logger, "taxbridge-api")
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	redisOpt, err := app.RedisConnOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("configure task queue")
	}
	tasks := asynq.NewClient(redisOpt)
	defer func() {
		if err := tasks.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	limiterStore, err := ratelimit.NewStore(deps.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter store")
	}
	limit, err := ratelimit.Handler{Store: limiterStore, Rate: cfg.RateLimit, Logger: logger}.Middleware()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	recalcHandler := deps.Engine.Handler(logger.With().Str("component", "recalculate").Logger())
	orderHandler := order.NewHandler(deps.Orders, tasks, logger.With().Str("component", "order").Logger())
	authMiddleware := auth.Middleware{Verifier: deps.Verifier}

	healthHandler := health.Handler{
		Probes: map[string]health.Probe{
			"db":       deps.DB.Ping,
			"redis":    func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() },
			"provider": deps.Engine.Adapter.Ping,
		},
		Timeout: 2 * time.Second,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{HSTSMaxAge: int((365 * 24 * time.Hour).Seconds())}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", ratelimit.SalesChannelHeader},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	if user := strings.TrimSpace(os.Getenv("SECURE_PPROF_BASIC_AUTH_USER")); user != "" {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, os.Getenv("SECURE_PPROF_BASIC_AUTH_PASS")))
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyCapture{Max: cfg.RequestBodyLimit}.Middleware)
		v.With(limit).Post("/cart/recalculate", recalcHandler.Recalculate)

		v.Route("/orders/{orderID}/taxes", func(o chi.Router) {
			o.Use(authMiddleware.RequireAuth)
			o.Post("/", orderHandler.Submit)
			o.Get("/", orderHandler.Get)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(strings.TrimSpace(pass))) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
