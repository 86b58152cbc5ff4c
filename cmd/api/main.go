package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/scentmarket/internal/audit"
	"github.com/noah-isme/scentmarket/internal/auth"
	"github.com/noah-isme/scentmarket/internal/cart"
	"github.com/noah-isme/scentmarket/internal/checkout"
	"github.com/noah-isme/scentmarket/internal/common"
	"github.com/noah-isme/scentmarket/internal/config"
	"github.com/noah-isme/scentmarket/internal/coupon"
	"github.com/noah-isme/scentmarket/internal/db"
	"github.com/noah-isme/scentmarket/internal/events"
	"github.com/noah-isme/scentmarket/internal/health"
	"github.com/noah-isme/scentmarket/internal/lock"
	"github.com/noah-isme/scentmarket/internal/loyalty"
	"github.com/noah-isme/scentmarket/internal/obs"
	"github.com/noah-isme/scentmarket/internal/order"
	"github.com/noah-isme/scentmarket/internal/ratelimit"
	"github.com/noah-isme/scentmarket/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Str("service", "scentmarket-api").Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "scentmarket")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "scentmarket-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, obs.PGXTracer{})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse asynq redis uri")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token verifier")
	}
	authMiddleware := auth.Middleware{Verifier: verifier}
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	bus := &events.Bus{
		Store: events.PGStore{DB: pool},
		Notifiers: []events.Notifier{
			loyalty.CreditNotifier{Client: taskClient, Queue: cfg.LoyaltyQueue, Log: logger},
		},
	}

	cartSvc := &cart.Service{Repo: cart.NewCachedRepository(cart.Store{DB: pool}, redisClient, cfg.ProductCacheTTL, logger)}
	cartHandler := &cart.Handler{Svc: cartSvc, Currency: cfg.CurrencyCode}

	couponStore := coupon.Store{DB: pool}
	couponHandler := &coupon.Handler{
		Svc:   &coupon.Service{Q: couponStore},
		Store: couponStore,
		Cart:  cartSvc,
	}
	previewLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:"},
		Config: ratelimit.Config{
			Key:    ratelimit.ByUser("coupon-preview"),
			Window: cfg.CouponPreviewWindow,
			Max:    cfg.CouponPreviewLimit,
		},
		OnError: func(err error) { logger.Warn().Err(err).Msg("coupon preview rate limiter") },
	}

	walletHandler := &loyalty.Handler{Store: loyalty.Store{DB: pool}, CoinValue: cfg.Pricing.CoinValue}

	checkoutSvc := &checkout.Service{
		Repo:        checkout.PGRepository{DB: pool},
		Locker:      lock.Locker{R: redisClient, MaxWait: cfg.CheckoutLockTTL},
		LockTTL:     cfg.CheckoutLockTTL,
		Bus:         bus,
		Policy:      cfg.Pricing,
		Currency:    cfg.CurrencyCode,
		MaxAttempts: cfg.CheckoutMaxAttempts,
		Log:         logger.With().Str("component", "checkout").Logger(),
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}

	orderHandler := &order.Handler{Svc: &order.Service{
		Repo: order.Store{DB: pool},
		Bus:  bus,
		Log:  logger.With().Str("component", "order").Logger(),
	}}

	auditStore := audit.PGStore{DB: pool}
	auditRec := audit.HTTPRecorder{
		Service: &audit.Service{Store: auditStore, Enabled: cfg.AuditEnabled},
		OnError: func(err error) { logger.Error().Err(err).Msg("record audit log") },
	}
	auditHandler := audit.Handler{Store: auditStore}

	apiLimit, err := ratelimit.NewGlobal(redisClient, cfg.APIRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise api rate limiter")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(security.TrustedProxies{Prefixes: cfg.TrustedProxies}.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{
		HSTS:          envBool("SECURE_HSTS", cfg.AppEnv == "production"),
		NoStorePrefix: "/api/",
	}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", cfg.AppEnv != "production") {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      health.Deps{Pool: pool, Redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(apiLimit)
		v.Use(security.BodyLimit{Max: int64(envInt("SECURE_MAX_BODY_BYTES", 64<<10))}.Middleware)

		v.Group(func(authR chi.Router) {
			authR.Use(authMiddleware.RequireAuth)

			authR.Route("/cart", func(c chi.Router) {
				c.Get("/", cartHandler.Get)
				c.Post("/items", cartHandler.AddItem)
				c.Patch("/items/{itemId}", cartHandler.UpdateItem)
				c.Delete("/items/{itemId}", cartHandler.RemoveItem)
			})

			authR.With(previewLimit.Middleware).Post("/coupons/preview", couponHandler.Preview)
			authR.Get("/wallet", walletHandler.Get)

			authR.Post("/checkout/quote", checkoutHandler.Quote)
			authR.With(idem.Middleware).Post("/checkout", checkoutHandler.Checkout)
			authR.Get("/orders/{orderId}", orderHandler.Get)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)
			admin.Use(auth.RequireRole("admin"))
			admin.Get("/coupons", couponHandler.List)
			admin.With(auditRec.Middleware(audit.HTTPConfig{Action: "coupon.create", ResourceType: "coupon"})).
				Post("/coupons", couponHandler.Create)
			admin.Get("/coupons/{code}", couponHandler.Get)
			admin.With(auditRec.Middleware(audit.HTTPConfig{Action: "coupon.update", ResourceType: "coupon", ResourceIDParam: "code"})).
				Put("/coupons/{code}", couponHandler.Update)
			admin.With(idem.Middleware, auditRec.Middleware(audit.HTTPConfig{Action: "order.confirm", ResourceType: "order", ResourceIDParam: "orderId"})).
				Post("/orders/{orderId}/confirm", orderHandler.Confirm)
			admin.Get("/audit-logs", auditHandler.List)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case sig := <-stop:
		gracefulShutdown(srv, logger, sig)
	}
}

// gracefulShutdown flips readiness first so load balancers drain the instance before
// in-flight requests are cut.
func gracefulShutdown(srv *http.Server, logger zerolog.Logger, sig os.Signal) {
	logger.Info().Str("signal", sig.String()).Msg("shutting down")
	health.SetReady(false)
	time.Sleep(envDurationMillis("SHUTDOWN_DRAIN_DELAY_MS", 2000))

	ctx, cancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 15000))
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
