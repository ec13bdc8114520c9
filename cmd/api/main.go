package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/campuskart/backend-store/internal/auth"
	"github.com/campuskart/backend-store/internal/cart"
	"github.com/campuskart/backend-store/internal/catalog"
	"github.com/campuskart/backend-store/internal/checkout"
	"github.com/campuskart/backend-store/internal/common"
	"github.com/campuskart/backend-store/internal/config"
	"github.com/campuskart/backend-store/internal/coupon"
	"github.com/campuskart/backend-store/internal/events"
	"github.com/campuskart/backend-store/internal/health"
	"github.com/campuskart/backend-store/internal/notify"
	"github.com/campuskart/backend-store/internal/obs"
	"github.com/campuskart/backend-store/internal/order"
	"github.com/campuskart/backend-store/internal/payment"
	"github.com/campuskart/backend-store/internal/store"
)

func main() {
	cfg := config.MustLoad()

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	if cfg.TracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "campuskart-api",
			Endpoint:      cfg.TracingEndpoint,
			Exporter:      "otlp",
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	bootCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "campuskart-api"

	pool, err := pgxpool.NewWithConfig(bootCtx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(bootCtx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	queries := store.New(pool)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(bootCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	validate := validator.New()

	catalogCache := catalog.NewCache(redisClient, cfg.CatalogTTL)
	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Queries: queries,
		Cache:   catalogCache,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService})
	catalogAdmin := &catalog.AdminHandler{Store: queries, Cache: catalogCache, Validate: validate}

	authService, err := auth.NewService(auth.Config{
		Queries:        queries,
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
		Issuer:         "campuskart-api",
		Audience:       "campuskart-store",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{Service: authService}
	authMW := auth.Middleware{Service: authService}

	bus := &events.Bus{
		Store: queries,
		Notifiers: []events.Notifier{
			notify.Enqueuer{Client: taskClient, Topics: notify.EmailTopics()},
		},
	}

	couponSvc := &coupon.Service{Q: queries}
	couponHandler := &coupon.Handler{Store: queries, Svc: couponSvc}

	cartSvc := &cart.Service{Q: queries, Coupons: couponSvc, TTL: cfg.CartTTL}
	cartHandler := &cart.Handler{Svc: cartSvc}

	checkoutSvc := &checkout.Service{
		Tx:                checkout.PoolRunner{Pool: pool},
		Coupons:           couponSvc,
		Events:            bus,
		TaxBps:            int(cfg.TaxBps),
		ShippingFee:       cfg.ShippingFee,
		FreeShippingAbove: cfg.FreeShippingAbove,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}

	orderHandler := &order.Handler{Store: queries, Events: bus}
	orderAdmin := &order.AdminHandler{Store: queries, Events: bus}

	gateway := payment.Razorpay{
		KeyID:         cfg.RazorpayKeyID,
		KeySecret:     cfg.RazorpayKeySecret,
		WebhookSecret: cfg.RazorpayWebhookSecret,
		Client:        payment.HTTPClient(10 * time.Second),
	}
	paymentSvc := &payment.Service{Q: queries, Provider: gateway, Events: bus}
	paymentHandler := &payment.Handler{Svc: paymentSvc}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	checkoutRate, err := limiter.NewRateFromFormatted(cfg.RateLimitCheckout)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse checkout rate limit")
	}
	limiterStore, err := limiterredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "ratelimit"})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter store")
	}
	checkoutLimit := limiterstdlib.NewMiddleware(limiter.New(limiterStore, checkoutRate))

	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, nil, nil)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	if cfg.AppEnv != "production" {
		r.Mount("/debug", chimw.Profiler())
	}

	healthHandler := health.Handler{Checker: health.DepsChecker{Pool: pool, Redis: redisClient}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(authMW.Authenticate)

		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{slug}", catalogHandler.ProductDetail)

		v.Route("/auth", func(a chi.Router) {
			a.Post("/register", authHandler.Register)
			a.Post("/login", authHandler.Login)
			a.With(authMW.RequireAuth).Get("/me", authHandler.Me)
		})

		v.Route("/cart", func(c chi.Router) {
			c.Use(authMW.RequireAuth)
			c.Get("/", cartHandler.Get)
			c.Post("/items", cartHandler.AddItem)
			c.Patch("/items/{itemID}", cartHandler.UpdateItem)
			c.Delete("/items/{itemID}", cartHandler.RemoveItem)
			c.Post("/coupon", cartHandler.ApplyCoupon)
			c.Delete("/coupon", cartHandler.RemoveCoupon)
		})

		v.With(authMW.RequireAuth).Post("/coupons/validate", couponHandler.Validate)

		v.With(checkoutLimit.Handler, idem.Middleware, authMW.RequireAuth).
			Post("/checkout", checkoutHandler.Create)

		v.Group(func(g chi.Router) {
			g.Use(authMW.RequireAuth)
			g.Get("/orders", orderHandler.List)
			g.Get("/orders/{orderID}", orderHandler.Get)
			g.Post("/orders/{orderID}/cancel", orderHandler.Cancel)
		})

		v.Route("/payments", func(p chi.Router) {
			p.Use(authMW.RequireAuth)
			p.Post("/orders/{orderID}/intent", paymentHandler.CreateIntent)
			p.Post("/orders/{orderID}/confirm", paymentHandler.Confirm)
		})
		v.Post("/webhooks/razorpay", paymentHandler.Webhook)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMW.RequireRole(auth.RoleAdmin))
			admin.Post("/products", catalogAdmin.Create)
			admin.Put("/products/{id}", catalogAdmin.Update)
			admin.Delete("/products/{id}", catalogAdmin.Delete)
			admin.Get("/coupons", couponHandler.List)
			admin.Post("/coupons", couponHandler.Create)
			admin.Put("/coupons/{code}", couponHandler.Update)
			admin.Delete("/coupons/{code}", couponHandler.Delete)
			admin.Get("/orders", orderAdmin.List)
			admin.Get("/orders/{orderID}", orderAdmin.Get)
			admin.Patch("/orders/{orderID}/status", orderAdmin.PatchStatus)
			admin.Patch("/orders/{orderID}/paid", orderAdmin.MarkPaid)
			admin.Delete("/orders/{orderID}", orderAdmin.Delete)
			admin.Patch("/users/{id}/access", authHandler.UpdateAccess)
		})

		v.Route("/agent", func(agent chi.Router) {
			agent.Use(authMW.RequireRole(auth.RoleAgent))
			agent.Get("/orders", orderAdmin.AgentList)
			agent.Post("/orders/{orderID}/advance", orderAdmin.AgentAdvance)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server shutdown complete")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
