package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gbdelivering/backend-butchery/internal/auth"
	"github.com/gbdelivering/backend-butchery/internal/cart"
	"github.com/gbdelivering/backend-butchery/internal/catalog"
	"github.com/gbdelivering/backend-butchery/internal/checkout"
	"github.com/gbdelivering/backend-butchery/internal/cms"
	"github.com/gbdelivering/backend-butchery/internal/common"
	"github.com/gbdelivering/backend-butchery/internal/config"
	"github.com/gbdelivering/backend-butchery/internal/coupon"
	"github.com/gbdelivering/backend-butchery/internal/delivery"
	"github.com/gbdelivering/backend-butchery/internal/events"
	"github.com/gbdelivering/backend-butchery/internal/health"
	"github.com/gbdelivering/backend-butchery/internal/lock"
	"github.com/gbdelivering/backend-butchery/internal/notify"
	"github.com/gbdelivering/backend-butchery/internal/obs"
	"github.com/gbdelivering/backend-butchery/internal/offer"
	"github.com/gbdelivering/backend-butchery/internal/order"
	"github.com/gbdelivering/backend-butchery/internal/payment"
	"github.com/gbdelivering/backend-butchery/internal/ratelimit"
	"github.com/gbdelivering/backend-butchery/internal/repo"
	"github.com/gbdelivering/backend-butchery/internal/resilience"
	"github.com/gbdelivering/backend-butchery/internal/security"
	settingspkg "github.com/gbdelivering/backend-butchery/internal/settings"
)

const serviceName = "butchery-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(envOrDefault("LOG_LEVEL", "info")).With().
		Str("service", serviceName).
		Str("env", cfg.AppEnv).
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := obs.InitTracer(ctx, serviceName, cfg.OTLPEndpoint, cfg.TraceSampleRatio)
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdownTracer(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if cfg.MigrateOnStart {
		if err := runMigrations(cfg.MigrationsDir, cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
		logger.Info().Msg("migrations up to date")
	}

	pool := mustConnectDB(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustConnectRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	taskClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr(cfg.RedisURL)})
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	metrics := obs.NewHTTPMetrics("butchery", obs.ParseBucketsCSV(cfg.MetricsBuckets), nil)
	obs.MustRegisterDomainMetrics("butchery", nil)

	gatewayClient := &resilience.HTTPClient{
		Client:  &http.Client{Timeout: cfg.OutboundTimeout},
		Breaker: resilience.NewBreaker(cfg.CircuitMinRequests, cfg.CircuitFailureRatio, cfg.CircuitOpenFor),
		Timeout: cfg.OutboundTimeout,
	}
	oauthClient := &resilience.HTTPClient{
		Client:  &http.Client{Timeout: cfg.OutboundTimeout},
		Breaker: resilience.NewBreaker(cfg.CircuitMinRequests, cfg.CircuitFailureRatio, cfg.CircuitOpenFor),
		Timeout: cfg.OutboundTimeout,
	}

	products := repo.Products{DB: pool}
	carts := repo.Carts{DB: pool}
	orders := repo.Orders{DB: pool}
	zones := repo.Zones{DB: pool}
	coupons := repo.Coupons{DB: pool}
	offers := repo.Offers{DB: pool}
	users := repo.Users{DB: pool}
	payments := repo.Payments{DB: pool}
	pages := repo.Pages{DB: pool}
	storeSettings := repo.Settings{DB: pool}
	eventLog := repo.Events{DB: pool}

	bus := &events.Bus{
		Store: eventLog,
		Notifiers: []events.Notifier{
			notify.EmailNotifier{
				Mail:       notify.Enqueuer{Client: taskClient},
				Enabled:    cfg.SMTPHost != "",
				AdminEmail: cfg.AdminMail,
				StoreName:  "GB Delivering",
			},
		},
	}

	discounts := offer.Resolver{Offers: offers}

	catalogSvc := catalog.NewService(products, catalog.NewCache(redisClient, cfg.CatalogCacheTTL), discounts, bus, storeSettings, logger)
	cartSvc := &cart.Service{Carts: carts, Products: products, Discounts: discounts}
	couponSvc := coupon.NewService(coupons)
	deliverySvc := delivery.NewService(zones, decimal.NewFromInt(cfg.DefaultDeliveryFee), cfg.DeliveryDistanceKM)
	offerSvc := offer.NewService(offers)
	orderSvc := &order.Service{Store: orders, Settings: storeSettings}
	cmsSvc := cms.NewService(pages)
	settingsSvc := settingspkg.NewService(storeSettings)

	checkoutSvc := &checkout.Service{
		Tx:       checkout.PgTxRunner{Pool: pool},
		Delivery: checkout.ZoneFeeQuoter{Service: deliverySvc},
		Bus:      bus,
		Settings: storeSettings,
		Users:    users,
		Logger:   logger,
	}

	momo := payment.NewMoMo(payments, gatewayClient, cfg.MoMoAppID, cfg.MoMoAppSecret, cfg.MoMoBaseURL, logger)
	dpo := payment.NewDPO(payments, gatewayClient, cfg.DPOCompanyToken, cfg.DPOServiceType, cfg.DPOBaseURL, logger)

	authSvc, err := auth.NewService(auth.Config{
		Users:          users,
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	oauthSvc := auth.NewOAuth(authSvc, users, oauthClient,
		auth.OAuthApp{ClientID: cfg.GoogleClientID, ClientSecret: cfg.GoogleClientSecret},
		auth.OAuthApp{ClientID: cfg.FacebookClientID, ClientSecret: cfg.FacebookClientSecret},
		cfg.OAuthRedirectURL, logger)
	authMW := auth.Middleware{Service: authSvc}

	catalogHandler := catalog.NewHandler(catalogSvc)
	cartHandler := cart.NewHandler(cartSvc)
	couponHandler := coupon.NewHandler(couponSvc)
	deliveryHandler := delivery.NewHandler(deliverySvc)
	offerHandler := offer.NewHandler(offerSvc)
	orderHandler := order.NewHandler(orderSvc)
	cmsHandler := cms.NewHandler(cmsSvc)
	settingsHandler := settingspkg.NewHandler(settingsSvc)
	paymentHandler := payment.NewHandler(momo, dpo)
	authHandler := auth.NewHandler(authSvc, oauthSvc)
	checkoutHandler := checkout.NewHandler(checkoutSvc, lock.Locker{R: redisClient})
	healthHandler := health.Handler{Checker: health.Probes{Pool: pool, Redis: redisClient}}

	loginGuard := ratelimit.Guard{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl:login"},
		Window:  cfg.LoginRateWindow,
		Max:     cfg.LoginRateMax,
		Logger:  logger,
	}
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.EnableHSTS}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.HTTPObs(metrics))
	r.Use(obs.RequestLogger(logger))

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		// The admin subrouter is captured so handlers that register both
		// public and admin routes can be wired in one call.
		var admin chi.Router
		api.Route("/admin", func(ar chi.Router) {
			ar.Use(authMW.RequireRole("admin"))
			admin = ar
		})

		catalogHandler.Routes(admin, api)
		couponHandler.Routes(admin, api)
		deliveryHandler.Routes(admin, api)
		offerHandler.Routes(admin, api)
		cmsHandler.PublicRoutes(api)

		orderHandler.AdminRoutes(admin)
		cmsHandler.AdminRoutes(admin)
		settingsHandler.AdminRoutes(admin)

		api.Group(func(lim chi.Router) {
			lim.Use(loginGuard.Middleware)
			authHandler.PublicRoutes(lim)
		})

		api.Group(func(priv chi.Router) {
			priv.Use(authMW.RequireAuth)
			authHandler.AuthedRoutes(priv)
			cartHandler.Routes(priv)
			orderHandler.CustomerRoutes(priv)
			paymentHandler.Routes(priv)
			priv.Group(func(co chi.Router) {
				co.Use(idem.Middleware)
				checkoutHandler.Routes(co)
			})
		})
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}

func mustConnectDB(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database url")
	}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = serviceName

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(connectCtx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustConnectRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func runMigrations(dir, databaseURL string) error {
	m, err := migrate.New("file://"+dir, pgxMigrateURL(databaseURL))
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// pgxMigrateURL rewrites a postgres:// DSN for the migrate pgx/v5 driver.
func pgxMigrateURL(databaseURL string) string {
	if strings.HasPrefix(databaseURL, "postgres://") {
		return "pgx5://" + strings.TrimPrefix(databaseURL, "postgres://")
	}
	if strings.HasPrefix(databaseURL, "postgresql://") {
		return "pgx5://" + strings.TrimPrefix(databaseURL, "postgresql://")
	}
	return databaseURL
}

// redisAddr extracts host:port for asynq, which takes an address rather
// than a URL.
func redisAddr(redisURL string) string {
	if opts, err := redis.ParseURL(redisURL); err == nil {
		return opts.Addr
	}
	return redisURL
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
