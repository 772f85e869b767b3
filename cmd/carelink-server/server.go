package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/config"
	"github.com/carelink/carelink/internal/domain/admin"
	"github.com/carelink/carelink/internal/domain/assessment"
	"github.com/carelink/carelink/internal/domain/bpl"
	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/domain/lab"
	"github.com/carelink/carelink/internal/domain/onboarding"
	"github.com/carelink/carelink/internal/domain/pharmacy"
	"github.com/carelink/carelink/internal/domain/prescription"
	"github.com/carelink/carelink/internal/domain/screening"
	"github.com/carelink/carelink/internal/domain/teleconsult"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/db"
	"github.com/carelink/carelink/internal/platform/fieldcrypt"
	"github.com/carelink/carelink/internal/platform/httpx"
	"github.com/carelink/carelink/internal/platform/llm"
	"github.com/carelink/carelink/internal/platform/middleware"
	"github.com/carelink/carelink/internal/platform/otp"
	"github.com/carelink/carelink/internal/platform/pdf"
	"github.com/carelink/carelink/internal/platform/realtime"
	"github.com/carelink/carelink/internal/platform/storage"
	"github.com/carelink/carelink/internal/web"
)

const (
	requestTimeout = 60 * time.Second
	bodyLimit      = "12M"
)

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

// newOTPStore keeps codes in Redis when REDIS_URL is set. The in-memory store
// only works for a single instance.
func newOTPStore(cfg *config.Config, logger zerolog.Logger) (otp.Store, func(), error) {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set; OTP codes kept in memory")
		return otp.NewMemoryStore(), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, err
	}
	return otp.NewRedisStore(rdb), func() { rdb.Close() }, nil
}

func newSMSSender(cfg *config.Config, logger zerolog.Logger) otp.Sender {
	if cfg.SMSAPIURL == "" {
		logger.Warn().Msg("SMS_API_URL not set; OTP messages are logged instead of sent")
		return otp.LogSender{Logger: logger}
	}
	return otp.NewHTTPSMSSender(cfg.SMSAPIURL, cfg.SMSAPIKey)
}

func newBucketStore(cfg *config.Config, logger zerolog.Logger) storage.BucketStore {
	if !cfg.StorageEnabled() {
		logger.Warn().Msg("STORAGE_URL not set; uploads kept in memory")
		return storage.NewMemoryBucketStore()
	}
	return storage.NewHTTPBucketStore(cfg.StorageURL, cfg.StorageServiceKey)
}

// newCompleter returns nil when no LLM is configured, which sends every
// screening straight to the static question list.
func newCompleter(cfg *config.Config) llm.Completer {
	if !cfg.LLMEnabled() {
		return nil
	}
	return llm.NewClient(cfg.LLMAPIURL, cfg.LLMAPIKey, cfg.LLMModel)
}

func newFieldCipher(cfg *config.Config, logger zerolog.Logger) (*fieldcrypt.Encryptor, error) {
	if key := cfg.FieldKey(); key != nil {
		return fieldcrypt.New(key)
	}
	logger.Warn().Msg("FIELD_ENCRYPTION_KEY not set; using an ephemeral key (stored aadhaar numbers will not decrypt after restart)")
	return fieldcrypt.NewEphemeral()
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, poolOptions(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")
	tx := db.NewTxManager(pool)

	// Collaborators
	otpStore, closeOTPStore, err := newOTPStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer closeOTPStore()

	otpMgr := otp.NewManager(otpStore, newSMSSender(cfg, logger), otp.Config{
		Length: cfg.OTPLength,
		TTL:    cfg.OTPTTL,
	}, logger)

	signingKey, randomKey, err := resolveSigningKey(cfg.JWTSigningKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("signing key error")
	}
	if randomKey {
		logger.Warn().Msg("JWT_SIGNING_KEY not set; using random key (sessions will not survive restart)")
	}
	jwtCfg := auth.JWTConfig{
		SigningKey: signingKey,
		TTL:        cfg.JWTTTL,
		Skipper:    auth.AuthSkipper,
	}
	issuer := auth.NewIssuer(jwtCfg)

	store := newBucketStore(cfg, logger)
	renderer, err := pdf.NewRenderer(pdf.Options{
		Provider:    cfg.PDFProvider,
		APIURL:      cfg.PDFAPIURL,
		APIKey:      cfg.PDFAPIKey,
		PDFShiftKey: cfg.PDFShiftAPIKey,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure pdf renderer")
	}
	cipher, err := newFieldCipher(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure field encryption")
	}
	minter := teleconsult.NewMinter(cfg.VideoAppID, cfg.VideoAppSecret)
	if !minter.Enabled() {
		logger.Warn().Msg("VIDEO_APP_ID not set; video tokens are unavailable")
	}
	hub := realtime.NewHub(logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpx.ErrorHandler(logger)

	pages, err := web.NewRenderer()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse page templates")
	}
	e.Renderer = pages

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit(bodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	e.Use(middleware.Audit(logger))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	apiV1.Use(middleware.RequestTimeout(requestTimeout, logger))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return httpx.OK(c, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))

	// Identity
	userRepo := identity.NewUserRepoPG(pool)
	identitySvc := identity.NewService(userRepo, otpMgr, issuer, logger)
	identity.NewHandler(identitySvc, middleware.RateLimit(middleware.OTPRateLimitConfig())).RegisterRoutes(apiV1)

	// Provider onboarding
	onboardingSvc := onboarding.NewService(onboarding.NewRepoPG(pool), userRepo, tx,
		store, cfg.StorageBucketDocuments, logger)
	onboarding.NewHandler(onboardingSvc).RegisterRoutes(apiV1)

	// BPL welfare
	bplSvc := bpl.NewService(bpl.NewRepoPG(pool), cipher, store, cfg.StorageBucketDocuments, logger)
	bpl.NewHandler(bplSvc).RegisterRoutes(apiV1)

	// Clinical
	prescriptionSvc := prescription.NewService(prescription.NewRepoPG(pool), userRepo, tx,
		renderer, store, cfg.StorageBucketPrescriptions, logger)
	prescription.NewHandler(prescriptionSvc).RegisterRoutes(apiV1)

	assessmentSvc := assessment.NewService(assessment.NewRepoPG(pool), tx, logger)
	assessment.NewHandler(assessmentSvc).RegisterRoutes(apiV1)

	screeningSvc := screening.NewService(screening.NewRepoPG(pool), newCompleter(cfg), logger)
	screening.NewHandler(screeningSvc).RegisterRoutes(apiV1)

	// Orders
	pharmacySvc := pharmacy.NewService(pharmacy.NewInventoryRepoPG(pool), pharmacy.NewOrderRepoPG(pool), tx, hub, logger)
	pharmacy.NewHandler(pharmacySvc).RegisterRoutes(apiV1)

	labSvc := lab.NewService(lab.NewRepoPG(pool), userRepo, store, cfg.StorageBucketReports, hub, logger)
	lab.NewHandler(labSvc).RegisterRoutes(apiV1)

	// Teleconsultation
	teleconsultSvc := teleconsult.NewService(teleconsult.NewRepoPG(pool), userRepo, minter, logger)
	teleconsult.NewHandler(teleconsultSvc).RegisterRoutes(apiV1)

	// Admin dashboard
	adminSvc := admin.NewService(identitySvc, onboardingSvc, bplSvc, pharmacySvc, screeningSvc, logger)
	admin.NewHandler(adminSvc).RegisterRoutes(apiV1)

	// Realtime order feed
	realtime.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(apiV1)

	// Landing page
	web.NewHandler("/api/v1").RegisterRoutes(e)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
