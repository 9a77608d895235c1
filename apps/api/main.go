package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/S-troup10/westBasketball/libs/mailer"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const (
	storageTimeout             = 10 * time.Second
	maxContentBytes            = 5 * 1024 * 1024
	rateLimiterCleanupInterval = time.Minute
	rateLimiterVisitorTTL      = 10 * time.Minute
	shutdownTimeout            = 10 * time.Second
	requestIDHeader            = "X-Request-ID"
	corsAllowHeaders           = "Authorization, Content-Type"
	corsAllowMethods           = "GET,POST,OPTIONS"
	trustedProxyLoopbackIPv4   = "127.0.0.1"
	trustedProxyLoopbackIPv6   = "::1"
)

type App struct {
	cfg *Config
	log *slog.Logger

	content        ContentStore
	defaultContent json.RawMessage

	auth    *Authenticator
	mailer  *mailer.Mailer
	limiter rateLimiter

	registry *prometheus.Registry
	metrics  *appMetrics
}

type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string { return e.Message }

func main() {
	if err := loadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel()}))
	if cfg.AdminPassword == defaultAdminPassword {
		logger.Warn("ADMIN_PASSWORD is not set; using the built-in development password")
	}
	if cfg.TokenSecret == defaultTokenSecret {
		logger.Warn("TOKEN_SECRET is not set; using the built-in development secret")
	}

	ctx := context.Background()
	store, err := openContentStore(ctx, cfg, logger)
	if err != nil {
		panic(err)
	}
	defer store.Close()

	auth, err := NewAuthenticator(cfg.AdminPassword, cfg.TokenSecret)
	if err != nil {
		panic(err)
	}

	mailProvider := newMailProvider(cfg, logger)
	mailClient := mailer.New(mailProvider, cfg.mailerFromAddress())
	logger.Info("mailer initialized", "provider", mailClient.ProviderName(), "configured", mailClient.Configured())

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := &App{
		cfg:            cfg,
		log:            logger,
		content:        store,
		defaultContent: loadDefaultContent(cfg.DefaultContentPath, logger),
		auth:           auth,
		mailer:         mailClient,
		registry:       registry,
		metrics:        newAppMetrics(registry),
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	limiter, closeLimiter, err := app.newRateLimiter(cleanupCtx)
	if err != nil {
		panic(err)
	}
	defer closeLimiter()
	app.limiter = limiter

	logger.Info(
		"runtime configuration",
		"env", cfg.Env,
		"addr", cfg.Addr,
		"storage", storageKind(cfg.StorageURL),
		"contact_receiver_configured", cfg.ContactReceiverEmail != "",
		"redis_rate_limit", cfg.RedisURL != "",
	)

	if strings.EqualFold(cfg.Env, "production") {
		gin.SetMode(gin.ReleaseMode)
	}
	r, err := app.newRouter()
	if err != nil {
		panic(err)
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		app.log.Info("starting gin API", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.log.Error("shutdown error", "err", err)
	}
}

func (a *App) newRouter() (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies([]string{trustedProxyLoopbackIPv4, trustedProxyLoopbackIPv6}); err != nil {
		return nil, err
	}
	r.Use(gin.Recovery())
	r.Use(a.loggingMiddleware())
	r.Use(corsMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", a.readinessHandler)
	if a.registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		api.POST("/login", a.rateLimit("login"), a.loginHandler)

		api.GET("/content", a.contentGetHandler)
		api.POST("/content", a.requireAdminToken(), a.contentUpdateHandler)

		for _, path := range []string{"/contact", "/contact/"} {
			api.GET(path, a.contactProbeHandler)
			api.POST(path, a.rateLimit("contact"), a.contactSubmitHandler)
		}
	}

	return r, nil
}

func newMailProvider(cfg *Config, logger *slog.Logger) mailer.Provider {
	switch {
	case strings.EqualFold(cfg.MailerProvider, "log"):
		return mailer.NewLogProvider(logger)
	case cfg.SMTPHost != "":
		return mailer.NewSMTPProvider(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			Timeout:  cfg.SMTPTimeout,
		})
	case cfg.ResendAPIKey != "":
		return mailer.NewResendProvider(cfg.ResendAPIKey)
	default:
		return nil
	}
}

func (a *App) newRateLimiter(ctx context.Context) (rateLimiter, func(), error) {
	if a.cfg.RedisURL == "" {
		limiter := newMemoryRateLimiter(a.cfg.RateLimitRPS, a.cfg.RateLimitBurst)
		limiter.startCleanup(ctx, rateLimiterCleanupInterval, rateLimiterVisitorTTL)
		return limiter, func() {}, nil
	}

	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		a.log.Warn("redis ping failed; rate limiting will fail open until it recovers", "err", err)
	}
	limiter := newRedisRateLimiter(client, a.cfg.RateLimitRPS, a.cfg.RateLimitBurst, a.cfg.RateLimitWindow)
	return limiter, func() { _ = client.Close() }, nil
}

func (a *App) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := a.content.Ping(ctx); err != nil {
		a.log.Warn("readiness check failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (a *App) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		a.log.Info("request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}

// corsMiddleware applies the permissive policy the separately hosted front-end needs.
// Preflight requests are answered here for every path, routed or not.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
		c.Header("Access-Control-Allow-Methods", corsAllowMethods)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func writeAPIError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr.Message})
		return
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
