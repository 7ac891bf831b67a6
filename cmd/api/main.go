package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Itqan-community/itqan-cms/internal/auth"
	"github.com/Itqan-community/itqan-cms/internal/backend"
	"github.com/Itqan-community/itqan-cms/internal/background"
	"github.com/Itqan-community/itqan-cms/internal/catalog"
	"github.com/Itqan-community/itqan-cms/internal/config"
	"github.com/Itqan-community/itqan-cms/internal/database"
	"github.com/Itqan-community/itqan-cms/internal/forms"
	"github.com/Itqan-community/itqan-cms/internal/handlers"
	"github.com/Itqan-community/itqan-cms/internal/i18n"
	"github.com/Itqan-community/itqan-cms/internal/identity"
	middlewareCustom "github.com/Itqan-community/itqan-cms/internal/middleware"
	"github.com/Itqan-community/itqan-cms/internal/repositories"
	"github.com/Itqan-community/itqan-cms/internal/routes"
	"github.com/Itqan-community/itqan-cms/internal/services"
	"github.com/Itqan-community/itqan-cms/internal/session"
	"github.com/Itqan-community/itqan-cms/internal/storage"
	pkghttp "github.com/Itqan-community/itqan-cms/pkg/http"
	pkglogger "github.com/Itqan-community/itqan-cms/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// flowTTL bounds how long a user may take at the provider's login page.
const flowTTL = 10 * time.Minute

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("session_store", cfg.Session.Store),
		slog.String("catalog_source", cfg.Catalog.Source))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Database, only when a component is backed by postgres
	var db *database.DB
	var health handlers.HealthChecker
	if cfg.UsesDatabase() {
		db, err = database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		health = db

		if cfg.Database.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				logger.Error("failed to run migrations", slog.Any("error", err))
				os.Exit(1)
			}
		}
	}

	// Session store
	var store session.Store
	var expirer session.Expirer
	switch cfg.Session.Store {
	case "postgres":
		repo := repositories.NewSessionRepository(db, cfg.Session.TTL)
		store, expirer = repo, repo
	default:
		mem := session.NewMemoryStore(cfg.Session.TTL)
		store, expirer = mem, mem
	}
	cleanupManager := background.NewCleanupManager(expirer, logger, cfg.Session.CleanupInterval)

	// Purpose-bound keys derived from SESSION_SECRET
	flowKey, err := cfg.Session.DeriveKey("login-flow")
	if err != nil {
		logger.Error("failed to derive login flow key", slog.Any("error", err))
		os.Exit(1)
	}
	csrfKey, err := cfg.Session.DeriveKey("csrf")
	if err != nil {
		logger.Error("failed to derive CSRF key", slog.Any("error", err))
		os.Exit(1)
	}

	// Identity provider
	idp, err := identity.NewProvider(ctx, identity.Config{
		IssuerURL:          cfg.Identity.IssuerURL,
		ClientID:           cfg.Identity.ClientID,
		ClientSecret:       cfg.Identity.ClientSecret,
		Audience:           cfg.Identity.Audience,
		Scopes:             cfg.Identity.Scopes,
		RedirectURL:        cfg.CallbackURL(),
		DBConnection:       cfg.Identity.DBConnection,
		AllowedConnections: cfg.Identity.AllowedConnections,
	}, identity.NewFlowCodec(flowKey, flowTTL))
	if err != nil {
		logger.Error("failed to initialize identity provider", slog.Any("error", err))
		os.Exit(1)
	}

	// Session reconciler
	auditLogger := pkglogger.NewAuditLogger(logger)
	backendClient := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, nil, logger)
	reconciler := session.NewReconciler(store, idp, backendClient, logger, auditLogger)

	if cfg.Email.Enabled {
		welcome, err := services.NewWelcomeEmailService(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Server.PublicURL, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		reconciler.SetWelcomeNotifier(welcome)
	}

	// Catalog
	var source catalog.Source
	switch cfg.Catalog.Source {
	case "postgres":
		source = repositories.NewAssetRepository(db)
	default:
		source = catalog.NewMockSource()
	}
	catalogService := catalog.NewService(source, cfg.Catalog.DefaultPerPage, cfg.Catalog.MaxPerPage, logger)

	var signer handlers.DownloadSigner
	if cfg.Storage.Bucket != "" {
		presigner, err := storage.NewPresigner(ctx, cfg.Storage)
		if err != nil {
			logger.Error("failed to initialize storage", slog.Any("error", err))
			os.Exit(1)
		}
		signer = presigner
	} else {
		logger.Warn("S3_BUCKET not set, asset downloads are disabled")
	}

	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid trusted proxy configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// HTTP layer
	cookieCfg := auth.CookieConfig{
		Domain:   cfg.Session.CookieDomain,
		Secure:   cfg.SecureCookies(),
		SameSite: cfg.Session.SameSite,
	}
	sessionCfg := auth.SessionConfig{CookieName: cfg.Session.CookieName, TTL: cfg.Session.TTL, Cookie: cookieCfg}
	csrf := middlewareCustom.NewCSRF(auth.NewCSRFTokenManager(csrfKey), cookieCfg, cfg.Session.TTL, logger)
	inflight := forms.NewInFlight()

	deps := routes.Dependencies{
		Auth:          handlers.NewAuthHandler(reconciler, csrf, sessionCfg, cfg.Server.PublicURL, inflight, logger),
		Session:       handlers.NewSessionHandler(reconciler, logger),
		Profile:       handlers.NewProfileHandler(reconciler, inflight, logger),
		Catalog:       handlers.NewCatalogHandler(catalogService, reconciler, signer, auditLogger, logger),
		Pages:         handlers.NewPageHandler(reconciler, cfg.Server.FrontendDir, logger),
		Health:        handlers.Health(health),
		SessionConfig: sessionCfg,
		CSRF:          csrf,
		IPConfig:      ipConfig,
	}

	securityConfig := middlewareCustom.SecurityHeadersConfig{
		Env:            cfg.Server.Env,
		IdentityOrigin: originOf(cfg.Identity.IssuerURL),
	}
	if cfg.Storage.BaseEndpoint != "" {
		securityConfig.AssetOrigins = []string{originOf(cfg.Storage.BaseEndpoint)}
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(securityConfig))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middlewareCustom.RequestMeta(ipConfig))
	router.Use(i18n.Middleware)

	routes.RegisterRoutes(router, deps)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// originOf reduces a URL to scheme://host for CSP source lists.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
