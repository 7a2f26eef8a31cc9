package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voltplan/voltplan/internal/auth/audit"
	"github.com/voltplan/voltplan/internal/auth/domain"
	httpapi "github.com/voltplan/voltplan/internal/auth/http"
	"github.com/voltplan/voltplan/internal/auth/service"
	"github.com/voltplan/voltplan/internal/auth/store"
	"github.com/voltplan/voltplan/internal/auth/store/drivers/sqlite"
	"github.com/voltplan/voltplan/pkg/cryptox"
	"github.com/voltplan/voltplan/pkg/idx"
	"github.com/voltplan/voltplan/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db store.Store

	authService         *service.AuthService
	tokenService        *service.TokenService
	sessionManager      *service.SessionManager
	keyStore            *service.KeyStore
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "voltplan-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	ctx := context.Background()
	if err := app.bootstrap(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initServices() error {
	salt, err := loadOrGenerateSecret(app.cfg.SaltFile)
	if err != nil {
		return fmt.Errorf("failed to load refresh token salt: %w", err)
	}

	masterSecret, err := loadOrGenerateSecret(app.cfg.MasterKeyFile)
	if err != nil {
		return fmt.Errorf("failed to load master key: %w", err)
	}

	cipher, err := cryptox.NewKeyCipher(masterSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize key cipher: %w", err)
	}

	recorder := audit.SlogRecorder{}

	app.keyStore = &service.KeyStore{
		Store:   app.db,
		Cipher:  cipher,
		RSABits: app.cfg.RSABits,
		Audit:   recorder,
	}

	app.tokenService = &service.TokenService{
		Keys:           app.keyStore,
		Issuer:         app.cfg.Issuer,
		AccessTokenTTL: app.cfg.AccessTokenTTL,
	}

	app.sessionManager = &service.SessionManager{
		Store:           app.db,
		Salt:            salt,
		RefreshTokenTTL: app.cfg.RefreshTokenTTL,
		DisableRotation: !app.cfg.RefreshRotate,
	}

	app.authService = &service.AuthService{
		Store:    app.db,
		Tokens:   app.tokenService,
		Sessions: app.sessionManager,
		Hasher:   cryptox.DefaultArgon2Hasher(),
		Audit:    recorder,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.SessionRetention,
	)

	return nil
}

// bootstrap makes sure the service can actually serve: an active signing key
// always, and an initial admin account when configured and the users table is
// still empty.
func (app *Application) bootstrap(ctx context.Context) error {
	key, err := app.keyStore.CreateInitialKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure signing key: %w", err)
	}
	app.logger.Info("active signing key ready", "kid", key.Kid)

	if app.cfg.AdminEmail == "" || app.cfg.AdminPassword == "" {
		return nil
	}

	empty, err := app.db.Users().IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("failed to check users table: %w", err)
	}
	if !empty {
		return nil
	}

	hash, err := app.authService.Hasher.Hash(app.cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	now := time.Now().UTC()
	admin := domain.User{
		ID:           idx.New().String(),
		Email:        app.cfg.AdminEmail,
		Name:         "Administrator",
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := app.db.Users().CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	app.logger.Info("bootstrap admin created", "email", admin.Email)
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	router.AuthService = app.authService
	router.TokenService = app.tokenService
	router.SessionManager = app.sessionManager
	router.KeyStore = app.keyStore
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
