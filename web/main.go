package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/devilmonastery/passage/internal/auth"
	"github.com/devilmonastery/passage/internal/auth/oidc"
	"github.com/devilmonastery/passage/internal/config"
	"github.com/devilmonastery/passage/internal/domain/entities"
	"github.com/devilmonastery/passage/internal/domain/services"
	"github.com/devilmonastery/passage/internal/infrastructure/database"
	"github.com/devilmonastery/passage/internal/pkg/idgen"
	"github.com/devilmonastery/passage/internal/pkg/logger"
	"github.com/devilmonastery/passage/migrations"
	"github.com/devilmonastery/passage/web/internal/handlers"
	"github.com/devilmonastery/passage/web/internal/middleware"
	"github.com/devilmonastery/passage/web/internal/session"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath    string
		logLevel      string
		logFile       string
		logToStderr   bool
		alsoLogStderr bool
		logFormat     string
	)

	cmd := &cobra.Command{
		Use:   "passage",
		Short: "Passage sign-in service",
		Long:  "Signs users in through OIDC providers and serves their session",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel, logFile, logToStderr, alsoLogStderr, logFormat)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), configPath)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (optional)")

	// Add logging flags
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file path (if specified, logs to file instead of stderr)")
	cmd.PersistentFlags().BoolVar(&logToStderr, "logtostderr", false, "Log to stderr (default behavior unless --log-file specified)")
	cmd.PersistentFlags().BoolVar(&alsoLogStderr, "alsologtostderr", false, "Log to both file and stderr")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format (text, json)")

	// Add subcommands
	cmd.AddCommand(newMigrateCommand(&configPath))
	cmd.AddCommand(newUserCommand(&configPath))
	cmd.AddCommand(newTokenCommand(&configPath))

	return cmd
}

// setupLogging configures the global logger
func setupLogging(logLevel, logFile string, logToStderr, alsoLogStderr bool, logFormat string) error {
	// Default to stderr logging unless file is specified
	if logFile == "" {
		logToStderr = true
	}

	cfg := logger.Config{
		Level:         logger.ParseLevel(logLevel),
		LogFile:       logFile,
		LogToStderr:   logToStderr,
		AlsoLogStderr: alsoLogStderr,
		Format:        logFormat,
	}

	globalLogger, err := logger.SetupLogger(cfg)
	if err != nil {
		return err
	}

	// Set as default logger
	slog.SetDefault(globalLogger)

	return nil
}

// openDatabase connects to the configured database and brings its schema up to date
func openDatabase(cfg *config.Config) (*database.Connection, error) {
	log := slog.Default().With("component", "database")
	driver, dsn := cfg.Database.DataSource()

	// Connect with retries (the database may still be starting)
	var conn *database.Connection
	var err error
	maxRetries := 10
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		conn, err = database.NewConnection(driver, dsn)
		if err == nil {
			log.Info("connected to database", "driver", driver)
			break
		}

		if i == maxRetries-1 || driver == database.DriverSQLite {
			return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", driver, i+1, err)
		}
		log.Warn("failed to connect to database",
			"attempt", i+1,
			"max_retries", maxRetries,
			"error", err,
			"retry_delay", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2 // Exponential backoff
		if retryDelay > 30*time.Second {
			retryDelay = 30 * time.Second
		}
	}

	if err := conn.RunMigrations(migrations.FS); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run %s migrations: %w", driver, err)
	}
	return conn, nil
}

// newCodec builds the session token codec from config
func newCodec(cfg *config.Config) (*auth.Codec, error) {
	return auth.NewCodec(auth.CodecConfig{
		Secret: []byte(cfg.Auth.Token.Secret),
		Issuer: cfg.Auth.Token.Issuer,
		TTL:    cfg.Auth.Token.TTL,
	})
}

func runServer(ctx context.Context, configPath string) error {
	log := slog.Default().With("component", "server")
	log.Info("starting passage")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize Snowflake ID generator
	if err := idgen.Initialize(cfg.Server.NodeID); err != nil {
		return fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	conn, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Domain services
	reconciler := services.NewReconciler(database.NewUserRepository(conn.DB), services.ReconcilerConfig{
		DefaultRole: entities.Role(cfg.Auth.SignIn.DefaultRole),
	})
	gate := services.NewSignInGate(reconciler, services.SignInPolicy{
		AllowedDomains: cfg.Auth.SignIn.AllowedDomains,
		AutoProvision:  cfg.Auth.SignIn.AutoProvision,
	})
	hooks := services.NewHooks(gate, services.NewSessionAssembler(reconciler))

	// Sessions
	codec, err := newCodec(cfg)
	if err != nil {
		return fmt.Errorf("failed to create token codec: %w", err)
	}
	cookieSecret := cfg.Session.Secret
	if cookieSecret == "" {
		log.Info("no session secret configured, deriving cookie keys from the token secret")
		cookieSecret = cfg.Auth.Token.Secret
	}
	maxAge := session.CookieMaxAge(cfg.Session.MaxAge, codec.TTL())
	if maxAge != cfg.Session.MaxAge {
		log.Warn("session.max_age exceeds the token ttl, capping the cookie lifetime",
			slog.Duration("max_age", cfg.Session.MaxAge),
			slog.Duration("ttl", codec.TTL()))
	}
	sessionMgr, err := session.NewManager([]byte(cookieSecret), session.Options{
		Secure: cfg.Session.Secure,
		MaxAge: maxAge,
	})
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}
	credentials := session.NewCredentials(sessionMgr, codec)

	// Identity providers
	providers, err := oidc.InitializeProviders(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize OIDC providers: %w", err)
	}
	log.Info("OIDC providers initialized", "providers", providers.List())

	// HTTP
	authMw := middleware.NewAuthMiddleware(credentials, hooks, slog.Default())
	h := handlers.New(providers, hooks, sessionMgr, credentials, conn, slog.Default())
	router := handlers.NewRouter(h, authMw, slog.Default())
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "address", srv.Addr, "base_url", cfg.Server.BaseURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
