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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/jimdaga/localbrief/internal/briefings"
	"github.com/jimdaga/localbrief/internal/config"
	"github.com/jimdaga/localbrief/internal/crypto"
	"github.com/jimdaga/localbrief/internal/database"
	"github.com/jimdaga/localbrief/internal/events"
	"github.com/jimdaga/localbrief/internal/health"
	"github.com/jimdaga/localbrief/internal/logging"
	"github.com/jimdaga/localbrief/internal/notify"
	"github.com/jimdaga/localbrief/internal/providers"
	"github.com/jimdaga/localbrief/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if len(os.Args) > 1 {
		if err := runCommand(cfg, os.Args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

// runCommand handles the secret helpers used when writing provider files.
func runCommand(cfg *config.Config, args []string) error {
	switch args[0] {
	case "gen-key":
		key, err := crypto.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	case "encrypt-secret":
		if len(args) != 2 {
			return errors.New("usage: server encrypt-secret <plaintext>")
		}
		box, err := crypto.NewSecretBox(cfg.EncryptionKey)
		if err != nil {
			return err
		}
		out, err := box.Encrypt(args[1])
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	default:
		return fmt.Errorf("unknown command %q (want gen-key or encrypt-secret)", args[0])
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.RunMigrations(db, logger); err != nil {
		return err
	}
	if !cfg.IsProduction() {
		if err := database.SeedDevData(db); err != nil {
			logger.Warn("Failed to seed dev data", "error", err)
		}
	}

	registry, err := buildProviders(cfg, logger)
	if err != nil {
		return err
	}
	schemas, err := providers.LoadSchemas()
	if err != nil {
		return fmt.Errorf("failed to load payload schemas: %w", err)
	}
	chain := providers.NewChain(schemas, 0, logger)

	eventStore := events.NewStore(db)
	discoverer := events.NewDiscoverer(registry, chain, eventStore, logger)

	queue, err := worker.NewClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer queue.Close()

	publisher, err := notify.NewPublisher(cfg.RedisURL, cfg.ReadyChannel)
	if err != nil {
		return err
	}
	defer publisher.Close()

	svc := briefings.NewService(briefings.Deps{
		Repo:       briefings.NewStore(db),
		Providers:  registry,
		Chain:      chain,
		Catalog:    eventStore,
		Discoverer: discoverer,
		Queue:      queue,
		Notifier:   publisher,
		Logger:     logger,
	}, briefings.Options{
		AbandonAfter:  cfg.PlaceholderTimeout,
		EventsTTL:     cfg.EventsTTL,
		LookaheadDays: cfg.EventsLookaheadDays,
	})
	defer svc.Close()

	deps := worker.Deps{
		Briefings:   svc,
		Discoverer:  discoverer,
		Deactivator: eventStore,
		Logger:      logger,
	}

	logger.Info("Starting", "mode", cfg.Mode, "env", cfg.Env, "providers", registry.Count())

	switch cfg.Mode {
	case config.ModeWorker:
		stopScheduler, err := worker.StartScheduler(cfg, logger)
		if err != nil {
			return err
		}
		defer stopScheduler()
		return worker.Run(cfg, deps)

	case config.ModeEmbedded:
		stopWorker, err := worker.Start(cfg, deps)
		if err != nil {
			return err
		}
		defer stopWorker()

		stopScheduler, err := worker.StartScheduler(cfg, logger)
		if err != nil {
			return err
		}
		defer stopScheduler()
	}

	return serve(cfg, logger, db, svc)
}

func buildProviders(cfg *config.Config, logger *slog.Logger) (*providers.Registry, error) {
	var file *providers.ChainFile
	if cfg.ProvidersFile != "" {
		f, err := providers.LoadChainFile(cfg.ProvidersFile)
		if err != nil {
			return nil, err
		}
		file = f
	}

	var dec providers.Decryptor
	if cfg.EncryptionKey != "" {
		box, err := crypto.NewSecretBox(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
		}
		dec = box
	}

	return providers.Build(file, providers.BuildOptions{
		Stub:       cfg.StubProviders,
		Decryptor:  dec,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Logger:     logger,
	})
}

func serve(cfg *config.Config, logger *slog.Logger, db *gorm.DB, svc *briefings.Service) error {
	waiter := notify.NewWaiter()
	stopSubscriber, err := notify.Start(cfg.RedisURL, cfg.ReadyChannel, waiter, logger)
	if err != nil {
		return err
	}
	defer stopSubscriber()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", gin.WrapF(health.Handler))
	r.GET("/ready", gin.WrapF(health.ReadyHandler(map[string]health.Check{
		"database": database.Ping(db),
		"schema":   database.SchemaCheck(db),
	})))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	briefings.RegisterRoutes(r, svc, waiter)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
