package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"

	"github.com/jimdaga/localbrief/internal/briefings"
	"github.com/jimdaga/localbrief/internal/config"
	"github.com/jimdaga/localbrief/internal/events"
)

// asynqLoggerAdapter wraps slog.Logger to implement asynq.Logger interface
type asynqLoggerAdapter struct {
	logger *slog.Logger
}

func (a *asynqLoggerAdapter) Debug(args ...interface{}) {
	a.logger.Debug(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Info(args ...interface{}) {
	a.logger.Info(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Warn(args ...interface{}) {
	a.logger.Warn(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Error(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Fatal(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
	panic(fmt.Sprint(args...))
}

// BriefingGenerator runs a briefing generation.
type BriefingGenerator interface {
	Get(ctx context.Context, snapshotID string) (*briefings.Result, error)
}

// EventDiscoverer runs one discovery batch.
type EventDiscoverer interface {
	Discover(ctx context.Context, loc events.Location) (events.Report, error)
}

// EventDeactivator retires events that have ended.
type EventDeactivator interface {
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// Deps are the services task handlers call into.
type Deps struct {
	Briefings   BriefingGenerator
	Discoverer  EventDiscoverer
	Deactivator EventDeactivator
	Logger      *slog.Logger
}

// Run starts the Asynq worker server and blocks until shutdown signal.
// Use this for standalone worker mode.
func Run(cfg *config.Config, deps Deps) error {
	srv, mux, err := newServer(cfg, deps)
	if err != nil {
		return err
	}

	// Note: Scheduler is started separately in main.go worker mode
	// and deferred there for shutdown coordination.
	return srv.Run(mux)
}

// Start starts the Asynq worker in non-blocking mode and returns a stop function.
// Use this for embedded mode so the caller can coordinate shutdown.
func Start(cfg *config.Config, deps Deps) (stop func(), err error) {
	srv, mux, err := newServer(cfg, deps)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return func() { srv.Shutdown() }, nil
}

func newServer(cfg *config.Config, deps Deps) (*asynq.Server, *asynq.ServeMux, error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "worker")

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     concurrency,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          &asynqLoggerAdapter{logger: logger},
		},
	)

	logger.Info("Worker starting", "concurrency", concurrency)
	return srv, newMux(logger, deps), nil
}

func newMux(logger *slog.Logger, deps Deps) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskGenerateBriefing, handleGenerateBriefing(logger, deps.Briefings))
	mux.HandleFunc(TaskDiscoverEvents, handleDiscoverEvents(logger, deps.Discoverer))
	mux.HandleFunc(TaskDeactivateEvents, handleDeactivateEvents(logger, deps.Deactivator, time.Now))
	return mux
}

// handleGenerateBriefing runs the orchestrator for a snapshot. Contention
// with another owner is success: that owner will finish the row.
func handleGenerateBriefing(logger *slog.Logger, gen BriefingGenerator) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload GeneratePayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.SnapshotID == "" {
			// Invalid payload - don't retry
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		logger.Info("Processing briefing:generate task", "snapshot_id", payload.SnapshotID)

		res, err := gen.Get(ctx, payload.SnapshotID)
		var pre *briefings.PreconditionError
		switch {
		case errors.Is(err, briefings.ErrSnapshotNotFound):
			logger.Error("Snapshot not found", "snapshot_id", payload.SnapshotID)
			return fmt.Errorf("snapshot not found: %w", asynq.SkipRetry)
		case errors.As(err, &pre):
			logger.Error("Snapshot precondition failed", "snapshot_id", payload.SnapshotID, "error", err)
			return fmt.Errorf("%s: %w", err.Error(), asynq.SkipRetry)
		case err != nil:
			return fmt.Errorf("briefing generation failed: %w", err)
		}

		logger.Info("Briefing generation completed",
			"snapshot_id", payload.SnapshotID,
			"status", string(res.Status),
			"refreshed", len(res.Refreshed),
		)
		return nil
	}
}

// handleDiscoverEvents runs one discovery batch. A chain with no working
// provider is retried; a bad payload is not.
func handleDiscoverEvents(logger *slog.Logger, d EventDiscoverer) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload DiscoverPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.City == "" || payload.Date == "" {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		report, err := d.Discover(ctx, payload.Location())
		if err != nil {
			return fmt.Errorf("event discovery failed: %w", err)
		}

		logger.Info("Event discovery completed",
			"city", payload.City,
			"date", payload.Date,
			"provider", report.Provider,
			"stored", report.Stored,
		)
		return nil
	}
}

func handleDeactivateEvents(logger *slog.Logger, d EventDeactivator, now func() time.Time) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		n, err := d.DeactivateExpired(ctx, now())
		if err != nil {
			return fmt.Errorf("event deactivation failed: %w", err)
		}
		logger.Info("Expired events deactivated", "count", n)
		return nil
	}
}

// makeErrorHandler creates an error handler function with logger closure.
func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error(
			"Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)

		if retried >= maxRetry {
			logger.Error(
				"Task moved to dead letter queue (all retries exhausted)",
				"task_type", task.Type(),
				"payload", string(task.Payload()),
			)
		}
	}
}
