// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/glossa/internal/announce"
	"github.com/starford/glossa/internal/dictionary"
	"github.com/starford/glossa/internal/mcpserver"
	"github.com/starford/glossa/internal/models"
	"github.com/starford/glossa/internal/offsite"
	"github.com/starford/glossa/internal/schedule"
	"github.com/starford/glossa/internal/storage"
	"github.com/starford/glossa/internal/watch"
	"github.com/starford/glossa/pkg/config"
)

// NewLogger returns the structured JSON logger used everywhere. Stdout
// belongs to the MCP transport, so logs go elsewhere.
func NewLogger(level slog.Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// OpenDictionary wires the durable store, the optional off-site shipper
// and the dictionary service described by cfg.
func OpenDictionary(cfg *Config, logger *slog.Logger, opts ...dictionary.Option) (*dictionary.Service, error) {
	store := storage.New(
		storage.WithBackupDir(cfg.Data.BackupDir),
		storage.WithLogger(logger),
	)

	opts = append([]dictionary.Option{dictionary.WithLogger(logger)}, opts...)
	if cfg.Offsite.Enabled {
		shipper, err := offsite.New(cfg.Offsite.Target(), logger)
		if err != nil {
			return nil, fmt.Errorf("init offsite: %w", err)
		}
		opts = append(opts, dictionary.WithShipper(shipper))
	}

	return dictionary.Open(store, dictionary.Paths{
		Dict:     cfg.Data.DictPath,
		Accounts: cfg.Data.AccountsPath,
	}, opts...), nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := NewLogger(cfg.App.LogLevel, app.logOutput)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("dict_path", cfg.Data.DictPath),
		slog.String("accounts_path", cfg.Data.AccountsPath),
		slog.String("backup_dir", cfg.Data.BackupDir),
		slog.Bool("offsite", cfg.Offsite.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := announce.NewBroker()
	defer broker.Close()

	dict, err := OpenDictionary(cfg, logger, dictionary.WithAnnouncer(broker))
	if err != nil {
		return err
	}

	srv := mcpserver.New(dict, logger)

	sched := schedule.New(logger)
	sched.Register(JobSave, func(ctx context.Context) { dict.Save(ctx) })
	sched.Register(JobBackup, func(ctx context.Context) {
		if !dict.Backup(ctx) {
			logger.Error("backup failed")
		}
	})
	sched.Apply(cfg.Schedule.Plan())

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	// Announcements go to the log and to MCP clients.
	g.Go(func() error {
		broker.Forward(gCtx, func(ev models.Event) {
			logger.Info("announce: "+announce.Title(ev),
				slog.String("kind", string(ev.Kind)),
				slog.String("id", ev.ID))
			srv.Announce(ev)
		})
		return nil
	})

	// Reload the schedule when the config file changes.
	if app.configPath != "" {
		g.Go(func() error {
			return watch.File(gCtx, app.configPath, logger, func(data []byte) error {
				next := NewDefaultConfig()
				if err := config.Parse(data, next); err != nil {
					return err
				}
				sched.Apply(next.Schedule.Plan())
				return nil
			})
		})
	}

	// Serve MCP until the client goes away.
	g.Go(func() error {
		defer stop()
		logger.Info("Starting MCP server")
		if err := srv.Listen(gCtx, app.stdin, app.stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP server error: %w", err)
		}
		logger.Info("MCP server stopped")
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}
		stop()
		return nil
	})

	waitErr := g.Wait()

	sched.Stop()
	logger.Info("Saving before exit...")
	if !dict.Save(context.Background()) {
		logger.Error("final save failed")
	}

	if waitErr != nil {
		logger.Error("Application error", slog.String("error", waitErr.Error()))
		return waitErr
	}

	logger.Info("Stopped successfully")
	return nil
}
