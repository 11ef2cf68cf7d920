package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"medextract/core"
	"medextract/db"
	"medextract/diagnostics"
	"medextract/metrics"
	"medextract/pipeline"
	"medextract/shutdown"
	"medextract/webui"
)

func newServeCommand(a *app) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd.ErrOrStderr()); err != nil {
				return err
			}
			defer a.close()
			if cmd.Flags().Changed("host") {
				a.cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Port = port
				if err := a.cfg.Validate(); err != nil {
					return err
				}
			}
			return runServe(a)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "override HOST")
	cmd.Flags().IntVar(&port, "port", 0, "override PORT")
	return cmd
}

func runServe(a *app) error {
	cfg, logger := a.cfg, a.logger
	budget := modelBudget(cfg)
	mgr := shutdown.NewManager(logger, shutdown.WithTimeout(budget+30*time.Second))
	fail := func(err error) error {
		mgr.Shutdown()
		return err
	}

	var opts pipeline.Options
	var history webui.HistoryReader
	runStats := metrics.NewStore(metrics.DefaultStoreConfig(), time.Now())
	recorders := metrics.Fanout{runStats}

	if cfg.DebugArtifacts {
		sink, err := diagnostics.NewSink(cfg.DebugArtifactsDir, diagnostics.DefaultQueueSize, logger)
		if err != nil {
			return err
		}
		opts.Checkpointer = sink
		mgr.Register("diagnostics", shutdown.PriorityWorkers, func(context.Context) error {
			sink.Close()
			return nil
		})
	}

	if cfg.HistoryDBPath != "" {
		database, err := db.Open(cfg.HistoryDBPath)
		if err != nil {
			return fail(err)
		}
		store := db.NewHistoryStore(database, logger)
		recorders = append(recorders, store)
		history = store

		mgr.Register("history-writer", shutdown.PriorityWorkers, func(context.Context) error {
			store.Close()
			return nil
		})
		mgr.Register("history-db", shutdown.PriorityStorage, func(context.Context) error {
			return database.Close()
		})

		if cfg.HistoryRetention > 0 {
			database.StartCleanupScheduler(mgr.Context(), db.CleanupSchedulerConfig{
				RetentionDays: cfg.HistoryRetention,
				Interval:      24 * time.Hour,
				OnCleanup: func(res db.CleanupResult, err error) {
					if err != nil {
						logger.Warn("Run history cleanup failed", zap.Error(err))
						return
					}
					if res.RunsDeleted > 0 {
						logger.Info("Run history cleaned up", zap.Int64("deleted", res.RunsDeleted))
					}
				},
			})
		}
	}

	var auth *webui.TokenAuth
	if cfg.UploadTokenHash != "" {
		var err error
		auth, err = webui.NewTokenAuth(cfg.UploadTokenHash, logger)
		if err != nil {
			return fail(core.ErrInvalidValue("UPLOAD_TOKEN_HASH", "[REDACTED]", err.Error()))
		}
		auth.Limiter().StartCleanupTicker(mgr.Context(), time.Minute)
	} else if !isLoopback(cfg.Host) {
		logger.Warn("Upload endpoint is unauthenticated on a non-loopback address",
			zap.String("host", cfg.Host))
	}

	opts.Recorder = recorders
	p, err := a.buildPipeline(true, opts)
	if err != nil {
		return fail(err)
	}

	serverConfig := webui.DefaultServerConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port
	serverConfig.MaxFileSize = cfg.MaxFileSize
	serverConfig.WriteTimeout = budget + time.Minute
	serverConfig.Version = version

	server := webui.NewServer(serverConfig, &trackedProcessor{pipeline: p, mgr: mgr}, history, auth, logger)
	server.SetMetrics(runStats)
	mgr.Register("http", shutdown.PriorityServer, server.Shutdown)
	mgr.Register("logger", shutdown.PriorityLogs, func(context.Context) error {
		_ = logger.Sync()
		return nil
	})
	mgr.Start()

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serveErr <- err
			mgr.Trigger()
		}
	}()

	<-mgr.Context().Done()
	shutdownErr := mgr.Shutdown()

	select {
	case err := <-serveErr:
		return err
	default:
	}
	if shutdownErr != nil {
		return shutdownErr
	}
	if code := mgr.ExitCode(); code != core.ExitCodeSuccess {
		return &exitError{code: code}
	}
	return nil
}

// trackedProcessor registers each upload with the shutdown manager so
// shutdown waits for extractions already talking to the model.
type trackedProcessor struct {
	pipeline *pipeline.Pipeline
	mgr      *shutdown.Manager
}

func (t *trackedProcessor) Process(ctx context.Context, pdf []byte) (*pipeline.Result, error) {
	var res *pipeline.Result
	err := t.mgr.Track(func() error {
		var err error
		res, err = t.pipeline.Process(ctx, pdf)
		return err
	})
	if errors.Is(err, shutdown.ErrClosed) {
		return nil, &pipeline.Failure{
			Category:  pipeline.CategoryInternal,
			Retryable: true,
			Message:   "The service is shutting down. Please retry shortly.",
			Stage:     "accept",
			Err:       err,
		}
	}
	return res, err
}

func isLoopback(host string) bool {
	switch host {
	case "127.0.0.1", "localhost", "::1":
		return true
	}
	return false
}
