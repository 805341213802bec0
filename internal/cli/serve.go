package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/backup"
	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/config"
	httpapi "github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/http"
	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/repository"
	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open record store", zap.Error(err))
		return err
	}
	defer closeRepo()

	publisher, closePublisher := buildPublisher(ctx, cfg, logger)
	defer closePublisher()

	patientService := service.NewPatientService(repo, publisher, logger)
	pages, err := httpapi.NewPagesHandler(patientService, logger)
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(logger)
	router.RegisterPageRoutes(pages)
	router.RegisterPatientRoutes(httpapi.NewPatientHandler(patientService, logger))
	router.RegisterOpsRoutes()

	startBackup(ctx, cfg, logger)

	srv := service.NewServer(cfg.HTTP.Addr, router.Handler(), logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var serveErr error
	select {
	case sig := <-sigCh:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
			logger.Error("HTTP server failed", zap.Error(err))
		}
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}
	return serveErr
}

// startBackup runs the snapshotter in the background until ctx is cancelled.
func startBackup(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
	if !cfg.Backup.Enabled {
		return
	}
	if cfg.Store.Backend != repository.BackendExcel {
		logger.Warn("Backup is only supported for the excel store, skipping", zap.String("backend", cfg.Store.Backend))
		return
	}

	uploader, err := backup.NewMinioUploader(ctx, &cfg.Backup)
	if err != nil {
		logger.Warn("Backup disabled, object storage not available", zap.String("endpoint", cfg.Backup.Endpoint), zap.Error(err))
		return
	}

	snap := backup.NewSnapshotter(cfg.Store.ExcelPath, cfg.Backup.Prefix, uploader, logger)
	go snap.Run(ctx, cfg.Backup.Interval())
}
