package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"garbageapi/internal/config"
	"garbageapi/internal/logger"
	"garbageapi/internal/repository"
	"garbageapi/internal/repository/sqlite"
	"garbageapi/internal/route"
	"garbageapi/internal/service"
	"garbageapi/internal/service/ai"
	"garbageapi/internal/service/storage"
	"garbageapi/internal/service/websocket"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds how long in-flight requests may run after a stop signal.
const shutdownTimeout = 10 * time.Second

type App struct {
	config      *config.Config
	logger      *logger.Logger
	db          *sqlite.DB
	pool        *ai.Pool
	hubService  *websocket.HubService
	uploadStore *storage.UploadStore
	manager     *service.Manager
	server      *http.Server
}

// NewApp loads the configuration from the environment and builds the application.
func NewApp() (*App, error) {
	cfg := config.Load()
	return New(cfg, logger.NewLogger(cfg))
}

// New builds every service once. A model or ledger that cannot be opened is logged
// and left disabled; the server still starts.
func New(cfg *config.Config, logger *logger.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.UploadDirectory, 0755); err != nil {
		return nil, errors.Wrap(err, "could not create upload directory")
	}

	db, uploadRepo, detectionRepo := OpenLedger(cfg, logger)
	classifier, pool, device := NewClassifier(cfg, logger)

	hub := websocket.NewHubService(logger)
	store := storage.NewUploadStore(cfg, logger, uploadRepo, detectionRepo)
	manager := service.NewManager(classifier, store, hub, uploadRepo, detectionRepo, device)

	a := &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		pool:        pool,
		hubService:  hub,
		uploadStore: store,
		manager:     manager,
	}
	a.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           route.SetupRoutes(manager, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// OpenLedger opens the upload ledger. It returns nil repositories when the ledger is
// disabled or cannot be opened.
func OpenLedger(cfg *config.Config, logger *logger.Logger) (*sqlite.DB, repository.UploadRepository, repository.DetectionRepository) {
	if cfg.DatabasePath == "" {
		logger.Info("Upload ledger disabled")
		return nil, nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		logger.Warning("Could not create database directory, ledger disabled: %v", err)
		return nil, nil, nil
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		logger.Warning("Could not open upload ledger, ledger disabled: %v", err)
		return nil, nil, nil
	}
	return db, sqlite.NewUploadRepository(db), sqlite.NewDetectionRepository(db)
}

// NewClassifier selects the compute device and loads one detector per inference worker.
// When the model cannot be loaded the returned classifier reports it as not loaded and
// the pool is nil.
func NewClassifier(cfg *config.Config, logger *logger.Logger) (*ai.Classifier, *ai.Pool, string) {
	device := ai.SelectDevice(cfg.Device)
	logger.Info("Using device: %s", device)

	labels, err := ai.LoadLabels(cfg.LabelsPath)
	if err != nil {
		logger.Warning("Could not load label table, classes will be named by id: %v", err)
	}

	factory := func() (ai.Model, error) {
		detector, err := ai.NewDetector(ai.DetectorOptions{
			ModelPath:     cfg.ModelPath,
			Device:        device,
			InputSize:     cfg.InputSize,
			ConfThreshold: cfg.ConfThreshold,
			IoUThreshold:  cfg.IoUThreshold,
		})
		if err != nil {
			return nil, err
		}
		return detector, nil
	}

	pool, err := ai.NewPool(factory, cfg.InferenceWorkers, cfg.InferenceQueue, logger)
	if err != nil {
		logger.Warning("Could not initialize detection network: %v", err)
		return ai.NewClassifier(nil, labels, cfg.InferenceTimeout), nil, device
	}

	logger.Info("Detection network initialized successfully")
	return ai.NewClassifier(pool, labels, cfg.InferenceTimeout), pool, device
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Manager returns the shared service object.
func (a *App) Manager() *service.Manager {
	return a.manager
}

// Run serves until SIGINT or SIGTERM, then shuts down and releases every resource.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("🚀 Garbage Detection API\n")
	fmt.Printf("📍 URL: http://%s\n", a.config.Addr())
	fmt.Printf("📁 Uploads: %s\n", a.config.UploadDirectory)
	fmt.Printf("🤖 AI Model: %s (loaded: %t, device: %s)\n", a.config.ModelPath, a.manager.ModelLoaded(), a.manager.Device())

	return a.Serve(ctx)
}

// Serve runs the HTTP server, the stream hub and the upload janitor until ctx ends
// or one of them fails.
func (a *App) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.hubService.Run(ctx)
	})
	g.Go(func() error {
		return a.uploadStore.Run(ctx, a.config.JanitorInterval)
	})
	g.Go(func() error {
		a.logger.Info("Listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server failed")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	return multierr.Append(err, a.Close())
}

// Close releases the inference pool, the ledger and the log files.
func (a *App) Close() error {
	var err error
	if a.pool != nil {
		err = multierr.Append(err, a.pool.Close())
	}
	if a.db != nil {
		err = multierr.Append(err, a.db.Close())
	}
	a.logger.Info("🛑 Server stopped")
	a.logger.Sync()
	return err
}
