package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"

	"docvault/internal/config"
	"docvault/internal/database"
	"docvault/internal/database/migration"
	"docvault/internal/http/handler"
	"docvault/internal/http/middleware"
	"docvault/internal/logging"
	"docvault/internal/model"
	"docvault/internal/repository/sqlstore"
	"docvault/internal/service"
	"docvault/internal/storage"
	"docvault/internal/upload"
)

// multipartOverhead leaves room for form boundaries and text fields next to the file.
const multipartOverhead = 1 << 20

// server is the wired application: database handle, blob store, services and routes.
type server struct {
	db  *sql.DB
	app *fiber.App
}

// newServer opens the database, migrates it, seeds the admin login, selects the blob store
// and registers every route. fsys backs the local storage backend.
func newServer(ctx context.Context, cfg *config.AppConfig, fsys afero.Fs, reg *prometheus.Registry) (*server, error) {
	logger := logging.Component("main")

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	srv := &server{db: db}

	dialect, err := migration.ForDriver(cfg.Database.Driver)
	if err != nil {
		srv.Close()
		return nil, err
	}
	if err := migration.EnsureMigrated(ctx, db, dialect, database.Target(cfg.Database)); err != nil {
		srv.Close()
		return nil, err
	}

	store := newStore(cfg.Database.Driver, db)
	seeded, err := service.SeedCredential(ctx, store, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		srv.Close()
		return nil, err
	}
	if seeded {
		logger.Info("admin_credential_ensured", "username", cfg.AdminUsername)
	}

	blobs, local, err := openStorage(cfg, fsys)
	if err != nil {
		srv.Close()
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		srv.Close()
		return nil, fmt.Errorf("register http metrics: %w", err)
	}
	uploadMetrics, err := service.NewMetrics(reg)
	if err != nil {
		srv.Close()
		return nil, fmt.Errorf("register upload metrics: %w", err)
	}

	docPolicy := upload.DefaultPolicy(cfg.Upload.MaxFileSize)
	docPolicy.SniffContent = cfg.Upload.SniffContent
	imgPolicy := upload.ImagePolicy(cfg.Upload.MaxFileSize)
	imgPolicy.SniffContent = cfg.Upload.SniffContent

	svc := service.NewFileService(service.Options{
		Store:          blobs,
		Metadata:       store,
		Credentials:    store,
		DocumentPolicy: docPolicy,
		ImagePolicy:    imgPolicy,
		StorageTimeout: cfg.StorageTimeout(),
		Metrics:        uploadMetrics,
	})

	app := fiber.New(fiberConfig(cfg, handler.ErrorHandler(cfg.Upload.MaxFileSize)))
	app.Use(recover.New())
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics" || c.Path() == "/health"
	})))
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSAllowOrigins}))
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logging.Component("http")))
	app.Use(prom.Handler())

	handler.RegisterRoutes(app, handler.Deps{
		DB:            db,
		Service:       svc,
		Local:         local,
		Gatherer:      reg,
		UploadLimiter: middleware.RateLimit(cfg.RateLimit.Max, cfg.RateLimitWindow()),
		Started:       time.Now(),
	})

	srv.app = app
	return srv, nil
}

// Close releases the database handle.
func (s *server) Close() {
	if err := s.db.Close(); err != nil {
		logging.Component("main").Error("db_close_failed", "error", err.Error())
	}
}

func newStore(driver string, db *sql.DB) *sqlstore.Store {
	if driver == config.DriverPostgres {
		return sqlstore.NewPostgres(db)
	}
	return sqlstore.NewSQLite(db)
}

// openStorage returns the configured blob store. The second value is non-nil only for the
// local backend, whose files are also served statically.
func openStorage(cfg *config.AppConfig, fsys afero.Fs) (storage.Storage, storage.LocalStorage, error) {
	switch cfg.Storage.Backend {
	case config.BackendMinIO:
		s, err := storage.NewMinIO(cfg.MinIO)
		return s, nil, err
	default:
		dirs := make([]string, 0, len(model.Namespaces))
		for _, ns := range model.Namespaces {
			dirs = append(dirs, string(ns))
		}
		local, err := storage.NewLocal(fsys, cfg.Storage.UploadDir, dirs...)
		if err != nil {
			return nil, nil, err
		}
		return local, local, nil
	}
}
