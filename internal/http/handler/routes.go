package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docvault/docs"
	"docvault/internal/model"
	"docvault/internal/service"
	"docvault/internal/storage"
)

// Deps are the collaborators the routes need. Optional fields may be nil.
type Deps struct {
	DB      Pinger
	Service service.FileService
	// Local enables static serving of /images and /pdfs; nil when blobs live in object storage.
	Local storage.LocalStorage
	// Gatherer enables GET /metrics.
	Gatherer prometheus.Gatherer
	// UploadLimiter runs before both upload routes.
	UploadLimiter fiber.Handler
	Started       time.Time
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Started.IsZero() {
		d.Started = time.Now()
	}
	limit := d.UploadLimiter
	if limit == nil {
		limit = func(c *fiber.Ctx) error { return c.Next() }
	}

	app.Get("/swagger/*", swaggerUI)
	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	app.Get("/health", Health(d.Started))
	if d.DB != nil {
		app.Get("/readyz", Readiness(d.DB))
	}

	app.Post("/upload", limit, UploadDocument(d.Service))
	app.Get("/files", ListFiles(d.Service))
	app.Get("/documentos", ListDocuments(d.Service))
	app.Delete("/documentos/:id", DeleteDocument(d.Service))

	app.Post("/upload-image", limit, UploadImage(d.Service))
	app.Get("/imagenes", ListImages(d.Service))
	app.Delete("/imagenes/:id", DeleteImage(d.Service))

	app.Post("/login", Login(d.Service))

	if d.Local != nil {
		for _, ns := range model.Namespaces {
			app.Use("/"+string(ns), filesystem.New(filesystem.Config{
				Root:   d.Local.FileSystem(string(ns)),
				Browse: false,
				MaxAge: 3600,
			}))
		}
	}
}

// swaggerUI serves the docs with host and scheme taken from the request, honoring X-Forwarded-Proto.
func swaggerUI(c *fiber.Ctx) error {
	scheme := c.Protocol()
	if proto := c.Get(fiber.HeaderXForwardedProto); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	docs.SwaggerInfo.Host = c.Hostname()
	docs.SwaggerInfo.Schemes = []string{scheme}
	return swagger.HandlerDefault(c)
}
