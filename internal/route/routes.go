package route

import (
	"net/http"

	"garbageapi/internal/config"
	"garbageapi/internal/handler"
	"garbageapi/internal/logger"
	"garbageapi/internal/middleware"
	"garbageapi/internal/service"

	"github.com/rs/cors"
)

// logFiles maps the /logs/{level} routes to log files.
var logFiles = map[string]string{
	"info":    logger.InfoFile,
	"warning": logger.WarningFile,
	"error":   logger.ErrorFile,
}

// SetupRoutes registers the API, stream, log and page routes and wraps the mux with
// CORS, request logging and the request body cap.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDirectory))))

	// API endpoints
	mux.HandleFunc("/api/classify-upload", handler.ClassifyUploadHandler(manager, cfg, logger))
	mux.HandleFunc("/api/health", handler.HealthHandler(manager))
	mux.HandleFunc("/api/uploads", handler.UploadsHandler(manager, cfg, logger))
	mux.HandleFunc("/api/uploads/view", handler.ViewUploadHandler(manager))
	mux.HandleFunc("/api/uploads/clear", handler.ClearUploadsHandler(manager, logger))

	// Realtime stream
	mux.HandleFunc("/socket", handler.StreamWebsocketHandler(manager, cfg, logger))

	// Log endpoints
	for level, file := range logFiles {
		mux.HandleFunc("/logs/"+level, handler.LogFileHandler(logger, file))
		mux.HandleFunc("/logs/"+level+"/clear", handler.ClearLogFileHandler(logger, file))
	}

	// Pages
	mux.HandleFunc("/", handler.PageHandler(cfg))

	var h http.Handler = mux
	h = middleware.MaxBodyMiddleware(cfg.MaxContentLength)(h)
	h = middleware.LoggingMiddleware(logger)(h)
	return corsHandler(cfg.CORSOrigins).Handler(h)
}

func corsHandler(origins []string) *cors.Cors {
	for _, origin := range origins {
		if origin == "*" {
			return cors.AllowAll()
		}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
}
