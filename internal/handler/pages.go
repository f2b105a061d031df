package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"garbageapi/internal/config"
)

// pages maps request paths to templates under STATIC_DIR/templates.
var pages = map[string]string{
	"/":          "login.html",
	"/login":     "login.html",
	"/dashboard": "index.html",
	"/camera":    "camera.html",
}

// PageHandler serves the HTML pages; any other path is a 404.
func PageHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		filePath := filepath.Join(cfg.StaticDirectory, "templates", page)
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filePath)
	}
}
