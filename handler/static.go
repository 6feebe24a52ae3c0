package handler

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"repairtrack/pkg/logger"
)

var mimeTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".svg":  "image/svg+xml",
}

// StaticHandler serves files under Root. Requests resolving outside Root
// are rejected.
type StaticHandler struct {
	Root string
}

func (h *StaticHandler) Handle(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path
	if name == "/" || name == "" {
		name = "index.html"
	}
	filePath := filepath.Join(h.Root, name)

	rootResolved, err := filepath.Abs(h.Root)
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	resolved, err := filepath.Abs(filePath)
	if err != nil || (resolved != rootResolved && !strings.HasPrefix(resolved, rootResolved+string(os.PathSeparator))) {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	content, err := os.ReadFile(resolved)
	if errors.Is(err, os.ErrNotExist) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to read static file %s: %v", resolved, err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	ext := strings.ToLower(filepath.Ext(resolved))
	contentType, ok := mimeTypes[ext]
	if !ok {
		contentType = "text/plain"
	}
	w.Header().Set("Content-Type", contentType)
	if ext == ".html" {
		w.Header().Set("Cache-Control", "no-cache")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=3600")
	}
	w.Write(content)
}
