package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"repairtrack/internal/store"
	"repairtrack/pkg/logger"
	"repairtrack/socket"
)

// DataHandler serves the document read/write API under /data/. A POST is
// the write path: validate, persist, broadcast, acknowledge — in that
// order, so the content is durable before any client hears about it.
type DataHandler struct {
	Store *store.Store
	Hub   *socket.Hub
}

// DocumentName extracts the document name from a /data/ URL path. The
// empty string means the path is not a document request.
func DocumentName(urlPath string) string {
	name := strings.TrimPrefix(urlPath, "/data/")
	if name == "" || name != path.Base(name) || !strings.HasSuffix(name, ".json") {
		return ""
	}
	return name
}

func (h *DataHandler) Handle(w http.ResponseWriter, r *http.Request) {
	name := DocumentName(r.URL.Path)
	if name == "" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, name)
	case http.MethodPost:
		h.post(w, r, name)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *DataHandler) get(w http.ResponseWriter, name string) {
	data, err := h.Store.Read(name)
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Reason)
			return
		}
		logger.Sugar.Errorf("Failed to read document %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (h *DataHandler) post(w http.ResponseWriter, r *http.Request, name string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.Store.Write(name, body); err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "Invalid JSON data")
			return
		}
		logger.Sugar.Errorf("Failed to write document %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	// The write is durable; tell everyone. Per-recipient failures stay
	// inside the hub and never fail this acknowledgment.
	h.Hub.Publish(name, body)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
