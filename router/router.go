package router

import (
	"net/http"
	"time"

	"repairtrack/handler"
	"repairtrack/internal/store"
	"repairtrack/middleware"
	"repairtrack/socket"
)

func Setup(st *store.Store, hub *socket.Hub, staticDir string, start time.Time) http.Handler {
	mux := http.NewServeMux()

	data := &handler.DataHandler{Store: st, Hub: hub}
	health := &handler.HealthHandler{Start: start}
	static := &handler.StaticHandler{Root: staticDir}

	// WebSocket
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r)
	})

	mux.HandleFunc("/health", health.Handle)

	// Only *.json names under /data/ are documents; anything else falls
	// through to static lookup.
	mux.HandleFunc("/data/", func(w http.ResponseWriter, r *http.Request) {
		if handler.DocumentName(r.URL.Path) != "" {
			data.Handle(w, r)
			return
		}
		static.Handle(w, r)
	})

	mux.HandleFunc("/", static.Handle)

	return middleware.CORSMiddleware(mux)
}
