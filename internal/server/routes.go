// Package server wires HTTP handlers into a gorilla/mux router for the chat
// relay application via routing helpers.
package server

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// SetupRoutes configures and returns the application's HTTP handler: health
// check, WebSocket endpoint, upload/download gateways, and test page, with
// permissive CORS matching the browser clients the relay serves.
func SetupRoutes(hub *Hub, files FileStore, logger zerolog.Logger) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws", WebSocketHandler(hub, logger)).Methods(http.MethodGet)
	r.HandleFunc("/upload", UploadHandler(files, logger)).Methods(http.MethodPost)
	r.HandleFunc("/files/{id}", DownloadHandler(files, logger)).Methods(http.MethodGet)
	r.HandleFunc("/test", TestPageHandler).Methods(http.MethodGet)

	withCORS := cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	return withCORS(r)
}
