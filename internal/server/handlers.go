// Package server exposes HTTP handlers: the WebSocket upgrade, the file
// upload and download gateways, health checks, and the built-in test page.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quillhq/chatrelay/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// FileStore is the blob-storage boundary used by the upload and download
// gateways. The relay holds no copy of the bytes once a request completes.
type FileStore interface {
	SaveFile(ctx context.Context, name string, r io.Reader) (string, error)
	OpenFile(ctx context.Context, id string) (string, io.ReadCloser, error)
}

// UploadResponse is the JSON body returned after a successful upload.
type UploadResponse struct {
	FileURL      string `json:"fileUrl"`
	FileID       string `json:"fileId"`
	OriginalName string `json:"originalName"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WebSocketHandler returns the handler for WebSocket upgrade requests. It
// upgrades the HTTP connection, creates a new Client instance, and registers
// it with the hub, which launches the pump goroutines.
func WebSocketHandler(hub *Hub, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr, logger)
		hub.register <- client
	}
}

// UploadHandler returns the handler for POST /upload. It accepts exactly one
// multipart file field named "file", stores the bytes under the original
// filename, and returns the reference the client may embed in a message.
func UploadHandler(files FileStore, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "A single 'file' form field is required"})
			return
		}
		defer func() { _ = file.Close() }()

		id, err := files.SaveFile(r.Context(), header.Filename, file)
		if err != nil {
			logger.Error().Str("name", header.Filename).Err(err).Msg("file upload failed")
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error:   "Failed to upload file",
				Details: err.Error(),
			})
			return
		}

		fileURL := fmt.Sprintf("%s/files/%s", currentConfig().PublicBaseURL, id)
		logger.Info().Str("name", header.Filename).Str("id", id).Msg("file uploaded")
		writeJSON(w, http.StatusOK, UploadResponse{
			FileURL:      fileURL,
			FileID:       id,
			OriginalName: header.Filename,
		})
	}
}

// DownloadHandler returns the handler for GET /files/{id}. It validates the
// identifier, looks up the blob, and streams the stored bytes back with the
// original filename as the suggested save name. Bytes already flushed before
// a mid-stream failure are not retracted.
func DownloadHandler(files FileStore, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if _, err := uuid.Parse(id); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid file ID"})
			return
		}

		name, content, err := files.OpenFile(r.Context(), id)
		if errors.Is(err, store.ErrFileNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "File not found"})
			return
		}
		if err != nil {
			logger.Error().Str("id", id).Err(err).Msg("file lookup failed")
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error:   "Error fetching file metadata",
				Details: err.Error(),
			})
			return
		}
		defer func() { _ = content.Close() }()

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		if _, err := io.Copy(w, content); err != nil {
			// Headers are already flushed; all we can do is log.
			logger.Warn().Str("id", id).Err(err).Msg("error during file download")
		}
	}
}

// HealthHandler provides a simple health check endpoint that returns server
// status as plain text.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "chatrelay server is running!")
}
