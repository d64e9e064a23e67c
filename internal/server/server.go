package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gallery-go/internal/gallery"
	"gallery-go/internal/metrics"
	"gallery-go/internal/model"
)

// Reader is the read side of the gallery. *gallery.Service implements it.
type Reader interface {
	ListAlbums(ctx context.Context) (map[string][]string, error)
	AlbumMembers(ctx context.Context, album string) ([]string, error)
	GetItem(ctx context.Context, contentHash string) (*model.Item, error)
}

// Handlers serves the read-only HTTP view.
type Handlers struct {
	reader Reader
	logger gallery.Logger
}

// NewHandlers creates Handlers backed by reader.
func NewHandlers(reader Reader, logger gallery.Logger) *Handlers {
	return &Handlers{reader: reader, logger: logger}
}

// NewRouter wires the routes:
//
//	GET /api/albums                  albums by namespace
//	GET /api/albums/{album}/items    member content hashes (album may contain '/')
//	GET /api/items/{hash}            one item
//	GET /healthz
//	GET /metrics
func NewRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(recordMetrics)

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/albums", h.ListAlbums).Methods(http.MethodGet)
	api.HandleFunc("/albums/{album:.+}/items", h.AlbumItems).Methods(http.MethodGet)
	api.HandleFunc("/items/{hash}", h.GetItem).Methods(http.MethodGet)

	return r
}

// AlbumsResponse lists registered albums by namespace.
type AlbumsResponse struct {
	Source []string `json:"source"`
	Date   []string `json:"date"`
}

// AlbumItemsResponse lists the members of one album.
type AlbumItemsResponse struct {
	Album string   `json:"album"`
	Items []string `json:"items"`
}

// ItemResponse is the JSON form of an Item.
type ItemResponse struct {
	ContentHash string   `json:"contentHash"`
	ContentType string   `json:"contentType"`
	CaptureTime *int64   `json:"captureTime,omitempty"`
	Locations   []string `json:"locations"`
	Albums      []string `json:"albums"`
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, "ok")
}

func (h *Handlers) ListAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := h.reader.ListAlbums(r.Context())
	if err != nil {
		h.logger.Error("listing albums", "error", err)
		writeJSONError(w, "failed to list albums", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.logger, AlbumsResponse{
		Source: albums[gallery.SourceNamespace],
		Date:   albums[gallery.DateNamespace],
	})
}

func (h *Handlers) AlbumItems(w http.ResponseWriter, r *http.Request) {
	album := mux.Vars(r)["album"]

	members, err := h.reader.AlbumMembers(r.Context(), album)
	if err != nil {
		h.logger.Error("listing album members", "album", album, "error", err)
		writeJSONError(w, "failed to list album items", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.logger, AlbumItemsResponse{Album: album, Items: members})
}

func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	item, err := h.reader.GetItem(r.Context(), hash)
	if err != nil {
		h.logger.Error("getting item", "hash", hash, "error", err)
		writeJSONError(w, "failed to get item", http.StatusInternalServerError)
		return
	}
	if item == nil {
		writeJSONError(w, "item not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.logger, ItemResponse{
		ContentHash: item.ContentHash,
		ContentType: item.ContentType,
		CaptureTime: item.CaptureTime,
		Locations:   item.Locations,
		Albums:      item.Albums,
	})
}

// statusRecorder captures the status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// recordMetrics labels requests by route template, not raw path, so album
// names do not become label values.
func recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unknown"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// writeJSON encodes v as JSON. Encoding errors are only logged: the status
// line has already been sent.
func writeJSON(w http.ResponseWriter, logger gallery.Logger, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSONStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
