package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-enrichment/internal/core/domain"
	"github.com/kirillkom/document-enrichment/internal/core/ports"
	"github.com/kirillkom/document-enrichment/internal/observability/metrics"
)

type Options struct {
	MaxUploadBytes       int64
	MaxInFlightUploads   int
	UploadWait           time.Duration
	DefaultRescanTimeout time.Duration
	MetricsHandler       http.Handler
	HTTPMetrics          *metrics.HTTPServerMetrics
}

type Router struct {
	ingest    ports.DocumentIngestor
	submitter ports.DocumentSubmitter
	docs      ports.DocumentReader
	remover   ports.DocumentRemover
	recovery  ports.StuckDocumentRecoverer
	opts      Options
}

func NewRouter(
	ingest ports.DocumentIngestor,
	submitter ports.DocumentSubmitter,
	docs ports.DocumentReader,
	remover ports.DocumentRemover,
	recovery ports.StuckDocumentRecoverer,
	opts Options,
) *Router {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}
	if opts.MaxInFlightUploads <= 0 {
		opts.MaxInFlightUploads = 8
	}
	if opts.UploadWait <= 0 {
		opts.UploadWait = 2 * time.Second
	}
	if opts.DefaultRescanTimeout <= 0 {
		opts.DefaultRescanTimeout = 30 * time.Minute
	}
	return &Router{
		ingest:    ingest,
		submitter: submitter,
		docs:      docs,
		remover:   remover,
		recovery:  recovery,
		opts:      opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", rt.opts.MetricsHandler)
	}
	mux.Handle("POST /v1/documents", backpressureMiddleware(http.HandlerFunc(rt.uploadDocument), rt.opts.MaxInFlightUploads, rt.opts.UploadWait))
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocumentByID)
	mux.HandleFunc("POST /v1/documents/{id}/submit", rt.submitDocument)
	mux.HandleFunc("DELETE /v1/documents/{id}", rt.deleteDocument)
	mux.HandleFunc("POST /v1/admin/rescan", rt.rescanStuck)

	var handler http.Handler = mux
	if rt.opts.HTTPMetrics != nil {
		handler = rt.opts.HTTPMetrics.Middleware(handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, r, mapErrorToHTTPStatus(err), err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, mapErrorToHTTPStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) submitDocument(w http.ResponseWriter, r *http.Request) {
	id, err := rt.submitter.Submit(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, mapErrorToHTTPStatus(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": string(domain.StatusQueued)})
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := rt.remover.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, mapErrorToHTTPStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) rescanStuck(w http.ResponseWriter, r *http.Request) {
	timeout := rt.opts.DefaultRescanTimeout
	if raw := strings.TrimSpace(r.URL.Query().Get("timeout")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "timeout must be a positive duration such as 30m"})
			return
		}
		timeout = parsed
	}

	count, err := rt.recovery.RescanStuck(r.Context(), timeout)
	if err != nil {
		writeError(w, r, mapErrorToHTTPStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resubmitted": count, "timeout": timeout.String()})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
