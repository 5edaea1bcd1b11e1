// Package handlers implements the HTTP handlers for document generation.
// Handlers stay thin: decode the request, call the generator and
// uploader, encode the result. Request validation schemas and access
// control live upstream.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"leasedocs/internal/docgen"
	"leasedocs/internal/models"
	"leasedocs/internal/region"
	"leasedocs/internal/storage"
)

// Generator produces PDF bytes and reports the region the document was
// actually generated for. Implemented by docgen.Generator.
type Generator interface {
	GenerateFromFields(ctx context.Context, fields map[string]string, entityID string, opts docgen.Options) ([]byte, string, error)
	GenerateFromTemplate(ctx context.Context, kind models.DocumentKind, data any, opts docgen.Options) ([]byte, string, error)
}

// Uploader persists PDF bytes. Implemented by storage.Client.
type Uploader interface {
	Upload(ctx context.Context, entityID string, data []byte) (storage.UploadResult, error)
	Delete(ctx context.Context, entityID string)
	GetURL(ctx context.Context, entityID string) string
}

// Recorder books generated documents and answers lookups against the
// records. Implemented by store.DocumentStore.
type Recorder interface {
	Create(ctx context.Context, d *models.Document) error
	FindLatestByEntity(ctx context.Context, entityID string) (*models.Document, error)
	ListByEntity(ctx context.Context, entityID string) ([]models.Document, error)
	DeleteByEntity(ctx context.Context, entityID string) (int64, error)
}

// Documents bundles the document endpoints and their dependencies.
// uploader and recorder may be nil: without storage the generated PDF is
// streamed back directly, and without a database no records are kept.
type Documents struct {
	gen      Generator
	uploader Uploader
	recorder Recorder
}

// NewDocuments creates the document handler group.
func NewDocuments(gen Generator, uploader Uploader, recorder Recorder) *Documents {
	return &Documents{gen: gen, uploader: uploader, recorder: recorder}
}

// generateRequest is the request body for both generation endpoints.
type generateRequest struct {
	Region   string            `json:"region"`
	Kind     string            `json:"kind"`
	Strict   bool              `json:"strict_region"`
	Validate bool              `json:"validate"`
	Fields   map[string]string `json:"fields"`
	Data     map[string]any    `json:"data"`
	CacheKey string            `json:"cache_key"`
}

// generateResponse is returned when the document was uploaded.
type generateResponse struct {
	URL    string `json:"url"`
	Path   string `json:"path"`
	Bucket string `json:"bucket"`
}

// GenerateFromFields handles POST /api/leases/{id}/document.
func (h *Documents) GenerateFromFields(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "id")

	req, opts, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	pdf, resolved, err := h.gen.GenerateFromFields(r.Context(), req.Fields, entityID, opts)
	if err != nil {
		h.generationError(w, entityID, err)
		return
	}
	h.deliver(w, r, entityID, opts.Kind, resolved, pdf)
}

// GenerateFromTemplate handles POST /api/leases/{id}/document/html.
func (h *Documents) GenerateFromTemplate(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "id")

	req, opts, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	pdf, resolved, err := h.gen.GenerateFromTemplate(r.Context(), opts.Kind, req.Data, opts)
	if err != nil {
		h.generationError(w, entityID, err)
		return
	}
	h.deliver(w, r, entityID, opts.Kind, resolved, pdf)
}

// GetDocument handles GET /api/leases/{id}/document. The bookkeeping
// record is the cheap path when a database is wired; the storage list
// is the fallback, and the authority when no records are kept.
func (h *Documents) GetDocument(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "id")

	if h.recorder != nil {
		doc, err := h.recorder.FindLatestByEntity(r.Context(), entityID)
		if err != nil {
			slog.Warn("document record lookup failed, falling back to storage",
				"entity", entityID, "error", err)
		} else if doc != nil && doc.PublicURL != "" {
			writeJSON(w, http.StatusOK, map[string]string{"url": doc.PublicURL, "path": doc.Path})
			return
		}
	}

	if h.uploader == nil {
		http.Error(w, "storage not configured", http.StatusNotImplemented)
		return
	}
	url := h.uploader.GetURL(r.Context(), entityID)
	if url == "" {
		http.Error(w, "no document", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// documentRecord is the wire shape of one bookkeeping record.
type documentRecord struct {
	Kind      string `json:"kind"`
	Region    string `json:"region"`
	Path      string `json:"path"`
	URL       string `json:"url"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
}

// ListDocuments handles GET /api/leases/{id}/document/history, returning
// every recorded generation for the entity, newest first.
func (h *Documents) ListDocuments(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "id")

	if h.recorder == nil {
		http.Error(w, "document records not configured", http.StatusNotImplemented)
		return
	}
	docs, err := h.recorder.ListByEntity(r.Context(), entityID)
	if err != nil {
		slog.Error("document record list failed", "entity", entityID, "error", err)
		http.Error(w, "document record list failed", http.StatusInternalServerError)
		return
	}

	records := make([]documentRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, documentRecord{
			Kind:      string(d.Kind),
			Region:    d.Region,
			Path:      d.Path,
			URL:       d.PublicURL,
			SizeBytes: d.SizeBytes,
			CreatedAt: d.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, records)
}

// DeleteDocument handles DELETE /api/leases/{id}/document. Deletion is
// idempotent, so this always answers 204; record cleanup is best-effort
// like record creation.
func (h *Documents) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "id")

	if h.uploader != nil {
		h.uploader.Delete(r.Context(), entityID)
	}
	if h.recorder != nil {
		if _, err := h.recorder.DeleteByEntity(r.Context(), entityID); err != nil {
			slog.Warn("document record delete failed", "entity", entityID, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeRequest parses the shared request body and builds generation
// options. Returns ok=false after writing an error response.
func (h *Documents) decodeRequest(w http.ResponseWriter, r *http.Request) (generateRequest, docgen.Options, bool) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return req, docgen.Options{}, false
	}

	kind, err := models.ParseKind(req.Kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, docgen.Options{}, false
	}

	return req, docgen.Options{
		Region:                  req.Region,
		Kind:                    kind,
		FailOnUnsupportedRegion: req.Strict,
		Validate:                req.Validate,
		CacheKey:                req.CacheKey,
	}, true
}

// deliver uploads the generated PDF and answers with its location, or
// streams the bytes directly when storage is not configured. regionCode
// is the resolved region the generator actually used.
func (h *Documents) deliver(w http.ResponseWriter, r *http.Request, entityID string, kind models.DocumentKind, regionCode string, pdf []byte) {
	if h.uploader == nil {
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
		w.Write(pdf)
		return
	}

	result, err := h.uploader.Upload(r.Context(), entityID, pdf)
	if err != nil {
		slog.Error("document upload failed", "entity", entityID, "error", err)
		http.Error(w, "document upload failed", http.StatusBadGateway)
		return
	}

	h.record(r.Context(), entityID, kind, regionCode, result, len(pdf))
	writeJSON(w, http.StatusCreated, generateResponse{
		URL:    result.PublicURL,
		Path:   result.Path,
		Bucket: result.Bucket,
	})
}

// record books the generated document under the resolved region so the
// record names the template really used. Best-effort: failures are
// logged and never surfaced to the caller.
func (h *Documents) record(ctx context.Context, entityID string, kind models.DocumentKind, regionCode string, res storage.UploadResult, size int) {
	if h.recorder == nil {
		return
	}
	doc := &models.Document{
		EntityID:  entityID,
		Kind:      kind,
		Region:    regionCode,
		Path:      res.Path,
		PublicURL: res.PublicURL,
		SizeBytes: int64(size),
	}
	if err := h.recorder.Create(ctx, doc); err != nil {
		slog.Warn("document record insert failed", "entity", entityID, "error", err)
	}
}

// generationError maps generation failures to HTTP responses. Callers
// get a single descriptive error message, never a stack trace.
func (h *Documents) generationError(w http.ResponseWriter, entityID string, err error) {
	slog.Error("document generation failed", "entity", entityID, "error", err)

	status := http.StatusInternalServerError
	if errors.Is(err, region.ErrUnsupported) {
		status = http.StatusUnprocessableEntity
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", "error", err)
	}
}
