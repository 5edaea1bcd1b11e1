package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"leasedocs/internal/docgen"
	"leasedocs/internal/handlers"
	"leasedocs/internal/models"
	"leasedocs/internal/region"
	"leasedocs/internal/router"
	"leasedocs/internal/storage"
)

// fakeGenerator returns canned PDF bytes and records the call.
type fakeGenerator struct {
	pdf      []byte
	resolved string
	err      error
	entityID string
	fields   map[string]string
	data     any
	opts     docgen.Options
	kind     models.DocumentKind
}

func (g *fakeGenerator) GenerateFromFields(ctx context.Context, fields map[string]string, entityID string, opts docgen.Options) ([]byte, string, error) {
	g.fields, g.entityID, g.opts = fields, entityID, opts
	return g.pdf, g.resolved, g.err
}

func (g *fakeGenerator) GenerateFromTemplate(ctx context.Context, kind models.DocumentKind, data any, opts docgen.Options) ([]byte, string, error) {
	g.kind, g.data, g.opts = kind, data, opts
	return g.pdf, g.resolved, g.err
}

type fakeUploader struct {
	result    storage.UploadResult
	uploadErr error
	url       string
	uploaded  []byte
	deleted   []string
}

func (u *fakeUploader) Upload(ctx context.Context, entityID string, data []byte) (storage.UploadResult, error) {
	u.uploaded = data
	return u.result, u.uploadErr
}

func (u *fakeUploader) Delete(ctx context.Context, entityID string) {
	u.deleted = append(u.deleted, entityID)
}

func (u *fakeUploader) GetURL(ctx context.Context, entityID string) string { return u.url }

type fakeRecorder struct {
	docs    []*models.Document
	err     error
	findErr error
	deleted []string
}

func (r *fakeRecorder) Create(ctx context.Context, d *models.Document) error {
	r.docs = append(r.docs, d)
	return r.err
}

func (r *fakeRecorder) FindLatestByEntity(ctx context.Context, entityID string) (*models.Document, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	for i := len(r.docs) - 1; i >= 0; i-- {
		if r.docs[i].EntityID == entityID {
			return r.docs[i], nil
		}
	}
	return nil, nil
}

func (r *fakeRecorder) ListByEntity(ctx context.Context, entityID string) ([]models.Document, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []models.Document
	for i := len(r.docs) - 1; i >= 0; i-- {
		if r.docs[i].EntityID == entityID {
			out = append(out, *r.docs[i])
		}
	}
	return out, nil
}

func (r *fakeRecorder) DeleteByEntity(ctx context.Context, entityID string) (int64, error) {
	r.deleted = append(r.deleted, entityID)
	if r.err != nil {
		return 0, r.err
	}
	return 1, nil
}

// serve routes a request through the full middleware chain.
func serve(t *testing.T, docs *handlers.Documents, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.New(docs).ServeHTTP(rec, req)
	return rec
}

func TestGenerateFromFieldsUploads(t *testing.T) {
	gen := &fakeGenerator{pdf: []byte("%PDF-1.7"), resolved: "CO"}
	up := &fakeUploader{result: storage.UploadResult{
		PublicURL: "http://localhost:9000/documents/leases/lease-1/lease-1-1.pdf",
		Path:      "leases/lease-1/lease-1-1.pdf",
		Bucket:    "documents",
	}}
	store := &fakeRecorder{}
	docs := handlers.NewDocuments(gen, up, store)

	rec := serve(t, docs, http.MethodPost, "/api/leases/lease-1/document",
		`{"region":"CO","fields":{"tenant_name":"Alex Doe"}}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}
	var resp struct {
		URL    string `json:"url"`
		Path   string `json:"path"`
		Bucket string `json:"bucket"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Path != up.result.Path || resp.Bucket != "documents" {
		t.Errorf("response = %+v", resp)
	}
	if gen.entityID != "lease-1" {
		t.Errorf("entity id = %q", gen.entityID)
	}
	if gen.fields["tenant_name"] != "Alex Doe" {
		t.Errorf("fields not forwarded: %v", gen.fields)
	}
	if string(up.uploaded) != "%PDF-1.7" {
		t.Errorf("uploaded bytes = %q", up.uploaded)
	}
	if len(store.docs) != 1 {
		t.Fatalf("records = %d, want 1", len(store.docs))
	}
	if d := store.docs[0]; d.EntityID != "lease-1" || d.Kind != models.KindLease || d.SizeBytes != 8 {
		t.Errorf("recorded document = %+v", d)
	}
}

func TestRecordStoresResolvedRegion(t *testing.T) {
	// An empty requested region resolves to the default; the record must
	// carry the resolved code, not the raw request value.
	gen := &fakeGenerator{pdf: []byte("%PDF"), resolved: "CO"}
	up := &fakeUploader{result: storage.UploadResult{Path: "leases/lease-1/x.pdf"}}
	store := &fakeRecorder{}
	docs := handlers.NewDocuments(gen, up, store)

	rec := serve(t, docs, http.MethodPost, "/api/leases/lease-1/document", `{"region":""}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(store.docs) != 1 {
		t.Fatalf("records = %d, want 1", len(store.docs))
	}
	if got := store.docs[0].Region; got != "CO" {
		t.Errorf("recorded region = %q, want resolved %q", got, "CO")
	}
}

func TestGenerateStreamsWithoutStorage(t *testing.T) {
	gen := &fakeGenerator{pdf: []byte("%PDF-1.7 body")}
	docs := handlers.NewDocuments(gen, nil, nil)

	rec := serve(t, docs, http.MethodPost, "/api/leases/lease-1/document", `{"region":"CO"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.String() != "%PDF-1.7 body" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestGenerateFromTemplateForwardsOptions(t *testing.T) {
	gen := &fakeGenerator{pdf: []byte("%PDF")}
	docs := handlers.NewDocuments(gen, nil, nil)

	rec := serve(t, docs, http.MethodPost, "/api/leases/lease-7/document/html",
		`{"region":"TX","kind":"inspection","cache_key":"unit-4B","data":{"unit":"4B"}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if gen.kind != models.KindInspection {
		t.Errorf("kind = %q", gen.kind)
	}
	if gen.opts.Region != "TX" || gen.opts.CacheKey != "unit-4B" {
		t.Errorf("options = %+v", gen.opts)
	}
	data, ok := gen.data.(map[string]any)
	if !ok || data["unit"] != "4B" {
		t.Errorf("data = %v", gen.data)
	}
}

func TestGenerateBadRequests(t *testing.T) {
	docs := handlers.NewDocuments(&fakeGenerator{}, nil, nil)

	for name, body := range map[string]string{
		"malformed json": `{"region":`,
		"unknown kind":   `{"kind":"eviction"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(t, docs, http.MethodPost, "/api/leases/lease-1/document", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestGenerateUnsupportedRegionStrict(t *testing.T) {
	gen := &fakeGenerator{err: region.ErrUnsupported}
	docs := handlers.NewDocuments(gen, nil, nil)

	rec := serve(t, docs, http.MethodPost, "/api/leases/lease-1/document",
		`{"region":"ZZ","strict_region":true}`)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if !gen.opts.FailOnUnsupportedRegion {
		t.Error("strict_region not forwarded to generator options")
	}
}

func TestGenerateUploadFailure(t *testing.T) {
	gen := &fakeGenerator{pdf: []byte("%PDF")}
	up := &fakeUploader{uploadErr: context.DeadlineExceeded}
	docs := handlers.NewDocuments(gen, up, nil)

	rec := serve(t, docs, http.MethodPost, "/api/leases/lease-1/document", `{}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestRecorderFailureDoesNotFailRequest(t *testing.T) {
	gen := &fakeGenerator{pdf: []byte("%PDF")}
	up := &fakeUploader{result: storage.UploadResult{Path: "leases/x/x.pdf"}}
	store := &fakeRecorder{err: context.DeadlineExceeded}
	docs := handlers.NewDocuments(gen, up, store)

	rec := serve(t, docs, http.MethodPost, "/api/leases/lease-1/document", `{}`)
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201 despite record failure", rec.Code)
	}
}

func TestGetDocument(t *testing.T) {
	up := &fakeUploader{url: "http://localhost:9000/documents/leases/lease-1/lease-1-1.pdf"}
	docs := handlers.NewDocuments(&fakeGenerator{}, up, nil)

	rec := serve(t, docs, http.MethodGet, "/api/leases/lease-1/document", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["url"] != up.url {
		t.Errorf("url = %q", resp["url"])
	}
}

func TestGetDocumentAbsent(t *testing.T) {
	docs := handlers.NewDocuments(&fakeGenerator{}, &fakeUploader{}, nil)

	rec := serve(t, docs, http.MethodGet, "/api/leases/lease-1/document", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetDocumentNoStorage(t *testing.T) {
	docs := handlers.NewDocuments(&fakeGenerator{}, nil, nil)

	rec := serve(t, docs, http.MethodGet, "/api/leases/lease-1/document", "")
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}

func TestGetDocumentPrefersRecord(t *testing.T) {
	up := &fakeUploader{url: "http://localhost:9000/documents/leases/lease-1/from-storage.pdf"}
	store := &fakeRecorder{docs: []*models.Document{{
		EntityID:  "lease-1",
		PublicURL: "https://cdn.example.com/leases/lease-1/from-record.pdf",
		Path:      "leases/lease-1/from-record.pdf",
	}}}
	docs := handlers.NewDocuments(&fakeGenerator{}, up, store)

	rec := serve(t, docs, http.MethodGet, "/api/leases/lease-1/document", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["url"] != store.docs[0].PublicURL {
		t.Errorf("url = %q, want the recorded url", resp["url"])
	}
}

func TestGetDocumentRecordFailureFallsBackToStorage(t *testing.T) {
	up := &fakeUploader{url: "http://localhost:9000/documents/leases/lease-1/from-storage.pdf"}
	store := &fakeRecorder{findErr: context.DeadlineExceeded}
	docs := handlers.NewDocuments(&fakeGenerator{}, up, store)

	rec := serve(t, docs, http.MethodGet, "/api/leases/lease-1/document", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["url"] != up.url {
		t.Errorf("url = %q, want the storage url", resp["url"])
	}
}

func TestListDocuments(t *testing.T) {
	store := &fakeRecorder{docs: []*models.Document{
		{EntityID: "lease-1", Kind: models.KindLease, Region: "CO", Path: "leases/lease-1/a.pdf", SizeBytes: 100},
		{EntityID: "lease-2", Kind: models.KindLease, Region: "TX", Path: "leases/lease-2/b.pdf"},
		{EntityID: "lease-1", Kind: models.KindInspection, Region: "CO", Path: "leases/lease-1/c.pdf", SizeBytes: 200},
	}}
	docs := handlers.NewDocuments(&fakeGenerator{}, nil, store)

	rec := serve(t, docs, http.MethodGet, "/api/leases/lease-1/document/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var records []struct {
		Kind string `json:"kind"`
		Path string `json:"path"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Kind != "Inspection" || records[0].Path != "leases/lease-1/c.pdf" {
		t.Errorf("newest record first, got %+v", records[0])
	}
}

func TestListDocumentsNoRecorder(t *testing.T) {
	docs := handlers.NewDocuments(&fakeGenerator{}, nil, nil)

	rec := serve(t, docs, http.MethodGet, "/api/leases/lease-1/document/history", "")
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}

func TestDeleteDocumentIdempotent(t *testing.T) {
	up := &fakeUploader{}
	store := &fakeRecorder{}
	docs := handlers.NewDocuments(&fakeGenerator{}, up, store)

	for i := 0; i < 2; i++ {
		rec := serve(t, docs, http.MethodDelete, "/api/leases/lease-1/document", "")
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
	}
	if len(up.deleted) != 2 {
		t.Errorf("storage delete calls = %d, want 2", len(up.deleted))
	}
	if len(store.deleted) != 2 {
		t.Errorf("record delete calls = %d, want 2", len(store.deleted))
	}
}

func TestHealthz(t *testing.T) {
	r := router.New(handlers.NewDocuments(&fakeGenerator{}, nil, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}
