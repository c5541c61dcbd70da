package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dee-Olulo/OCR-system/internal/domain/entity"
	"github.com/Dee-Olulo/OCR-system/internal/export"
	"github.com/Dee-Olulo/OCR-system/internal/extraction"
	"github.com/Dee-Olulo/OCR-system/internal/insurer"
	"github.com/Dee-Olulo/OCR-system/internal/pipeline"
	"github.com/Dee-Olulo/OCR-system/internal/repository"
	"github.com/Dee-Olulo/OCR-system/internal/table"
)

type stubClient struct {
	response  string
	available bool
}

func (s *stubClient) Complete(context.Context, string) (string, error) { return s.response, nil }
func (s *stubClient) Available(context.Context) bool                   { return s.available }

// memStore is an in-memory OutcomeStore.
type memStore struct {
	outcomes map[string]*entity.ExtractionOutcome
	order    []string
}

func newMemStore() *memStore {
	return &memStore{outcomes: make(map[string]*entity.ExtractionOutcome)}
}

func (s *memStore) Create(_ context.Context, o *entity.ExtractionOutcome) error {
	s.outcomes[o.ID] = o
	s.order = append(s.order, o.ID)
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*entity.ExtractionOutcome, error) {
	o, ok := s.outcomes[id]
	if !ok {
		return nil, repository.ErrOutcomeNotFound
	}
	return o, nil
}

func (s *memStore) ListRecent(_ context.Context, limit int) ([]*entity.ExtractionOutcome, error) {
	var out []*entity.ExtractionOutcome
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.outcomes[s.order[i]])
	}
	return out, nil
}

const abcConfig = `{
  "display_name": "ABC Medical Fund",
  "version": "1.0",
  "currency": "MWK",
  "date_format": "02/01/2006",
  "aliases": ["ABC", "ABC MEDICAL FUND"],
  "required_fields": ["member_name"],
  "output_schema": {"member_name": "patient_name", "claim_total": "total_amount"}
}`

const sampleInvoice = "Bill to: ABC Medical Fund\nPatient: John Banda\nLINE TARIFF DESCRIPTION QTY UNIT PRICE AMOUNT DATE\n1 1234 Consultation 1 500.00 26/01/2026\nTOTAL 500.00"

func newTestRouter(t *testing.T, client extraction.CompletionClient, store OutcomeStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc.json"), []byte(abcConfig), 0o644))

	logger := zap.NewNop()
	mapper := insurer.NewMapper(insurer.NewFileStore(dir), logger)
	orchestrator := extraction.NewOrchestrator(client, table.NewExtractor(logger), logger)
	svc := pipeline.NewService(orchestrator, mapper, "test-model", logger)

	r := gin.New()
	NewHandler(svc, mapper, store, export.NewExporter(logger), client, logger).Register(r)
	return r
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestExtractEndpoint(t *testing.T) {
	client := &stubClient{available: true, response: `{"patient_name": "John Banda", "insurer": "ABC Medical Fund"}`}
	store := newMemStore()
	r := newTestRouter(t, client, store)

	w := doJSON(r, http.MethodPost, "/api/extract", gin.H{"text": sampleInvoice})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var outcome entity.ExtractionOutcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))
	assert.Equal(t, "abc", outcome.InsurerKey)
	assert.True(t, outcome.Success)
	assert.Equal(t, "John Banda", outcome.MappedFields["member_name"])

	// Outcome was persisted under its returned ID.
	assert.Contains(t, store.outcomes, outcome.ID)
}

func TestExtractEndpoint_MissingText(t *testing.T) {
	client := &stubClient{available: true}
	r := newTestRouter(t, client, newMemStore())

	w := doJSON(r, http.MethodPost, "/api/extract", gin.H{"insurer": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractEndpoint_ModelUnavailable(t *testing.T) {
	client := &stubClient{available: false}
	r := newTestRouter(t, client, newMemStore())

	w := doJSON(r, http.MethodPost, "/api/extract", gin.H{"text": sampleInvoice})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestExtractEndpoint_NoInsurerDetected(t *testing.T) {
	client := &stubClient{available: true, response: `{"patient_name": "John Banda"}`}
	r := newTestRouter(t, client, newMemStore())

	w := doJSON(r, http.MethodPost, "/api/extract", gin.H{"text": "Patient: John Banda\nno insurer here"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Available []string `json:"available"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"abc"}, resp.Available)
}

func TestExtractEndpoint_UnknownInsurer(t *testing.T) {
	client := &stubClient{available: true, response: `{}`}
	r := newTestRouter(t, client, newMemStore())

	w := doJSON(r, http.MethodPost, "/api/extract", gin.H{"text": sampleInvoice, "insurer": "nope"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "nope")
}

func TestListInsurersEndpoint(t *testing.T) {
	r := newTestRouter(t, &stubClient{available: true}, newMemStore())

	w := doJSON(r, http.MethodGet, "/api/insurers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"insurers": ["abc"]}`, w.Body.String())
}

func TestGetOutcomeEndpoint(t *testing.T) {
	store := newMemStore()
	store.Create(context.Background(), &entity.ExtractionOutcome{
		ID:         "o-1",
		InsurerKey: "abc",
		Canonical:  entity.NewCanonicalRecord(),
		Normalized: entity.NewCanonicalRecord(),
	})
	r := newTestRouter(t, &stubClient{available: true}, store)

	w := doJSON(r, http.MethodGet, "/api/outcomes/o-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"o-1"`)

	missing := doJSON(r, http.MethodGet, "/api/outcomes/nope", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestExportOutcomeEndpoint(t *testing.T) {
	store := newMemStore()
	store.Create(context.Background(), &entity.ExtractionOutcome{
		ID:         "o-1",
		InsurerKey: "abc",
		Canonical:  entity.NewCanonicalRecord(),
		Normalized: entity.NewCanonicalRecord(),
	})
	r := newTestRouter(t, &stubClient{available: true}, store)

	w := doJSON(r, http.MethodGet, "/api/outcomes/o-1/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "outcome_o-1.xlsx")
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Body.Bytes())
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t, &stubClient{available: true}, newMemStore())

	w := doJSON(r, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok", "model_available": true}`, w.Body.String())
}
