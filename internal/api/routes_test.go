package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/tcg-inventory/internal/api/handlers"
	"github.com/codyseavey/tcg-inventory/internal/config"
	"github.com/codyseavey/tcg-inventory/internal/database"
	"github.com/codyseavey/tcg-inventory/internal/jobs"
	"github.com/codyseavey/tcg-inventory/internal/logging"
	"github.com/codyseavey/tcg-inventory/internal/models"
	"github.com/codyseavey/tcg-inventory/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubLookup prices every card at a fixed amount
type stubLookup struct {
	mu    sync.Mutex
	price float64
}

func (s *stubLookup) FetchMetadata(_ context.Context, q services.LookupQuery) services.CardMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return services.CardMetadata{
		Found:    true,
		Name:     q.Name,
		PriceUSD: s.price,
		Rarity:   "Common",
		Colors:   "Red",
		ManaCost: "R",
		TypeLine: "Instant",
	}
}

func (s *stubLookup) SearchCards(_ context.Context, query string) ([]services.CardMetadata, error) {
	return []services.CardMetadata{{Found: true, Name: query, SetCode: "lea"}}, nil
}

type testServer struct {
	router *gin.Engine
	runner *jobs.Runner
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logging.Discard()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "api.db")}, log)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	inventory := database.NewInventoryStore(db)
	lookup := &stubLookup{price: 1.5}
	jobsCfg := config.JobsConfig{CommitEvery: 10, RefreshMissingLimit: 200}
	runner := jobs.NewRunner(context.Background(), jobs.NewRegistry(), jobs.NewMemoryLock(), 2, log)
	t.Cleanup(runner.Wait)

	enricher := services.NewEnricher(inventory, lookup, jobsCfg, log)
	templates := services.NewTemplateService(database.NewTemplateStore(db), inventory, runner, enricher, log)
	collection := services.NewCollectionService(inventory, database.NewAlertStore(db), enricher, templates, runner, jobsCfg, log)
	snapshots := services.NewSnapshotService(inventory, database.NewSnapshotStore(db), 23, log)

	cfg := config.ServerConfig{AllowedOrigins: []string{"http://localhost:5173"}, MaxUploadBytes: 1 << 20}
	router := SetupRouter(cfg, Services{
		Collection: collection,
		Templates:  templates,
		Snapshots:  snapshots,
		Cards:      lookup,
	}, log)
	return &testServer{router: router, runner: runner}
}

func (s *testServer) do(t *testing.T, method, path, owner string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if owner != "" {
		req.Header.Set(handlers.OwnerHeader, owner)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) json(t *testing.T, method, path, owner string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			t.Fatalf("failed to encode payload: %v", err)
		}
	}
	return s.do(t, method, path, owner, body, "application/json")
}

func (s *testServer) upload(t *testing.T, path, owner, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	_, _ = fw.Write([]byte(content))
	_ = mw.Close()
	return s.do(t, http.MethodPost, path, owner, buf.Bytes(), mw.FormDataContentType())
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dest); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
}

const sampleCSV = "Name,Set code,Collector number,Foil,Quantity\n" +
	"Lightning Bolt,lea,161,false,4\n" +
	"Counterspell,lea,54,false,2\n" +
	",lea,1,false,1\n"

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	if w := s.do(t, http.MethodGet, "/health", "", nil, ""); w.Code != http.StatusOK {
		t.Errorf("health returned %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/metrics", "", nil, ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "tcg_http_requests_total") {
		t.Errorf("metrics returned %d", w.Code)
	}
}

func TestRequireOwner(t *testing.T) {
	s := newTestServer(t)
	if w := s.do(t, http.MethodGet, "/api/inventory", "", nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without owner header, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/inventory", strings.Repeat("x", 65), nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for oversized owner id, got %d", w.Code)
	}
}

func TestImportAndProgress(t *testing.T) {
	s := newTestServer(t)

	w := s.upload(t, "/api/imports", "u1", "collection.csv", sampleCSV, map[string]string{"create_template": "true"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var result services.ImportResult
	decode(t, w, &result)
	if result.Imported != 2 || result.Errors != 1 || result.TemplateID == 0 {
		t.Errorf("unexpected import result %+v", result)
	}

	s.runner.Wait()

	w = s.do(t, http.MethodGet, "/api/progress", "u1", nil, "")
	var progress services.ProgressResponse
	decode(t, w, &progress)
	if progress.Active || progress.LatestProgress == nil || progress.LatestProgress.Phase != jobs.PhaseComplete {
		t.Fatalf("unexpected progress %+v", progress)
	}
	if progress.LatestProgress.Summary.Enriched != 2 {
		t.Errorf("expected 2 enriched, got %+v", progress.LatestProgress.Summary)
	}

	w = s.do(t, http.MethodGet, "/api/inventory?sort_by=card_name&order=asc", "u1", nil, "")
	var page models.InventoryPage
	decode(t, w, &page)
	if page.TotalCount != 2 || page.Records[0].CardName != "Counterspell" || page.Records[1].TotalValue != 6 {
		t.Errorf("unexpected inventory page %+v", page)
	}

	w = s.do(t, http.MethodGet, "/api/progress", "u2", nil, "")
	decode(t, w, &progress)
	if progress.Active || progress.LatestProgress != nil {
		t.Errorf("expected no progress for another owner, got %+v", progress)
	}
}

func TestImportErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		filename string
		content  string
		want     int
	}{
		{"no name column", "numbers.csv", "Qty,Price\n1,2\n", http.StatusUnprocessableEntity},
		{"no rows", "empty.csv", "Name,Qty\n", http.StatusUnprocessableEntity},
		{"legacy excel", "old.xls", "binary", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.upload(t, "/api/imports", "u1", tt.filename, tt.content, nil)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	w := s.do(t, http.MethodPost, "/api/imports", "u1", []byte("{}"), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without a file, got %d", w.Code)
	}

	oversized := "Name,Qty\n" + strings.Repeat("Lightning Bolt,1\n", (2<<20)/16)
	w = s.upload(t, "/api/imports", "u1", "huge.csv", oversized, nil)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for an upload over the limit, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t)
	w := s.upload(t, "/api/imports/analyze", "u1", "collection.csv", sampleCSV, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var analysis struct {
		TotalRows      int    `json:"total_rows"`
		CardNameColumn string `json:"card_name_column"`
		ValidRows      int    `json:"valid_rows"`
	}
	decode(t, w, &analysis)
	if analysis.TotalRows != 3 || analysis.CardNameColumn != "Name" || analysis.ValidRows != 2 {
		t.Errorf("unexpected analysis %+v", analysis)
	}

	w = s.do(t, http.MethodGet, "/api/inventory/stats", "u1", nil, "")
	var stats models.InventoryStats
	decode(t, w, &stats)
	if stats.UniqueCards != 0 {
		t.Errorf("analyze must not import, got %d cards", stats.UniqueCards)
	}
}

func TestRefreshEndpoints(t *testing.T) {
	s := newTestServer(t)

	if w := s.json(t, http.MethodPost, "/api/inventory/refresh-missing", "u1", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for empty inventory, got %d", w.Code)
	}
	if w := s.json(t, http.MethodPost, "/api/inventory/refresh-all", "u1", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for empty inventory, got %d", w.Code)
	}
	if w := s.json(t, http.MethodPost, "/api/inventory/refresh", "u1", models.SelectionRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty selection, got %d", w.Code)
	}

	w := s.json(t, http.MethodPost, "/api/inventory", "u1", models.AddCardRequest{CardName: "Shock", Quantity: 1, Defer: true})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var rec models.InventoryRecord
	decode(t, w, &rec)
	s.runner.Wait()

	if w := s.json(t, http.MethodPost, "/api/inventory/refresh", "u2", models.SelectionRequest{CardIDs: []uint{rec.ID}}); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for cards owned by someone else, got %d", w.Code)
	}

	w = s.json(t, http.MethodPost, "/api/inventory/refresh-missing", "u1", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"started":false`) {
		t.Errorf("expected nothing missing after deferred lookup, got %d: %s", w.Code, w.Body.String())
	}

	job, err := s.runner.Begin(context.Background(), "u1", jobs.KindImport)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if w := s.json(t, http.MethodPost, "/api/inventory/refresh-all", "u1", nil); w.Code != http.StatusConflict {
		t.Errorf("expected 409 while a job is active, got %d", w.Code)
	}
	job.Complete(jobs.Summary{}, "")

	if w := s.json(t, http.MethodPost, "/api/inventory/refresh-all", "u1", nil); w.Code != http.StatusAccepted {
		t.Errorf("expected 202 after the job finished, got %d", w.Code)
	}
}

func TestInventoryCRUD(t *testing.T) {
	s := newTestServer(t)

	w := s.json(t, http.MethodPost, "/api/inventory", "u1", map[string]interface{}{"card_name": "Opt", "quantity": 2})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var rec models.InventoryRecord
	decode(t, w, &rec)
	if rec.CurrentPrice != 1.5 || rec.TotalValue != 3 {
		t.Errorf("expected synchronous lookup, got %+v", rec)
	}

	path := "/api/inventory/" + jsonNumber(rec.ID)
	if w := s.do(t, http.MethodGet, path, "u2", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another owner, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/inventory/abc", "u1", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad id, got %d", w.Code)
	}

	tests := []struct {
		name    string
		payload map[string]interface{}
		want    int
	}{
		{"negative quantity", map[string]interface{}{"quantity": -1}, http.StatusBadRequest},
		{"too many", map[string]interface{}{"quantity": 10000}, http.StatusBadRequest},
		{"valid", map[string]interface{}{"quantity": 5, "alert_threshold": 10}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := s.json(t, http.MethodPut, path, "u1", tt.payload); w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	w = s.do(t, http.MethodGet, path, "u1", nil, "")
	decode(t, w, &rec)
	if rec.Quantity != 5 || rec.TotalValue != 7.5 || rec.AlertThreshold != 10 {
		t.Errorf("unexpected updated record %+v", rec)
	}

	if w := s.json(t, http.MethodPost, "/api/inventory", "u1", map[string]interface{}{"quantity": 1}); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without card_name, got %d", w.Code)
	}

	if w := s.json(t, http.MethodPost, "/api/inventory/delete", "u2", models.SelectionRequest{CardIDs: []uint{rec.ID}}); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 deleting another owner's card, got %d", w.Code)
	}
	if w := s.do(t, http.MethodDelete, path, "u1", nil, ""); w.Code != http.StatusOK {
		t.Errorf("expected 200 on delete, got %d", w.Code)
	}
	if w := s.do(t, http.MethodDelete, path, "u1", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 deleting twice, got %d", w.Code)
	}
	if w := s.do(t, http.MethodDelete, "/api/inventory", "u1", nil, ""); w.Code != http.StatusOK {
		t.Errorf("expected 200 on delete all, got %d", w.Code)
	}
}

func TestTemplatesAndAlerts(t *testing.T) {
	s := newTestServer(t)

	if w := s.json(t, http.MethodPost, "/api/templates/99/import", "u1", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown template, got %d", w.Code)
	}

	w := s.upload(t, "/api/imports", "author", "starter.csv", sampleCSV,
		map[string]string{"create_template": "true", "template_name": "Starter", "make_public": "true"})
	var result services.ImportResult
	decode(t, w, &result)
	s.runner.Wait()

	w = s.do(t, http.MethodGet, "/api/templates", "u1", nil, "")
	var templates []models.CollectionTemplate
	decode(t, w, &templates)
	if len(templates) != 1 || templates[0].Name != "Starter" {
		t.Fatalf("expected the public template to be listed, got %+v", templates)
	}

	path := "/api/templates/" + jsonNumber(result.TemplateID) + "/import"
	if w := s.json(t, http.MethodPost, path, "u1", nil); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	s.runner.Wait()
	if w := s.json(t, http.MethodPost, path, "u1", nil); w.Code != http.StatusConflict {
		t.Errorf("expected 409 on second import, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/alerts", "u1", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"unread":0`) {
		t.Errorf("unexpected alerts response %d: %s", w.Code, w.Body.String())
	}
	if w := s.json(t, http.MethodPost, "/api/alerts/42/read", "u1", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown alert, got %d", w.Code)
	}
}

func TestCardSearchAndHistory(t *testing.T) {
	s := newTestServer(t)

	if w := s.do(t, http.MethodGet, "/api/cards/search", "u1", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without q, got %d", w.Code)
	}
	w := s.do(t, http.MethodGet, "/api/cards/search?q=Black+Lotus", "u1", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Black Lotus") {
		t.Errorf("unexpected search response %d: %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/api/inventory/history?period=year", "u1", nil, "")
	var history models.ValueHistoryResponse
	decode(t, w, &history)
	if history.Period != "year" || len(history.Snapshots) != 0 {
		t.Errorf("unexpected history %+v", history)
	}
}

func jsonNumber(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
