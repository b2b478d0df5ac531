package handler

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/wyckoff-journal/internal/catalog"
	"github.com/fleveque/wyckoff-journal/internal/journal"
	"github.com/fleveque/wyckoff-journal/internal/llm"
	"github.com/fleveque/wyckoff-journal/internal/provider"
	"github.com/fleveque/wyckoff-journal/internal/render"
	"github.com/fleveque/wyckoff-journal/internal/service"
	"github.com/fleveque/wyckoff-journal/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// scriptedClient answers every call with the same text or error.
type scriptedClient struct {
	name string
	text string
	err  error

	mu    sync.Mutex
	calls int
}

func (s *scriptedClient) ProviderName() string { return s.name }

func (s *scriptedClient) Generate(_ context.Context, _ llm.Request) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func (s *scriptedClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type testApp struct {
	router  *gin.Engine
	journal *journal.Journal
	gemini  *scriptedClient
	calls   storage.GenerationCallRepository
	exports string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := zap.NewNop()

	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	calls := storage.NewGenerationCallRepository(db)

	exportDir := filepath.Join(t.TempDir(), "exports")
	sink, err := storage.NewFileSystem(exportDir)
	if err != nil {
		t.Fatalf("creating sink: %v", err)
	}

	gemini := &scriptedClient{name: "gemini", text: "**Fase B**\n\n| Level | Harga |\n|---|---|\n| Entry | 1200 |"}
	prompts := catalog.DefaultPrompts()
	prompts["broken"] = "Equity {modal}"
	providers := catalog.ProviderCatalog{"gemini": {"gemini-3-flash-preview"}, "mistral": {"large"}}

	j := journal.New()
	d := service.NewDispatcher(
		provider.NewRegistryFromClients(gemini),
		prompts,
		j,
		map[string]string{"gemini": "stored-key"},
		logger,
		service.WithRecorder(calls),
	)
	d.Begin()

	analysis := NewAnalysisHandler(d, service.NewChartProcessor(0), logger)
	journals := NewJournalHandler(j, render.New(), sink, logger)
	catalogs := NewCatalogHandler(providers, prompts, []error{&catalog.ConfigurationError{
		Resource: "prompts", Path: "config/prompts.yaml", Err: errTest,
	}}, d)
	stats := NewStatsHandler(calls, j, logger)

	r := gin.New()
	r.GET("/healthz", NewHealthHandler(d).Healthz)
	r.GET("/api/v1/catalog", catalogs.Get)
	r.GET("/api/v1/session", analysis.Session)
	r.POST("/api/v1/analyses", analysis.Create)
	r.GET("/api/v1/journal", journals.List)
	r.GET("/api/v1/journal/export", journals.Export)
	r.POST("/api/v1/journal/import", journals.Import)
	r.POST("/api/v1/journal/archive", journals.Archive)
	r.GET("/api/v1/stats", stats.Stats)

	return &testApp{router: r, journal: j, gemini: gemini, calls: calls, exports: exportDir}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func createTestPNG(width, height int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 160, B: 60, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// analysisRequest builds a multipart generation request. A nil chart omits
// the file part.
func analysisRequest(t *testing.T, fields map[string]string, chart []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if chart != nil {
		fw, err := mw.CreateFormFile("chart", "chart.png")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(chart); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func validFields() map[string]string {
	return map[string]string{
		"provider": "gemini",
		"model":    "gemini-3-flash-preview",
		"strategy": catalog.DefaultStrategy,
		"equity":   "9500000",
	}
}

type testError string

func (e testError) Error() string { return string(e) }

const errTest = testError("yaml: line 3: did not find expected key")
