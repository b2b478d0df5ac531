package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fleveque/wyckoff-journal/internal/llm"
	"github.com/fleveque/wyckoff-journal/internal/model"
)

func TestAnalysisHandler_Create(t *testing.T) {
	app := newTestApp(t)

	w := app.do(analysisRequest(t, validFields(), createTestPNG(64, 48)))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var rec model.AnalysisRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if rec.Provider != "gemini" || rec.Model != "gemini-3-flash-preview" || rec.Analysis != app.gemini.text {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
	if app.journal.Len() != 1 {
		t.Errorf("expected 1 journal record, got %d", app.journal.Len())
	}
}

func failWithServerError(c *scriptedClient) {
	c.err = &llm.ProviderError{Provider: "gemini", Kind: llm.KindTransport, StatusCode: 500, Detail: "server error"}
}

func TestAnalysisHandler_CreateErrors(t *testing.T) {
	tests := []struct {
		name       string
		fields     func(map[string]string)
		chart      []byte
		providerFn func(*scriptedClient)
		wantStatus int
		wantInBody string
		wantCalls  int
	}{
		{
			name:       "missing chart",
			wantStatus: http.StatusBadRequest,
			wantInBody: "chart image is required",
		},
		{
			name:       "not an image",
			chart:      []byte("hello"),
			wantStatus: http.StatusBadRequest,
			wantInBody: "unsupported image format",
		},
		{
			name:       "bad equity",
			fields:     func(f map[string]string) { f["equity"] = "banyak" },
			chart:      createTestPNG(8, 8),
			wantStatus: http.StatusBadRequest,
			wantInBody: "invalid equity",
		},
		{
			name:       "unknown provider",
			fields:     func(f map[string]string) { f["provider"] = "mistral" },
			chart:      createTestPNG(8, 8),
			wantStatus: http.StatusBadRequest,
			wantInBody: "unknown provider",
		},
		{
			name:       "unknown strategy",
			fields:     func(f map[string]string) { f["strategy"] = "scalping" },
			chart:      createTestPNG(8, 8),
			wantStatus: http.StatusBadRequest,
			wantInBody: "unknown strategy",
		},
		{
			name:       "template error",
			fields:     func(f map[string]string) { f["strategy"] = "broken" },
			chart:      createTestPNG(8, 8),
			wantStatus: http.StatusUnprocessableEntity,
			wantInBody: "modal",
		},
		{
			name:       "provider failure",
			chart:      createTestPNG(8, 8),
			providerFn: failWithServerError,
			wantStatus: http.StatusBadGateway,
			wantInBody: "server error",
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			if tt.providerFn != nil {
				tt.providerFn(app.gemini)
			}
			fields := validFields()
			if tt.fields != nil {
				tt.fields(fields)
			}

			w := app.do(analysisRequest(t, fields, tt.chart))
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.wantInBody) {
				t.Errorf("expected body to contain %q, got %s", tt.wantInBody, w.Body.String())
			}
			if app.gemini.callCount() != tt.wantCalls {
				t.Errorf("expected %d provider calls, got %d", tt.wantCalls, app.gemini.callCount())
			}
			if app.journal.Len() != 0 {
				t.Errorf("expected journal to stay empty, got %d", app.journal.Len())
			}
		})
	}
}

func TestAnalysisHandler_Session(t *testing.T) {
	app := newTestApp(t)

	w := app.do(httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		State       string `json:"state"`
		LastContext string `json:"last_context"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if body.State != "awaiting_input" {
		t.Errorf("unexpected state %q", body.State)
	}
	if body.LastContext != "Tidak ada data sebelumnya." {
		t.Errorf("unexpected context %q", body.LastContext)
	}
}

func TestParseEquity(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{"", 9500000, false},
		{"12500.5", 12500.5, false},
		{" 100 ", 100, false},
		{"1e6", 1000000, false},
		{"Rp 100", 0, true},
	}
	for _, tt := range tests {
		got, err := parseEquity(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseEquity(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseEquity(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
