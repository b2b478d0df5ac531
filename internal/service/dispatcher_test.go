package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/wyckoff-journal/internal/catalog"
	"github.com/fleveque/wyckoff-journal/internal/journal"
	"github.com/fleveque/wyckoff-journal/internal/llm"
	"github.com/fleveque/wyckoff-journal/internal/model"
	"github.com/fleveque/wyckoff-journal/internal/prompt"
	"github.com/fleveque/wyckoff-journal/internal/provider"
)

// fakeClient is an llm.Client that counts calls and replays canned results.
type fakeClient struct {
	name    string
	replies []string
	err     error

	mu       sync.Mutex
	calls    int
	requests []llm.Request
	block    chan struct{}
}

func (f *fakeClient) ProviderName() string { return f.name }

func (f *fakeClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	n := f.calls
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.err != nil {
		return "", f.err
	}
	if n <= len(f.replies) {
		return f.replies[n-1], nil
	}
	return "analysis " + f.name, nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeClient) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1].Prompt
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time {
	now := c.t
	c.t = c.t.Add(time.Minute)
	return now
}

type memoryRecorder struct {
	mu    sync.Mutex
	calls []model.GenerationCall
	err   error
}

func (r *memoryRecorder) Create(_ context.Context, call *model.GenerationCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, *call)
	return nil
}

var testChart = &llm.Image{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png"}

const equityTemplate = "Equity={equity}, prior={last_analisa}"

type fixture struct {
	dispatcher *Dispatcher
	journal    *journal.Journal
	gemini     *fakeClient
	openai     *fakeClient
	recorder   *memoryRecorder
}

func newFixture(t *testing.T, creds map[string]string) *fixture {
	t.Helper()
	gemini := &fakeClient{name: model.ProviderGemini}
	openai := &fakeClient{name: model.ProviderOpenAI}
	j := journal.New()
	rec := &memoryRecorder{}

	prompts := catalog.DefaultPrompts()
	prompts["equity"] = equityTemplate
	prompts["breakout"] = "Breakout plan for {equity} after: {last_analysis}"
	prompts["broken"] = "Hello {nama}"

	d := NewDispatcher(
		provider.NewRegistryFromClients(gemini, openai),
		prompts,
		j,
		creds,
		zap.NewNop(),
		WithRecorder(rec),
		WithClock(&fixedClock{t: time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)}),
	)
	return &fixture{dispatcher: d, journal: j, gemini: gemini, openai: openai, recorder: rec}
}

func input(providerName, strategy string) GenerateInput {
	return GenerateInput{
		Provider: providerName,
		Model:    "test-model",
		Strategy: strategy,
		Equity:   9500000,
		Image:    testChart,
	}
}

func TestGenerate_EmptyJournalUsesSentinel(t *testing.T) {
	f := newFixture(t, map[string]string{"gemini": "g-key"})

	rec, err := f.dispatcher.Generate(context.Background(), input("gemini", "equity"))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	want := "Equity=9500000, prior=Tidak ada data sebelumnya."
	if got := f.gemini.lastPrompt(); got != want {
		t.Errorf("expected prompt %q, got %q", want, got)
	}
	if rec.Provider != "gemini" || rec.Model != "test-model" || rec.Strategy != "equity" {
		t.Errorf("unexpected record %+v", rec)
	}
	if f.journal.Len() != 1 {
		t.Errorf("expected 1 record, got %d", f.journal.Len())
	}
	if f.dispatcher.State() != StateAwaitingInput {
		t.Errorf("expected to return to awaiting_input, got %s", f.dispatcher.State())
	}
}

func TestGenerate_UsesLastAnalysisAcrossProviders(t *testing.T) {
	f := newFixture(t, map[string]string{"gemini": "g-key", "openai": "o-key"})
	f.gemini.replies = []string{"Fase B akumulasi, support 1200"}

	if _, err := f.dispatcher.Generate(context.Background(), input("gemini", "equity")); err != nil {
		t.Fatalf("first Generate failed: %v", err)
	}
	if _, err := f.dispatcher.Generate(context.Background(), input("OpenAI", "equity")); err != nil {
		t.Fatalf("second Generate failed: %v", err)
	}

	want := "Equity=9500000, prior=Fase B akumulasi, support 1200"
	if got := f.openai.lastPrompt(); got != want {
		t.Errorf("expected the gemini analysis as context, got %q", got)
	}
	if f.dispatcher.LastContext() != "analysis openai" {
		t.Errorf("unexpected LastContext %q", f.dispatcher.LastContext())
	}
}

func TestGenerate_CredentialResolution(t *testing.T) {
	tests := []struct {
		name      string
		creds     map[string]string
		adHoc     string
		wantErr   error
		wantCalls int
		wantKey   string
	}{
		{"none configured", nil, "", ErrCredentialMissing, 0, ""},
		{"blank ad hoc", nil, "   ", ErrCredentialMissing, 0, ""},
		{"preconfigured", map[string]string{"gemini": "stored"}, "", nil, 1, "stored"},
		{"ad hoc wins", map[string]string{"gemini": "stored"}, "typed", nil, 1, "typed"},
		{"ad hoc only", nil, "typed", nil, 1, "typed"},
		{"other provider only", map[string]string{"openai": "o"}, "", ErrCredentialMissing, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.creds)
			in := input("gemini", "equity")
			in.Credential = tt.adHoc

			_, err := f.dispatcher.Generate(context.Background(), in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}

			if f.gemini.callCount() != tt.wantCalls {
				t.Errorf("expected %d provider calls, got %d", tt.wantCalls, f.gemini.callCount())
			}
			if tt.wantKey != "" && f.gemini.requests[0].Credential != tt.wantKey {
				t.Errorf("expected credential %q, got %q", tt.wantKey, f.gemini.requests[0].Credential)
			}
			if tt.wantErr != nil && f.journal.Len() != 0 {
				t.Error("expected journal to stay empty")
			}
		})
	}
}

func TestGenerate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GenerateInput)
		wantErr error
	}{
		{"no image", func(in *GenerateInput) { in.Image = nil }, ErrImageRequired},
		{"empty image", func(in *GenerateInput) { in.Image = &llm.Image{MIMEType: "image/png"} }, ErrImageRequired},
		{"unknown provider", func(in *GenerateInput) { in.Provider = "mistral" }, ErrUnknownProvider},
		{"no model", func(in *GenerateInput) { in.Model = " " }, ErrModelRequired},
		{"unknown strategy", func(in *GenerateInput) { in.Strategy = "scalping" }, ErrUnknownStrategy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, map[string]string{"gemini": "k"})
			in := input("gemini", "equity")
			tt.mutate(&in)

			_, err := f.dispatcher.Generate(context.Background(), in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if f.gemini.callCount() != 0 {
				t.Error("expected no provider call")
			}
			if len(f.recorder.calls) != 0 {
				t.Error("expected nothing recorded")
			}
		})
	}
}

func TestGenerate_TemplateError(t *testing.T) {
	f := newFixture(t, map[string]string{"gemini": "k"})

	_, err := f.dispatcher.Generate(context.Background(), input("gemini", "broken"))
	var tmplErr *prompt.TemplateError
	if !errors.As(err, &tmplErr) {
		t.Fatalf("expected *prompt.TemplateError, got %T: %v", err, err)
	}
	if tmplErr.Placeholder != "nama" {
		t.Errorf("expected placeholder nama, got %q", tmplErr.Placeholder)
	}
	if f.gemini.callCount() != 0 {
		t.Error("expected no provider call")
	}

	// The session stays usable.
	if _, err := f.dispatcher.Generate(context.Background(), input("gemini", "equity")); err != nil {
		t.Errorf("expected next generation to succeed, got %v", err)
	}
}

func TestGenerate_ProviderFailureLeavesJournal(t *testing.T) {
	f := newFixture(t, map[string]string{"gemini": "k", "openai": "k"})
	if _, err := f.dispatcher.Generate(context.Background(), input("gemini", "equity")); err != nil {
		t.Fatalf("seed Generate failed: %v", err)
	}

	providerErr := &llm.ProviderError{Provider: "openai", Kind: llm.KindTransport, StatusCode: 500, Detail: "server error"}
	f.openai.err = providerErr

	_, err := f.dispatcher.Generate(context.Background(), input("openai", "equity"))
	if !errors.Is(err, llm.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !strings.Contains(err.Error(), "openai") || !strings.Contains(err.Error(), "server error") {
		t.Errorf("expected provider and body in error, got %q", err.Error())
	}
	if f.journal.Len() != 1 {
		t.Errorf("expected journal length 1, got %d", f.journal.Len())
	}
	if f.dispatcher.State() != StateAwaitingInput {
		t.Errorf("expected awaiting_input after failure, got %s", f.dispatcher.State())
	}

	if len(f.recorder.calls) != 2 {
		t.Fatalf("expected 2 recorded calls, got %d", len(f.recorder.calls))
	}
	failed := f.recorder.calls[1]
	if failed.Success || failed.ErrorMessage == nil || !strings.Contains(*failed.ErrorMessage, "server error") {
		t.Errorf("unexpected failed call row %+v", failed)
	}
	if failed.RequestID == "" || failed.RequestID == f.recorder.calls[0].RequestID {
		t.Errorf("expected distinct request ids, got %q and %q", f.recorder.calls[0].RequestID, failed.RequestID)
	}
}

func TestGenerate_StrategiesKeepInvocationOrder(t *testing.T) {
	f := newFixture(t, map[string]string{"gemini": "k"})

	for _, strategy := range []string{"equity", "breakout"} {
		if _, err := f.dispatcher.Generate(context.Background(), input("gemini", strategy)); err != nil {
			t.Fatalf("Generate(%s) failed: %v", strategy, err)
		}
	}

	records := f.journal.Records()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Strategy != "equity" || records[1].Strategy != "breakout" {
		t.Errorf("unexpected order %s, %s", records[0].Strategy, records[1].Strategy)
	}
	if !records[0].Timestamp.Before(records[1].Timestamp) {
		t.Error("expected increasing timestamps")
	}
}

func TestGenerate_ManyRecordsNonDecreasing(t *testing.T) {
	f := newFixture(t, map[string]string{"gemini": "k"})
	const n = 5
	for i := 0; i < n; i++ {
		if _, err := f.dispatcher.Generate(context.Background(), input("gemini", catalog.DefaultStrategy)); err != nil {
			t.Fatalf("Generate %d failed: %v", i, err)
		}
	}

	records := f.journal.Records()
	if len(records) != n {
		t.Fatalf("expected %d records, got %d", n, len(records))
	}
	for i := 1; i < n; i++ {
		if records[i].Timestamp.Before(records[i-1].Timestamp) {
			t.Errorf("record %d is older than record %d", i, i-1)
		}
	}
}

func TestGenerate_RejectsConcurrentRun(t *testing.T) {
	f := newFixture(t, map[string]string{"gemini": "k"})
	f.gemini.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.dispatcher.Generate(context.Background(), input("gemini", "equity"))
		done <- err
	}()

	// Wait until the first call reaches the provider.
	deadline := time.Now().Add(2 * time.Second)
	for f.gemini.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first generation never reached the provider")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if f.dispatcher.State() != StateGenerating {
		t.Errorf("expected generating, got %s", f.dispatcher.State())
	}

	_, err := f.dispatcher.Generate(context.Background(), input("gemini", "equity"))
	if !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	close(f.gemini.block)
	if err := <-done; err != nil {
		t.Fatalf("first generation failed: %v", err)
	}
	if f.journal.Len() != 1 {
		t.Errorf("expected 1 record, got %d", f.journal.Len())
	}
}

func TestGenerate_RecorderFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, map[string]string{"gemini": "k"})
	f.recorder.err = errors.New("disk full")

	if _, err := f.dispatcher.Generate(context.Background(), input("gemini", "equity")); err != nil {
		t.Fatalf("expected success despite recorder failure, got %v", err)
	}
	if f.journal.Len() != 1 {
		t.Error("expected the record to be appended")
	}
}

func TestDispatcher_BeginAndSentinel(t *testing.T) {
	d := NewDispatcher(provider.NewRegistryFromClients(), catalog.PromptCatalog{}, journal.New(), nil,
		zap.NewNop(), WithSentinel("No prior analysis."))

	if d.State() != StateIdle {
		t.Errorf("expected idle, got %s", d.State())
	}
	d.Begin()
	d.Begin()
	if d.State() != StateAwaitingInput {
		t.Errorf("expected awaiting_input, got %s", d.State())
	}
	if d.LastContext() != "No prior analysis." {
		t.Errorf("unexpected sentinel %q", d.LastContext())
	}
	if d.HasCredential("gemini") {
		t.Error("expected no credential")
	}
}
