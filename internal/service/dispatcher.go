package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleveque/wyckoff-journal/internal/catalog"
	"github.com/fleveque/wyckoff-journal/internal/config"
	"github.com/fleveque/wyckoff-journal/internal/journal"
	"github.com/fleveque/wyckoff-journal/internal/llm"
	"github.com/fleveque/wyckoff-journal/internal/model"
	"github.com/fleveque/wyckoff-journal/internal/prompt"
	"github.com/fleveque/wyckoff-journal/internal/provider"
)

// Input validation errors. Each is returned before any provider is called.
var (
	ErrBusy              = errors.New("a generation is already in progress")
	ErrImageRequired     = errors.New("a chart image is required")
	ErrUnknownProvider   = errors.New("unknown provider")
	ErrModelRequired     = errors.New("a model name is required")
	ErrCredentialMissing = errors.New("no API key available for provider")
	ErrUnknownStrategy   = errors.New("unknown strategy")
	ErrInvalidEquity     = errors.New("equity must be a finite number")
)

// State is the dispatcher's position in the generation cycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingInput
	StateGenerating
	StateRecorded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingInput:
		return "awaiting_input"
	case StateGenerating:
		return "generating"
	case StateRecorded:
		return "recorded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// GenerateInput is everything the user picks for one analysis.
type GenerateInput struct {
	Provider string
	Model    string
	Strategy string
	Equity   float64
	Image    *llm.Image
	// Credential overrides the preconfigured key when non-empty.
	Credential string
	// RequestID correlates the call log row with request logs; generated
	// when empty.
	RequestID string
}

// CallRecorder persists one row per provider invocation.
// storage.GenerationCallRepository satisfies it.
type CallRecorder interface {
	Create(ctx context.Context, call *model.GenerationCall) error
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithRecorder logs every provider call through r.
func WithRecorder(r CallRecorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithClock replaces the wall clock used for record timestamps.
func WithClock(c Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// WithSentinel sets the context used while the journal is empty.
func WithSentinel(s string) Option {
	return func(d *Dispatcher) {
		if s != "" {
			d.sentinel = s
		}
	}
}

// Dispatcher runs one generation at a time: it resolves the adapter and
// credential, builds the prompt against the latest journal entry, calls the
// provider, and appends the result to the journal on success only.
type Dispatcher struct {
	registry    *provider.Registry
	prompts     catalog.PromptCatalog
	journal     *journal.Journal
	credentials map[string]string
	sentinel    string
	recorder    CallRecorder
	clock       Clock
	logger      *zap.Logger

	mu       sync.Mutex
	state    State
	inFlight bool
}

// NewDispatcher wires a dispatcher. credentials maps lowercase provider
// names to preconfigured keys and may be nil.
func NewDispatcher(
	registry *provider.Registry,
	prompts catalog.PromptCatalog,
	j *journal.Journal,
	credentials map[string]string,
	logger *zap.Logger,
	opts ...Option,
) *Dispatcher {
	creds := make(map[string]string, len(credentials))
	for name, key := range credentials {
		creds[strings.ToLower(name)] = key
	}

	d := &Dispatcher{
		registry:    registry,
		prompts:     prompts,
		journal:     j,
		credentials: creds,
		sentinel:    config.DefaultSentinel,
		clock:       SystemClock{},
		logger:      logger,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Begin opens the session: Idle → AwaitingInput. Calling it again is a no-op.
func (d *Dispatcher) Begin() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateIdle {
		d.transition(StateAwaitingInput)
	}
}

// State returns the current state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Journal returns the journal this dispatcher appends to.
func (d *Dispatcher) Journal() *journal.Journal { return d.journal }

// HasCredential reports whether a key is preconfigured for provider.
func (d *Dispatcher) HasCredential(providerName string) bool {
	return d.credentials[strings.ToLower(providerName)] != ""
}

// LastContext is the text substituted for the previous analysis: the most
// recent record's analysis, or the sentinel while the journal is empty. The
// record's provider does not matter.
func (d *Dispatcher) LastContext() string {
	if rec, ok := d.journal.Last(); ok {
		return rec.Analysis
	}
	return d.sentinel
}

// Generate runs one analysis. On success the stored record is returned; on
// failure the journal is untouched and the error is returned as-is.
func (d *Dispatcher) Generate(ctx context.Context, in GenerateInput) (model.AnalysisRecord, error) {
	if err := d.acquire(); err != nil {
		return model.AnalysisRecord{}, err
	}
	defer d.release()

	client, credential, template, err := d.resolve(in)
	if err != nil {
		return model.AnalysisRecord{}, err
	}

	text, err := prompt.Build(template, d.LastContext(), in.Equity)
	if err != nil {
		return model.AnalysisRecord{}, fmt.Errorf("building prompt for %s: %w", in.Strategy, err)
	}

	requestID := in.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	providerName := client.ProviderName()

	d.setState(StateGenerating)
	start := time.Now()
	analysis, genErr := client.Generate(ctx, llm.Request{
		Model:      in.Model,
		Prompt:     text,
		Image:      in.Image,
		Credential: credential,
	})
	duration := time.Since(start).Milliseconds()

	d.recordCall(ctx, requestID, providerName, in, genErr, duration)

	if genErr != nil {
		d.setState(StateFailed)
		d.logger.Warn("generation failed",
			zap.String("request_id", requestID),
			zap.String("provider", providerName),
			zap.String("model", in.Model),
			zap.Int64("duration_ms", duration),
			zap.Error(genErr),
		)
		return model.AnalysisRecord{}, genErr
	}

	rec := d.journal.Append(model.AnalysisRecord{
		Timestamp: d.clock.Now().Round(0),
		Provider:  providerName,
		Model:     in.Model,
		Strategy:  in.Strategy,
		Analysis:  analysis,
	})
	d.setState(StateRecorded)
	d.logger.Info("generation recorded",
		zap.String("request_id", requestID),
		zap.String("provider", providerName),
		zap.String("model", in.Model),
		zap.String("strategy", in.Strategy),
		zap.Int64("duration_ms", duration),
		zap.Int("journal_len", d.journal.Len()),
	)
	return rec, nil
}

// resolve validates the input in a fixed order: image, provider, model,
// credential, strategy, equity.
func (d *Dispatcher) resolve(in GenerateInput) (llm.Client, string, string, error) {
	if in.Image == nil || len(in.Image.Data) == 0 {
		return nil, "", "", ErrImageRequired
	}

	client, ok := d.registry.Get(in.Provider)
	if !ok {
		return nil, "", "", fmt.Errorf("%w: %q", ErrUnknownProvider, in.Provider)
	}

	if strings.TrimSpace(in.Model) == "" {
		return nil, "", "", ErrModelRequired
	}

	credential := strings.TrimSpace(in.Credential)
	if credential == "" {
		credential = d.credentials[strings.ToLower(client.ProviderName())]
	}
	if credential == "" {
		return nil, "", "", fmt.Errorf("%w %s", ErrCredentialMissing, client.ProviderName())
	}

	template, ok := d.prompts.Template(in.Strategy)
	if !ok {
		return nil, "", "", fmt.Errorf("%w: %q", ErrUnknownStrategy, in.Strategy)
	}

	if math.IsNaN(in.Equity) || math.IsInf(in.Equity, 0) {
		return nil, "", "", ErrInvalidEquity
	}

	return client, credential, template, nil
}

func (d *Dispatcher) acquire() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight {
		return ErrBusy
	}
	d.inFlight = true
	if d.state == StateIdle {
		d.transition(StateAwaitingInput)
	}
	return nil
}

// release ends the cycle; Recorded and Failed fall back to AwaitingInput.
func (d *Dispatcher) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight = false
	if d.state != StateAwaitingInput {
		d.transition(StateAwaitingInput)
	}
}

func (d *Dispatcher) setState(s State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transition(s)
}

// transition must be called with mu held.
func (d *Dispatcher) transition(to State) {
	d.logger.Debug("dispatcher state",
		zap.Stringer("from", d.state),
		zap.Stringer("to", to),
	)
	d.state = to
}

// recordCall writes the call log row. Failures are logged, never returned.
func (d *Dispatcher) recordCall(ctx context.Context, requestID, providerName string, in GenerateInput, genErr error, durationMs int64) {
	if d.recorder == nil {
		return
	}

	call := &model.GenerationCall{
		RequestID:  requestID,
		Provider:   providerName,
		Model:      in.Model,
		Strategy:   in.Strategy,
		Success:    genErr == nil,
		DurationMs: durationMs,
	}
	if genErr != nil {
		msg := genErr.Error()
		call.ErrorMessage = &msg
	}

	// The row is written even if the caller has gone away.
	if err := d.recorder.Create(context.WithoutCancel(ctx), call); err != nil {
		d.logger.Error("failed to record generation call",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
}
