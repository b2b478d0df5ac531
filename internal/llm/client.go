// Package llm provides a provider-agnostic interface for sending a prompt and
// an optional chart image to a hosted multimodal model and getting text back.
//
// Every adapter makes exactly one outbound call per Generate and never
// retries. Failures come back as *ProviderError so callers can show the
// provider name and the raw detail without knowing which SDK produced it.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds HTTP-based adapters.
const DefaultTimeout = 60 * time.Second

var (
	// ErrTransport matches every *ProviderError: network failures, timeouts,
	// non-2xx responses and responses without text.
	ErrTransport = errors.New("provider transport error")
	// ErrNoText matches a *ProviderError whose response had no text in it.
	ErrNoText = errors.New("no text returned")
)

// Image is a chart screenshot to send alongside the prompt.
type Image struct {
	Data     []byte
	MIMEType string // e.g. "image/png"
}

// DataURI encodes the image as a base64 data URI for chat-completion APIs.
func (i *Image) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIMEType, base64.StdEncoding.EncodeToString(i.Data))
}

// Request is the normalized input every adapter accepts.
type Request struct {
	Model      string
	Prompt     string
	Image      *Image // nil when no image is attached
	Credential string
}

// Client is the interface for LLM providers. Gemini, OpenAI, Deepseek and
// Anthropic all implement it, so the dispatcher doesn't care which one it got.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	ProviderName() string
}

// ErrorKind separates transport failures from responses that arrived but had
// no text in them.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindNoText
)

// ProviderError is the normalized failure returned by every adapter.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int    // 0 when no HTTP response was received
	Detail     string // response body or underlying error text
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Kind == KindNoText:
		return fmt.Sprintf("%s: no text returned: %s", e.Provider, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Detail)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Detail)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) and errors.Is(err, ErrNoText) work
// without callers type-asserting.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return true
	case ErrNoText:
		return e.Kind == KindNoText
	}
	return false
}

// transportError wraps an error raised while talking to a provider.
func transportError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindTransport, Detail: err.Error(), Err: err}
}

// statusError reports a non-2xx HTTP response.
func statusError(provider string, status int, body string) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindTransport, StatusCode: status, Detail: body}
}

// noTextError reports a successful response without the expected text.
func noTextError(provider string, detail string) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindNoText, Detail: detail}
}
