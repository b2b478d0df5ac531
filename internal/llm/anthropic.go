package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fleveque/wyckoff-journal/internal/model"
)

// DefaultAnthropicMaxTokens is used when no max_tokens is configured.
// A full vertical trading-plan table fits comfortably.
const DefaultAnthropicMaxTokens = 4096

// AnthropicClient implements the Client interface using Claude's Messages API.
// The chart is sent as a base64 image block after the text block.
type AnthropicClient struct {
	baseURL   string
	timeout   time.Duration
	maxTokens int64
}

// NewAnthropicClient creates a Claude adapter.
func NewAnthropicClient(baseURL string, timeout time.Duration, maxTokens int64) *AnthropicClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxTokens <= 0 {
		maxTokens = DefaultAnthropicMaxTokens
	}
	return &AnthropicClient{baseURL: baseURL, timeout: timeout, maxTokens: maxTokens}
}

func (a *AnthropicClient) ProviderName() string { return model.ProviderAnthropic }

func (a *AnthropicClient) Generate(ctx context.Context, req Request) (string, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(req.Credential),
		option.WithRequestTimeout(a.timeout),
		// The SDK retries 429/5xx twice by default; one call per generation.
		option.WithMaxRetries(0),
	}
	if a.baseURL != "" {
		opts = append(opts, option.WithBaseURL(a.baseURL))
	}
	client := anthropic.NewClient(opts...)

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropicBlocks(req)...),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			detail := apiErr.RawJSON()
			if detail == "" {
				detail = err.Error()
			}
			pe := statusError(a.ProviderName(), apiErr.StatusCode, detail)
			pe.Err = err
			return "", pe
		}
		return "", transportError(a.ProviderName(), err)
	}

	// Claude can split its answer across several text blocks.
	var sb strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	if sb.Len() == 0 {
		return "", noTextError(a.ProviderName(), "stop reason "+string(message.StopReason))
	}
	return sb.String(), nil
}

func anthropicBlocks(req Request) []anthropic.ContentBlockParamUnion {
	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(req.Prompt)}
	if req.Image != nil {
		blocks = append(blocks, anthropic.NewImageBlockBase64(
			req.Image.MIMEType,
			base64.StdEncoding.EncodeToString(req.Image.Data),
		))
	}
	return blocks
}
