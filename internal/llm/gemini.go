package llm

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/fleveque/wyckoff-journal/internal/model"
)

// GeminiClient implements the Client interface with Google's GenAI SDK.
// The image is handed to the SDK as an inline-bytes part; timeouts are the
// SDK's own plus whatever deadline the caller's context carries.
type GeminiClient struct {
	baseURL string // empty means the SDK default
}

// NewGeminiClient creates a Gemini adapter.
func NewGeminiClient(baseURL string) *GeminiClient {
	return &GeminiClient{baseURL: baseURL}
}

func (g *GeminiClient) ProviderName() string { return model.ProviderGemini }

func (g *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	cfg := &genai.ClientConfig{
		APIKey:  req.Credential,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", transportError(g.ProviderName(), err)
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, geminiContents(req), nil)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			pe := statusError(g.ProviderName(), apiErr.Code, apiErr.Message)
			pe.Err = err
			return "", pe
		}
		return "", transportError(g.ProviderName(), err)
	}

	text := resp.Text()
	if text == "" {
		detail := "response has no candidates"
		if len(resp.Candidates) > 0 {
			detail = "finish reason " + string(resp.Candidates[0].FinishReason)
		}
		return "", noTextError(g.ProviderName(), detail)
	}
	return text, nil
}

// geminiContents puts the prompt and the image into a single user turn.
func geminiContents(req Request) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if req.Image != nil {
		parts = append(parts, genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}
