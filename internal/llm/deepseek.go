package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fleveque/wyckoff-journal/internal/model"
)

// DefaultDeepseekBaseURL is the public Deepseek API.
const DefaultDeepseekBaseURL = "https://api.deepseek.com"

// DeepseekClient implements the Client interface against Deepseek's
// chat-completions endpoint with a hand-built request body, since it takes
// flags ("thinking") the OpenAI request struct has no field for.
type DeepseekClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDeepseekClient creates a Deepseek adapter.
func NewDeepseekClient(baseURL string, timeout time.Duration) *DeepseekClient {
	if baseURL == "" {
		baseURL = DefaultDeepseekBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &DeepseekClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (d *DeepseekClient) ProviderName() string { return model.ProviderDeepseek }

type deepseekRequest struct {
	Model    string            `json:"model"`
	Messages []deepseekMessage `json:"messages"`
	Stream   bool              `json:"stream"`
	Thinking *deepseekThinking `json:"thinking,omitempty"`
}

type deepseekMessage struct {
	Role    string                `json:"role"`
	Content []deepseekContentPart `json:"content"`
}

type deepseekContentPart struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	ImageURL *deepseekImageURL `json:"image_url,omitempty"`
}

type deepseekImageURL struct {
	URL string `json:"url"`
}

type deepseekThinking struct {
	Type string `json:"type"`
}

type deepseekResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (d *DeepseekClient) Generate(ctx context.Context, req Request) (string, error) {
	content := []deepseekContentPart{{Type: "text", Text: req.Prompt}}
	if req.Image != nil {
		content = append(content, deepseekContentPart{
			Type:     "image_url",
			ImageURL: &deepseekImageURL{URL: req.Image.DataURI()},
		})
	}

	body, err := json.Marshal(deepseekRequest{
		Model:    req.Model,
		Messages: []deepseekMessage{{Role: "user", Content: content}},
		Stream:   false,
		Thinking: &deepseekThinking{Type: "disabled"},
	})
	if err != nil {
		return "", fmt.Errorf("encoding deepseek request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.Credential)

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return "", transportError(d.ProviderName(), err)
	}
	defer resp.Body.Close()

	// Limit read to 10MB; completions are text and never come close.
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", transportError(d.ProviderName(), fmt.Errorf("reading body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(d.ProviderName(), resp.StatusCode, string(respBody))
	}

	var parsed deepseekResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", noTextError(d.ProviderName(), fmt.Sprintf("decoding response: %v", err))
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == nil || *parsed.Choices[0].Message.Content == "" {
		return "", noTextError(d.ProviderName(), string(respBody))
	}

	return *parsed.Choices[0].Message.Content, nil
}
