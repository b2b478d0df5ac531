package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fleveque/wyckoff-journal/internal/model"
)

// OpenAIClient implements the Client interface using OpenAI chat completions.
// The chart travels in-band as a base64 data URI inside a multi-part message.
type OpenAIClient struct {
	baseURL    string // empty means the SDK default
	httpClient *http.Client
}

// NewOpenAIClient creates an OpenAI adapter. The API key is supplied per
// request, so one adapter serves both configured and ad hoc credentials.
func NewOpenAIClient(baseURL string, timeout time.Duration) *OpenAIClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OpenAIClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (o *OpenAIClient) ProviderName() string { return model.ProviderOpenAI }

func (o *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	cfg := openai.DefaultConfig(req.Credential)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	cfg.HTTPClient = o.httpClient
	client := openai.NewClientWithConfig(cfg)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: openAIParts(req),
			},
		},
	})
	if err != nil {
		return "", o.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return "", noTextError(o.ProviderName(), "response has no choices")
	}
	text := resp.Choices[0].Message.Content
	if text == "" {
		return "", noTextError(o.ProviderName(), "choices[0].message.content is empty")
	}
	return text, nil
}

// openAIParts builds the content array: the text part first, then the image.
func openAIParts(req Request) []openai.ChatMessagePart {
	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
	}
	if req.Image != nil {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: req.Image.DataURI()},
		})
	}
	return parts
}

// wrapError keeps the status code and raw body the SDK captured.
// go-openai returns *APIError when the body is a JSON error envelope and
// *RequestError when it isn't.
func (o *OpenAIClient) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		pe := statusError(o.ProviderName(), apiErr.HTTPStatusCode, apiErr.Message)
		pe.Err = err
		return pe
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := string(reqErr.Body)
		if detail == "" && reqErr.Err != nil {
			detail = reqErr.Err.Error()
		}
		pe := statusError(o.ProviderName(), reqErr.HTTPStatusCode, detail)
		pe.Err = err
		return pe
	}

	return transportError(o.ProviderName(), err)
}
