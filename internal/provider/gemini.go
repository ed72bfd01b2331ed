package provider

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

// geminiInvoker calls the Gemini API through the official SDK. The client
// is created lazily on first use because construction may touch the
// network for credential validation.
type geminiInvoker struct {
	apiKey  string
	model   string
	timeout time.Duration

	mu     sync.Mutex
	client *genai.Client
}

func newGeminiInvoker(apiKey, model string, timeout time.Duration) *geminiInvoker {
	return &geminiInvoker{apiKey: apiKey, model: model, timeout: timeout}
}

func (g *geminiInvoker) Name() string { return "gemini" }

func (g *geminiInvoker) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	g.client = client
	return client, nil
}

func (g *geminiInvoker) Invoke(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	client, err := g.getClient(ctx)
	if err != nil {
		return "", newInvocationError("gemini", 0, err)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(params.Temperature)),
		MaxOutputTokens: int32(params.MaxTokens),
	}
	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", g.classifySDKError(err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &InvocationError{Provider: "gemini", Kind: KindMalformedResponse}
	}
	return text, nil
}

// classifySDKError maps genai SDK errors onto the invocation taxonomy.
// The SDK wraps HTTP failures in *genai.APIError carrying the status code.
func (g *geminiInvoker) classifySDKError(err error) *InvocationError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return newInvocationError("gemini", apiErr.Code, err)
	}
	return newInvocationError("gemini", 0, err)
}
