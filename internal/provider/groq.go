package provider

import (
	"context"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const groqEndpoint = "https://api.groq.com/openai/v1/chat/completions"

// groqInvoker calls Groq's OpenAI-compatible chat completions API.
type groqInvoker struct {
	httpInvoker
}

func newGroqInvoker(apiKey, model string, timeout time.Duration) *groqInvoker {
	return &groqInvoker{newHTTPInvoker("groq", apiKey, model, timeout)}
}

func (g *groqInvoker) Name() string { return g.name }

func (g *groqInvoker) Invoke(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	body, _ := sjson.SetBytes(nil, "model", g.model)
	body, _ = sjson.SetBytes(body, "messages.0.role", "user")
	body, _ = sjson.SetBytes(body, "messages.0.content", prompt)
	body, _ = sjson.SetBytes(body, "temperature", params.Temperature)
	body, _ = sjson.SetBytes(body, "max_tokens", params.MaxTokens)

	status, data, err := g.post(ctx, groqEndpoint, nil, body)
	if err != nil {
		return "", err
	}
	if status != 200 {
		return "", g.statusError(status, data)
	}

	text := gjson.GetBytes(data, "choices.0.message.content").String()
	if strings.TrimSpace(text) == "" {
		return "", g.malformed()
	}
	return text, nil
}
