package provider

import (
	"context"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const togetherEndpoint = "https://api.together.xyz/v1/chat/completions"

// togetherInvoker calls Together AI's OpenAI-compatible chat API.
type togetherInvoker struct {
	httpInvoker
}

func newTogetherInvoker(apiKey, model string, timeout time.Duration) *togetherInvoker {
	return &togetherInvoker{newHTTPInvoker("together", apiKey, model, timeout)}
}

func (t *togetherInvoker) Name() string { return t.name }

func (t *togetherInvoker) Invoke(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	body, _ := sjson.SetBytes(nil, "model", t.model)
	body, _ = sjson.SetBytes(body, "messages.0.role", "user")
	body, _ = sjson.SetBytes(body, "messages.0.content", prompt)
	body, _ = sjson.SetBytes(body, "temperature", params.Temperature)
	body, _ = sjson.SetBytes(body, "max_tokens", params.MaxTokens)

	status, data, err := t.post(ctx, togetherEndpoint, nil, body)
	if err != nil {
		return "", err
	}
	if status != 200 {
		return "", t.statusError(status, data)
	}

	text := gjson.GetBytes(data, "choices.0.message.content").String()
	if strings.TrimSpace(text) == "" {
		return "", t.malformed()
	}
	return text, nil
}
