package provider

import (
	"context"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const cohereEndpoint = "https://api.cohere.com/v1/chat"

// cohereInvoker calls Cohere's chat API, which takes a single message
// string rather than a message array.
type cohereInvoker struct {
	httpInvoker
}

func newCohereInvoker(apiKey, model string, timeout time.Duration) *cohereInvoker {
	return &cohereInvoker{newHTTPInvoker("cohere", apiKey, model, timeout)}
}

func (c *cohereInvoker) Name() string { return c.name }

func (c *cohereInvoker) Invoke(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	body, _ := sjson.SetBytes(nil, "model", c.model)
	body, _ = sjson.SetBytes(body, "message", prompt)
	body, _ = sjson.SetBytes(body, "temperature", params.Temperature)
	body, _ = sjson.SetBytes(body, "max_tokens", params.MaxTokens)

	status, data, err := c.post(ctx, cohereEndpoint, nil, body)
	if err != nil {
		return "", err
	}
	if status != 200 {
		return "", c.statusError(status, data)
	}

	text := gjson.GetBytes(data, "text").String()
	if strings.TrimSpace(text) == "" {
		return "", c.malformed()
	}
	return text, nil
}
