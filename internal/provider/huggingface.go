package provider

import (
	"context"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const hfEndpointBase = "https://api-inference.huggingface.co/models/"

// hfInvoker calls the HuggingFace Inference API. The response is either a
// top-level array of generations or a single object; both shapes are
// handled here.
type hfInvoker struct {
	httpInvoker
}

func newHuggingFaceInvoker(apiKey, model string, timeout time.Duration) *hfInvoker {
	return &hfInvoker{newHTTPInvoker("huggingface", apiKey, model, timeout)}
}

func (h *hfInvoker) Name() string { return h.name }

func (h *hfInvoker) Invoke(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	maxNew := params.MaxTokens
	if maxNew > 500 {
		maxNew = 500 // inference API rejects large generation windows
	}

	body, _ := sjson.SetBytes(nil, "inputs", prompt)
	body, _ = sjson.SetBytes(body, "parameters.max_new_tokens", maxNew)
	body, _ = sjson.SetBytes(body, "parameters.temperature", params.Temperature)
	body, _ = sjson.SetBytes(body, "parameters.return_full_text", false)
	body, _ = sjson.SetBytes(body, "options.wait_for_model", true)

	status, data, err := h.post(ctx, hfEndpointBase+h.model, nil, body)
	if err != nil {
		return "", err
	}
	if status == 503 {
		// Model cold start; treated as transient so the chain moves on
		// without disabling the provider.
		return "", &InvocationError{Provider: h.name, Kind: KindTransport, Status: status, Err: errModelLoading}
	}
	if status != 200 {
		return "", h.statusError(status, data)
	}

	text := gjson.GetBytes(data, "0.generated_text").String()
	if text == "" {
		text = gjson.GetBytes(data, "generated_text").String()
	}
	if strings.TrimSpace(text) == "" {
		return "", h.malformed()
	}
	return text, nil
}

var errModelLoading = &vendorError{status: 503, body: "model loading"}
