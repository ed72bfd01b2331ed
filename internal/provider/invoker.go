package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/costargen/costargen/internal/transport"
)

// httpInvoker carries the pieces shared by the REST-based vendors.
// The per-call timeout is enforced here so no vendor call can outlive
// its bound regardless of how the vendor client behaves.
type httpInvoker struct {
	name    string
	apiKey  string
	model   string
	timeout time.Duration
	client  *http.Client
}

func newHTTPInvoker(name, apiKey, model string, timeout time.Duration) httpInvoker {
	return httpInvoker{
		name:    name,
		apiKey:  apiKey,
		model:   model,
		timeout: timeout,
		client:  transport.NewClient(timeout),
	}
}

// post sends a JSON body and returns the response status and bytes.
// Transport failures come back as classified *InvocationError; non-2xx
// statuses are returned to the caller for vendor-specific handling.
func (h *httpInvoker) post(ctx context.Context, url string, headers map[string]string, body []byte) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, newInvocationError(h.name, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return 0, nil, &InvocationError{Provider: h.name, Kind: KindTimeout, Err: err}
		}
		return 0, nil, newInvocationError(h.name, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, newInvocationError(h.name, resp.StatusCode, err)
	}
	return resp.StatusCode, data, nil
}

// statusError converts a non-2xx vendor response into an InvocationError.
func (h *httpInvoker) statusError(status int, body []byte) *InvocationError {
	msg := string(body)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return &InvocationError{
		Provider: h.name,
		Kind:     classify(status, nil),
		Status:   status,
		Err:      &vendorError{status: status, body: msg},
	}
}

// malformed flags a 2xx response whose body did not contain usable text.
func (h *httpInvoker) malformed() *InvocationError {
	return &InvocationError{Provider: h.name, Kind: KindMalformedResponse, Status: http.StatusOK}
}

type vendorError struct {
	status int
	body   string
}

func (e *vendorError) Error() string {
	return fmt.Sprintf("vendor returned HTTP %d: %s", e.status, e.body)
}
