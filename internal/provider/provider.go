// Package provider holds the registry of configured AI backends and the
// invokers that translate one rendered prompt into one bounded vendor call.
// Vendor request/response shapes stop at this package; callers see a single
// Invoke contract and a tagged InvocationError taxonomy.
package provider

import (
	"context"
	"time"
)

// GenerationParams carries the tunables forwarded to every vendor.
type GenerationParams struct {
	Temperature float64
	MaxTokens   int
}

// Invoker performs exactly one bounded call to one vendor API.
// Implementations must respect ctx cancellation and return either the
// generated text or an *InvocationError; no other error type crosses
// this boundary.
type Invoker interface {
	Name() string
	Invoke(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Config describes one configured backend. One Config is built per vendor
// whose credential is present at process start; configs are never removed,
// only disabled until the next daily rollover.
type Config struct {
	// Name is the unique provider identifier ("groq", "gemini", ...).
	Name string

	// Priority orders the fallback scan; lower is tried first.
	Priority int

	// DailyCallBudget caps attempts per UTC day. UnlimitedBudget disables
	// the cap.
	DailyCallBudget int

	// Model is the vendor model identifier used in requests.
	Model string
}

// UnlimitedBudget is the sentinel for providers without a daily cap.
const UnlimitedBudget = -1

// Status is a point-in-time view of one registry entry, exposed on the
// providers endpoint and the status CLI command.
type Status struct {
	Name           string    `json:"name"`
	Priority       int       `json:"priority"`
	Enabled        bool      `json:"enabled"`
	CallsToday     int64     `json:"calls_today"`
	DailyBudget    int       `json:"daily_budget"`
	SuccessCount   int64     `json:"success_count"`
	ErrorCount     int64     `json:"error_count"`
	LastInvokedAt  time.Time `json:"last_invoked_at,omitempty"`
	DisabledReason string    `json:"disabled_reason,omitempty"`
}
