// Package generate orchestrates one COSTAR generation request end to end:
// quota admission, the priority scan over live providers, and the static
// fallback that guarantees a usable result when every provider fails.
package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/costargen/costargen/internal/config"
	"github.com/costargen/costargen/internal/costar"
	log "github.com/costargen/costargen/internal/logging"
	"github.com/costargen/costargen/internal/provider"
	"github.com/costargen/costargen/internal/quota"
	"github.com/costargen/costargen/internal/usage"
)

// FallbackProvider is the provider name reported when the static
// rendering served the request.
const FallbackProvider = "fallback"

// Subject identifies the caller for quota purposes.
type Subject struct {
	// ID is the quota key: the API key's configured subject, or a
	// client fingerprint for anonymous callers.
	ID string

	// Plan decides the monthly limit for authenticated subjects.
	Plan config.Plan

	// Anonymous subjects get a daily allowance instead of a plan.
	Anonymous bool
}

// Result is the outcome of one generation request. Every admitted
// request produces a Result: the fallback path fills it too.
type Result struct {
	RenderedText string
	ProviderUsed string
	Degraded     bool
	Attempts     int
	Quota        quota.Decision
}

// QuotaExceededError is returned when admission refuses the request.
// The decision carries the numbers the caller needs for its 429 body.
type QuotaExceededError struct {
	Decision quota.Decision
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: used %d of %d, resets %s",
		e.Decision.Used, e.Decision.Limit, e.Decision.ResetTime.Format(time.RFC3339))
}

// Service wires the ledger, the provider registry, and the usage recorder
// into the generation workflow.
type Service struct {
	registry *provider.Registry
	ledger   *quota.Ledger
	recorder *usage.Recorder

	params         provider.GenerationParams
	invokeTimeout  time.Duration
	maxAttempts    int
	anonDailyLimit int

	nowFn func() time.Time
}

// Options holds the generation tunables taken from configuration.
type Options struct {
	Params         provider.GenerationParams
	InvokeTimeout  time.Duration
	MaxAttempts    int
	AnonDailyLimit int
}

// NewService constructs the orchestrator. Zero option fields fall back
// to conservative defaults.
func NewService(registry *provider.Registry, ledger *quota.Ledger, recorder *usage.Recorder, opts Options) *Service {
	if opts.InvokeTimeout <= 0 {
		opts.InvokeTimeout = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.AnonDailyLimit == 0 {
		opts.AnonDailyLimit = 10
	}
	return &Service{
		registry:       registry,
		ledger:         ledger,
		recorder:       recorder,
		params:         opts.Params,
		invokeTimeout:  opts.InvokeTimeout,
		maxAttempts:    opts.MaxAttempts,
		anonDailyLimit: opts.AnonDailyLimit,
		nowFn:          time.Now,
	}
}

// quotaWindow maps a subject onto its period kind and limit.
func (s *Service) quotaWindow(subject Subject) (quota.PeriodKind, int) {
	if subject.Anonymous {
		return quota.PeriodDaily, s.anonDailyLimit
	}
	return quota.PeriodMonthly, subject.Plan.MonthlyPromptLimit()
}

// Quota reports the subject's current standing without consuming anything.
func (s *Service) Quota(ctx context.Context, subject Subject) (quota.Decision, error) {
	kind, limit := s.quotaWindow(subject)
	return s.ledger.Check(ctx, subject.ID, kind, limit)
}

// Generate runs the full workflow for one request. The error cases are
// invalid sections, a quota refusal (*QuotaExceededError), and quota
// storage being unreachable; once a request is admitted it always
// completes with a Result.
func (s *Service) Generate(ctx context.Context, subject Subject, sections costar.Sections) (*Result, error) {
	sections = sections.Normalize()
	if err := sections.Validate(); err != nil {
		return nil, err
	}

	kind, limit := s.quotaWindow(subject)
	decision, err := s.ledger.Admit(ctx, subject.ID, kind, limit)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &QuotaExceededError{Decision: decision}
	}

	start := s.nowFn()
	prompt := costar.RenderInstruction(sections)
	result, entry := s.runChain(ctx, prompt, sections)

	result.Quota = decision
	entry.SubjectID = subject.ID
	entry.RequestedAt = start.UTC()
	entry.ResponseTimeMS = time.Since(start).Milliseconds()
	s.recorder.Record(entry)

	return result, nil
}

// runChain scans enabled providers in priority order and falls back to
// the static rendering when the chain is exhausted. It returns the result
// plus the usage entry summarizing the whole chain.
func (s *Service) runChain(ctx context.Context, prompt string, sections costar.Sections) (*Result, usage.Entry) {
	attempts := 0
	lastKind := provider.KindUnknown

	for _, inv := range s.registry.Available() {
		if attempts >= s.maxAttempts {
			break
		}
		// Reserve a budget slot atomically; the listing above is only a
		// snapshot and a concurrent request may have taken the last slot.
		if !s.registry.TryAcquire(inv.Name()) {
			continue
		}
		attempts++
		text, err := s.invokeOne(ctx, inv, prompt)
		if err == nil {
			s.registry.RecordCall(inv.Name(), true)
			return &Result{
					RenderedText: text,
					ProviderUsed: inv.Name(),
					Attempts:     attempts,
				}, usage.Entry{
					Provider:       inv.Name(),
					Success:        true,
					Attempts:       attempts,
					TokensEstimate: usage.EstimateTokens(prompt) + usage.EstimateTokens(text),
				}
		}

		s.registry.RecordCall(inv.Name(), false)
		lastKind = provider.KindOf(err)
		log.WithError(err).Warnf("Provider %s failed (%s), trying next", inv.Name(), lastKind)

		var invErr *provider.InvocationError
		if errors.As(err, &invErr) && invErr.ShouldDisable() {
			s.registry.Disable(inv.Name(), string(invErr.Kind))
		}
	}

	// Chain exhausted or no provider configured: the static rendering
	// never fails.
	text := costar.RenderFallback(sections)
	if attempts > 0 {
		log.Warnf("All %d provider attempts failed, serving static fallback", attempts)
	}
	entry := usage.Entry{
		Provider:       FallbackProvider,
		Success:        false,
		Degraded:       true,
		Attempts:       attempts,
		TokensEstimate: usage.EstimateTokens(text),
	}
	if attempts > 0 {
		entry.ErrorKind = string(lastKind)
	}
	return &Result{
		RenderedText: text,
		ProviderUsed: FallbackProvider,
		Degraded:     true,
		Attempts:     attempts,
	}, entry
}

// invokeOne performs a single bounded provider call.
func (s *Service) invokeOne(ctx context.Context, inv provider.Invoker, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.invokeTimeout)
	defer cancel()
	return inv.Invoke(callCtx, prompt, s.params)
}
