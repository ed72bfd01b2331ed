package provider

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	log "github.com/costargen/costargen/internal/logging"
)

// entry pairs a provider config with its live mutable state. The mutex
// serializes the budget check-and-increment so two concurrent requests
// cannot both take the last slot of a provider's daily budget.
type entry struct {
	cfg     Config
	invoker Invoker

	mu             sync.Mutex
	day            string // UTC day the counters belong to
	callsToday     int64
	enabled        bool
	disabledReason string
	successCount   int64
	errorCount     int64
	lastInvokedAt  time.Time
}

// Registry holds the ordered, live-mutable set of configured backends.
// Order is fixed at construction: ascending priority, registration order
// breaking ties.
type Registry struct {
	entries []*entry
	nowFn   func() time.Time
}

// NewRegistry builds a registry from pre-constructed invokers and configs.
// Pairs must match positionally.
func NewRegistry(configs []Config, invokers []Invoker) *Registry {
	r := &Registry{nowFn: time.Now}
	for i := range configs {
		r.entries = append(r.entries, &entry{
			cfg:     configs[i],
			invoker: invokers[i],
			day:     "",
			enabled: true,
		})
	}
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].cfg.Priority < r.entries[j].cfg.Priority
	})
	return r
}

// credentialEnv maps provider names to their environment credential.
var credentialEnv = map[string]string{
	"groq":        "GROQ_API_KEY",
	"gemini":      "GEMINI_API_KEY",
	"huggingface": "HUGGINGFACE_API_KEY",
	"cohere":      "COHERE_API_KEY",
	"together":    "TOGETHER_API_KEY",
}

// defaultConfigs lists every known backend with its fixed priority,
// daily budget and model. A backend is only instantiated when its
// credential is present and non-placeholder.
var defaultConfigs = []Config{
	{Name: "groq", Priority: 1, DailyCallBudget: 6000, Model: "llama-3.1-8b-instant"},
	{Name: "gemini", Priority: 2, DailyCallBudget: 50, Model: "gemini-1.5-flash"},
	{Name: "huggingface", Priority: 3, DailyCallBudget: 1000, Model: "mistralai/Mistral-7B-Instruct-v0.1"},
	{Name: "cohere", Priority: 4, DailyCallBudget: 1000, Model: "command-r-plus-08-2024"},
	{Name: "together", Priority: 5, DailyCallBudget: 500, Model: "meta-llama/Llama-3.2-3B-Instruct-Turbo"},
}

// LoadFromEnvironment constructs the registry from environment-supplied
// credentials. A missing or placeholder credential means the provider is
// simply not instantiated.
func LoadFromEnvironment(timeout time.Duration) *Registry {
	var configs []Config
	var invokers []Invoker

	for _, cfg := range defaultConfigs {
		key := strings.TrimSpace(os.Getenv(credentialEnv[cfg.Name]))
		if !credentialUsable(key) {
			continue
		}
		inv, err := newInvoker(cfg, key, timeout)
		if err != nil {
			log.WithError(err).Warnf("provider %s skipped", cfg.Name)
			continue
		}
		configs = append(configs, cfg)
		invokers = append(invokers, inv)
	}

	r := NewRegistry(configs, invokers)
	log.Infof("provider registry loaded: %d of %d backends configured", len(configs), len(defaultConfigs))
	return r
}

// credentialUsable rejects empty values and common placeholders left in
// .env templates.
func credentialUsable(key string) bool {
	if key == "" {
		return false
	}
	lower := strings.ToLower(key)
	for _, placeholder := range []string{"your-", "your_", "changeme", "placeholder", "xxx"} {
		if strings.Contains(lower, placeholder) {
			return false
		}
	}
	return true
}

// newInvoker builds the vendor-specific invoker for cfg.
func newInvoker(cfg Config, apiKey string, timeout time.Duration) (Invoker, error) {
	switch cfg.Name {
	case "groq":
		return newGroqInvoker(apiKey, cfg.Model, timeout), nil
	case "gemini":
		return newGeminiInvoker(apiKey, cfg.Model, timeout), nil
	case "huggingface":
		return newHuggingFaceInvoker(apiKey, cfg.Model, timeout), nil
	case "cohere":
		return newCohereInvoker(apiKey, cfg.Model, timeout), nil
	case "together":
		return newTogetherInvoker(apiKey, cfg.Model, timeout), nil
	}
	return nil, &InvocationError{Provider: cfg.Name, Kind: KindUnknown}
}

func utcDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// rolloverLocked resets daily counters and re-enables the entry when the
// UTC day has changed. Caller holds e.mu.
func (e *entry) rolloverLocked(now time.Time) {
	day := utcDay(now)
	if e.day == day {
		return
	}
	e.day = day
	e.callsToday = 0
	e.enabled = true
	e.disabledReason = ""
}

func (r *Registry) find(name string) *entry {
	for _, e := range r.entries {
		if e.cfg.Name == name {
			return e
		}
	}
	return nil
}

// TryAcquire reserves one budget slot on the named provider. The check
// and the increment happen under the entry's mutex, so two concurrent
// requests cannot both take the last slot. Acquired slots are spent
// whether the call later succeeds or not, since the vendor consumed
// quota regardless of outcome.
func (r *Registry) TryAcquire(name string) bool {
	e := r.find(name)
	if e == nil {
		return false
	}
	now := r.nowFn()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rolloverLocked(now)
	if !e.enabled {
		return false
	}
	if e.cfg.DailyCallBudget != UnlimitedBudget && e.callsToday >= int64(e.cfg.DailyCallBudget) {
		return false
	}
	e.callsToday++
	return true
}

// Available returns the invokers whose entries are enabled and under
// budget, in priority order. The rollover check runs lazily on every call.
func (r *Registry) Available() []Invoker {
	now := r.nowFn()
	var out []Invoker
	for _, e := range r.entries {
		e.mu.Lock()
		e.rolloverLocked(now)
		ok := e.enabled && (e.cfg.DailyCallBudget == UnlimitedBudget || e.callsToday < int64(e.cfg.DailyCallBudget))
		e.mu.Unlock()
		if ok {
			out = append(out, e.invoker)
		}
	}
	return out
}

// Disable takes the named provider out of rotation until the next UTC-day
// rollover. Used when an invocation reports an auth or vendor-quota error.
func (r *Registry) Disable(name, reason string) {
	for _, e := range r.entries {
		if e.cfg.Name != name {
			continue
		}
		e.mu.Lock()
		e.enabled = false
		e.disabledReason = reason
		e.mu.Unlock()
		log.Warnf("provider %s disabled until rollover: %s", name, reason)
		return
	}
}

// RecordCall records the outcome of an attempt whose budget slot was
// already reserved by TryAcquire.
func (r *Registry) RecordCall(name string, success bool) {
	e := r.find(name)
	if e == nil {
		return
	}
	now := r.nowFn()
	e.mu.Lock()
	e.rolloverLocked(now)
	e.lastInvokedAt = now
	if success {
		e.successCount++
	} else {
		e.errorCount++
	}
	e.mu.Unlock()
}

// Len returns the number of configured providers.
func (r *Registry) Len() int { return len(r.entries) }

// Names returns provider names in priority order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.cfg.Name)
	}
	return names
}

// Statuses snapshots every entry for the providers endpoint.
func (r *Registry) Statuses() []Status {
	now := r.nowFn()
	out := make([]Status, 0, len(r.entries))
	for _, e := range r.entries {
		e.mu.Lock()
		e.rolloverLocked(now)
		out = append(out, Status{
			Name:           e.cfg.Name,
			Priority:       e.cfg.Priority,
			Enabled:        e.enabled,
			CallsToday:     e.callsToday,
			DailyBudget:    e.cfg.DailyCallBudget,
			SuccessCount:   e.successCount,
			ErrorCount:     e.errorCount,
			LastInvokedAt:  e.lastInvokedAt,
			DisabledReason: e.disabledReason,
		})
		e.mu.Unlock()
	}
	return out
}

// NextAvailable returns the name of the first available provider, or
// "fallback_mode" when the chain would degrade immediately.
func (r *Registry) NextAvailable() string {
	avail := r.Available()
	if len(avail) == 0 {
		return "fallback_mode"
	}
	return avail[0].Name()
}

// ProbeResult reports one provider's connectivity check outcome.
type ProbeResult struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Latency int64  `json:"latency_ms"`
	Error   string `json:"error,omitempty"`
}

// Probe runs a tiny generation against every configured provider
// concurrently. Probe attempts are charged against daily budgets like any
// other call.
func (r *Registry) Probe(ctx context.Context) []ProbeResult {
	results := make([]ProbeResult, len(r.entries))
	g, ctx := errgroup.WithContext(ctx)

	for i, e := range r.entries {
		g.Go(func() error {
			if !r.TryAcquire(e.cfg.Name) {
				results[i] = ProbeResult{
					Name:  e.cfg.Name,
					Error: "disabled or over daily budget",
				}
				return nil
			}
			start := time.Now()
			_, err := e.invoker.Invoke(ctx, "Connectivity check. Reply with one word.", GenerationParams{
				Temperature: 0.1,
				MaxTokens:   8,
			})
			r.RecordCall(e.cfg.Name, err == nil)
			res := ProbeResult{
				Name:    e.cfg.Name,
				OK:      err == nil,
				Latency: time.Since(start).Milliseconds(),
			}
			if err != nil {
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}
