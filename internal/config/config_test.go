package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8317 {
		t.Errorf("port = %d, want default 8317", cfg.Port)
	}
	if cfg.Generation.MaxProviderAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", cfg.Generation.MaxProviderAttempts)
	}
}

func TestLoadYAMLOverridesAndSanitizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
port: 9000
generation:
  invoke-timeout-seconds: -5
api-keys:
  - key: sk-one
    subject: alice
    plan: premium
  - key: ""
    subject: ghost
  - key: sk-two
    subject: bob
    plan: not-a-plan
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9000 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.Generation.InvokeTimeoutSeconds != 30 {
		t.Errorf("negative timeout not sanitized: %d", cfg.Generation.InvokeTimeoutSeconds)
	}
	if len(cfg.APIKeys) != 2 {
		t.Fatalf("api keys = %d, want 2 (blank key dropped)", len(cfg.APIKeys))
	}
	if cfg.APIKeys[1].Plan != string(PlanFree) {
		t.Errorf("unknown plan = %q, want fallback to free", cfg.APIKeys[1].Plan)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("COSTAR_PORT", "7000")
	t.Setenv("COSTAR_QUOTA_DSN", "sqlite:///tmp/q.db")
	t.Setenv("COSTAR_ADMIN_KEYS", "k1, k2 ,")

	cfg := NewDefault()
	ApplyEnvOverrides(cfg)

	if cfg.Port != 7000 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.Quota.DSN != "sqlite:///tmp/q.db" {
		t.Errorf("quota dsn = %q", cfg.Quota.DSN)
	}
	if len(cfg.AdminKeys) != 2 || cfg.AdminKeys[0] != "k1" || cfg.AdminKeys[1] != "k2" {
		t.Errorf("admin keys = %v", cfg.AdminKeys)
	}
}

func TestPlanLimits(t *testing.T) {
	cases := []struct {
		plan  Plan
		limit int
	}{
		{PlanFree, 50},
		{PlanPremium, 500},
		{PlanEnterprise, UnlimitedQuota},
	}
	for _, tc := range cases {
		if got := tc.plan.MonthlyPromptLimit(); got != tc.limit {
			t.Errorf("%s limit = %d, want %d", tc.plan, got, tc.limit)
		}
	}
}

func TestParsePlan(t *testing.T) {
	if p, ok := ParsePlan("  Premium "); !ok || p != PlanPremium {
		t.Errorf("ParsePlan(Premium) = %v, %v", p, ok)
	}
	if _, ok := ParsePlan("platinum"); ok {
		t.Error("unknown plan accepted")
	}
}
