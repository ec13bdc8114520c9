package config

import (
	"strings"
	"testing"
)

func testEnv(overrides map[string]string) map[string]string {
	base := map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/store",
		"REDIS_URL":    "redis://localhost:6379",
		"JWT_SECRET":   "test-secret",
	}
	for k, v := range overrides {
		base[k] = v
	}
	return base
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	_, err := LoadForTests(testEnv(map[string]string{"DATABASE_URL": ""}))
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(testEnv(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr() != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.HTTPAddr())
	}
	if cfg.MetricsNamespace != "campuskart" {
		t.Fatalf("unexpected namespace %q", cfg.MetricsNamespace)
	}
	if cfg.IdempotencyTTL.Hours() != 24 {
		t.Fatalf("unexpected idempotency ttl %v", cfg.IdempotencyTTL)
	}
}

func TestLoadPricingKnobs(t *testing.T) {
	cfg, err := LoadForTests(testEnv(map[string]string{
		"TAX_BPS":             "1800",
		"SHIPPING_FEE":        "4000",
		"FREE_SHIPPING_ABOVE": "100000",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TaxBps != 1800 || cfg.ShippingFee != 4000 || cfg.FreeShippingAbove != 100000 {
		t.Fatalf("pricing knobs not parsed: %+v", cfg)
	}
}
