package config

import "testing"

func TestLoadRequiresDatabaseURL(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379",
		"JWT_SECRET":   "secret",
	})
	if err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost/butchery",
		"REDIS_URL":    "redis://localhost:6379",
		"JWT_SECRET":   "secret",
		"PORT":         "",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr() != ":8080" {
		t.Fatalf("expected default addr :8080, got %s", cfg.HTTPAddr())
	}
	if cfg.CurrencyCode != "RWF" {
		t.Fatalf("expected RWF currency default, got %s", cfg.CurrencyCode)
	}
	if cfg.LowStockThreshold != 10 {
		t.Fatalf("expected low stock threshold 10, got %d", cfg.LowStockThreshold)
	}
	if cfg.DeliveryDistanceKM != 5 {
		t.Fatalf("expected placeholder distance 5, got %d", cfg.DeliveryDistanceKM)
	}
}
