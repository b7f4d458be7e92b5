package config

import "testing"

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when JWT_SECRET is empty")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", "dev")
	t.Setenv("PUSH_WORKERS", "not-a-number")
	t.Setenv("SEND_RATE_PER_SECOND", "2.5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.AppEnv != "development" {
		t.Fatalf("expected development env, got %q", cfg.AppEnv)
	}
	if cfg.PushWorkers != 5 {
		t.Fatalf("expected fallback of 5 workers, got %d", cfg.PushWorkers)
	}
	if cfg.SendRatePerSecond != 2.5 {
		t.Fatalf("expected rate 2.5, got %v", cfg.SendRatePerSecond)
	}
}

func TestOriginsTrimsEntries(t *testing.T) {
	cfg := &Config{AllowedOrigins: " https://a.example , ,https://b.example "}
	if got := cfg.Origins(); got != "https://a.example,https://b.example" {
		t.Fatalf("unexpected origins %q", got)
	}

	cfg.AllowedOrigins = " , "
	if got := cfg.Origins(); got != "*" {
		t.Fatalf("expected wildcard, got %q", got)
	}
}

func TestStorageConfigured(t *testing.T) {
	cfg := &Config{SupabaseURL: "https://x.supabase.co", SupabaseBucket: "sami"}
	if cfg.StorageConfigured() {
		t.Fatal("storage should need a service key")
	}
	cfg.SupabaseServiceKey = "key"
	if !cfg.StorageConfigured() {
		t.Fatal("storage should be configured")
	}
}
