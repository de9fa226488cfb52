package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoad_Success(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8080")
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 5432)
	}
	if cfg.Ingestion.BodyLimit != 3000 {
		t.Errorf("Ingestion.BodyLimit = %d, want 3000", cfg.Ingestion.BodyLimit)
	}
	if cfg.Ingestion.BatchSize != 10 {
		t.Errorf("Ingestion.BatchSize = %d, want 10", cfg.Ingestion.BatchSize)
	}
	if len(cfg.Ingestion.SenderDomains) != len(DefaultSenderDomains) {
		t.Errorf("SenderDomains = %v, want defaults", cfg.Ingestion.SenderDomains)
	}
	if cfg.Scheduler.Interval != 5*time.Minute {
		t.Errorf("Scheduler.Interval = %v, want 5m", cfg.Scheduler.Interval)
	}
}

func TestLoad_SecretsNotRequiredAtStartup(t *testing.T) {
	isolateEnv(t)
	t.Setenv("WEBHOOK_SECRET", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ENCRYPTION_KEY", "")
	os.Unsetenv("WEBHOOK_SECRET")
	os.Unsetenv("GEMINI_API_KEY")
	os.Unsetenv("ENCRYPTION_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed without request-path secrets: %v", err)
	}
	if cfg.Ingestion.WebhookSecret != "" || cfg.Gemini.APIKey != "" {
		t.Error("expected empty secrets")
	}
}

func TestLoad_InvalidEncryptionKeyLength(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ENCRYPTION_KEY", "too-short")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for invalid ENCRYPTION_KEY length, got nil")
	}
}

func TestLoad_InvalidNumbers(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"DB_PORT", "not-a-number"},
		{"SCHEDULER_WORKERS", "many"},
		{"INGEST_BODY_LIMIT", "3k"},
		{"GEMINI_TIMEOUT", "thirty"},
		{"SCHEDULER_INTERVAL", "often"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			isolateEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load() expected error for invalid %s, got nil", tt.key)
			}
		})
	}
}

func TestLoad_TLSValidation(t *testing.T) {
	isolateEnv(t)
	t.Setenv("TLS_ENABLED", "true")
	t.Setenv("TLS_CERT_PATH", "")
	t.Setenv("TLS_KEY_PATH", "")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for TLS enabled without cert path, got nil")
	}
}

func TestLoad_TLSValidation_MissingKeyPath(t *testing.T) {
	isolateEnv(t)
	t.Setenv("TLS_ENABLED", "true")
	t.Setenv("TLS_CERT_PATH", "/path/to/cert")
	t.Setenv("TLS_KEY_PATH", "")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for TLS enabled without key path, got nil")
	}
}

func TestLoad_AllowedHosts(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ALLOWED_HOSTS", "example.com, api.example.com, localhost:3000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(cfg.Server.AllowedHosts) != 3 {
		t.Errorf("AllowedHosts length = %d, want 3", len(cfg.Server.AllowedHosts))
	}
}

func TestLoad_SenderDomains(t *testing.T) {
	isolateEnv(t)
	t.Setenv("BANK_SENDER_DOMAINS", "gtbank.com, ,kuda.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	want := []string{"gtbank.com", "kuda.com"}
	if len(cfg.Ingestion.SenderDomains) != len(want) {
		t.Fatalf("SenderDomains = %v, want %v", cfg.Ingestion.SenderDomains, want)
	}
	for i := range want {
		if cfg.Ingestion.SenderDomains[i] != want[i] {
			t.Errorf("SenderDomains[%d] = %q, want %q", i, cfg.Ingestion.SenderDomains[i], want[i])
		}
	}
}

func TestLoad_BatchSizeClamped(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"50", 10},
		{"0", 1},
		{"5", 5},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			isolateEnv(t)
			t.Setenv("INGEST_BATCH_SIZE", tt.value)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if cfg.Ingestion.BatchSize != tt.want {
				t.Errorf("BatchSize = %d, want %d", cfg.Ingestion.BatchSize, tt.want)
			}
		})
	}
}

func TestLoad_SchedulerConfig(t *testing.T) {
	isolateEnv(t)
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("SCHEDULER_WORKERS", "10")
	t.Setenv("SCHEDULER_RUN_ON_STARTUP", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Scheduler.Enabled {
		t.Error("Scheduler.Enabled = true, want false")
	}
	if cfg.Scheduler.WorkerCount != 10 {
		t.Errorf("Scheduler.WorkerCount = %d, want 10", cfg.Scheduler.WorkerCount)
	}
	if !cfg.Scheduler.RunOnStartup {
		t.Error("Scheduler.RunOnStartup = false, want true")
	}
}

func TestLoad_SchedulerNeedsCadence(t *testing.T) {
	isolateEnv(t)
	t.Setenv("SCHEDULER_ENABLED", "true")
	t.Setenv("SCHEDULER_INTERVAL", "0s")
	t.Setenv("SCHEDULER_TIMES", "")

	if _, err := Load(); err == nil {
		t.Error("Load() expected error for enabled scheduler without interval or times")
	}

	t.Setenv("SCHEDULER_TIMES", "08:00,17:30")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(cfg.Scheduler.ScheduleTimes) != 2 {
		t.Errorf("ScheduleTimes = %v, want 2 entries", cfg.Scheduler.ScheduleTimes)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "GEMINI_MODEL=gemini-2.0-flash\nPORT=9999\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("PORT", "7070") // environment wins over the file
	t.Setenv("GEMINI_MODEL", "")
	os.Unsetenv("GEMINI_MODEL")
	t.Cleanup(func() { os.Unsetenv("GEMINI_MODEL") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Gemini.Model != "gemini-2.0-flash" {
		t.Errorf("Gemini.Model = %q, want value from .env", cfg.Gemini.Model)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("Server.Port = %q, want environment value 7070", cfg.Server.Port)
	}
}

func TestConnectionString(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "payalert", SSLMode: "require"}
	want := "host=db port=5433 user=u password=p dbname=payalert sslmode=require"
	if got := db.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}
