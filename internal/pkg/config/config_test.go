package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/samirrijal/baenkli/internal/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("baenkli-test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Bucket != "bench-photos" {
		t.Errorf("expected bucket bench-photos, got %q", cfg.Storage.Bucket)
	}
	if cfg.Database.MaxConns != 10 {
		t.Errorf("expected 10 max conns, got %d", cfg.Database.MaxConns)
	}
	if cfg.Janitor.MinAge != 24*time.Hour {
		t.Errorf("expected janitor min age 24h, got %s", cfg.Janitor.MinAge)
	}
	if cfg.Telemetry.ServiceName != "baenkli-test" {
		t.Errorf("expected service name baenkli-test, got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BAENKLI_STORAGE_ENDPOINT", "minio:9000")
	t.Setenv("BAENKLI_STORAGE_ACCESS_KEY", "key")
	t.Setenv("BAENKLI_SERVER_PORT", "9090")

	cfg, err := config.Load("baenkli-test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Endpoint != "minio:9000" {
		t.Errorf("expected endpoint from env, got %q", cfg.Storage.Endpoint)
	}
	if cfg.Storage.AccessKey != "key" {
		t.Errorf("expected access key from env, got %q", cfg.Storage.AccessKey)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &config.Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "database.host", "database.max_conns", "nats.url", "temporal.task_queue"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in error, got: %v", want, err)
		}
	}
}

func TestStorageValidate(t *testing.T) {
	s := config.StorageConfig{Endpoint: "localhost:9000", Bucket: "bench-photos"}
	err := s.Validate()
	if err == nil || !strings.Contains(err.Error(), "storage.access_key") || !strings.Contains(err.Error(), "storage.secret_key") {
		t.Fatalf("expected missing credential errors, got %v", err)
	}

	s.AccessKey, s.SecretKey = "a", "b"
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.PublicURL = "cdn.example.org"
	if err := s.Validate(); err == nil {
		t.Fatal("expected relative public_url to be rejected")
	}
}

func TestDSN(t *testing.T) {
	d := config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "baenkli", SSLMode: "disable"}
	want := "postgres://u:p%40ss@db:5432/baenkli?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
