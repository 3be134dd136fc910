package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("default port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Scoring.BaseURL != "http://localhost:5001" {
		t.Errorf("default scoring url = %q", cfg.Scoring.BaseURL)
	}
	if cfg.Uploads.KeyPrefix != "uploads/" {
		t.Errorf("default key prefix = %q", cfg.Uploads.KeyPrefix)
	}
	if cfg.Redis.CacheTTL != 5*time.Second {
		t.Errorf("default redis ttl = %v", cfg.Redis.CacheTTL)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
server:
  port: 8000
scoring:
  baseUrl: http://scoring.internal:5001
s3:
  bucket: file-bucket
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	// Env overrides beat the file.
	t.Setenv("RG_S3_BUCKET", "env-bucket")
	t.Setenv("RG_UPLOADS_DEDUPE", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("port = %d, want 8000 from file", cfg.Server.Port)
	}
	if cfg.Scoring.BaseURL != "http://scoring.internal:5001" {
		t.Errorf("scoring url = %q", cfg.Scoring.BaseURL)
	}
	if cfg.S3.Bucket != "env-bucket" {
		t.Errorf("bucket = %q, want env override", cfg.S3.Bucket)
	}
	if !cfg.Uploads.DedupeByContentHash {
		t.Error("dedupe should be enabled by env override")
	}
}

func TestLoadRejectsEmptyScoringURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("scoring:\n  baseUrl: \"\"\n"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for empty scoring url")
	}
}
