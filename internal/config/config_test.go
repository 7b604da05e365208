package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Port != "12700" {
		t.Errorf("port = %q, want 12700", cfg.Server.Port)
	}
	if cfg.Storage.Default != "local" {
		t.Errorf("default backend = %q, want local", cfg.Storage.Default)
	}
	if cfg.Storage.GitHub.Branch != "main" {
		t.Errorf("github branch = %q, want main", cfg.Storage.GitHub.Branch)
	}
	if cfg.Content.PostsPerPage != 50 {
		t.Errorf("posts per page = %d, want 50", cfg.Content.PostsPerPage)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
site:
  name: Overridden
server:
  port: "9999"
storage:
  default: s3
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Site.Name != "Overridden" {
		t.Errorf("site name = %q, want Overridden", cfg.Site.Name)
	}
	if cfg.Server.Port != "9999" {
		t.Errorf("port = %q, want 9999", cfg.Server.Port)
	}
	if cfg.Storage.Default != "s3" {
		t.Errorf("default backend = %q, want s3", cfg.Storage.Default)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Database.Path != "./inkwell.db" {
		t.Errorf("database path = %q, want default", cfg.Database.Path)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("malformed config accepted")
	}
}

func TestApplyEnvOverlay(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	t.Setenv("DATABASE_PATH", "/tmp/env.db")
	t.Setenv("PORT", "8081")
	t.Setenv("STORAGE_DIR", "/tmp/blobs")

	cfg.ApplyEnv()

	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if cfg.Server.Port != "8081" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Storage.Local.BaseDir != "/tmp/blobs" {
		t.Errorf("storage dir = %q", cfg.Storage.Local.BaseDir)
	}
	if cfg.Storage.Default != "local" {
		t.Errorf("default backend = %q, want local without ipfs endpoint", cfg.Storage.Default)
	}
}

func TestApplyEnvPromotesIPFS(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	t.Setenv("IPFS_API_URL", "http://localhost:5001")
	cfg.ApplyEnv()

	if cfg.Storage.Default != "ipfs" {
		t.Errorf("default backend = %q, want ipfs", cfg.Storage.Default)
	}
}

func TestApplyEnvExplicitBackendWins(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	t.Setenv("IPFS_API_URL", "http://localhost:5001")
	t.Setenv("STORAGE_BACKEND", "github")
	cfg.ApplyEnv()

	if cfg.Storage.Default != "github" {
		t.Errorf("default backend = %q, want github", cfg.Storage.Default)
	}
}

func TestConfiguredPredicates(t *testing.T) {
	gh := GitHubStorage{Owner: "o", Repo: "r", Token: "t"}
	if !gh.Configured() {
		t.Error("complete github config reported unconfigured")
	}
	gh.Token = ""
	if gh.Configured() {
		t.Error("tokenless github config reported configured")
	}

	s3 := S3Storage{AccessKeyID: "k", AccessKeySecret: "s", Bucket: "b"}
	if !s3.Configured() {
		t.Error("complete s3 config reported unconfigured")
	}
	s3.Bucket = ""
	if s3.Configured() {
		t.Error("bucketless s3 config reported configured")
	}
}
