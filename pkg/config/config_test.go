package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Server.Port != 5601 {
		t.Errorf("default server port = %d, want 5601", cfg.Server.Port)
	}
	if cfg.Legacy.Mode != "inprocess" {
		t.Errorf("default legacy mode = %q, want inprocess", cfg.Legacy.Mode)
	}
	if cfg.Legacy.HTTP.AutoListen == nil || !*cfg.Legacy.HTTP.AutoListen {
		t.Error("default legacy auto_listen should be true")
	}
	if cfg.Legacy.HTTP.Port != 5602 {
		t.Errorf("default legacy port = %d, want 5602", cfg.Legacy.HTTP.Port)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("default shutdown timeout = %v, want 30s", cfg.ShutdownTimeout)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("default log level = %q, want INFO", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Legacy.Mode = "sidecar"

	if err := Validate(cfg); err == nil {
		t.Error("expected validation error for unknown legacy mode")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "switchyard.yaml")
	content := []byte(`
server:
  port: 8080
legacy:
  mode: supervisor
  http:
    auto_listen: false
    port: 9200
logging:
  level: DEBUG
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Legacy.Mode != "supervisor" {
		t.Errorf("legacy mode = %q, want supervisor", cfg.Legacy.Mode)
	}
	if cfg.Legacy.HTTP.AutoListen == nil || *cfg.Legacy.HTTP.AutoListen {
		t.Error("auto_listen should decode to false")
	}
	if cfg.Legacy.HTTP.Port != 9200 {
		t.Errorf("legacy port = %d, want 9200", cfg.Legacy.HTTP.Port)
	}
	// Unset fields keep defaults.
	if cfg.Server.Host != "localhost" {
		t.Errorf("server host = %q, want default localhost", cfg.Server.Host)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load of absent file failed: %v", err)
	}
	if cfg.Server.Port != 5601 {
		t.Errorf("server port = %d, want default 5601", cfg.Server.Port)
	}
}
