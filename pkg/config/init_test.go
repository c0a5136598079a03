package config

import (
	"path/filepath"
	"testing"
)

func TestInitConfigToPathRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := InitConfigToPath(path, false); err != nil {
		t.Fatalf("initial write failed: %v", err)
	}

	if err := InitConfigToPath(path, false); err == nil {
		t.Fatal("expected refusal to overwrite without force")
	}

	if err := InitConfigToPath(path, true); err != nil {
		t.Errorf("force overwrite failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if cfg.Server.Port != 5601 {
		t.Errorf("generated config port = %d, want default 5601", cfg.Server.Port)
	}
}
