package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.ListenAddr == "" {
		t.Fatal("no default listen addr")
	}
	if cfg.Chat.DefaultDestructSeconds <= 0 {
		t.Fatal("no default destruct delay")
	}
	if cfg.Nats.Enabled {
		t.Fatal("NATS must be off by default")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  listen_addr: \"0.0.0.0:9000\"\nchat:\n  default_destruct_seconds: 120\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.ListenAddr != "0.0.0.0:9000" {
		t.Fatalf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Chat.DefaultDestructSeconds != 120 {
		t.Fatalf("default_destruct_seconds = %d", cfg.Chat.DefaultDestructSeconds)
	}
	// Untouched sections keep their defaults.
	if cfg.Database.Port != 3306 {
		t.Fatalf("database.port = %d", cfg.Database.Port)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
