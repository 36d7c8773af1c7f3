package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, contents string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "alfredd.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTemp(t, `
mode = "master"
interfaces = ["bat0"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 0x4242 {
		t.Fatalf("expected default port 0x4242, got %d", cfg.Port)
	}
	if cfg.MulticastIP != "ff02::1" {
		t.Fatalf("expected default multicast ip, got %q", cfg.MulticastIP)
	}
	if cfg.StatusAddr != ":9242" {
		t.Fatalf("expected default status addr, got %q", cfg.StatusAddr)
	}
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	path := writeTemp(t, `
mode = "bogus"
interfaces = ["bat0"]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an invalid mode")
	}
}

func TestLoadRejectsNoInterfaces(t *testing.T) {
	path := writeTemp(t, `mode = "slave"`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for zero interfaces")
	}
}

func TestIntervalHelpersConvertMillisecondsAndSeconds(t *testing.T) {
	cfg := DaemonConfig{
		AnnounceIntervalMS: 2500,
		CacheTTLSec:        120,
	}
	if cfg.Announce().Seconds() != 2.5 {
		t.Fatalf("expected 2.5s, got %v", cfg.Announce())
	}
	if cfg.CacheTTL().Seconds() != 120 {
		t.Fatalf("expected 120s, got %v", cfg.CacheTTL())
	}
}
