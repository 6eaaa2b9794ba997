package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PORT", "")
	t.Setenv("EDALOOM_PORT", "")
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Addr() != "0.0.0.0:5000" {
		t.Fatalf("addr: %s", c.Addr())
	}
	if c.UploadDir != filepath.Join("static", "uploads") || c.PlotDir != filepath.Join("static", "plots") {
		t.Fatalf("dirs: %s %s", c.UploadDir, c.PlotDir)
	}
	if c.MaxUploadBytes() != 32<<20 || c.KeepReports != 5 || c.RequestTimeout() != 2*time.Minute {
		t.Fatalf("limits: %+v", c)
	}
	if c.CategoricalMaxDistinct != 10 || c.BinaryMaxDistinct != 2 || !c.MetricsEnabled {
		t.Fatalf("analysis defaults: %+v", c)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("EDALOOM_PORT", "7000")
	t.Setenv("EDALOOM_KEEP_REPORTS", "9")
	t.Setenv("EDALOOM_LOG_FORMAT", "json")
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Port != 7000 || c.KeepReports != 9 || c.LogFormat != "json" {
		t.Fatalf("env not applied: %+v", c)
	}

	// bare PORT wins
	t.Setenv("PORT", "8080")
	c, err = Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Port != 8080 {
		t.Fatalf("PORT not applied: %d", c.Port)
	}
}

func TestLoadConfigFileAndValidation(t *testing.T) {
	isolate(t)
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(p, []byte("port: 6000\ncors_origins:\n  - http://localhost:3000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Port != 6000 || len(c.CORSOrigins) != 1 {
		t.Fatalf("file not applied: %+v", c)
	}

	if err := os.WriteFile(p, []byte("log_format: xml\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	home := isolate(t)
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c.KeepReports = 2
	c.LogLevel = "debug"
	if err := Save(c, ""); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".edaloom", "config.yaml")); err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	c2, err := Load("")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if c2.KeepReports != 2 || c2.LogLevel != "debug" {
		t.Fatalf("round trip lost values: %+v", c2)
	}
}
