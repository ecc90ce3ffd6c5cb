package config

import (
	"os"
	"testing"
	"time"
)

func TestPort_Default(t *testing.T) {
	os.Unsetenv(EnvPort)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("default Port = %d, want %d", cfg.Port(), DefaultPort)
	}
}

func TestPort_Invalid(t *testing.T) {
	os.Setenv(EnvPort, "99999")
	defer os.Unsetenv(EnvPort)

	if _, err := New(); err == nil {
		t.Error("expected error for out-of-range port")
	}
}

func TestGapSeconds_FromEnv(t *testing.T) {
	os.Setenv(EnvGapSeconds, "120")
	defer os.Unsetenv(EnvGapSeconds)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GapSeconds() != 120 {
		t.Errorf("GapSeconds = %d, want 120", cfg.GapSeconds())
	}
}

func TestGapSeconds_ZeroAllowed(t *testing.T) {
	os.Setenv(EnvGapSeconds, "0")
	defer os.Unsetenv(EnvGapSeconds)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GapSeconds() != 0 {
		t.Errorf("GapSeconds = %d, want 0", cfg.GapSeconds())
	}
}

func TestGapSeconds_Negative(t *testing.T) {
	os.Setenv(EnvGapSeconds, "-5")
	defer os.Unsetenv(EnvGapSeconds)

	if _, err := New(); err == nil {
		t.Error("expected error for negative gap")
	}
}

func TestScanInterval_FromEnv(t *testing.T) {
	os.Setenv(EnvScanInterval, "30")
	defer os.Unsetenv(EnvScanInterval)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ScanInterval() != 30*time.Second {
		t.Errorf("ScanInterval = %v, want 30s", cfg.ScanInterval())
	}
}

func TestHeadless_FromEnv(t *testing.T) {
	os.Setenv(EnvHeadless, "true")
	defer os.Unsetenv(EnvHeadless)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Headless() {
		t.Error("Headless = false, want true")
	}
}

func TestDBPath(t *testing.T) {
	os.Setenv(EnvDataDir, "/tmp/camtrap-test")
	defer os.Unsetenv(EnvDataDir)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPath() != "/tmp/camtrap-test/"+DBFilename {
		t.Errorf("DBPath = %q", cfg.DBPath())
	}
}
