package main

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "miro.yaml")
	yaml := "instance_id: rob01\nmood: good\nrate: 100\ntransport: memory\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := loadConfig(path, "", 0)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Mood != "good" || cfg.Rate != 100 {
		t.Errorf("Expected good at 100 Hz, got %s at %d Hz", cfg.Mood, cfg.Rate)
	}

	cfg, err = loadConfig(path, "sleep", 50)
	if err != nil {
		t.Fatalf("loadConfig with overrides failed: %v", err)
	}
	if cfg.Mood != "sleep" || cfg.Rate != 50 {
		t.Errorf("Expected sleep at 50 Hz, got %s at %d Hz", cfg.Mood, cfg.Rate)
	}

	if _, err := loadConfig(path, "angry", 0); err == nil {
		t.Error("Expected error for unknown mood override")
	}
	if _, err := loadConfig(path, "", -5); err == nil {
		t.Error("Expected error for negative rate override")
	}
}

func TestWaitForStop(t *testing.T) {
	tests := []struct {
		name   string
		signal bool
		runErr error
		want   int
	}{
		{"control shutdown", false, nil, 0},
		{"run error", false, errors.New("connect failed"), 1},
		{"signal", true, nil, 0},
		{"signal then run error", true, errors.New("connect failed"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sigChan := make(chan os.Signal, 1)
			errChan := make(chan error, 1)
			cancelled := false
			cancel := func() {
				cancelled = true
				errChan <- tt.runErr
			}

			if tt.signal {
				sigChan <- syscall.SIGTERM
			} else {
				errChan <- tt.runErr
			}

			if got := waitForStop(sigChan, errChan, cancel); got != tt.want {
				t.Errorf("Expected exit code %d, got %d", tt.want, got)
			}
			if cancelled != tt.signal {
				t.Errorf("Expected cancel called %v, got %v", tt.signal, cancelled)
			}
		})
	}
}
