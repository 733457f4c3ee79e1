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
	if cfg.Eval.Timeout != 500*time.Millisecond {
		t.Errorf("Timeout = %s, want 500ms", cfg.Eval.Timeout)
	}
	if !cfg.Sandbox.AllowFor || !cfg.Sandbox.AllowWhile || !cfg.Sandbox.AllowIf || !cfg.Sandbox.AllowAugAssign {
		t.Errorf("default sandbox policy should allow control flow: %+v", cfg.Sandbox)
	}
	if cfg.Sandbox.AllowFunctions || cfg.Sandbox.AllowPrint {
		t.Errorf("default sandbox policy should deny functions and print: %+v", cfg.Sandbox)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evaluator.yaml")
	content := "eval:\n  timeout: 2s\nsandbox:\n  allow_while: false\n  allow_print: true\nworker:\n  binary: /opt/evaluator/bin/evaluator\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Eval.Timeout != 2*time.Second {
		t.Errorf("Timeout = %s, want 2s", cfg.Eval.Timeout)
	}
	if cfg.Sandbox.AllowWhile {
		t.Error("allow_while should be overridden to false")
	}
	if !cfg.Sandbox.AllowPrint {
		t.Error("allow_print should be overridden to true")
	}
	if !cfg.Sandbox.AllowFor {
		t.Error("unset keys should keep their defaults")
	}
	if cfg.Worker.Binary != "/opt/evaluator/bin/evaluator" {
		t.Errorf("Worker.Binary = %q", cfg.Worker.Binary)
	}
}

func TestLoadBadTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evaluator.yaml")
	if err := os.WriteFile(path, []byte("eval:\n  timeout: 0s\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("zero timeout should be rejected")
	}
}
