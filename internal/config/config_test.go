package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Server.BasePath != "/api" {
		t.Fatalf("unexpected base path %q", cfg.Server.BasePath)
	}
	if cfg.Editor.DefaultName != "Untitled Process" {
		t.Fatalf("unexpected default name %q", cfg.Editor.DefaultName)
	}
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("server:\n  addr: 0.0.0.0:9999\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:9999" {
		t.Fatalf("expected overridden addr, got %q", cfg.Server.Addr)
	}
	if cfg.Server.BasePath != "/api" {
		t.Fatalf("untouched fields keep defaults, got %q", cfg.Server.BasePath)
	}
}

func TestFromYAMLRejectsBadBasePath(t *testing.T) {
	if _, err := FromYAML([]byte("server:\n  base_path: api\n")); err == nil {
		t.Fatal("expected validation error for base path without leading slash")
	}
}

func TestFromYAMLRejectsGarbage(t *testing.T) {
	if _, err := FromYAML([]byte("\tnot yaml")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadOptionalMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadReadsWorkspaceFile(t *testing.T) {
	workspace := t.TempDir()
	content := "server:\n  addr: 127.0.0.1:7070\neditor:\n  default_name: Draft\n"
	if err := os.WriteFile(filepath.Join(workspace, "flowcanvas.yml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(workspace)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:7070" || cfg.Editor.DefaultName != "Draft" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for missing config")
	}
}
