package deps

import (
	"os"
	"path/filepath"
	"testing"

	"quire/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to be available at %q, got %#v", present, results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("expected unset command to be reported, got %#v", results[2])
	}

	missing := MissingRequired(results)
	if len(missing) != 2 {
		t.Fatalf("expected two missing requirements, got %v", missing)
	}
}

func TestRequirementsFollowConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Converter.Binary = "pandoc"
	cfg.Session.BrowserBinary = ""

	reqs := Requirements(&cfg)
	if len(reqs) != 1 || reqs[0].Command != "pandoc" || reqs[0].Optional {
		t.Fatalf("expected only the mandatory converter, got %#v", reqs)
	}

	cfg.Session.BrowserBinary = "/usr/bin/chromium"
	reqs = Requirements(&cfg)
	if len(reqs) != 2 || !reqs[1].Optional {
		t.Fatalf("expected optional browser requirement, got %#v", reqs)
	}

	statuses := CheckBinaries([]Requirement{{Name: "Browser", Command: "clearly-not-present-binary", Optional: true}})
	if missing := MissingRequired(statuses); len(missing) != 0 {
		t.Fatalf("optional dependencies must not be reported as missing, got %v", missing)
	}
}
