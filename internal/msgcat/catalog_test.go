package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("game_over.win", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "You win" {
		t.Fatalf("got %q", got)
	}
}

func TestTemplateData(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("request.invited", map[string]any{"From": "alice"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, "alice") {
		t.Fatalf("got %q", got)
	}
	// Missing data is an error so callers can fall back.
	if _, err := c.Render("request.invited", map[string]any{}); err == nil {
		t.Fatalf("expected missingkey error")
	}
}

func TestUnknownKey(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := "game_over:\n  win: \"Victory!\"\n"
	if err := os.WriteFile(filepath.Join(dir, "10-custom.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("game_over.win", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Victory!" {
		t.Fatalf("override not applied: %q", got)
	}
	// Untouched keys keep their defaults.
	if got, _ := c.Render("game_over.lose", nil); got != "You lose" {
		t.Fatalf("default lost: %q", got)
	}
}

func TestDuplicateOverrideKeysRejected(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yaml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("hint:\n  fallback: \"x\"\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}
