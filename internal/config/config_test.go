package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"name": "demo"}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Name != "demo" {
		t.Errorf("Name = %q, want demo", cfg.Name)
	}
	if cfg.Dev.Port != DefaultPort {
		t.Errorf("Dev.Port = %d, want %d", cfg.Dev.Port, DefaultPort)
	}
	if cfg.Dev.AppPort != DefaultPort+1 {
		t.Errorf("Dev.AppPort = %d, want %d", cfg.Dev.AppPort, DefaultPort+1)
	}
	if cfg.Build.Output != DefaultOutput {
		t.Errorf("Build.Output = %q, want %q", cfg.Build.Output, DefaultOutput)
	}
	if cfg.DebounceWindow() != DefaultDebounce {
		t.Errorf("DebounceWindow() = %v, want %v", cfg.DebounceWindow(), DefaultDebounce)
	}
	if cfg.StopGrace() != DefaultStopGrace {
		t.Errorf("StopGrace() = %v, want %v", cfg.StopGrace(), DefaultStopGrace)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir())
	if err == nil {
		t.Fatal("Load() should fail when loom.json is missing")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{not json`)

	if _, err := Load(dir); err == nil {
		t.Fatal("Load() should fail on invalid JSON")
	}
}

func TestLoad_InvalidDurations(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"dev": {"debounce": "fast"}}`)

	if _, err := Load(dir); err == nil {
		t.Fatal("Load() should reject an unparseable debounce")
	}
}

func TestLoad_CustomTimings(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"dev": {"debounce": "250ms", "stopGrace": "2s"}}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DebounceWindow() != 250*time.Millisecond {
		t.Errorf("DebounceWindow() = %v, want 250ms", cfg.DebounceWindow())
	}
	if cfg.StopGrace() != 2*time.Second {
		t.Errorf("StopGrace() = %v, want 2s", cfg.StopGrace())
	}
}

func TestDevAddress(t *testing.T) {
	cfg := New()
	cfg.Dev.Host = "0.0.0.0"
	cfg.Dev.Port = 8080

	if got := cfg.DevAddress(); got != "0.0.0.0:8080" {
		t.Errorf("DevAddress() = %q, want 0.0.0.0:8080", got)
	}
	if got := cfg.DevURL(); got != "http://0.0.0.0:8080" {
		t.Errorf("DevURL() = %q, want http://0.0.0.0:8080", got)
	}
}

func TestPaths_ResolveAgainstProjectDir(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"paths": {"ui": "app/ui", "server": "app/server"}}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	if got, want := cfg.UIPath(), filepath.Join(dir, "app", "ui"); got != want {
		t.Errorf("UIPath() = %q, want %q", got, want)
	}
	if got, want := cfg.ServerPath(), filepath.Join(dir, "app", "server"); got != want {
		t.Errorf("ServerPath() = %q, want %q", got, want)
	}
	if got, want := cfg.OutputPath(), filepath.Join(dir, "dist"); got != want {
		t.Errorf("OutputPath() = %q, want %q", got, want)
	}
}

func TestWatchRoots_Deduplicated(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"dev": {"watch": ["ui", "extra"]}}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	roots := cfg.WatchRoots()
	seen := map[string]int{}
	for _, r := range roots {
		seen[r]++
	}
	for r, n := range seen {
		if n > 1 {
			t.Errorf("root %q appears %d times", r, n)
		}
	}
	if seen[filepath.Join(dir, "extra")] != 1 {
		t.Error("extra watch path missing from roots")
	}
}

func TestFindProjectRoot(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{}`)
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	root, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot() error: %v", err)
	}
	// Resolve symlinks; macOS tempdirs live under /var -> /private/var.
	wantResolved, _ := filepath.EvalSymlinks(dir)
	gotResolved, _ := filepath.EvalSymlinks(root)
	if gotResolved != wantResolved {
		t.Errorf("FindProjectRoot() = %q, want %q", root, dir)
	}
}

func TestValidate_PortRange(t *testing.T) {
	cfg := New()
	cfg.Dev.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject out-of-range ports")
	}
}
