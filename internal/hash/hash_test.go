package hash

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	sum, err := File(path)
	if err != nil {
		t.Fatal(err)
	}
	// sha256("hello")
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if sum != want {
		t.Errorf("File() = %s, want %s", sum, want)
	}
}

func TestFile_Missing(t *testing.T) {
	if _, err := File(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDir_DetectsContentAndLayoutChanges(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		p := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	write("a.txt", "one")
	write("sub/b.txt", "two")

	base, err := Dir(dir)
	if err != nil {
		t.Fatal(err)
	}

	again, err := Dir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if again != base {
		t.Error("digest not stable across identical reads")
	}

	write("a.txt", "changed")
	afterEdit, err := Dir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if afterEdit == base {
		t.Error("content change not reflected in digest")
	}

	if err := os.Rename(filepath.Join(dir, "sub/b.txt"), filepath.Join(dir, "sub/c.txt")); err != nil {
		t.Fatal(err)
	}
	afterRename, err := Dir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if afterRename == afterEdit {
		t.Error("rename not reflected in digest")
	}
}

func TestDir_MissingRoot(t *testing.T) {
	a, err := Dir(filepath.Join(t.TempDir(), "gone"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Dir(filepath.Join(t.TempDir(), "also-gone"))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("missing roots should hash identically")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if !r.Changed("server", "abc") {
		t.Error("first observation should report changed")
	}

	r.Commit("server", "abc")
	if r.Changed("server", "abc") {
		t.Error("committed digest should not report changed")
	}
	if !r.Changed("server", "def") {
		t.Error("new digest should report changed")
	}

	// Keys are independent.
	if !r.Changed("wasm", "abc") {
		t.Error("unseen key should report changed")
	}

	if d, ok := r.Get("server"); !ok || d != "abc" {
		t.Errorf("Get() = %q, %v; want abc, true", d, ok)
	}
}
