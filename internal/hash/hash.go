// Package hash fingerprints build artifacts so downstream effects (server
// restarts, browser reloads) only fire when an output actually changed.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// File returns the hex-encoded SHA-256 digest of a single file.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Dir returns a digest over every regular file under root, covering both
// contents and relative paths so renames and deletions register as changes.
// A missing root hashes to the empty-tree digest rather than an error.
func Dir(root string) (string, error) {
	type entry struct {
		rel string
		sum string
	}
	var entries []entry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		sum, err := File(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries = append(entries, entry{rel: filepath.ToSlash(rel), sum: sum})
		return nil
	})
	if err != nil {
		return "", err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })

	h := sha256.New()
	for _, e := range entries {
		io.WriteString(h, e.rel)
		h.Write([]byte{0})
		io.WriteString(h, e.sum)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Registry remembers the digest of each artifact from the last successful
// build so a new build can tell whether it produced anything new. Safe for
// concurrent use.
type Registry struct {
	mu   sync.Mutex
	last map[string]string
}

// NewRegistry creates an empty registry; the first Changed call for any key
// reports true.
func NewRegistry() *Registry {
	return &Registry{last: make(map[string]string)}
}

// Changed reports whether digest differs from the recorded digest for key.
func (r *Registry) Changed(key, digest string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last[key] != digest
}

// Commit records digest as the last successful digest for key. Call only
// after the artifact has been committed to the output directory.
func (r *Registry) Commit(key, digest string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[key] = digest
}

// Get returns the recorded digest for key, if any.
func (r *Registry) Get(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.last[key]
	return d, ok
}
