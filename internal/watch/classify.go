package watch

import (
	"os"
	"path/filepath"
	"strings"
)

// Classifier maps changed paths to change categories based on the project
// layout. Paths that match no category (e.g. a stray file at the project
// root) are not watched.
type Classifier struct {
	// UIDir is the directory whose Go sources compile to WebAssembly.
	UIDir string

	// StylesDir is the directory holding style sources.
	StylesDir string

	// AssetsDir is the directory holding static assets.
	AssetsDir string
}

var styleExtensions = map[string]bool{
	".css":  true,
	".scss": true,
	".sass": true,
	".less": true,
}

// Classify returns the category for a changed path, and whether the path is
// relevant at all.
func (c *Classifier) Classify(path string) (Category, bool) {
	if isWithinDir(path, c.AssetsDir) {
		return CategoryAsset, true
	}

	ext := strings.ToLower(filepath.Ext(path))
	if styleExtensions[ext] || isWithinDir(path, c.StylesDir) {
		return CategoryStyle, true
	}

	if ext == ".go" {
		if isWithinDir(path, c.UIDir) {
			return CategoryUI, true
		}
		return CategoryServer, true
	}

	return 0, false
}

// isWithinDir reports whether path is dir or inside dir.
func isWithinDir(path, dir string) bool {
	if dir == "" {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	absDir = filepath.Clean(absDir)
	if absPath == absDir {
		return true
	}
	if !strings.HasSuffix(absDir, string(os.PathSeparator)) {
		absDir += string(os.PathSeparator)
	}
	return strings.HasPrefix(absPath, absDir)
}
