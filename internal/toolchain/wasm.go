package toolchain

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/loom-dev/loom/internal/errors"
)

// WasmCompiler compiles the UI package to a WebAssembly module.
type WasmCompiler struct {
	// PackageDir is the UI package directory (the go build working dir).
	PackageDir string

	// Release strips symbols and paths for a smaller module.
	Release bool

	// Tags are extra build tags.
	Tags []string
}

// Compile builds the UI package into dir as the wasm artifact.
func (c *WasmCompiler) Compile(ctx context.Context, dir string) error {
	args := []string{"build", "-o", filepath.Join(dir, WasmArtifact)}

	if c.Release {
		args = append(args, "-trimpath", "-ldflags", "-s -w")
	}
	if len(c.Tags) > 0 {
		args = append(args, "-tags", strings.Join(c.Tags, ","))
	}
	args = append(args, ".")

	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Dir = c.PackageDir
	cmd.Env = append(os.Environ(), "GOOS=js", "GOARCH=wasm")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.New("E301").
			WithDetail(stderr.String()).
			Wrap(err)
	}
	return nil
}
