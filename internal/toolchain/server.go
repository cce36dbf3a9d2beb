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

// ServerCompiler compiles the native server binary.
type ServerCompiler struct {
	// PackageDir is the server package directory.
	PackageDir string

	// Release strips symbols and paths.
	Release bool

	// LDFlags are extra linker flags, prepended to the release flags.
	LDFlags string

	// Tags are extra build tags.
	Tags []string
}

// Compile builds the server package into dir as the server artifact.
func (c *ServerCompiler) Compile(ctx context.Context, dir string) error {
	args := []string{"build", "-o", filepath.Join(dir, ServerArtifact)}

	ldflags := c.LDFlags
	if c.Release {
		if ldflags != "" {
			ldflags += " "
		}
		ldflags += "-s -w"
		args = append(args, "-trimpath")
	}
	if ldflags != "" {
		args = append(args, "-ldflags", ldflags)
	}
	if len(c.Tags) > 0 {
		args = append(args, "-tags", strings.Join(c.Tags, ","))
	}
	args = append(args, ".")

	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Dir = c.PackageDir
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.New("E302").
			WithDetail(stderr.String()).
			Wrap(err)
	}
	return nil
}
