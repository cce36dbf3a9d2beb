package toolchain

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"

	"github.com/loom-dev/loom/internal/errors"
)

// StyleProcessor turns style sources into the style artifact. With a
// configured command it runs an external processor (tailwind, sass, ...);
// without one it copies the entry file as-is.
type StyleProcessor struct {
	// StylesDir is the style source directory.
	StylesDir string

	// Entry is the entry file, relative to StylesDir.
	Entry string

	// Command, when set, is the external processor. The entry path and the
	// output path are appended as the final two arguments.
	Command []string
}

// Process writes the style artifact into dir.
func (p *StyleProcessor) Process(ctx context.Context, dir string) error {
	entry := filepath.Join(p.StylesDir, p.Entry)
	output := filepath.Join(dir, StyleArtifact)

	if len(p.Command) == 0 {
		if err := copyFile(entry, output); err != nil {
			return errors.New("E303").
				WithDetail("could not copy " + entry).
				WithSuggestion("Check style.entry in loom.json, or configure style.command").
				Wrap(err)
		}
		return nil
	}

	args := append(append([]string{}, p.Command[1:]...), entry, output)
	cmd := exec.CommandContext(ctx, p.Command[0], args...)
	cmd.Dir = p.StylesDir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.New("E303").
			WithDetail(stderr.String()).
			Wrap(err)
	}
	return nil
}
