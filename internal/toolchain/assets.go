package toolchain

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/loom-dev/loom/internal/errors"
)

// AssetSyncer mirrors the static asset directory into the output. The whole
// tree is rebuilt on every sync, so deletions and renames in the source are
// reflected too.
type AssetSyncer struct {
	// AssetsDir is the static asset source directory.
	AssetsDir string
}

// Sync copies the asset tree into dir. A missing source directory is not an
// error; the mirror is simply empty.
func (s *AssetSyncer) Sync(ctx context.Context, dir string) error {
	dst := filepath.Join(dir, AssetsDirName)
	if err := os.MkdirAll(dst, 0755); err != nil {
		return errors.New("E304").Wrap(err)
	}

	if _, err := os.Stat(s.AssetsDir); os.IsNotExist(err) {
		return nil
	}

	err := filepath.WalkDir(s.AssetsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(s.AssetsDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.New("E304").Wrap(err)
	}
	return nil
}
