package pipeline

import (
	"github.com/loom-dev/loom/internal/config"
	"github.com/loom-dev/loom/internal/toolchain"
	"github.com/loom-dev/loom/internal/watch"
)

// DefaultSteps builds the step table for a project. The table covers the
// four change categories: the UI wasm compile plus its JS bindings, the
// server compile, style processing, and the asset mirror.
func DefaultSteps(cfg *config.Config, release bool) []Step {
	wasm := &toolchain.WasmCompiler{
		PackageDir: cfg.UIPath(),
		Release:    release,
		Tags:       cfg.Build.Tags,
	}
	binder := &toolchain.Binder{}
	server := &toolchain.ServerCompiler{
		PackageDir: cfg.ServerPath(),
		Release:    release,
		LDFlags:    cfg.Build.LDFlags,
		Tags:       cfg.Build.Tags,
	}
	styles := &toolchain.StyleProcessor{
		StylesDir: cfg.StylesPath(),
		Entry:     cfg.Style.Entry,
		Command:   cfg.Style.Command,
	}
	assets := &toolchain.AssetSyncer{AssetsDir: cfg.AssetsPath()}

	return []Step{
		{
			Name:      "ui",
			Category:  watch.CategoryUI,
			Artifacts: []string{toolchain.WasmArtifact},
			Run:       wasm.Compile,
		},
		{
			Name:      "bind",
			Category:  watch.CategoryUI,
			Needs:     []string{"ui"},
			Artifacts: []string{toolchain.RuntimeScript, toolchain.GlueArtifact},
			Run:       binder.Bind,
		},
		{
			Name:      "server",
			Category:  watch.CategoryServer,
			Artifacts: []string{toolchain.ServerArtifact},
			Run:       server.Compile,
		},
		{
			Name:      "style",
			Category:  watch.CategoryStyle,
			Artifacts: []string{toolchain.StyleArtifact},
			Run:       styles.Process,
		},
		{
			Name:      "assets",
			Category:  watch.CategoryAsset,
			Artifacts: []string{toolchain.AssetsDirName},
			Run:       assets.Sync,
		},
	}
}

// AllCategories selects every step; used for the cold build at startup and
// for one-shot builds.
func AllCategories() watch.CategorySet {
	return watch.NewCategorySet(
		watch.CategoryUI,
		watch.CategoryServer,
		watch.CategoryStyle,
		watch.CategoryAsset,
	)
}
