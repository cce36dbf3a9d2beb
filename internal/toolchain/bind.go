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

// Binder produces the JavaScript needed to run the WebAssembly module in a
// browser: the Go runtime support script shipped with the toolchain, plus a
// small loader that fetches and instantiates the module.
type Binder struct{}

// Bind writes the runtime script and the loader glue into dir. The wasm
// module itself must already be there (or arrive via the same commit).
func (b *Binder) Bind(ctx context.Context, dir string) error {
	src, err := runtimeScriptPath(ctx)
	if err != nil {
		return err
	}
	if err := copyFile(src, filepath.Join(dir, RuntimeScript)); err != nil {
		return errors.New("E305").
			WithDetail("could not copy " + RuntimeScript).
			Wrap(err)
	}

	if err := os.WriteFile(filepath.Join(dir, GlueArtifact), []byte(loaderScript), 0644); err != nil {
		return errors.New("E305").Wrap(err)
	}
	return nil
}

// runtimeScriptPath locates wasm_exec.js inside GOROOT. Go 1.24 moved it
// from misc/wasm to lib/wasm, so both locations are tried.
func runtimeScriptPath(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "go", "env", "GOROOT")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", errors.New("E110").Wrap(err)
	}

	goroot := strings.TrimSpace(out.String())
	for _, rel := range []string{"lib/wasm", "misc/wasm"} {
		p := filepath.Join(goroot, filepath.FromSlash(rel), RuntimeScript)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.New("E305").
		WithDetail(RuntimeScript + " not found under GOROOT " + goroot).
		WithSuggestion("Check that your Go installation is complete")
}

const loaderScript = `// Loader for the loom UI module.
(function () {
	if (!WebAssembly.instantiateStreaming) {
		WebAssembly.instantiateStreaming = async (resp, importObject) => {
			const source = await (await resp).arrayBuffer();
			return await WebAssembly.instantiate(source, importObject);
		};
	}

	const go = new Go();
	WebAssembly.instantiateStreaming(fetch("/` + WasmArtifact + `"), go.importObject)
		.then((result) => { go.run(result.instance); })
		.catch((err) => { console.error("loom: failed to start UI module:", err); });
})();
`
