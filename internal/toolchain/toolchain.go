// Package toolchain wraps the external tools a build invokes: the Go
// compiler (native and WebAssembly targets), the JavaScript glue for the
// WebAssembly module, the style processor, and the static asset mirror.
// Each collaborator writes into a directory the caller chooses, so the
// pipeline can stage outputs before committing them.
package toolchain

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/loom-dev/loom/internal/errors"
)

// Artifact names within the output directory.
const (
	WasmArtifact  = "app.wasm"
	GlueArtifact  = "loom.js"
	RuntimeScript = "wasm_exec.js"
	StyleArtifact = "app.css"
	AssetsDirName = "assets"
)

// ServerArtifact is the server binary name within the output directory.
// Windows resolves programs through PATHEXT, so the binary carries the
// .exe suffix there.
var ServerArtifact = serverArtifactName(runtime.GOOS)

func serverArtifactName(goos string) string {
	if goos == "windows" {
		return "server.exe"
	}
	return "server"
}

// CheckGo verifies the go command is on PATH.
func CheckGo() error {
	if _, err := exec.LookPath("go"); err != nil {
		return errors.New("E110").Wrap(err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	st, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, st.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
