package dev

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-dev/loom/internal/config"
	"github.com/loom-dev/loom/internal/reload"
)

func TestInjectScript(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"before body close", "<html><body><h1>hi</h1></body></html>"},
		{"before html close", "<html><p>no body tag</p></html>"},
		{"appended", "plain fragment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := injectScript(tt.body, "<script>x</script>")
			assert.Contains(t, out, "<script>x</script>")
			if idx := strings.Index(tt.body, "</body>"); idx != -1 {
				assert.Less(t, strings.Index(out, "<script>x</script>"), strings.Index(out, "</body>"))
			}
		})
	}
}

// testConfig builds a config rooted in a temp dir with the app port pointed
// at appTarget (or an unused port when empty).
func testConfig(t *testing.T, appTarget string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.New()
	require.NoError(t, cfg.SaveTo(filepath.Join(dir, config.ConfigFileName)))
	loaded, err := config.Load(dir)
	require.NoError(t, err)

	if appTarget != "" {
		u, err := url.Parse(appTarget)
		require.NoError(t, err)
		port, err := strconv.Atoi(u.Port())
		require.NoError(t, err)
		loaded.Dev.AppPort = port
	} else {
		loaded.Dev.AppPort = freePort(t)
	}
	return loaded
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServer_ServesArtifacts(t *testing.T) {
	cfg := testConfig(t, "")
	require.NoError(t, os.MkdirAll(cfg.OutputPath(), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.OutputPath(), "app.css"), []byte("body{}"), 0644))

	srv := httptest.NewServer(NewServer(cfg, reload.NewHub()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/app.css")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "body{}", string(body))
}

func TestServer_ProxyInjectsClientScript(t *testing.T) {
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body><h1>app</h1></body></html>")
	}))
	defer app.Close()

	cfg := testConfig(t, app.URL)
	srv := httptest.NewServer(NewServer(cfg, reload.NewHub()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/some/page")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), reload.Endpoint, "reload client must be injected into HTML")
	assert.Contains(t, string(body), "<h1>app</h1>")
}

func TestServer_ProxyLeavesNonHTMLAlone(t *testing.T) {
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer app.Close()

	cfg := testConfig(t, app.URL)
	srv := httptest.NewServer(NewServer(cfg, reload.NewHub()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/data")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, `{"ok":true}`, string(body))
}

func TestServer_BadGatewayPageWhenAppDown(t *testing.T) {
	cfg := testConfig(t, "")
	srv := httptest.NewServer(NewServer(cfg, reload.NewHub()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Application Not Running")
	assert.Contains(t, string(body), reload.Endpoint, "fallback page should reconnect for reload")
}
