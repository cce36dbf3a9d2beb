package dev

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loom-dev/loom/internal/config"
	"github.com/loom-dev/loom/internal/reload"
	"github.com/loom-dev/loom/internal/toolchain"
)

// Server is the HTTP surface browsers talk to in watch mode. It serves the
// built artifacts itself, exposes the reload socket and metrics, and proxies
// everything else to the supervised app with the reload script injected into
// HTML responses.
type Server struct {
	cfg    *config.Config
	hub    *reload.Hub
	router chi.Router
}

// NewServer wires the dev routes.
func NewServer(cfg *config.Config, hub *reload.Hub) *Server {
	s := &Server{cfg: cfg, hub: hub}

	r := chi.NewRouter()
	r.Get(reload.Endpoint, hub.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	out := cfg.OutputPath()
	for _, artifact := range []string{
		toolchain.WasmArtifact,
		toolchain.GlueArtifact,
		toolchain.RuntimeScript,
		toolchain.StyleArtifact,
	} {
		artifact := artifact
		r.Get("/"+artifact, func(w http.ResponseWriter, req *http.Request) {
			http.ServeFile(w, req, filepath.Join(out, artifact))
		})
	}
	r.Handle("/assets/*", http.StripPrefix("/assets/",
		http.FileServer(http.Dir(filepath.Join(out, toolchain.AssetsDirName)))))

	for prefix, target := range cfg.Dev.Proxy {
		r.Handle(prefix+"/*", s.externalProxy(target))
	}

	r.NotFound(s.proxyToApp)

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe blocks serving on the configured dev address.
func (s *Server) ListenAndServe() error {
	return http.ListenAndServe(s.cfg.DevAddress(), s)
}

// proxyToApp forwards a request to the supervised app on the internal port,
// injecting the reload client into HTML responses.
func (s *Server) proxyToApp(w http.ResponseWriter, r *http.Request) {
	target, _ := url.Parse(fmt.Sprintf("http://127.0.0.1:%d", s.cfg.Dev.AppPort))
	proxy := httputil.NewSingleHostReverseProxy(target)

	proxy.ModifyResponse = func(resp *http.Response) error {
		if !s.cfg.Dev.HotReload {
			return nil
		}
		if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
			return nil
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		resp.Body.Close()

		injected := injectScript(string(body), reload.ClientScript)
		resp.Body = io.NopCloser(strings.NewReader(injected))
		resp.ContentLength = int64(len(injected))
		resp.Header.Set("Content-Length", fmt.Sprintf("%d", len(injected)))
		return nil
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadGateway)
		script := ""
		if s.cfg.Dev.HotReload {
			script = reload.ClientScript
		}
		fmt.Fprintf(w, notRunningPage, script)
	}

	proxy.ServeHTTP(w, r)
}

// externalProxy forwards to a configured proxy rule target.
func (s *Server) externalProxy(target string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		targetURL, err := url.Parse(target)
		if err != nil {
			http.Error(w, "Invalid proxy target", http.StatusInternalServerError)
			return
		}
		httputil.NewSingleHostReverseProxy(targetURL).ServeHTTP(w, r)
	})
}

// injectScript places script before </body>, falling back to </html> or
// plain append.
func injectScript(body, script string) string {
	if idx := strings.LastIndex(body, "</body>"); idx != -1 {
		return body[:idx] + script + body[idx:]
	}
	if idx := strings.LastIndex(body, "</html>"); idx != -1 {
		return body[:idx] + script + body[idx:]
	}
	return body + script
}

const notRunningPage = `<!DOCTYPE html>
<html>
<head><title>loom</title></head>
<body style="font-family: system-ui; padding: 40px; background: #1a1a1a; color: #fff;">
<h1 style="color: #ff5555;">Application Not Running</h1>
<p>The application server is not responding. This could mean:</p>
<ul>
<li>The server is still starting up</li>
<li>There was a build error (check your terminal)</li>
<li>The server crashed on startup</li>
</ul>
<p style="color: #888;">The page will reload when the server is back.</p>
%s
</body>
</html>`
