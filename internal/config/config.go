package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/loom-dev/loom/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "loom.json"

	// DefaultPort is the default development server port.
	DefaultPort = 3000

	// DefaultHost is the default development server host.
	DefaultHost = "localhost"

	// DefaultOutput is the default build output directory.
	DefaultOutput = "dist"

	// DefaultDebounce is the default change coalescing window.
	DefaultDebounce = 100 * time.Millisecond

	// DefaultStopGrace is the default graceful-stop period before the
	// supervised server process is force-terminated.
	DefaultStopGrace = 5 * time.Second
)

// Config represents the complete loom.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Version is the project version.
	Version string `json:"version,omitempty"`

	// Paths contains the source tree layout.
	Paths PathsConfig `json:"paths,omitempty"`

	// Dev contains development server configuration.
	Dev DevConfig `json:"dev,omitempty"`

	// Build contains build configuration.
	Build BuildConfig `json:"build,omitempty"`

	// Style contains style processing configuration.
	Style StyleConfig `json:"style,omitempty"`

	// Publish contains artifact publishing configuration.
	Publish PublishConfig `json:"publish,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// PathsConfig describes where the UI, server, style, and asset sources live,
// relative to the project root.
type PathsConfig struct {
	// UI is the package directory compiled to WebAssembly.
	UI string `json:"ui,omitempty"`

	// Server is the package directory compiled to the native server binary.
	Server string `json:"server,omitempty"`

	// Styles is the directory holding style sources.
	Styles string `json:"styles,omitempty"`

	// Assets is the directory holding static assets.
	Assets string `json:"assets,omitempty"`
}

// DevConfig contains development server settings.
type DevConfig struct {
	// Port is the port to run the dev server on.
	Port int `json:"port,omitempty"`

	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// AppPort is the port the supervised server process listens on.
	// Defaults to Port+1.
	AppPort int `json:"appPort,omitempty"`

	// Proxy contains proxy rules for forwarding requests to external targets.
	Proxy map[string]string `json:"proxy,omitempty"`

	// Watch contains additional paths to watch for changes.
	Watch []string `json:"watch,omitempty"`

	// Ignore contains patterns to ignore during watch.
	Ignore []string `json:"ignore,omitempty"`

	// Debounce is the change coalescing window (e.g. "100ms").
	Debounce string `json:"debounce,omitempty"`

	// StopGrace is how long to wait for the server process to stop
	// gracefully before killing it (e.g. "5s").
	StopGrace string `json:"stopGrace,omitempty"`

	// HotReload enables browser reload notifications.
	HotReload bool `json:"hotReload,omitempty"`
}

// BuildConfig contains build settings.
type BuildConfig struct {
	// Output is the output directory for builds.
	Output string `json:"output,omitempty"`

	// Release enables release mode: stripped symbols and trimmed paths.
	Release bool `json:"release,omitempty"`

	// LDFlags are additional linker flags for go build.
	LDFlags string `json:"ldflags,omitempty"`

	// Tags are build tags to pass to go build.
	Tags []string `json:"tags,omitempty"`
}

// StyleConfig contains style processor settings.
type StyleConfig struct {
	// Command is the external style processor invocation. The entry file
	// path and the output path are appended as the final two arguments.
	// When empty the entry file is copied into the output unchanged.
	Command []string `json:"command,omitempty"`

	// Entry is the entry style file, relative to the styles directory.
	Entry string `json:"entry,omitempty"`
}

// PublishConfig contains artifact publishing settings.
type PublishConfig struct {
	// Bucket is the S3 bucket artifacts are uploaded to.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is the object key prefix within the bucket.
	Prefix string `json:"prefix,omitempty"`

	// Region is the bucket's region.
	Region string `json:"region,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Version: "0.1.0",
		Paths: PathsConfig{
			UI:     "ui",
			Server: "server",
			Styles: "styles",
			Assets: "assets",
		},
		Dev: DevConfig{
			Port:      DefaultPort,
			Host:      DefaultHost,
			HotReload: true,
			Debounce:  DefaultDebounce.String(),
			StopGrace: DefaultStopGrace.String(),
		},
		Build: BuildConfig{
			Output: DefaultOutput,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for loom.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E101").
				WithDetail("No loom.json found in " + filepath.Dir(path)).
				WithSuggestion("Create a loom.json describing the project layout")
		}
		return nil, errors.New("E102").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E102").
			WithDetail("Failed to parse loom.json: " + err.Error()).
			WithSuggestion("Check that loom.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E102").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E102").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Dev.Port == 0 {
		c.Dev.Port = DefaultPort
	}
	if c.Dev.Host == "" {
		c.Dev.Host = DefaultHost
	}
	if c.Dev.AppPort == 0 {
		c.Dev.AppPort = c.Dev.Port + 1
	}
	if c.Dev.Debounce == "" {
		c.Dev.Debounce = DefaultDebounce.String()
	}
	if c.Dev.StopGrace == "" {
		c.Dev.StopGrace = DefaultStopGrace.String()
	}
	if c.Build.Output == "" {
		c.Build.Output = DefaultOutput
	}
	if c.Paths.UI == "" {
		c.Paths.UI = "ui"
	}
	if c.Paths.Server == "" {
		c.Paths.Server = "server"
	}
	if c.Paths.Styles == "" {
		c.Paths.Styles = "styles"
	}
	if c.Paths.Assets == "" {
		c.Paths.Assets = "assets"
	}
	if c.Style.Entry == "" {
		c.Style.Entry = "main.css"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Dev.Port < 0 || c.Dev.Port > 65535 {
		return errors.New("E103").
			WithDetail("dev.port must be between 0 and 65535")
	}
	if _, err := time.ParseDuration(c.Dev.Debounce); err != nil {
		return errors.New("E103").
			WithDetail("dev.debounce is not a valid duration: " + c.Dev.Debounce)
	}
	if _, err := time.ParseDuration(c.Dev.StopGrace); err != nil {
		return errors.New("E103").
			WithDetail("dev.stopGrace is not a valid duration: " + c.Dev.StopGrace)
	}
	return nil
}

// DebounceWindow returns the change coalescing window.
func (c *Config) DebounceWindow() time.Duration {
	d, err := time.ParseDuration(c.Dev.Debounce)
	if err != nil || d <= 0 {
		return DefaultDebounce
	}
	return d
}

// StopGrace returns the graceful-stop period for the server process.
func (c *Config) StopGrace() time.Duration {
	d, err := time.ParseDuration(c.Dev.StopGrace)
	if err != nil || d <= 0 {
		return DefaultStopGrace
	}
	return d
}

// DevAddress returns the address string for the dev server.
func (c *Config) DevAddress() string {
	return c.Dev.Host + ":" + strconv.Itoa(c.Dev.Port)
}

// DevURL returns the full URL for the dev server.
func (c *Config) DevURL() string {
	return "http://" + c.DevAddress()
}

// OutputPath returns the absolute path to the build output directory.
func (c *Config) OutputPath() string {
	return c.resolve(c.Build.Output)
}

// UIPath returns the absolute path to the UI package directory.
func (c *Config) UIPath() string {
	return c.resolve(c.Paths.UI)
}

// ServerPath returns the absolute path to the server package directory.
func (c *Config) ServerPath() string {
	return c.resolve(c.Paths.Server)
}

// StylesPath returns the absolute path to the styles directory.
func (c *Config) StylesPath() string {
	return c.resolve(c.Paths.Styles)
}

// AssetsPath returns the absolute path to the assets directory.
func (c *Config) AssetsPath() string {
	return c.resolve(c.Paths.Assets)
}

// WatchRoots returns the set of directories the watcher subscribes to:
// the source trees plus any extra configured watch paths, deduplicated.
func (c *Config) WatchRoots() []string {
	paths := []string{
		c.UIPath(),
		c.ServerPath(),
		c.StylesPath(),
		c.AssetsPath(),
	}
	for _, p := range c.Dev.Watch {
		paths = append(paths, c.resolve(p))
	}

	unique := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		clean := filepath.Clean(p)
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		unique = append(unique, clean)
	}
	return unique
}

func (c *Config) resolve(path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing loom.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E101").
				WithDetail("No loom.json found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
