package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// WorkspaceDirName is the directory name for project-level ContainerNERD config.
	WorkspaceDirName = ".containernerd"
	// WorkspaceConfigFile is the config file name inside the workspace directory.
	WorkspaceConfigFile = "config.yaml"
	// MaxSearchDepth limits how many parent directories to walk when discovering a workspace.
	MaxSearchDepth = 10
)

// WorkspaceOptions controls workspace discovery behavior.
type WorkspaceOptions struct {
	// Disable skips workspace discovery entirely (--no-workspace flag).
	Disable bool
	// ExplicitDir uses this directory as workspace root instead of walking up (--workspace-dir flag).
	ExplicitDir string
}

// Config captures all tunable settings for the ContainerNERD MCP server.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Browser    BrowserConfig    `yaml:"browser"`
	MCP        MCPConfig        `yaml:"mcp"`
	Mangle     MangleConfig     `yaml:"mangle"`
	Containers ContainersConfig `yaml:"containers"`
	Recorder   RecorderConfig   `yaml:"recorder"`
}

type ServerConfig struct {
	Name    string `yaml:"name" validate:"required"`
	Version string `yaml:"version"`
	LogFile string `yaml:"log_file"`
}

// BrowserConfig configures how we attach to or launch Chrome for Rod.
type BrowserConfig struct {
	// Control endpoint for Rod (e.g., ws://localhost:9222). Required when launch is empty.
	DebuggerURL string `yaml:"debugger_url"`
	// Optional launch command to start Chrome (e.g., ["chrome", "--remote-debugging-port=9222"]).
	Launch []string `yaml:"launch"`
	// AutoStart controls whether the server launches/attaches to Chrome at startup.
	AutoStart bool `yaml:"auto_start"`
	// Headless controls whether Chrome runs in headless mode (default: true).
	Headless *bool `yaml:"headless"`
	// Timeout for a single CDP call such as a tab query or close (e.g., "10s").
	DefaultCallTimeout string `yaml:"default_call_timeout"`
	// Maximum number of tabs closed concurrently during a deletion.
	CloseConcurrency int `yaml:"close_concurrency" validate:"gte=0,lte=64"`
}

type MCPConfig struct {
	// When set, starts an SSE server on this port instead of stdio-only.
	SSEPort int `yaml:"sse_port" validate:"gte=0,lte=65535"`
	// Serve Prometheus metrics at /metrics alongside the SSE endpoints.
	Metrics bool `yaml:"metrics"`
}

// MangleConfig controls the embedded deductive engine that records deletion facts.
type MangleConfig struct {
	Enable          bool   `yaml:"enable"`
	SchemaPath      string `yaml:"schema_path"`
	FactBufferLimit int    `yaml:"fact_buffer_limit" validate:"gte=0"`
}

// ContainersConfig controls how gestures are mapped onto containers and where
// the container registry is persisted.
type ContainersConfig struct {
	// Attribute carrying the container identifier on UI elements.
	IDAttribute string `yaml:"id_attribute"`
	// Attribute carrying the display name on UI elements.
	NameAttribute string `yaml:"name_attribute"`
	// Class that marks the element enclosing one container's controls.
	SectionClass string `yaml:"section_class"`
	// Upper bound on the ancestor walk when the gesture target lacks an identifier.
	MaxAncestorDepth int `yaml:"max_ancestor_depth" validate:"gte=0,lte=256"`
	// Optional path to persist container names between restarts.
	RegistryStore string `yaml:"registry_store"`
}

// RecorderConfig controls the JSONL audit trail of deletion attempts.
type RecorderConfig struct {
	Enable bool   `yaml:"enable"`
	Dir    string `yaml:"dir"`
	Keep   int    `yaml:"keep" validate:"gte=0"`
}

// DefaultConfig provides reasonable defaults for local development.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:    "containernerd-mcp",
			Version: "0.1.0",
			LogFile: "containernerd-mcp.log",
		},
		Browser: BrowserConfig{
			AutoStart:          true,
			DefaultCallTimeout: "10s",
			CloseConcurrency:   4,
		},
		MCP: MCPConfig{
			SSEPort: 0,
			Metrics: true,
		},
		Mangle: MangleConfig{
			Enable:          true,
			SchemaPath:      "schemas/containers.mg",
			FactBufferLimit: 2048,
		},
		Containers: ContainersConfig{
			IDAttribute:      "data-container-id",
			NameAttribute:    "data-container-name",
			SectionClass:     "container-section",
			MaxAncestorDepth: 32,
			RegistryStore:    "containers.json",
		},
		Recorder: RecorderConfig{
			Enable: true,
			Dir:    "data/audit",
			Keep:   3,
		},
	}
}

// Load reads YAML config from disk and overlays defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, errors.New("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// DiscoverWorkspace walks up from startDir looking for a .containernerd/config.yaml file.
// Returns the workspace root directory (parent of .containernerd/) or empty string if not found.
func DiscoverWorkspace(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving start directory: %w", err)
	}

	for i := 0; i < MaxSearchDepth; i++ {
		candidate := filepath.Join(dir, WorkspaceDirName, WorkspaceConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// LoadWithWorkspace implements multi-layer config merge:
//
//	DefaultConfig() <- .containernerd/config.yaml <- explicit --config <- CLI flags
//
// Returns the merged config and the workspace directory (empty if none found).
func LoadWithWorkspace(explicitConfig string, opts WorkspaceOptions) (Config, string, error) {
	cfg := DefaultConfig()
	wsDir := ""

	if !opts.Disable {
		if opts.ExplicitDir != "" {
			candidate := filepath.Join(opts.ExplicitDir, WorkspaceDirName, WorkspaceConfigFile)
			if _, statErr := os.Stat(candidate); statErr == nil {
				wsDir = opts.ExplicitDir
			}
		} else {
			cwd, err := os.Getwd()
			if err != nil {
				return cfg, "", fmt.Errorf("getting working directory: %w", err)
			}
			wsDir, err = DiscoverWorkspace(cwd)
			if err != nil {
				return cfg, "", fmt.Errorf("discovering workspace: %w", err)
			}
		}

		if wsDir != "" {
			wsConfigPath := filepath.Join(wsDir, WorkspaceDirName, WorkspaceConfigFile)
			raw, err := os.ReadFile(wsConfigPath)
			if err != nil {
				return cfg, "", fmt.Errorf("reading workspace config %s: %w", wsConfigPath, err)
			}
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, "", fmt.Errorf("parsing workspace config %s: %w", wsConfigPath, err)
			}
			cfg = resolveWorkspacePaths(cfg, wsDir)
		}
	}

	if explicitConfig != "" {
		raw, err := os.ReadFile(explicitConfig)
		if err != nil {
			return cfg, wsDir, fmt.Errorf("reading explicit config %s: %w", explicitConfig, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, wsDir, fmt.Errorf("parsing explicit config %s: %w", explicitConfig, err)
		}
	}

	return cfg, wsDir, cfg.Validate()
}

// InitWorkspace creates a .containernerd/ directory with template files at root.
func InitWorkspace(root string) error {
	wsDir := filepath.Join(root, WorkspaceDirName)

	if _, err := os.Stat(wsDir); err == nil {
		return fmt.Errorf("workspace directory already exists: %s", wsDir)
	}

	for _, d := range []string{wsDir, filepath.Join(wsDir, "data")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	templateConfig := `# ContainerNERD project-level configuration
# Values here override defaults but are overridden by --config and CLI flags.

# browser:
#   debugger_url: "ws://localhost:9222"
#   close_concurrency: 4

# containers:
#   id_attribute: "data-container-id"
#   section_class: "container-section"
#   registry_store: "data/containers.json"

# recorder:
#   dir: "data/audit"
`
	configPath := filepath.Join(wsDir, WorkspaceConfigFile)
	if err := os.WriteFile(configPath, []byte(templateConfig), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	gitignore := "# Runtime data (registry, audit trail) - do not version control\ndata/\n"
	if err := os.WriteFile(filepath.Join(wsDir, ".gitignore"), []byte(gitignore), 0644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	return nil
}

// resolveWorkspacePaths resolves relative paths in the config against the workspace directory.
func resolveWorkspacePaths(cfg Config, wsDir string) Config {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(wsDir, p)
	}

	cfg.Server.LogFile = resolve(cfg.Server.LogFile)
	cfg.Mangle.SchemaPath = resolve(cfg.Mangle.SchemaPath)
	cfg.Containers.RegistryStore = resolve(cfg.Containers.RegistryStore)
	cfg.Recorder.Dir = resolve(cfg.Recorder.Dir)
	return cfg
}

var validate = validator.New()

// Validate ensures required fields exist so the server can start deterministically.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Browser.AutoStart {
		if c.Browser.DebuggerURL == "" && len(c.Browser.Launch) == 0 {
			return errors.New("browser.debugger_url or browser.launch must be provided")
		}
	}
	return nil
}

// CallTimeout returns the parsed CDP call timeout with a sane default.
func (b BrowserConfig) CallTimeout() time.Duration {
	if b.DefaultCallTimeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(b.DefaultCallTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// IsHeadless returns whether Chrome should run in headless mode (default: true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true
	}
	return *b.Headless
}

// GetCloseConcurrency returns how many tabs may be closed at once (default: 4).
func (b BrowserConfig) GetCloseConcurrency() int {
	if b.CloseConcurrency <= 0 {
		return 4
	}
	return b.CloseConcurrency
}

// GetKeep returns how many audit files to keep (default: 3).
func (r RecorderConfig) GetKeep() int {
	if r.Keep <= 0 {
		return 3
	}
	return r.Keep
}
