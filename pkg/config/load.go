package config

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is koharu's on-disk configuration. It controls asset storage,
// model device placement, and the debug console.
type Config struct {
	General GeneralConfig `toml:"general"`
	Assets  AssetsConfig  `toml:"assets"`
	Debug   DebugConfig   `toml:"debug"`
}

// GeneralConfig holds process-wide settings.
type GeneralConfig struct {
	LogLevel   string `toml:"log_level"`
	CacheDir   string `toml:"cache_dir"`
	PreferCPU  bool   `toml:"prefer_cpu"`
}

// AssetsConfig controls model weight provisioning (fetch mirrors, manifest
// store location, verification).
type AssetsConfig struct {
	MirrorURLs    []string `toml:"mirror_urls"`
	ManifestPath  string   `toml:"manifest_path"`
	SegmentSizeMB int      `toml:"segment_size_mb"`
	FetchTimeout  Duration `toml:"fetch_timeout"`
}

// DebugConfig controls the optional terminal debug console.
type DebugConfig struct {
	Enabled        bool     `toml:"enabled"`
	Theme          string   `toml:"theme"`
	RefreshInterval Duration `toml:"refresh_interval"`
}

// Load reads configuration from the standard config path.
// Search order:
//  1. $XDG_CONFIG_HOME/koharu/config.toml
//  2. ~/.config/koharu/config.toml
//
// If no file exists, returns DefaultConfig().
func Load() (*Config, error) {
	paths := configSearchPaths()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return LoadFromFile(p)
		}
	}
	return DefaultConfig(), nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader reads configuration from an io.Reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// DefaultConfig returns the default configuration with sensible defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	cacheDir := filepath.Join(xdgCacheHome(home), "koharu")

	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
			CacheDir: cacheDir,
		},
		Assets: AssetsConfig{
			ManifestPath:  filepath.Join(cacheDir, "manifest.db"),
			SegmentSizeMB: 16,
			FetchTimeout:  Duration{30 * time.Second},
		},
		Debug: DebugConfig{
			Theme:           "default",
			RefreshInterval: Duration{500 * time.Millisecond},
		},
	}
}

// applyEnvOverrides checks environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KOHARU_LOG_LEVEL"); v != "" {
		cfg.General.LogLevel = v
	}
	if v := os.Getenv("KOHARU_CACHE_DIR"); v != "" {
		cfg.General.CacheDir = v
	}
	if v := os.Getenv("KOHARU_PREFER_CPU"); v != "" {
		cfg.General.PreferCPU = v == "1" || v == "true"
	}
	if v := os.Getenv("KOHARU_DEBUG_THEME"); v != "" {
		cfg.Debug.Theme = v
	}
}

// configSearchPaths returns the ordered list of config file paths to try.
func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	var paths []string

	xdg := xdgConfigHome(home)
	paths = append(paths, filepath.Join(xdg, "koharu", "config.toml"))

	defaultXDG := filepath.Join(home, ".config")
	if xdg != defaultXDG {
		paths = append(paths, filepath.Join(defaultXDG, "koharu", "config.toml"))
	}

	return paths
}

// xdgConfigHome returns XDG_CONFIG_HOME or ~/.config as fallback.
func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}

// xdgCacheHome returns XDG_CACHE_HOME or ~/.cache as fallback.
func xdgCacheHome(home string) string {
	if v := os.Getenv("XDG_CACHE_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".cache")
}
