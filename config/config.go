// Package config loads cstage.toml and applies environment overrides.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pelletier/go-toml/v2"
	"tlog.app/go/errors"
)

// FileName is the config file looked up in the working directory.
const FileName = "cstage.toml"

// Environment overrides.
const (
	EnvConfig    = "CSTAGE_CONFIG"
	EnvAddr      = "CSTAGE_ADDR"
	EnvWorkDir   = "CSTAGE_WORKDIR"
	EnvLLC       = "CSTAGE_LLC"
	EnvLLI       = "CSTAGE_LLI"
	EnvServerURL = "CSTAGE_SERVER_URL"
)

type Config struct {
	Server   Server   `toml:"server"`
	Client   Client   `toml:"client"`
	Exec     Exec     `toml:"exec"`
	Frontend Frontend `toml:"frontend"`
}

// Server configures the compilation service.
type Server struct {
	Addr         string   `toml:"addr"`
	WorkDir      string   `toml:"work_dir"`
	LLC          string   `toml:"llc"`
	LLCArgs      []string `toml:"llc_args"`
	Timeout      Duration `toml:"timeout"`
	MaxBodyBytes int64    `toml:"max_body_bytes"`
	AllowOrigin  string   `toml:"allow_origin"`
	StaleAfter   Duration `toml:"stale_after"`
}

// Client configures how the pipeline reaches the service.
type Client struct {
	URL     string   `toml:"url"`
	Timeout Duration `toml:"timeout"`
	Retries int      `toml:"retries"`
}

// Exec configures running optimized IR with lli.
type Exec struct {
	Enabled bool     `toml:"enabled"`
	LLI     string   `toml:"lli"`
	Timeout Duration `toml:"timeout"`
}

// Frontend configures the in-process stages.
type Frontend struct {
	Passes string `toml:"passes"`
}

// Duration is a time.Duration written as a string such as "30s".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return errors.Wrap(err, "duration")
	}
	d.Duration = v
	return nil
}

func Default() *Config {
	return &Config{
		Server: Server{
			Addr:         ":3000",
			WorkDir:      defaultWorkDir(),
			LLC:          "llc",
			LLCArgs:      []string{},
			Timeout:      Duration{30 * time.Second},
			MaxBodyBytes: 4 << 20,
			AllowOrigin:  "*",
			StaleAfter:   Duration{time.Hour},
		},
		Client: Client{
			URL:     "http://localhost:3000",
			Timeout: Duration{30 * time.Second},
			Retries: 1,
		},
		Exec: Exec{
			Enabled: true,
			LLI:     "lli",
			Timeout: Duration{10 * time.Second},
		},
		Frontend: Frontend{
			Passes: "default<O2>",
		},
	}
}

// defaultWorkDir picks the per-OS cache directory for working contexts.
func defaultWorkDir() string {
	homeDir, _ := os.UserHomeDir()
	var cache string
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LocalAppData"); localAppData != "" {
			return filepath.Join(localAppData, "cstage", "work")
		}
		cache = filepath.Join(homeDir, "AppData", "Local")
	case "darwin":
		cache = filepath.Join(homeDir, "Library", "Caches")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "cstage", "work")
		}
		cache = filepath.Join(homeDir, ".cache")
	}
	return filepath.Join(cache, "cstage", "work")
}

// Load reads the config at path. An empty path falls back to $CSTAGE_CONFIG
// and then to ./cstage.toml; only an explicitly named file must exist.
// Environment overrides are applied last and the result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := true
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		path, explicit = FileName, false
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse %s", path)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, errors.Wrap(err, "read config")
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{EnvAddr, &c.Server.Addr},
		{EnvWorkDir, &c.Server.WorkDir},
		{EnvLLC, &c.Server.LLC},
		{EnvLLI, &c.Exec.LLI},
		{EnvServerURL, &c.Client.URL},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch {
	case c.Server.Addr == "":
		return errors.New("server.addr is empty")
	case c.Server.WorkDir == "":
		return errors.New("server.work_dir is empty")
	case c.Server.LLC == "":
		return errors.New("server.llc is empty")
	case c.Server.Timeout.Duration <= 0:
		return errors.New("server.timeout must be positive")
	case c.Server.MaxBodyBytes <= 0:
		return errors.New("server.max_body_bytes must be positive")
	case c.Server.StaleAfter.Duration <= 0:
		return errors.New("server.stale_after must be positive")
	case c.Client.URL == "":
		return errors.New("client.url is empty")
	case c.Client.Timeout.Duration <= 0:
		return errors.New("client.timeout must be positive")
	case c.Client.Retries < 0 || c.Client.Retries > 1:
		return errors.New("client.retries must be 0 or 1, got %d", c.Client.Retries)
	case c.Exec.Enabled && c.Exec.LLI == "":
		return errors.New("exec.lli is empty")
	case c.Exec.Enabled && c.Exec.Timeout.Duration <= 0:
		return errors.New("exec.timeout must be positive")
	}
	return nil
}

// Marshal renders c as TOML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "marshal config")
	}
	return data, nil
}

// Save writes c to path.
func Save(path string, c *Config) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "write config")
	}
	return nil
}
