// Package config loads the davbridge application configuration from a
// TOML file and DAVBRIDGE_* environment variables via viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/davbridge/davbridge/internal/cmderr"
	"github.com/davbridge/davbridge/internal/logger"
)

const (
	// DefaultPort is the canonical local WebDAV endpoint port.
	DefaultPort = 12345

	// DefaultListen is the loopback address of the control API.
	DefaultListen = "127.0.0.1:8422"
)

// Config is the top-level davbridge.toml structure.
type Config struct {
	SidecarPath string        `toml:"sidecar_path" mapstructure:"sidecar_path"` // explicit sidecar binary path; PATH lookup of webdav-bridge otherwise
	Port        int           `toml:"port" mapstructure:"port"`                 // WebDAV endpoint port passed to the sidecar
	Listen      string        `toml:"listen" mapstructure:"listen"`             // control API bind address
	HistoryDSN  string        `toml:"history_dsn" mapstructure:"history_dsn"`   // optional event history sink DSN
	AutoStart   bool          `toml:"auto_start" mapstructure:"auto_start"`     // start the sidecar when serving begins
	Log         logger.Config `toml:"log" mapstructure:"log"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Port:   DefaultPort,
		Listen: DefaultListen,
		Log:    logger.Config{Color: true},
	}
}

// Load reads configuration from path. When path is empty the standard
// locations are searched ($XDG_CONFIG_HOME/davbridge, then the current
// directory); a missing file yields Default.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("DAVBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", DefaultPort)
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("log.color", true)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("davbridge")
		if dir := configDir(); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !asConfigNotFound(err, &nf) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := ValidatePort(c.Port); err != nil {
		return Config{}, err
	}
	return c, nil
}

// ValidatePort rejects ports outside the valid TCP range.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return cmderr.Newf(cmderr.CodeInvalidPort, "%d is outside 1-65535", port)
	}
	return nil
}

func configDir() string {
	if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
		return filepath.Join(x, "davbridge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "davbridge")
}

func asConfigNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	nf, ok := err.(viper.ConfigFileNotFoundError)
	if ok {
		*target = nf
	}
	return ok
}
