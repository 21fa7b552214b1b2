// Package config loads loomboard settings from flags, environment, .env and
// an optional .loomboard.yaml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configName = ".loomboard"
	envPrefix  = "LOOMBOARD"
)

// Config is the full application configuration.
type Config struct {
	DataDir string        `mapstructure:"data_dir"`
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
	Session SessionConfig `mapstructure:"session"`
	MCP     MCPConfig     `mapstructure:"mcp"`
	SiteURL string        `mapstructure:"site_url" validate:"omitempty,url"`
	Board   BoardConfig   `mapstructure:"board"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

type SessionConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// MCPConfig holds the token API service account. The MCP client reuses the
// token to call the server.
type MCPConfig struct {
	APIToken string `mapstructure:"api_token"`
	UserID   string `mapstructure:"user_id"`
}

type BoardConfig struct {
	Timezone         string        `mapstructure:"timezone" validate:"required"`
	AutoArchiveAfter time.Duration `mapstructure:"auto_archive_after" validate:"min=0"`
}

// Location resolves the board time zone.
func (b BoardConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("board.timezone: %w", err)
	}
	return loc, nil
}

var validate = validator.New()

// legacyEnv lists environment names accepted besides the LOOMBOARD_ ones.
var legacyEnv = map[string]string{
	"mcp.api_token": "MCP_API_TOKEN",
	"mcp.user_id":   "MCP_USER_ID",
	"site_url":      "CONVEX_SITE_URL",
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("session.issuer", "")
	v.SetDefault("board.timezone", "UTC")
	v.SetDefault("board.auto_archive_after", 7*24*time.Hour)
}

// Load reads .env, environment and the config file into v and returns the
// validated configuration. configFile may be empty to search the default
// locations (./.loomboard/, $HOME, .).
func Load(v *viper.Viper, configFile string) (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	// Keys only present in nested structs need an explicit binding for
	// Unmarshal to see their env values.
	for _, key := range []string{"data_dir", "log.level", "log.format", "server.addr", "session.secret", "session.issuer", "board.timezone", "board.auto_archive_after"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(configName)
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = ResolveDataDir()
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cfg.Board.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MissingError lists required keys that are unset for a command.
type MissingError struct {
	Command string
	Keys    []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s requires configuration: %s", e.Command, strings.Join(e.Keys, ", "))
}

// RequireServe checks the settings the HTTP server cannot start without.
func (c *Config) RequireServe() error {
	var missing []string
	if c.Session.Secret == "" {
		missing = append(missing, "session.secret")
	}
	if c.MCP.APIToken == "" {
		missing = append(missing, "mcp.api_token (MCP_API_TOKEN)")
	}
	if c.MCP.UserID == "" {
		missing = append(missing, "mcp.user_id (MCP_USER_ID)")
	}
	if len(missing) > 0 {
		return &MissingError{Command: "serve", Keys: missing}
	}
	return nil
}

// RequireMCP checks the settings the MCP tool server needs.
func (c *Config) RequireMCP() error {
	var missing []string
	if c.SiteURL == "" {
		missing = append(missing, "site_url (CONVEX_SITE_URL)")
	}
	if c.MCP.APIToken == "" {
		missing = append(missing, "mcp.api_token (MCP_API_TOKEN)")
	}
	if len(missing) > 0 {
		return &MissingError{Command: "mcp", Keys: missing}
	}
	return nil
}

// Watch reloads the config file on change and hands the new value to
// onChange. Invalid edits are reported through onError and ignored.
func Watch(v *viper.Viper, onChange func(*Config), onError func(error)) bool {
	if v.ConfigFileUsed() == "" {
		return false
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return true
}
