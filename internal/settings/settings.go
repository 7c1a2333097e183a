// Package settings loads the configuration shared by the command line tools
// from an optional YAML file, CATALOGMODEL_ environment variables and
// defaults.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variable overrides, e.g. CATALOGMODEL_CATALOG_URL
const EnvPrefix = "CATALOGMODEL"

// Settings represents the tool configuration
type Settings struct {
	Catalog  CatalogSettings  `mapstructure:"catalog"`
	Sync     SyncSettings     `mapstructure:"sync"`
	Log      LogSettings      `mapstructure:"log"`
	Snapshot SnapshotSettings `mapstructure:"snapshot"`
}

// CatalogSettings addresses the remote catalog
type CatalogSettings struct {
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	Token   string        `mapstructure:"token"`
	Cookie  string        `mapstructure:"cookie"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// SyncSettings configures the ACL and annotation sync tools
type SyncSettings struct {
	Strict bool `mapstructure:"strict"`
}

// LogSettings configures logging
type LogSettings struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

// SnapshotSettings selects where model snapshots are kept. An empty Redis
// address selects the directory store.
type SnapshotSettings struct {
	Dir         string `mapstructure:"dir" validate:"required_without=RedisAddr"`
	RedisAddr   string `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPrefix string `mapstructure:"redis_prefix" validate:"required_with=RedisAddr"`
}

var validate = validator.New()

// Load reads settings. With an empty path, .catalogmodel.yaml is looked up
// in the working directory and then $HOME; a missing file is not an error.
// An explicit path must exist.
func Load(path string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("catalog.url", "")
	v.SetDefault("catalog.token", "")
	v.SetDefault("catalog.cookie", "")
	v.SetDefault("catalog.timeout", 30*time.Second)
	v.SetDefault("sync.strict", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("snapshot.dir", ".snapshots")
	v.SetDefault("snapshot.redis_addr", "")
	v.SetDefault("snapshot.redis_prefix", "catalogmodel:snapshot:")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".catalogmodel")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks field constraints and reports every failing field
func (s *Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", settingKey(fe.Namespace()), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// RequireCatalog reports a missing catalog URL for commands that talk to
// a remote catalog
func (s *Settings) RequireCatalog() error {
	if s.Catalog.URL == "" {
		return fmt.Errorf("catalog.url is required (set it in the config file, %s_CATALOG_URL or --catalog)", EnvPrefix)
	}
	return nil
}

// settingKey turns Settings.Catalog.URL into catalog.url
func settingKey(namespace string) string {
	parts := strings.Split(namespace, ".")[1:]
	for i, p := range parts {
		parts[i] = snakeCase(p)
	}
	return strings.Join(parts, ".")
}

func snakeCase(s string) string {
	switch s {
	case "URL":
		return "url"
	case "RedisAddr":
		return "redis_addr"
	case "RedisPrefix":
		return "redis_prefix"
	}
	return strings.ToLower(s)
}

// DefaultPath returns where Load looks for a config file in the home directory
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".catalogmodel.yaml"
	}
	return filepath.Join(home, ".catalogmodel.yaml")
}
