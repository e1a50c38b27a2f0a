package serv

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dosco/docorm/core"
	"github.com/dosco/docorm/serv/internal/util"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override config
// values. Nested keys are separated by a double underscore, for example
// DOCORM_CONNECTIONS__DEFAULT__URI.
const EnvPrefix = "DOCORM_"

type Core = core.Config

// Configuration for the docorm service and CLI
type Config struct {
	// Configuration for the query builder
	Core `mapstructure:",squash" yaml:",inline" jsonschema:"title=Query Builder Configuration"`

	// Configuration for the service
	Serv `mapstructure:",squash" yaml:",inline" jsonschema:"title=Service Configuration"`

	viper *viper.Viper
}

// Configuration for the service
type Serv struct {
	// Application name is used in log messages and sent to the server
	AppName string `mapstructure:"app_name" yaml:"app_name" jsonschema:"title=Application Name"`

	// When enabled logs default to JSON
	Production bool `yaml:"production" jsonschema:"title=Production Mode,default=false"`

	// The default path to find all configuration files
	ConfigPath string `mapstructure:"config_path" yaml:"config_path,omitempty" jsonschema:"title=Config Path"`

	// Logging level must be one of debug, error, warn, info
	LogLevel string `mapstructure:"log_level" yaml:"log_level" jsonschema:"title=Log Level,enum=debug,enum=error,enum=warn,enum=info" validate:"omitempty,oneof=debug error warn info"`

	// Logging Format: "auto" (JSON in production, colored console
	// otherwise), "json" or "simple"
	LogFormat string `mapstructure:"log_format" yaml:"log_format" jsonschema:"title=Logging Format,enum=auto,enum=json,enum=simple" validate:"omitempty,oneof=auto json simple"`

	// Number of attempts made to reach each connection at startup
	ConnectRetries uint `mapstructure:"connect_retries" yaml:"connect_retries" jsonschema:"title=Connect Retries,default=5" validate:"gte=1"`

	// Named MongoDB connections. The one named by the connection setting
	// is used by schemas that do not pick their own
	Connections map[string]Connection `mapstructure:"connections" yaml:"connections" jsonschema:"title=Connections" validate:"required,dive"`

	// File with the fixtures loaded by the db seed command
	SeedFile string `mapstructure:"seed_file" yaml:"seed_file" jsonschema:"title=Seed File"`
}

// Connection configures one MongoDB client
type Connection struct {
	// MongoDB connection string, mongodb:// or mongodb+srv://
	URI string `mapstructure:"uri" yaml:"uri" jsonschema:"title=Connection URI" validate:"required,startswith=mongodb"`

	// Default database of the connection
	Database string `mapstructure:"database" yaml:"database" jsonschema:"title=Database Name"`

	// Max time allowed to establish a connection
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout" jsonschema:"title=Connect Timeout"`

	// Database ping timeout is used for health checking
	PingTimeout time.Duration `mapstructure:"ping_timeout" yaml:"ping_timeout" jsonschema:"title=Healthcheck Ping Timeout"`

	// Size of the client connection pool
	MaxPoolSize uint64 `mapstructure:"max_pool_size" yaml:"max_pool_size" jsonschema:"title=Max Pool Size"`

	// Set up a secure TLS encrypted connection
	EnableTLS bool `mapstructure:"enable_tls" yaml:"enable_tls" jsonschema:"title=Enable TLS"`

	// Required for TLS
	ServerName string `mapstructure:"server_name" yaml:"server_name,omitempty" jsonschema:"title=TLS Server Name"`

	// Required for TLS. Can be a file path or the contents of the PEM file
	ServerCert string `mapstructure:"server_cert" yaml:"server_cert,omitempty" jsonschema:"title=Server Certificate"`

	// Can be a file path or the contents of the PEM file
	ClientCert string `mapstructure:"client_cert" yaml:"client_cert,omitempty" jsonschema:"title=Client Certificate"`

	// Required with a client certificate. Can be a file path or the
	// contents of the PEM file
	ClientKey string `mapstructure:"client_key" yaml:"client_key,omitempty" jsonschema:"title=Client Key"`
}

// ReadInConfig reads in the config file for the environment specified in
// the GO_ENV environment variable.
func ReadInConfig(configFile string) (*Config, error) {
	return readInConfig(configFile, nil)
}

// ReadInConfigFS is the same as ReadInConfig but reads from fs
func ReadInConfigFS(configFile string, fs afero.Fs) (*Config, error) {
	return readInConfig(configFile, fs)
}

func readInConfig(configFile string, fs afero.Fs) (*Config, error) {
	cp := filepath.Dir(configFile)
	vi := newViper(cp, filepath.Base(configFile))

	if fs != nil {
		vi.SetFs(fs)
	}

	if err := vi.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading config %s", configFile)
	}

	if pcf := vi.GetString("inherits"); pcf != "" {
		cf := vi.ConfigFileUsed()
		vi = newViper(cp, pcf)
		if fs != nil {
			vi.SetFs(fs)
		}

		if err := vi.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading inherited config %s", pcf)
		}

		if value := vi.GetString("inherits"); value != "" {
			return nil, errors.Errorf("inherited config '%s' cannot itself inherit '%s'", pcf, value)
		}

		vi.SetConfigFile(cf)

		if err := vi.MergeInConfig(); err != nil {
			return nil, errors.Wrap(err, "merging config")
		}
	}

	c, err := decode(vi)
	if err != nil {
		return nil, err
	}
	c.ConfigPath = cp
	return c, nil
}

// NewConfig creates a configuration from the provided config string
func NewConfig(config, format string) (*Config, error) {
	if format == "" {
		format = "yaml"
	}

	vi := newViperWithDefaults()
	vi.SetConfigType(format)

	if err := vi.ReadConfig(strings.NewReader(config)); err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	return decode(vi)
}

func decode(vi *viper.Viper) (*Config, error) {
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, EnvPrefix) {
			kv := strings.SplitN(e, "=", 2)
			util.SetKeyValue(vi, strings.TrimPrefix(kv[0], EnvPrefix), kv[1])
		}
	}

	c := &Config{viper: vi}
	if err := vi.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}

	c.Core.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

var validate = validator.New()

// Validate checks the service settings and the query builder settings.
func (c *Config) Validate() error {
	if err := c.Core.Validate(); err != nil {
		return err
	}
	if err := validate.Struct(&c.Serv); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if _, ok := c.Connections[c.Core.Connection]; !ok {
		return errors.Errorf("invalid config: connection %q is not defined", c.Core.Connection)
	}
	return nil
}

// newViperWithDefaults returns a new viper instance with the default settings
func newViperWithDefaults() *viper.Viper {
	vi := viper.New()

	vi.SetDefault("app_name", "docorm")
	vi.SetDefault("log_level", "info")
	vi.SetDefault("log_format", "auto")
	vi.SetDefault("connect_retries", 5)
	vi.SetDefault("seed_file", "seed.yml")

	vi.SetDefault("connection", core.DefaultConnection)
	vi.SetDefault("transaction_retries", 0)

	vi.SetDefault("env", "development")
	vi.BindEnv("env", "GO_ENV") //nolint:errcheck

	return vi
}

// newViper returns a new viper instance reading configFile from configPath
func newViper(configPath, configFile string) *viper.Viper {
	vi := newViperWithDefaults()
	vi.SetConfigName(strings.TrimSuffix(configFile, filepath.Ext(configFile)))

	if configPath == "" {
		vi.AddConfigPath("./config")
	} else {
		vi.AddConfigPath(configPath)
	}

	return vi
}

// AbsolutePath returns the absolute path of the file
func (c *Config) AbsolutePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ConfigPath, p)
}

// Settings returns every setting as loaded, before decoding. Values
// from the environment are included.
func (c *Config) Settings() map[string]any {
	if c.viper == nil {
		return nil
	}
	return c.viper.AllSettings()
}

// ConnectionNames returns the configured connection names in sorted order
func (c *Config) ConnectionNames() []string {
	names := make([]string, 0, len(c.Connections))
	for n := range c.Connections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ShouldUseJSONLogs returns true if log_format is "json" or if it is
// "auto" and production mode is enabled.
func (c *Config) ShouldUseJSONLogs() bool {
	if c.LogFormat == "json" {
		return true
	}
	if c.LogFormat == "auto" && c.Serv.Production {
		return true
	}
	return false
}

// GetConfigName returns the name of the configuration
func GetConfigName() string {
	goEnv := strings.TrimSpace(strings.ToLower(os.Getenv("GO_ENV")))

	switch goEnv {
	case "production", "prod":
		return "prod"

	case "staging", "stage":
		return "stage"

	case "testing", "test":
		return "test"

	case "development", "dev", "":
		return "dev"

	default:
		return goEnv
	}
}
