// Package config provides configuration management for tsuite.
//
// This package handles loading configuration from multiple sources:
//   - YAML configuration files
//   - Environment variables (with TS_ prefix)
//   - .env files
//   - Default values
//
// # Configuration Sources Priority
//
// Configuration is loaded in the following order (later sources override earlier ones):
//  1. Default values (hardcoded)
//  2. Configuration files (./config.yaml, ./configs/config.yaml, ~/.tsuite/config.yaml, /etc/tsuite/config.yaml)
//  3. .env files
//  4. Environment variables (TS_ prefix)
//
// # Usage Example
//
//	cfg, err := config.Load("tsuite.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Test set: %s from %s\n", cfg.Tests.TsetName, cfg.Tests.TsetDir)
//
// # Environment Variables
//
// Environment variables override all other configuration sources.
// Use TS_ prefix and underscores for nested keys:
//   - TS_TESTS_TSETNAME=nightly
//   - TS_SSH_USER=slash2
//   - TS_REPORT_ENABLED=true
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"evalgo.org/tsuite/models"
)

// Config is the root configuration structure for tsuite.
type Config struct {
	// TSuite contains local harness settings
	TSuite TSuiteConfig `mapstructure:"tsuite" yaml:"tsuite"`

	// Source locates the SLASH2 source checkout and its binaries
	Source SourceConfig `mapstructure:"source" yaml:"source"`

	// Slash2 locates the annotated SLASH2 configuration
	Slash2 Slash2Config `mapstructure:"slash2" yaml:"slash2"`

	// Tests describes the test set to run
	Tests TestsConfig `mapstructure:"tests" yaml:"tests"`

	// SSH contains remote connection settings
	SSH SSHConfig `mapstructure:"ssh" yaml:"ssh"`

	// Status contains status check settings
	Status StatusConfig `mapstructure:"status" yaml:"status"`

	// Daemons contains the commands stopping each role's daemons
	Daemons DaemonsConfig `mapstructure:"daemons" yaml:"daemons"`

	// Report contains report persistence settings
	Report ReportConfig `mapstructure:"report" yaml:"report"`

	// Server contains the status HTTP server configuration
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Logging contains logging settings
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// TSuiteConfig contains local harness settings.
type TSuiteConfig struct {
	// RootDir holds the per-run build roots (sltest.<n>)
	RootDir string `mapstructure:"rootdir" yaml:"rootdir" validate:"required"`

	// LockTimeout bounds the wait for the root dir lock
	LockTimeout time.Duration `mapstructure:"lock_timeout" yaml:"lock_timeout" validate:"gt=0"`
}

// SourceConfig locates the SLASH2 source checkout.
type SourceConfig struct {
	// SrcRoot is the root of the source checkout (%src%)
	SrcRoot string `mapstructure:"srcroot" yaml:"srcroot" validate:"required"`

	// Dirs overrides or extends the source path table
	Dirs map[string]string `mapstructure:"dirs" yaml:"dirs,omitempty"`
}

// Slash2Config locates the SLASH2 configuration.
type Slash2Config struct {
	// Conf is the path of the annotated slash.conf
	Conf string `mapstructure:"conf" yaml:"conf" validate:"required"`
}

// TestsConfig describes the test set.
type TestsConfig struct {
	// TsetDir holds the test modules
	TsetDir string `mapstructure:"tsetdir" yaml:"tsetdir" validate:"required"`

	// TsetName names the run and its detached session
	TsetName string `mapstructure:"tsetname" yaml:"tsetname" validate:"required,excludesall= /'\""`

	// Pattern selects test modules in TsetDir
	Pattern string `mapstructure:"pattern" yaml:"pattern" validate:"required"`

	// Handler is the local path of the remote execution handler
	Handler string `mapstructure:"handler" yaml:"handler" validate:"required"`

	// HandlerCommand launches the handler; {handler} and {payload} are substituted
	HandlerCommand string `mapstructure:"handler_command" yaml:"handler_command" validate:"required,contains={payload}"`

	// ResultsFile is the results artifact name under the mount dir
	ResultsFile string `mapstructure:"results_file" yaml:"results_file" validate:"required"`

	// PollInterval is how often running sessions are checked
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" validate:"gt=0"`
}

// SSHConfig contains remote connection settings.
type SSHConfig struct {
	// User is the remote login (default: $USER)
	User string `mapstructure:"user" yaml:"user"`

	// Port is the SSH port
	Port int `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`

	// KeyFiles are private keys offered for authentication
	KeyFiles []string `mapstructure:"key_files" yaml:"key_files"`

	// KnownHosts enables host key verification when set
	KnownHosts string `mapstructure:"known_hosts" yaml:"known_hosts"`

	// Timeout bounds connection setup
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`

	// DialRate limits new connections per second (0 = unlimited)
	DialRate float64 `mapstructure:"dial_rate" yaml:"dial_rate" validate:"gte=0"`

	// Concurrency bounds the hosts worked on at once (0 = all)
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" validate:"gte=0"`
}

// StatusConfig contains status check settings.
type StatusConfig struct {
	// CommandTimeout bounds every status command
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout" validate:"gt=0"`
}

// DaemonsConfig contains per-role daemon stop commands.
type DaemonsConfig struct {
	// Stop maps a role (client, mds, ion) to its stop command
	Stop map[string]string `mapstructure:"stop" yaml:"stop" validate:"dive,keys,oneof=client mds ion,endkeys"`
}

// StopCommands returns Stop keyed by resource kind.
func (d DaemonsConfig) StopCommands() map[models.Kind]string {
	out := make(map[models.Kind]string, len(d.Stop))
	for k, v := range d.Stop {
		out[models.Kind(k)] = v
	}
	return out
}

// ReportConfig contains report persistence settings.
type ReportConfig struct {
	// Enabled stores a report after every run
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Backend is couchdb or mongodb
	Backend string `mapstructure:"backend" yaml:"backend" validate:"oneof=couchdb mongodb"`

	// CouchDB contains CouchDB connection settings
	CouchDB CouchDBConfig `mapstructure:"couchdb" yaml:"couchdb"`

	// MongoDB contains MongoDB connection settings
	MongoDB MongoDBConfig `mapstructure:"mongodb" yaml:"mongodb"`
}

// CouchDBConfig contains CouchDB connection settings.
type CouchDBConfig struct {
	// URL is the CouchDB server URL (e.g., http://localhost:5984)
	URL string `mapstructure:"url" yaml:"url" validate:"omitempty,url"`

	// Database is the database name to use
	Database string `mapstructure:"database" yaml:"database"`

	// Username for CouchDB authentication
	Username string `mapstructure:"username" yaml:"username"`

	// Password for CouchDB authentication
	Password string `mapstructure:"password" yaml:"password"`
}

// MongoDBConfig contains MongoDB connection settings.
type MongoDBConfig struct {
	// URI is the connection string (e.g., mongodb://localhost:27017)
	URI string `mapstructure:"uri" yaml:"uri"`

	// Database is the database name
	Database string `mapstructure:"database" yaml:"database"`

	// Collection holds the run reports
	Collection string `mapstructure:"collection" yaml:"collection"`

	// Timeout bounds every database operation
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
}

// ServerConfig contains status HTTP server configuration.
type ServerConfig struct {
	// Host is the server bind address
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the server listen port
	Port int `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`

	// ReadTimeout is the maximum duration for reading requests
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing responses
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// ShutdownTimeout is the maximum duration for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// RateLimit is the maximum requests per second per client
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn warning error"`

	// Format is the log format (text, json)
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`

	// Output is stderr, stdout or a file path
	Output string `mapstructure:"output" yaml:"output"`

	// NoColor disables colored text output
	NoColor bool `mapstructure:"no_color" yaml:"no_color"`
}

// Load reads configuration from a file and environment variables.
// If cfgFile is empty, it searches for config.yaml in standard locations.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (TS_ prefix)
//  2. .env file
//  3. Configuration file
//  4. Default values
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.tsuite")
		v.AddConfigPath("/etc/tsuite")
	}

	if err := v.ReadInConfig(); err != nil {
		// an explicit file that does not exist falls back to defaults
		if cfgFile != "" {
			if !isFileNotFoundError(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		} else {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.MergeInConfig() // Ignore error if .env file doesn't exist

	v.SetEnvPrefix("TS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return decode(v)
}

// Defaults returns the configuration built from default values only.
func Defaults() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tsuite.rootdir", "/tmp/tsuite")
	v.SetDefault("tsuite.lock_timeout", "30s")

	v.SetDefault("source.srcroot", "/usr/local/src/projects")

	v.SetDefault("slash2.conf", "./slash.conf")

	v.SetDefault("tests.tsetdir", "./tests")
	v.SetDefault("tests.tsetname", "default")
	v.SetDefault("tests.pattern", "*.py")
	v.SetDefault("tests.handler", "./handlers/test_handle.py")
	v.SetDefault("tests.handler_command", "python {handler} {payload}")
	v.SetDefault("tests.results_file", "results.json")
	v.SetDefault("tests.poll_interval", "2s")

	v.SetDefault("ssh.port", 22)
	v.SetDefault("ssh.key_files", []string{"~/.ssh/id_rsa", "~/.ssh/id_ed25519"})
	v.SetDefault("ssh.timeout", "30s")
	v.SetDefault("ssh.dial_rate", 10)
	v.SetDefault("ssh.concurrency", 16)

	v.SetDefault("status.command_timeout", "2s")

	v.SetDefault("daemons.stop", map[string]string{
		"client": "sudo umount -l %mp%; sudo pkill -f mount_slash",
		"mds":    "sudo pkill -f slashd",
		"ion":    "sudo pkill -f sliod",
	})

	v.SetDefault("report.enabled", false)
	v.SetDefault("report.backend", "couchdb")
	v.SetDefault("report.couchdb.url", "http://localhost:5984")
	v.SetDefault("report.couchdb.database", "tsuite")
	v.SetDefault("report.couchdb.username", "admin")
	v.SetDefault("report.couchdb.password", "password")
	v.SetDefault("report.mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("report.mongodb.database", "tsuite")
	v.SetDefault("report.mongodb.collection", "tsets")
	v.SetDefault("report.mongodb.timeout", "10s")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8097)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit", 20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.no_color", false)
}

// isFileNotFoundError checks if an error is a file not found error.
func isFileNotFoundError(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr, os.ErrNotExist)
	}
	return false
}
