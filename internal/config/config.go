// Package config reads erpsite settings from flags, environment variables
// and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by Load. Dashes in
// keys become underscores, so "admin-token" is read from
// ERPSITE_ADMIN_TOKEN.
const EnvPrefix = "ERPSITE"

// Keys of the settings in Config.
const (
	KeyConfigFile = "config"
	KeyAddress    = "address"
	KeyAdminToken = "admin-token"
	KeySeedFile   = "seed-file"
	KeyLogLevel   = "log-level"
	KeyEndpoint   = "endpoint"
	KeyCacheTTL   = "cache-ttl"
	KeyDrainDelay = "drain-delay"
	KeyWatchdog   = "watchdog"
	KeyRetryMax   = "retry-max"
	KeyConsumers  = "consumers"
)

// Config holds the settings for serving the content API and for loading
// page data from it.
type Config struct {
	// Address is the listen address of the content API.
	Address string `mapstructure:"address"`
	// AdminToken is the shared secret for admin endpoints. Empty disables
	// them.
	AdminToken string `mapstructure:"admin-token"`
	// SeedFile is a YAML dataset loaded into the store at startup. If empty,
	// the built-in dataset is used.
	SeedFile string `mapstructure:"seed-file"`
	LogLevel string `mapstructure:"log-level"`

	// Endpoint is the base URL of the content API that page data is fetched
	// from.
	Endpoint   string        `mapstructure:"endpoint"`
	CacheTTL   time.Duration `mapstructure:"cache-ttl"`
	DrainDelay time.Duration `mapstructure:"drain-delay"`
	Watchdog   time.Duration `mapstructure:"watchdog"`
	// RetryMax is how many times a failed page data request is retried.
	// Default is 0, so a failed load reports its error at once.
	RetryMax int `mapstructure:"retry-max"`
	// Consumers is the number of concurrent page data loads made by the
	// fetch command.
	Consumers int `mapstructure:"consumers"`
}

// Default returns a Config with default values.
func Default() Config {
	return Config{
		Address:    ":8080",
		LogLevel:   "info",
		Endpoint:   "http://localhost:8080",
		CacheTTL:   30 * time.Second,
		DrainDelay: 250 * time.Millisecond,
		Watchdog:   20 * time.Second,
		RetryMax:   0,
		Consumers:  3,
	}
}

// SetDefaults registers the default value of every setting with v, so that
// each one can also be set from the environment.
func SetDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault(KeyAddress, def.Address)
	v.SetDefault(KeyAdminToken, def.AdminToken)
	v.SetDefault(KeySeedFile, def.SeedFile)
	v.SetDefault(KeyLogLevel, def.LogLevel)
	v.SetDefault(KeyEndpoint, def.Endpoint)
	v.SetDefault(KeyCacheTTL, def.CacheTTL)
	v.SetDefault(KeyDrainDelay, def.DrainDelay)
	v.SetDefault(KeyWatchdog, def.Watchdog)
	v.SetDefault(KeyRetryMax, def.RetryMax)
	v.SetDefault(KeyConsumers, def.Consumers)
}

// Load reads the configuration from v. Environment variables with the
// ERPSITE prefix override values from the config file named by the "config"
// setting, if any. The result is validated.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("cannot read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that all settings are usable and reports every one that is
// not.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if c.Address == "" {
		errs = multierror.Append(errs, errors.New("address is required"))
	}
	if _, err := logging.LevelFromString(c.LogLevel); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid log level %q", c.LogLevel))
	}
	if u, err := url.Parse(c.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = multierror.Append(errs, fmt.Errorf("endpoint %q must be an http or https url", c.Endpoint))
	}
	if c.CacheTTL <= 0 {
		errs = multierror.Append(errs, errors.New("cache-ttl must be positive"))
	}
	if c.DrainDelay < 0 {
		errs = multierror.Append(errs, errors.New("drain-delay cannot be negative"))
	}
	if c.Watchdog <= 0 {
		errs = multierror.Append(errs, errors.New("watchdog must be positive"))
	}
	if c.RetryMax < 0 {
		errs = multierror.Append(errs, errors.New("retry-max cannot be negative"))
	}
	if c.Consumers < 1 {
		errs = multierror.Append(errs, errors.New("consumers must be at least 1"))
	}
	return errs.ErrorOrNil()
}
