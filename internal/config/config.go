package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "LOGIN"

type Config interface {
	EnvConfig
	CorsConfig
	SecurityConfig
	CookieConfig
	StoreConfig
	BootstrapConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	IsDev() bool
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	v *viper.Viper
}

var _ Config = mainConfig{}

// New returns the configuration made of defaults and LOGIN_ environment overrides.
func New() Config {
	return mainConfig{v: newViper()}
}

// Load reads the optional config file at path on top of the defaults.
// Environment variables still take precedence over the file.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "[config.Load] reading %s", path)
		}
	}
	cfg := mainConfig{v: v}
	if err := validate(cfg); err != nil {
		return nil, errors.Wrap(err, "[config.Load]")
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("app_name", "Go Login Server")
	v.SetDefault("env", "DEV")
	v.SetDefault("log_level", "info")

	v.SetDefault("security.max_session_age", 30*time.Minute)
	v.SetDefault("security.entry_point", string(EntryPointRedirect))
	v.SetDefault("security.login_redirect", "/login")
	v.SetDefault("security.rotate_on_bad_credentials", true)
	v.SetDefault("security.login_rate_per_minute", 30)
	v.SetDefault("security.login_burst", 10)
	v.SetDefault("security.session_rate_per_minute", 60)
	v.SetDefault("security.session_burst", 30)
	v.SetDefault("security.sweep_interval", 5*time.Minute)

	v.SetDefault("cookies.session_name", "JSESSIONID")
	v.SetDefault("cookies.csrf_name", "XSRF-TOKEN")
	v.SetDefault("cookies.csrf_header", "X-XSRF-TOKEN")
	v.SetDefault("cookies.csrf_parameter", "_csrf")
	v.SetDefault("cookies.secure", false)

	v.SetDefault("store.sessions", string(BackendMemory))
	v.SetDefault("store.session_capacity", 100_000)
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_prefix", "login:session:")
	v.SetDefault("store.users", string(BackendMemory))
	v.SetDefault("store.sqlite_path", "./data/users.db")

	v.SetDefault("bootstrap.admin_login", "admin")
	v.SetDefault("bootstrap.admin_password", "admin")

	v.SetDefault("cors.allowed_origins", []string{})
}

func validate(cfg mainConfig) error {
	switch cfg.GetEntryPoint() {
	case EntryPointRedirect, EntryPointForbidden:
	default:
		return errors.Errorf("unknown security.entry_point %q", cfg.v.GetString("security.entry_point"))
	}
	switch cfg.GetSessionBackend() {
	case BackendMemory, BackendRedis:
	default:
		return errors.Errorf("unknown store.sessions backend %q", cfg.GetSessionBackend())
	}
	switch cfg.GetUserBackend() {
	case BackendMemory, BackendSQLite:
	default:
		return errors.Errorf("unknown store.users backend %q", cfg.GetUserBackend())
	}
	if cfg.GetMaxSessionAge() <= 0 {
		return errors.New("security.max_session_age must be positive")
	}
	return nil
}
