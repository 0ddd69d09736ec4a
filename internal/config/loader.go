package config

import (
	"context"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/errors"
	"github.com/turtacn/ssoguard/pkg/logger"
)

// EnvPrefix is prepended to environment overrides, e.g. SSOGUARD_SSO_JWT_SECRET.
const EnvPrefix = "SSOGUARD"

// Loader reads configuration from a YAML file and the environment.
type Loader struct {
	v   *viper.Viper
	log logger.Logger

	mu      sync.Mutex
	current *Config
}

// NewLoader creates a loader. An empty configFile searches ./config.yaml and
// /etc/ssoguard/config.yaml.
func NewLoader(configFile string, log logger.Logger) *Loader {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/ssoguard/")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v, log: log.WithComponent("config")}
}

// LoadConfig is a shortcut for NewLoader(configFile, nil).Load().
func LoadConfig(configFile string) (*Config, error) {
	return NewLoader(configFile, nil).Load()
}

// Load reads, unmarshals and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.ErrInvalidConfig("failed to read config file").WithCause(err)
		}
		l.log.Warn(context.Background(), "No config file found, using defaults and environment")
	}

	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()

	l.log.Info(context.Background(), "Configuration loaded",
		logger.String("file", l.v.ConfigFileUsed()),
		logger.String("mode", cfg.SSO.Mode),
		logger.Bool("sso_enabled", cfg.SSO.Enabled),
		logger.String("revocation_backend", cfg.Revocation.Backend),
	)
	return cfg, nil
}

// Watch re-reads the config file on change and hands each valid result to onChange.
// Invalid edits are logged and ignored. Only settings read through the callback are
// hot-reloaded; everything else needs a restart.
func (l *Loader) Watch(ctx context.Context, onChange func(*Config)) {
	if l.v.ConfigFileUsed() == "" {
		l.log.Info(ctx, "Config watch skipped, no config file in use")
		return
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if ctx.Err() != nil {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			l.log.Error(ctx, "Ignoring invalid config change", err, logger.String("file", e.Name))
			return
		}
		l.mu.Lock()
		l.current = cfg
		l.mu.Unlock()
		l.log.Info(ctx, "Configuration reloaded", logger.String("file", e.Name), logger.String("op", e.Op.String()))
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// Current returns the most recently loaded configuration.
func (l *Loader) Current() *Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, errors.ErrInvalidConfig("failed to unmarshal config").WithCause(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", constants.DefaultServicePort)
	v.SetDefault("server.grpc_enabled", false)
	v.SetDefault("server.grpc_port", constants.DefaultGRPCPort)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.pprof_enabled", false)
	v.SetDefault("server.environment", "development")

	v.SetDefault("sso.enabled", true)
	v.SetDefault("sso.mode", string(constants.AuthModeLocal))
	v.SetDefault("sso.jwt.issuer", constants.DefaultIssuer)
	v.SetDefault("sso.jwt.secret", "")
	v.SetDefault("sso.jwt.secret_source", "config")
	v.SetDefault("sso.jwt.vault_path", "")
	v.SetDefault("sso.jwt.vault_key", "jwt_secret")
	v.SetDefault("sso.jwt.expiration_seconds", constants.DefaultExpirationSeconds)
	v.SetDefault("sso.jwt.rotate_refresh_tokens", false)
	v.SetDefault("sso.external.issuer", "")
	v.SetDefault("sso.external.public_key_pem", "")
	v.SetDefault("sso.external.public_key_file", "")
	v.SetDefault("sso.external.jwks_url", "")
	v.SetDefault("sso.external.shared_secret", "")
	v.SetDefault("sso.external.algorithms", []string{"RS256"})
	v.SetDefault("sso.external.principal_attribute", constants.DefaultPrincipalAttribute)
	v.SetDefault("sso.external.resource_id", "")
	v.SetDefault("sso.public_paths", []string{
		"/auth/token",
		"/swagger-ui/**",
		"/v3/api-docs/**",
		"/health/**",
		"/metrics",
	})

	v.SetDefault("revocation.backend", string(constants.RevocationBackendMemory))
	v.SetDefault("revocation.sweep_interval", constants.DefaultSweepInterval.String())
	v.SetDefault("revocation.fanout", false)

	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.addresses", []string{})
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.sentinel_master", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.enable_tls", false)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "ssoguard")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "ssoguard")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.sqlite_path", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.mount_path", "secret")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.audit_topic", "ssoguard-audit")
	v.SetDefault("kafka.revocation_topic", "ssoguard-revocations")
	v.SetDefault("kafka.consumer_group", "ssoguard-revocation-consumers")
	v.SetDefault("kafka.write_timeout", "10s")
	v.SetDefault("kafka.batch_timeout", "100ms")
	v.SetDefault("kafka.required_acks", 1)

	v.SetDefault("audit.sink", "log")
	v.SetDefault("audit.signing_key", "")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.login_per_minute", 30)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("rate_limit.backend", "local")

	v.SetDefault("log.level", string(constants.LogLevelInfo))
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "")
	v.SetDefault("tracing.service_name", "ssoguard")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.sampling_rate", 1.0)
}
