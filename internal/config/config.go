package config

import (
	"fmt"
	"time"

	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/errors"
	"github.com/turtacn/ssoguard/pkg/utils"
)

// Config holds the application's configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	SSO        SSOConfig        `mapstructure:"sso"`
	Revocation RevocationConfig `mapstructure:"revocation"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Vault      VaultConfig      `mapstructure:"vault"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Audit      AuditConfig      `mapstructure:"audit"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Users      []UserConfig     `mapstructure:"users" validate:"dive"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port" validate:"gt=0,max=65535"`
	GRPCEnabled    bool          `mapstructure:"grpc_enabled"`
	GRPCPort       int           `mapstructure:"grpc_port" validate:"gt=0,max=65535"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	PprofEnabled   bool          `mapstructure:"pprof_enabled"`
	Environment    string        `mapstructure:"environment" validate:"oneof=development staging production"`
}

// Address returns host:port for the HTTP listener.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GRPCAddress returns host:port for the gRPC listener.
func (c *ServerConfig) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

// SSOConfig configures the token core.
type SSOConfig struct {
	// Enabled=false serves health and metrics only; no token routes or authentication.
	Enabled  bool           `mapstructure:"enabled"`
	Mode     string         `mapstructure:"mode" validate:"oneof=local external"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	External ExternalConfig `mapstructure:"external"`
	// PublicPaths bypass the authentication middleware. A trailing "/**" matches a prefix,
	// anything else is matched with path.Match.
	PublicPaths []string `mapstructure:"public_paths"`
}

// AuthMode returns Mode as a typed constant.
func (c *SSOConfig) AuthMode() constants.AuthMode {
	return constants.AuthMode(c.Mode)
}

type JWTConfig struct {
	Issuer            string `mapstructure:"issuer" validate:"required"`
	Secret            string `mapstructure:"secret"`
	SecretSource      string `mapstructure:"secret_source" validate:"oneof=config vault"`
	VaultPath         string `mapstructure:"vault_path"`
	VaultKey          string `mapstructure:"vault_key"`
	ExpirationSeconds int    `mapstructure:"expiration_seconds" validate:"gt=0"`
	// RotateRefreshTokens revokes the presented token after a successful refresh.
	RotateRefreshTokens bool `mapstructure:"rotate_refresh_tokens"`
}

// TTL returns the token lifetime.
func (c *JWTConfig) TTL() time.Duration {
	return time.Duration(c.ExpirationSeconds) * time.Second
}

type ExternalConfig struct {
	Issuer             string   `mapstructure:"issuer"`
	PublicKeyPEM       string   `mapstructure:"public_key_pem"`
	PublicKeyFile      string   `mapstructure:"public_key_file"`
	JWKSURL            string   `mapstructure:"jwks_url"`
	SharedSecret       string   `mapstructure:"shared_secret"`
	Algorithms         []string `mapstructure:"algorithms"`
	PrincipalAttribute string   `mapstructure:"principal_attribute"`
	ResourceID         string   `mapstructure:"resource_id"`
}

type RevocationConfig struct {
	Backend       string        `mapstructure:"backend" validate:"oneof=memory redis database"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// Fanout applies revocations published by other instances to the local store.
	Fanout bool `mapstructure:"fanout"`
}

type RedisConfig struct {
	Mode           string        `mapstructure:"mode" validate:"oneof=standalone cluster sentinel"`
	Addresses      []string      `mapstructure:"addresses"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	SentinelMaster string        `mapstructure:"sentinel_master"`
	PoolSize       int           `mapstructure:"pool_size"`
	MinIdleConns   int           `mapstructure:"min_idle_conns"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	EnableTLS      bool          `mapstructure:"enable_tls"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// GetDSN returns the driver-specific data source name.
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		return c.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type VaultConfig struct {
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	MountPath string `mapstructure:"mount_path"`
}

type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	AuditTopic      string        `mapstructure:"audit_topic"`
	RevocationTopic string        `mapstructure:"revocation_topic"`
	ConsumerGroup   string        `mapstructure:"consumer_group"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
	RequiredAcks    int           `mapstructure:"required_acks" validate:"oneof=-1 0 1"`
}

type AuditConfig struct {
	Sink string `mapstructure:"sink" validate:"oneof=none log kafka database"`
	// SigningKey, when set, adds an HMAC-SHA256 signature header to every published event.
	SigningKey string `mapstructure:"signing_key"`
}

type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// LoginPerMinute bounds POST /auth/token attempts per client IP.
	LoginPerMinute int `mapstructure:"login_per_minute" validate:"gte=0"`
	Burst          int `mapstructure:"burst" validate:"gte=0"`
	// Backend is local (per process) or redis (shared fixed window).
	Backend string `mapstructure:"backend" validate:"oneof=local redis"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json console"`
	OutputPath string `mapstructure:"output_path"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	Environment    string  `mapstructure:"environment"`
	SamplingRate   float64 `mapstructure:"sampling_rate" validate:"gte=0,lte=1"`
}

// UserConfig is one entry of the in-memory user directory.
type UserConfig struct {
	Username     string   `mapstructure:"username" validate:"required"`
	Password     string   `mapstructure:"password"`
	PasswordHash string   `mapstructure:"password_hash"`
	Roles        []string `mapstructure:"roles"`
}

// Validate checks tag constraints and the cross-field rules that tags cannot express.
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}

	if c.SSO.Enabled {
		switch c.SSO.AuthMode() {
		case constants.AuthModeLocal:
			if c.SSO.JWT.SecretSource == "config" && len(c.SSO.JWT.Secret) < constants.MinSigningSecretBytes {
				return errors.ErrInvalidConfig(fmt.Sprintf("sso.jwt.secret must be at least %d bytes", constants.MinSigningSecretBytes))
			}
			if c.SSO.JWT.SecretSource == "vault" && (c.Vault.Address == "" || c.SSO.JWT.VaultPath == "") {
				return errors.ErrInvalidConfig("vault.address and sso.jwt.vault_path are required when sso.jwt.secret_source is vault")
			}
		case constants.AuthModeExternal:
			ext := c.SSO.External
			if ext.PublicKeyPEM == "" && ext.PublicKeyFile == "" && ext.JWKSURL == "" && ext.SharedSecret == "" {
				return errors.ErrInvalidConfig("sso.external requires public_key_pem, public_key_file, jwks_url or shared_secret")
			}
		}
		for _, u := range c.Users {
			if u.Password == "" && u.PasswordHash == "" {
				return errors.ErrInvalidConfig(fmt.Sprintf("user %q has neither password nor password_hash", u.Username))
			}
		}
	}

	switch c.Revocation.Backend {
	case string(constants.RevocationBackendRedis):
		if len(c.Redis.Addresses) == 0 {
			return errors.ErrInvalidConfig("redis.addresses is required for the redis revocation backend")
		}
	case string(constants.RevocationBackendDatabase):
		if c.Database.Driver == "sqlite" && c.Database.SQLitePath == "" {
			return errors.ErrInvalidConfig("database.sqlite_path is required for the sqlite driver")
		}
	}

	if c.RateLimit.Enabled && c.RateLimit.Backend == "redis" && len(c.Redis.Addresses) == 0 {
		return errors.ErrInvalidConfig("redis.addresses is required for the redis rate limit backend")
	}
	if (c.Audit.Sink == "kafka" || c.Revocation.Fanout) && len(c.Kafka.Brokers) == 0 {
		return errors.ErrInvalidConfig("kafka.brokers is required for the kafka audit sink and revocation fanout")
	}
	if c.Tracing.Enabled && c.Tracing.JaegerEndpoint == "" {
		return errors.ErrInvalidConfig("tracing.jaeger_endpoint is required when tracing is enabled")
	}
	return nil
}
