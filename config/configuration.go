package config

import (
	"errors"
	"io/fs"
	"os"
	"time"
)

// ServerConfiguration contains the server settings
type ServerConfiguration struct {
	Port    int
	Address string
}

// SMTPConfiguration contains the email settings
type SMTPConfiguration struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string `json:"-"`
	// DisplayName will be displayed as email sender
	DisplayName string `         mapstructure:"display-name"`
	// Address is the sender address
	Address string
}

// DatabaseConfiguration contains the settings required to connect to a database
type DatabaseConfiguration struct {
	Type string
	DSN  string `json:"-"`
}

// RedisConfiguration contains the settings for the redis-backed stores,
// if disabled the service falls back to its in-memory implementations
type RedisConfiguration struct {
	Enabled  bool
	Address  string
	Password string `json:"-"`
	DB       int
}

// BehaviourConfiguration configures how the service will behave
type BehaviourConfiguration struct {
	Name                   string
	Site                   string
	ServiceDomain          string        `mapstructure:"service-domain"`
	MaxLoginAttempts       int           `mapstructure:"max-login-attempts"`
	LockoutDuration        time.Duration `mapstructure:"lockout-duration"`
	PasswordMinLength      int           `mapstructure:"password-min-length"`
	PendingRegistrationTTL time.Duration `mapstructure:"pending-registration-ttl"`
	PasswordResetExpiry    time.Duration `mapstructure:"password-reset-expiry"`
	CleanupInterval        time.Duration `mapstructure:"cleanup-interval"`
}

// JWTConfiguration habours all JWT and refresh token settings
type JWTConfiguration struct {
	Algorithm          string        `mapstructure:"alg"`
	Issuer             string        `mapstructure:"iss"`
	Audience           []string      `mapstructure:"aud"`
	Expiry             time.Duration `mapstructure:"exp"`
	HMACSigningKey     string        `mapstructure:"hmac-signing-key"      json:"-"`
	HMACSigningKeyFile string        `mapstructure:"hmac-signing-key-file"`
	RefreshTokenExpiry time.Duration `mapstructure:"refresh-token-expiry"`
}

// LimitConfiguration contains the per-route request limits,
// all counters are per client address within the given window
type LimitConfiguration struct {
	Register      RouteLimit `mapstructure:"register"`
	Login         RouteLimit `mapstructure:"login"`
	Refresh       RouteLimit `mapstructure:"refresh"`
	PasswordReset RouteLimit `mapstructure:"password-reset"`
}

// RouteLimit is the amount of requests allowed within the window
type RouteLimit struct {
	Requests int
	Window   time.Duration
}

// FileSystems contains the used file systems
type FileSystems struct {
	Email fs.FS
}

// CORSConfiguration very basic cors configuration
type CORSConfiguration struct {
	AllowCredentials bool     `mapstructure:"allow-credentials"`
	AllowedMethods   []string `mapstructure:"allowed-methods"`
	AllowedOrigins   []string `mapstructure:"allowed-origins"`
}

// Configuration habours the entire kimlik configuration
type Configuration struct {
	Server    *ServerConfiguration    `mapstructure:"server"`
	SMTP      *SMTPConfiguration      `mapstructure:"smtp"`
	Database  *DatabaseConfiguration  `mapstructure:"database"`
	Redis     *RedisConfiguration     `mapstructure:"redis"`
	Behaviour *BehaviourConfiguration `mapstructure:"behaviour"`
	JWT       *JWTConfiguration       `mapstructure:"jwt"`
	Limits    *LimitConfiguration     `mapstructure:"limits"`
	CORS      *CORSConfiguration      `mapstructure:"cors"`
}

// Validate does some basic validation of the config file and tries to be helpful on missconfiguration
func (c *Configuration) Validate() error {
	if c.Database == nil {
		return errors.New("no database configuration found")
	}
	if c.SMTP == nil {
		return errors.New("no SMTP configuration found")
	}
	if c.Behaviour == nil {
		return errors.New("no behaviour configuration found")
	}
	if c.JWT == nil {
		return errors.New("no JWT configuration found")
	}
	switch c.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
		if c.JWT.HMACSigningKey == "" && c.JWT.HMACSigningKeyFile == "" {
			return errors.New(
				"when using jwt.alg HS256, HS384, HS512 you need to define either hmac-signing-key or hmac-signing-key-file",
			)
		}
	default:
		return errors.New("jwt.alg needs to be one of HS256, HS384, HS512")
	}
	if c.Server == nil {
		return errors.New("no server configuration found")
	}
	if c.Redis != nil && c.Redis.Enabled && c.Redis.Address == "" {
		return errors.New("redis is enabled but no redis.address was given")
	}
	return nil
}

// DebugMode returns true if the DEBUG_MODE variable is set
func (*Configuration) DebugMode() bool {
	if r := os.Getenv("KIMLIK_DEBUG_MODE"); r == "true" {
		return true
	}
	return false
}
