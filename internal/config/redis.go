package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// RedisConfig configures the client behind the medium cache tier.
type RedisConfig struct {
	// URL (redis:// or rediss://) takes precedence over the individual components.
	URL        string `envconfig:"URL"`
	Host       string `envconfig:"HOST"`
	Port       string `envconfig:"PORT"`
	Password   string `envconfig:"PASSWORD"`
	DB         int    `envconfig:"DB" default:"0" validate:"min=0,max=15"`
	TLSEnabled bool   `envconfig:"TLS_ENABLED" default:"false"`

	PoolSize        int           `envconfig:"POOL_SIZE" default:"50" validate:"min=1"`
	MinIdleConns    int           `envconfig:"MIN_IDLE_CONNS" default:"10" validate:"min=0"`
	DialTimeout     time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
	PoolTimeout     time.Duration `envconfig:"POOL_TIMEOUT" default:"4s"`
	MaxRetries      int           `envconfig:"MAX_RETRIES" default:"3" validate:"min=0"`
	MinRetryBackoff time.Duration `envconfig:"MIN_RETRY_BACKOFF" default:"8ms"`
	MaxRetryBackoff time.Duration `envconfig:"MAX_RETRY_BACKOFF" default:"512ms"`

	// Startup ping retry settings
	PingMaxRetries int           `envconfig:"PING_MAX_RETRIES" default:"5" validate:"min=1"`
	PingBackoff    time.Duration `envconfig:"PING_BACKOFF" default:"2s"`
}

// Address is host:port for logs and for the component form of the client options.
func (c *RedisConfig) Address() string {
	if c.URL != "" {
		if u, err := parseEndpointURL(c.URL, []string{"redis", "rediss"}); err == nil {
			return u.Host
		}
		return ""
	}
	return net.JoinHostPort(c.Host, c.Port)
}

// Validate checks the connection settings. Production requires a strong password
// and TLS.
func (c *RedisConfig) Validate(environment string) error {
	u, err := endpoint{
		kind:           "redis",
		url:            c.URL,
		schemes:        []string{"redis", "rediss"},
		host:           c.Host,
		port:           c.Port,
		password:       c.Password,
		encrypted:      c.TLSEnabled,
		encryptionHint: "TLS must be enabled",
	}.validate(environment)
	if err != nil {
		return err
	}

	if u != nil {
		if db := strings.Trim(u.Path, "/"); db != "" {
			n, err := strconv.Atoi(db)
			if err != nil {
				return fmt.Errorf("invalid redis URL: database number must be a valid integer: %s", db)
			}
			if n < 0 || n > 15 {
				return fmt.Errorf("invalid redis URL: database number must be between 0 and 15, got %d", n)
			}
		}
	}

	if c.MinIdleConns > c.PoolSize {
		return fmt.Errorf("min_idle_conns (%d) cannot be greater than pool_size (%d)", c.MinIdleConns, c.PoolSize)
	}
	return nil
}
