package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
	"time"
)

// sslModesForProduction are the libpq modes that refuse plaintext.
var sslModesForProduction = []string{"require", "verify-ca", "verify-full"}

// DatabaseConfig configures the PostgreSQL pool shared by the rule store, the
// product catalog and the durable cache tier.
type DatabaseConfig struct {
	// URL takes precedence over the individual components.
	URL      string `envconfig:"URL"`
	Host     string `envconfig:"HOST"`
	Port     string `envconfig:"PORT"`
	Name     string `envconfig:"NAME"`
	User     string `envconfig:"USER"`
	Password string `envconfig:"PASSWORD"`
	SSLMode  string `envconfig:"SSL_MODE" default:"prefer" validate:"oneof=disable allow prefer require verify-ca verify-full"`

	MaxConns        int           `envconfig:"MAX_CONNS" default:"25" validate:"min=1"`
	MinConns        int           `envconfig:"MIN_CONNS" default:"2" validate:"min=0"`
	MaxConnLifetime time.Duration `envconfig:"MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `envconfig:"MAX_CONN_IDLE_TIME" default:"30m"`
	ConnectTimeout  time.Duration `envconfig:"CONNECT_TIMEOUT" default:"5s"`

	// Startup ping retry settings
	PingMaxRetries int           `envconfig:"PING_MAX_RETRIES" default:"3" validate:"min=1"`
	PingBackoff    time.Duration `envconfig:"PING_BACKOFF" default:"1s"`
}

// ConnectionString returns URL, or a postgres:// URL assembled from the
// components with the credentials escaped.
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// IsConfigured reports whether enough is set to attempt a connection.
func (c *DatabaseConfig) IsConfigured() bool {
	return c.URL != "" || (c.Host != "" && c.Port != "" && c.Name != "" && c.User != "")
}

// Validate checks the connection settings. Production requires a strong password
// and an SSL mode that refuses plaintext.
func (c *DatabaseConfig) Validate(environment string) error {
	u, err := endpoint{
		kind:           "database",
		url:            c.URL,
		schemes:        []string{"postgres", "postgresql"},
		host:           c.Host,
		port:           c.Port,
		password:       c.Password,
		encrypted:      slices.Contains(sslModesForProduction, c.SSLMode),
		encryptionHint: "SSL mode must be 'require', 'verify-ca', or 'verify-full'",
	}.validate(environment)
	if err != nil {
		return err
	}

	if u != nil {
		if u.User == nil || u.User.Username() == "" {
			return fmt.Errorf("invalid database URL: user is required in URL")
		}
		if strings.TrimPrefix(u.Path, "/") == "" {
			return fmt.Errorf("invalid database URL: database name is required in URL path")
		}
	} else {
		if err := validateNoWhitespace(c.Name, "database name"); err != nil {
			return err
		}
		if len(c.Name) > 63 {
			return fmt.Errorf("database name cannot exceed 63 characters")
		}
		if err := validateNoWhitespace(c.User, "database user"); err != nil {
			return err
		}
	}

	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min_conns (%d) cannot be greater than max_conns (%d)", c.MinConns, c.MaxConns)
	}
	return nil
}
