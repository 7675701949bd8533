package config

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// minProductionPasswordLen applies to every backing service in production.
const minProductionPasswordLen = 12

// endpoint is the part of a backing service's settings that is checked the same
// way for PostgreSQL and Redis: either a URL or host/port components.
type endpoint struct {
	kind     string
	url      string
	schemes  []string
	host     string
	port     string
	password string
	// encrypted reports whether the component form asks for TLS.
	encrypted bool
	// encryptionHint names the setting to fix when encrypted is false.
	encryptionHint string
}

// validate checks the URL form, or the component form plus production
// requirements, and returns the parsed URL when one was given.
func (e endpoint) validate(environment string) (*url.URL, error) {
	if e.url != "" {
		u, err := parseEndpointURL(e.url, e.schemes)
		if err != nil {
			return nil, fmt.Errorf("invalid %s URL: %w", e.kind, err)
		}
		return u, nil
	}

	if err := validateNoWhitespace(e.host, e.kind+" host"); err != nil {
		return nil, err
	}
	if err := validatePort(e.port, e.kind); err != nil {
		return nil, err
	}
	if environment != EnvironmentProduction {
		return nil, nil
	}
	switch {
	case e.password == "":
		return nil, fmt.Errorf("%s password is required in production environment", e.kind)
	case len(e.password) < minProductionPasswordLen:
		return nil, fmt.Errorf("%s password must be at least %d characters in production", e.kind, minProductionPasswordLen)
	case !e.encrypted:
		return nil, fmt.Errorf("%s: %s in production environment", e.kind, e.encryptionHint)
	}
	return nil, nil
}

func parseEndpointURL(raw string, schemes []string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if !slices.Contains(schemes, u.Scheme) {
		return nil, fmt.Errorf("invalid scheme '%s', must be one of: %v", u.Scheme, schemes)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("host is required in URL")
	}
	return u, nil
}

// validatePort checks that port is a number in 1-65535.
func validatePort(port, kind string) error {
	if port == "" {
		return fmt.Errorf("%s port cannot be empty", kind)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("%s port must be a number: %w", kind, err)
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("%s port must be between 1 and 65535, got %d", kind, n)
	}
	return nil
}

func validateNoWhitespace(value, field string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if strings.ContainsFunc(value, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' }) {
		return fmt.Errorf("%s cannot contain whitespace", field)
	}
	return nil
}
