package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// SweeperConfig contains configuration for the background maintenance worker.
type SweeperConfig struct {
	Enabled bool `envconfig:"ENABLED" default:"true"`

	// Schedule is a standard 5-field cron expression for purging expired durable cache rows.
	Schedule string `envconfig:"SCHEDULE" default:"*/15 * * * *"`

	// WarmSchedule re-compiles the rule index ahead of expiry. Empty disables periodic warming.
	WarmSchedule string `envconfig:"WARM_SCHEDULE" default:"0 */3 * * *"`
}

// Validate parses the cron expressions so a typo fails at startup rather than silently never running.
func (c *SweeperConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("invalid sweeper schedule %q: %w", c.Schedule, err)
	}
	if c.WarmSchedule != "" {
		if _, err := cron.ParseStandard(c.WarmSchedule); err != nil {
			return fmt.Errorf("invalid sweeper warm schedule %q: %w", c.WarmSchedule, err)
		}
	}
	return nil
}
