package store

import (
	"fmt"
	"time"
)

// DefaultRetention is how long a search session stays visible after creation.
const DefaultRetention = 2 * time.Hour

// Config holds settings shared by all session store backends.
type Config struct {
	// Retention is the fixed window after creation during which a session is visible.
	// Default: 2h
	Retention time.Duration

	// MaxSessions caps the number of live sessions. Create fails with ErrResourceExhausted
	// once the cap is reached.
	// Default: 0 (unlimited)
	MaxSessions int

	// Now is the clock used for creation timestamps and expiry checks.
	// Default: time.Now
	Now func() time.Time
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative")
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("max sessions must not be negative")
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.Retention == 0 {
		c.Retention = DefaultRetention
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Cutoff returns the creation time at or before which a session is expired at now.
func (c *Config) Cutoff(now time.Time) time.Time {
	return now.Add(-c.Retention)
}
