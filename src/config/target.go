package config

import (
	"resource-backup/src/errs"
	"resource-backup/src/target"
)

// WithTarget returns a copy of c whose storage location is replaced by t.
// Connection settings the target leaves out (port, user) keep their
// configured values.
func (c Config) WithTarget(t target.Target) (Config, error) {
	c.StoragePath = t.Path
	if t.IsRemote() {
		c.Type = TypeRemote
		c.Host = t.Host
		if t.Port != 0 {
			c.Port = t.Port
		}
		if t.User != "" {
			c.Username = t.User
		}
	} else {
		c.Type = TypeLocal
	}
	if err := c.Validate(); err != nil {
		return Config{}, errs.Validation("target %s: %v", t, err)
	}
	return c, nil
}
