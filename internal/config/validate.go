package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServers(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServers() error {
	for _, entry := range []struct {
		key   string
		value string
	}{
		{"servers.lipsync", c.Servers.Lipsync},
		{"servers.character", c.Servers.Character},
		{"servers.generate", c.Servers.Generate},
	} {
		if strings.TrimSpace(entry.value) == "" {
			return fmt.Errorf("%s must be set", entry.key)
		}
		if _, _, err := net.SplitHostPort(entry.value); err != nil {
			return fmt.Errorf("%s must be host:port, got %q", entry.key, entry.value)
		}
	}
	return nil
}

func (c *Config) validateJobs() error {
	if c.Jobs.PollInterval <= 0 {
		return errors.New("jobs.poll_interval must be positive")
	}
	if c.Jobs.MaxConcurrent <= 0 {
		return errors.New("jobs.max_concurrent must be positive")
	}
	if c.Jobs.QueueSize < c.Jobs.MaxConcurrent {
		return fmt.Errorf("jobs.queue_size (%d) must be at least jobs.max_concurrent (%d)", c.Jobs.QueueSize, c.Jobs.MaxConcurrent)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
