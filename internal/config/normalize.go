package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServers()
	c.normalizeJobs()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkflowsDir) == "" {
		c.Paths.WorkflowsDir = defaultWorkflowsDir
	}
	if c.Paths.WorkflowsDir, err = expandPath(c.Paths.WorkflowsDir); err != nil {
		return fmt.Errorf("paths.workflows_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeServers() {
	c.Servers.Lipsync = normalizeServerAddress(c.Servers.Lipsync, defaultLipsyncServer)
	c.Servers.Character = normalizeServerAddress(c.Servers.Character, defaultCharacterServer)
	c.Servers.Generate = normalizeServerAddress(c.Servers.Generate, defaultGenerateServer)
}

// normalizeServerAddress strips any scheme; the engine client adds http://.
func normalizeServerAddress(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	value = strings.TrimPrefix(value, "http://")
	value = strings.TrimPrefix(value, "https://")
	return strings.TrimRight(value, "/")
}

func (c *Config) normalizeJobs() {
	if c.Jobs.PollInterval <= 0 {
		c.Jobs.PollInterval = defaultPollInterval
	}
	if c.Jobs.PollDeadline < 0 {
		c.Jobs.PollDeadline = 0
	}
	if c.Jobs.UploadTimeout <= 0 {
		c.Jobs.UploadTimeout = defaultUploadTimeout
	}
	if c.Jobs.SubmitTimeout <= 0 {
		c.Jobs.SubmitTimeout = defaultSubmitTimeout
	}
	if c.Jobs.DownloadTimeout <= 0 {
		c.Jobs.DownloadTimeout = defaultDownloadTimeout
	}
	if c.Jobs.MaxConcurrent <= 0 {
		c.Jobs.MaxConcurrent = defaultMaxConcurrent
	}
	if c.Jobs.QueueSize <= 0 {
		c.Jobs.QueueSize = defaultQueueSize
	}
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("GENSTUDIO_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
