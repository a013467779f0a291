package config

const (
	defaultWorkflowsDir    = "~/.config/genstudio/workflows"
	defaultOutputDir       = "~/.local/share/genstudio/outputs"
	defaultStagingDir      = "~/.local/share/genstudio/staging"
	defaultLogDir          = "~/.local/share/genstudio/logs"
	defaultAPIBind         = "127.0.0.1:8225"
	defaultLipsyncServer   = "127.0.0.1:8222"
	defaultGenerateServer  = "127.0.0.1:8223"
	defaultCharacterServer = "127.0.0.1:8224"
	defaultPollInterval    = 3
	defaultUploadTimeout   = 60
	defaultSubmitTimeout   = 10
	defaultDownloadTimeout = 60
	defaultMaxConcurrent   = 5
	defaultQueueSize       = 20
	defaultNotifyTimeout   = 10
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkflowsDir: defaultWorkflowsDir,
			OutputDir:    defaultOutputDir,
			StagingDir:   defaultStagingDir,
			LogDir:       defaultLogDir,
			APIBind:      defaultAPIBind,
		},
		Servers: Servers{
			Lipsync:   defaultLipsyncServer,
			Character: defaultCharacterServer,
			Generate:  defaultGenerateServer,
		},
		Jobs: Jobs{
			PollInterval:    defaultPollInterval,
			PollDeadline:    0,
			UploadTimeout:   defaultUploadTimeout,
			SubmitTimeout:   defaultSubmitTimeout,
			DownloadTimeout: defaultDownloadTimeout,
			MaxConcurrent:   defaultMaxConcurrent,
			QueueSize:       defaultQueueSize,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completions:    true,
			Errors:         true,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
