package main

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"genstudio/internal/config"
	"genstudio/internal/generate"
	"genstudio/internal/jobs"
	"genstudio/internal/logging"
	"genstudio/internal/services/comfy"
	"genstudio/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	runtimeOnce sync.Once
	generator   *generate.Service
	runtimeErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// generator lazily wires the in-process generation stack: template store,
// engine clients, and job runner. CLI runs execute jobs directly rather
// than through the daemon, so a generation works with nothing running.
func (c *commandContext) ensureGenerator() (*generate.Service, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.runtimeOnce.Do(func() {
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.runtimeErr = fmt.Errorf("init logger: %w", err)
			return
		}
		store, err := workflow.LoadStore(cfg.Paths.WorkflowsDir, logger)
		if err != nil {
			c.runtimeErr = fmt.Errorf("load workflow templates: %w", err)
			return
		}
		timeouts := comfy.Timeouts{
			Upload:   time.Duration(cfg.Jobs.UploadTimeout) * time.Second,
			Submit:   time.Duration(cfg.Jobs.SubmitTimeout) * time.Second,
			Status:   time.Duration(cfg.Jobs.SubmitTimeout) * time.Second,
			Download: time.Duration(cfg.Jobs.DownloadTimeout) * time.Second,
		}
		clients := func(address string) comfy.Client {
			return comfy.New(address, &http.Client{}, comfy.WithTimeouts(timeouts))
		}
		runner := jobs.NewRunner(store, clients, jobs.OptionsFromConfig(cfg), logger)
		c.generator = generate.NewService(runner, cfg, logger)
	})
	return c.generator, c.runtimeErr
}

// apiBase returns the daemon API base URL from the configured bind address.
func (c *commandContext) apiBase() (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return "", fmt.Errorf("no api_bind configured; the daemon API is disabled")
	}
	return "http://" + bind, nil
}
