package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"genstudio/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := config.Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("expected missing config file at %s", path)
	}
	if cfg.Servers.Generate != "127.0.0.1:8223" {
		t.Fatalf("unexpected generate server default: %q", cfg.Servers.Generate)
	}
	if cfg.Jobs.PollInterval != 3 {
		t.Fatalf("unexpected poll interval default: %d", cfg.Jobs.PollInterval)
	}
	if cfg.Jobs.MaxConcurrent != 5 || cfg.Jobs.QueueSize != 20 {
		t.Fatalf("unexpected concurrency defaults: %d/%d", cfg.Jobs.MaxConcurrent, cfg.Jobs.QueueSize)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
workflows_dir = "` + filepath.Join(dir, "workflows") + `"
output_dir = "` + filepath.Join(dir, "outputs") + `"

[servers]
generate = "http://10.0.0.4:8223/"

[jobs]
poll_interval = 1

[logging]
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Servers.Generate != "10.0.0.4:8223" {
		t.Fatalf("expected scheme stripped, got %q", cfg.Servers.Generate)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected lowered log level, got %q", cfg.Logging.Level)
	}
	if cfg.Jobs.PollInterval != 1 {
		t.Fatalf("unexpected poll interval: %d", cfg.Jobs.PollInterval)
	}
}

func TestValidateRejectsBadServerAddress(t *testing.T) {
	cfg := config.Default()
	cfg.Servers.Lipsync = "not-an-address"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "servers.lipsync") {
		t.Fatalf("expected lipsync address error, got %v", err)
	}
}

func TestValidateRejectsQueueSmallerThanCeiling(t *testing.T) {
	cfg := config.Default()
	cfg.Jobs.MaxConcurrent = 10
	cfg.Jobs.QueueSize = 5
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "queue_size") {
		t.Fatalf("expected queue size error, got %v", err)
	}
}

func TestCreateSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if _, err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, err := config.CreateSample(path); err == nil {
		t.Fatal("expected error overwriting existing config")
	}
}

func TestEnsureDirectoriesCreatesWritableDirs(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "outputs")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.WorkflowsDir = filepath.Join(base, "workflows")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.StagingDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
	// The workflows directory is user-managed and must not be created.
	if _, err := os.Stat(cfg.Paths.WorkflowsDir); !os.IsNotExist(err) {
		t.Fatalf("expected workflows dir absent, got %v", err)
	}
}
