package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"genstudio/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config rooted in unique temp directories per test.
// The workflow, output, staging, and log directories are created up front
// and the API binds to an ephemeral port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkflowsDir = filepath.Join(base, "workflows")
	cfgVal.Paths.OutputDir = filepath.Join(base, "outputs")
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"

	for _, dir := range []string{
		cfgVal.Paths.WorkflowsDir,
		cfgVal.Paths.OutputDir,
		cfgVal.Paths.StagingDir,
		cfgVal.Paths.LogDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{t: t, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithServers points all three engine roles at the same address.
func WithServers(address string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Servers.Lipsync = address
		b.cfg.Servers.Character = address
		b.cfg.Servers.Generate = address
	}
}

// WithNtfyTopic enables push notifications against the given ntfy endpoint.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}
