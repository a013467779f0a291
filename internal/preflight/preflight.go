package preflight

import (
	"context"

	"genstudio/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every applicable check for the given config: template and
// working directories first, then one connectivity probe per configured
// engine endpoint.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckTemplates(cfg.Paths.WorkflowsDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	seen := map[string]struct{}{}
	for _, role := range []struct {
		name    string
		address string
	}{
		{"Lipsync engine", cfg.Servers.Lipsync},
		{"Character engine", cfg.Servers.Character},
		{"Generate engine", cfg.Servers.Generate},
	} {
		if _, dup := seen[role.address]; dup {
			continue
		}
		seen[role.address] = struct{}{}
		results = append(results, CheckEngine(ctx, role.name, role.address))
	}

	return results
}

// Healthy reports whether every result passed.
func Healthy(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
