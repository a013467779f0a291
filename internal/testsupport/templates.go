package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// DefaultGraph is a minimal workflow graph with a prompt node and a sampler,
// enough for prompt binding and seed randomization to have targets.
const DefaultGraph = `{
	"89": {"class_type": "WanVideoTextEncodeCached", "widgets_values": ["m", "d", "placeholder"]},
	"90": {"class_type": "KSampler", "inputs": {"seed": 1}}
}`

// WriteTemplate stores a workflow template JSON under dir. An empty body
// writes DefaultGraph.
func WriteTemplate(t testing.TB, dir, name, body string) {
	t.Helper()

	if body == "" {
		body = DefaultGraph
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir template dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write template %s: %v", name, err)
	}
}
