package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"genstudio/internal/logging"
)

// ErrTemplateNotFound is returned when a template name is not registered.
var ErrTemplateNotFound = errors.New("template not found")

// Store holds the named template graphs loaded at startup. It is immutable
// after construction; every job patches its own clone, so concurrent jobs
// never share mutable graph state.
type Store struct {
	templates map[string]Graph
}

// LoadStore reads every *.json file in dir and registers it under the base
// filename without extension. A file that fails to parse is logged and
// skipped. A missing directory yields an empty store: callers get
// ErrTemplateNotFound per lookup instead of a startup failure.
func LoadStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "template-store")

	store := &Store{templates: map[string]Graph{}}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("workflows directory not found",
				logging.String("dir", dir),
			)
			return store, nil
		}
		return nil, fmt.Errorf("read workflows directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable template",
				logging.String("file", entry.Name()),
				logging.Error(err),
			)
			continue
		}
		var graph Graph
		if err := json.Unmarshal(data, &graph); err != nil {
			logger.Warn("skipping malformed template",
				logging.String("file", entry.Name()),
				logging.Error(err),
			)
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		store.templates[name] = graph
		logger.Info("loaded template", logging.String(logging.FieldTemplate, name))
	}

	return store, nil
}

// Get returns a template by name. The returned graph is the stored instance;
// callers must Clone before mutating.
func (s *Store) Get(name string) (Graph, error) {
	graph, ok := s.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	return graph, nil
}

// Names returns the registered template names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports the number of registered templates.
func (s *Store) Len() int {
	return len(s.templates)
}
