// Package prompt loads the system prompt templates used by the generator
// and the rewarders. Defaults are embedded in the binary and a directory of
// YAML files may override them.
package prompt

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/Goer17/InnoTree/pkg/logger"
)

// Template names.
const (
	Generator = "generator"
	Scorer    = "scorer"
	Arena     = "arena"
)

//go:embed templates/*.yaml
var defaults embed.FS

// ErrUnknownTemplate is returned when a template name has no entry.
var ErrUnknownTemplate = errors.New("unknown prompt template")

// Template is one prompt file.
type Template struct {
	Name   string `yaml:"name"`
	System string `yaml:"system"`
}

// Library holds the loaded templates. It is safe for concurrent use.
type Library struct {
	mu        sync.RWMutex
	templates map[string]Template
	dir       string
	logger    *slog.Logger
}

// Default returns a library with the embedded templates only.
func Default() *Library {
	lib, err := Load("", nil)
	if err != nil {
		// the embedded templates are part of the binary
		panic(err)
	}
	return lib
}

// Load reads the embedded templates and then any *.yaml or *.yml file in
// dir, which replaces the embedded template of the same name. An empty dir
// loads the embedded templates only.
func Load(dir string, log *slog.Logger) (*Library, error) {
	lib := &Library{dir: dir, logger: logger.OrNop(log)}
	if err := lib.reload(); err != nil {
		return nil, err
	}
	return lib, nil
}

func (l *Library) reload() error {
	templates := map[string]Template{}
	if err := readTemplates(defaults, "templates", templates); err != nil {
		return fmt.Errorf("embedded prompts: %w", err)
	}
	if l.dir != "" {
		if _, err := os.Stat(l.dir); err == nil {
			if err := readTemplates(os.DirFS(l.dir), ".", templates); err != nil {
				return fmt.Errorf("prompts in %s: %w", l.dir, err)
			}
		}
	}

	l.mu.Lock()
	l.templates = templates
	l.mu.Unlock()
	return nil
}

func readTemplates(fsys fs.FS, root string, into map[string]Template) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(root, e.Name())))
		if err != nil {
			return err
		}
		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		if t.Name == "" {
			t.Name = strings.TrimSuffix(e.Name(), ext)
		}
		if t.System == "" {
			return fmt.Errorf("%s: missing system prompt", e.Name())
		}
		into[t.Name] = t
	}
	return nil
}

// Get returns the named template.
func (l *Library) Get(name string) (Template, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.templates[name]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	return t, nil
}

// System returns the named template's system prompt with vars substituted.
func (l *Library) System(name string, vars map[string]string) (string, error) {
	t, err := l.Get(name)
	if err != nil {
		return "", err
	}
	return Render(t.System, vars), nil
}

// Render replaces every "$key" in text with vars[key]. Longer keys are
// replaced first so "$idea_A" is not clobbered by "$idea".
func Render(text string, vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int { return len(b) - len(a) })

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "$"+k, vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Watch reloads the library whenever a file in its directory changes. It
// blocks until ctx is done.
func (l *Library) Watch(ctx context.Context) error {
	if l.dir == "" {
		<-ctx.Done()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(l.dir); err != nil {
		return fmt.Errorf("watch %s: %w", l.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := l.reload(); err != nil {
				l.logger.Warn("keeping previous prompts", "file", ev.Name, "error", err)
				continue
			}
			l.logger.Info("prompts reloaded", "file", ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("prompt watcher error", "error", err)
		}
	}
}
