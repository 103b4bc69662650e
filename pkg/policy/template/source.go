package template

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/manager"
)

// defaultDebounce is how long the watcher waits after the last file
// event before reloading, to absorb editor write bursts.
const defaultDebounce = 100 * time.Millisecond

// templateFile is the on-disk YAML shape of one template.
type templateFile struct {
	ID          string                 `yaml:"id"`
	Name        string                 `yaml:"name"`
	Category    string                 `yaml:"category"`
	Description string                 `yaml:"description"`
	Config      manager.TemplateConfig `yaml:"config"`
}

// FileSource serves templates loaded from YAML files in a directory and
// implements manager.TemplateSource. Reloads are all-or-nothing: if any
// file fails to load, the previous template set stays active.
type FileSource struct {
	dir      string
	debounce time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	templates map[string]*manager.Template
}

// NewFileSource creates a file source for dir and performs the initial
// load.
func NewFileSource(dir string, logger *slog.Logger) (*FileSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fs := &FileSource{
		dir:      dir,
		debounce: defaultDebounce,
		logger:   logger.With("component", "policy.template.files"),
	}
	if err := fs.Reload(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Reload re-reads every template file in the directory. On any error the
// previously loaded set remains active.
func (fs *FileSource) Reload() error {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return fmt.Errorf("failed to read template directory %q: %w", fs.dir, err)
	}

	loaded := make(map[string]*manager.Template)
	for _, entry := range entries {
		if entry.IsDir() || !isTemplateFile(entry.Name()) {
			continue
		}
		path := filepath.Join(fs.dir, entry.Name())

		tpl, err := loadTemplateFile(path)
		if err != nil {
			return err
		}
		if _, exists := loaded[tpl.ID]; exists {
			return fmt.Errorf("duplicate template id %q in %q", tpl.ID, path)
		}
		loaded[tpl.ID] = tpl
	}

	fs.mu.Lock()
	fs.templates = loaded
	fs.mu.Unlock()

	fs.logger.Info("templates loaded", "dir", fs.dir, "count", len(loaded))
	return nil
}

// Watch blocks watching the template directory until ctx is cancelled.
// File events are debounced, then the whole directory is reloaded.
func (fs *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(fs.dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", fs.dir, err)
	}
	fs.logger.Info("watching template directory", "dir", fs.dir)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isTemplateFile(filepath.Base(event.Name)) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(fs.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(fs.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			if err := fs.Reload(); err != nil {
				fs.logger.Warn("template reload failed, keeping previous set", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fs.logger.Warn("template watcher error", "error", err)
		}
	}
}

// ListTemplates implements manager.TemplateSource. Templates are sorted
// by name.
func (fs *FileSource) ListTemplates(ctx context.Context) ([]*manager.Template, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	out := make([]*manager.Template, 0, len(fs.templates))
	for _, t := range fs.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FindTemplateByID implements manager.TemplateSource.
func (fs *FileSource) FindTemplateByID(ctx context.Context, id string) (*manager.Template, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.templates[id], nil
}

func loadTemplateFile(path string) (*manager.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file %q: %w", path, err)
	}

	var tf templateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse template file %q: %w", path, err)
	}
	if tf.ID == "" {
		return nil, fmt.Errorf("template file %q is missing an id", path)
	}
	if tf.Name == "" {
		return nil, fmt.Errorf("template file %q is missing a name", path)
	}

	return &manager.Template{
		ID:          tf.ID,
		Name:        tf.Name,
		Category:    tf.Category,
		Description: tf.Description,
		Config:      tf.Config,
	}, nil
}

func isTemplateFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// StaticSource serves a fixed template set and implements
// manager.TemplateSource.
type StaticSource struct {
	templates map[string]*manager.Template
	ordered   []*manager.Template
}

// NewStaticSource creates a source over the given templates.
func NewStaticSource(templates []*manager.Template) *StaticSource {
	s := &StaticSource{templates: make(map[string]*manager.Template, len(templates))}
	for _, t := range templates {
		s.templates[t.ID] = t
		s.ordered = append(s.ordered, t)
	}
	sort.Slice(s.ordered, func(i, j int) bool { return s.ordered[i].Name < s.ordered[j].Name })
	return s
}

// ListTemplates implements manager.TemplateSource.
func (s *StaticSource) ListTemplates(ctx context.Context) ([]*manager.Template, error) {
	return append([]*manager.Template(nil), s.ordered...), nil
}

// FindTemplateByID implements manager.TemplateSource.
func (s *StaticSource) FindTemplateByID(ctx context.Context, id string) (*manager.Template, error) {
	return s.templates[id], nil
}
