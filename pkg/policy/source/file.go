package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ledgerline/policyforge/pkg/rulebook/ast"
	"ledgerline/policyforge/pkg/rulebook/parser"
)

// FileSource loads templates from YAML catalog files on disk.
type FileSource struct {
	path       string
	logger     *slog.Logger
	parser     *parser.Parser
	debounce   time.Duration
	extensions []string
}

// NewFileSource creates a file-based source. The path can be a single file or
// a directory; in a directory every .yaml and .yml file is loaded, hidden
// files and directories excepted.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:       path,
		logger:     logger.With("component", "catalog.source"),
		parser:     parser.NewParser(),
		debounce:   100 * time.Millisecond,
		extensions: []string{".yaml", ".yml"},
	}
}

// WithDebounce sets the quiet period Watch waits for before reporting a
// burst of file events as one change.
func (s *FileSource) WithDebounce(d time.Duration) *FileSource {
	s.debounce = d
	return s
}

// Path returns the configured catalog path.
func (s *FileSource) Path() string {
	return s.path
}

// LoadTemplates loads every template under the configured path. In directory
// mode a file that fails to parse is logged and skipped; a single-file path
// fails outright.
func (s *FileSource) LoadTemplates(ctx context.Context) ([]*ast.Template, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat catalog path %q: %w", s.path, err)
	}

	var templates []*ast.Template
	if info.IsDir() {
		templates, err = s.loadDirectory(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		tmpl, err := s.loadFile(s.path)
		if err != nil {
			return nil, err
		}
		templates = []*ast.Template{tmpl}
	}

	s.logger.Info("loaded templates from catalog",
		"path", s.path,
		"template_count", len(templates),
	)
	return templates, nil
}

func (s *FileSource) loadDirectory(ctx context.Context) ([]*ast.Template, error) {
	var templates []*ast.Template

	err := filepath.Walk(s.path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if isHidden(path) && path != s.path {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !s.hasExtension(path) {
			return nil
		}

		tmpl, err := s.loadFile(path)
		if err != nil {
			s.logger.Warn("failed to load catalog file, skipping",
				"path", path,
				"error", err,
			)
			return nil
		}
		templates = append(templates, tmpl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk catalog directory %q: %w", s.path, err)
	}
	return templates, nil
}

func (s *FileSource) loadFile(path string) (*ast.Template, error) {
	tmpl, err := s.parser.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %q: %w", path, err)
	}
	tmpl.SourceFile = path

	s.logger.Debug("loaded catalog file",
		"path", path,
		"template", tmpl.Code,
		"clauses", len(tmpl.Clauses),
		"rules", len(tmpl.Rules),
	)
	return tmpl, nil
}

func (s *FileSource) hasExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range s.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// Watch watches the catalog with fsnotify. Bursts of events are debounced
// into one Event. The channel closes when ctx is cancelled.
func (s *FileSource) Watch(ctx context.Context) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := s.addPath(watcher); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch catalog path: %w", err)
	}

	out := make(chan Event, 1)
	fire := make(chan Event)
	done := make(chan struct{})
	deb := newDebouncer(s.debounce)

	go func() {
		defer close(out)
		defer watcher.Close()
		defer deb.stop()
		defer close(done)

		s.logger.Info("catalog watcher started",
			"path", s.path,
			"debounce_ms", s.debounce.Milliseconds(),
		)

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("catalog watcher stopped")
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !s.relevant(ev) {
					continue
				}
				// New subdirectories need their own watch.
				if ev.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !isHidden(ev.Name) {
						_ = watcher.Add(ev.Name)
					}
				}
				s.logger.Debug("catalog file event", "path", ev.Name, "op", ev.Op.String())

				change := Event{Path: ev.Name, Op: ev.Op.String()}
				deb.trigger(func() {
					change.Time = time.Now()
					select {
					case fire <- change:
					case <-done:
					}
				})

			case change := <-fire:
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error("catalog watcher error", "error", err)
				select {
				case out <- Event{Error: err, Time: time.Now()}:
				case <-ctx.Done():
				}
			}
		}
	}()

	return out, nil
}

func (s *FileSource) addPath(w *fsnotify.Watcher) error {
	info, err := os.Stat(s.path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		// Watch the parent so editors that replace the file are seen.
		return w.Add(filepath.Dir(s.path))
	}
	return filepath.Walk(s.path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if isHidden(path) && path != s.path {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", path, err)
		}
		return nil
	})
}

func (s *FileSource) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if isHidden(ev.Name) {
		return false
	}
	if info, err := os.Stat(s.path); err == nil && !info.IsDir() {
		return filepath.Clean(ev.Name) == filepath.Clean(s.path)
	}
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			return true
		}
	}
	return s.hasExtension(ev.Name)
}

// debouncer runs the latest callback once no trigger has arrived for the
// interval.
type debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
