// SPDX-License-Identifier: MPL-2.0

// Package watch reports debounced batches of changes below a set of source
// directories.
//
// Every directory below each root is registered with fsnotify, and
// directories created later are added as their events arrive. Events within
// the debounce window are coalesced, so the callback sees one sorted,
// deduplicated batch of absolute paths.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when Config.Debounce is not positive.
const DefaultDebounce = 100 * time.Millisecond

// ErrFatal marks watcher failures that cannot be recovered from, such as an
// exhausted inotify watch limit.
var ErrFatal = errors.New("file watcher failed")

// defaultIgnores are always excluded: VCS metadata, dependency caches,
// editor swap files and OS metadata.
var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.#*",
	"**/.DS_Store",
}

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Dirs are the roots watched recursively. Missing roots are skipped.
		Dirs []string

		// Ignore are doublestar patterns, relative to the root an event
		// belongs to, merged with the built-in ignores.
		Ignore []string

		// ExcludeDirs are absolute directories never watched, typically the
		// build output when it lives inside a watched root.
		ExcludeDirs []string

		// Debounce is the quiet period after the last event before OnChange
		// fires.
		Debounce time.Duration

		// OnChange receives each batch of changed absolute paths. It runs on
		// the watcher goroutine and must not block.
		OnChange func(changed []string)

		Logger *log.Logger
	}

	// Watcher monitors directories and fires a debounced callback. Run must
	// be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		roots    []string
		excludes []string
		ignores  []string
		debounce time.Duration
		logger   *log.Logger
		started  atomic.Bool
	}
)

// New registers every directory below cfg.Dirs. Call Close if Run is never
// called.
func New(cfg Config) (*Watcher, error) {
	if err := validatePatterns(cfg.Ignore); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	roots, err := absAll(cfg.Dirs)
	if err != nil {
		return nil, err
	}
	excludes, err := absAll(cfg.ExcludeDirs)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, classify(fmt.Errorf("watch: create fsnotify watcher: %w", err))
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		roots:    roots,
		excludes: excludes,
		ignores:  append(slices.Clone(defaultIgnores), cfg.Ignore...),
		debounce: debounce,
		logger:   logger,
	}
	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Roots returns the absolute watched roots.
func (w *Watcher) Roots() []string {
	return slices.Clone(w.roots)
}

// Close releases the fsnotify watcher when Run was never called.
func (w *Watcher) Close() error {
	if w.started.Load() {
		return nil
	}
	return w.fsw.Close()
}

// Run processes events until ctx is cancelled, returning nil, or until
// the watcher fails fatally, returning an error wrapping ErrFatal.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}
	defer func() {
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close fsnotify", "err", err)
		}
	}()

	var (
		pending = make(map[string]struct{})
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-fire:
			fire = nil
			if len(pending) == 0 {
				continue
			}
			changed := slices.Sorted(maps.Keys(pending))
			clear(pending)
			w.logger.Debug("change detected", "files", len(changed))
			if w.cfg.OnChange != nil {
				w.cfg.OnChange(changed)
			}

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("%w: event channel closed", ErrFatal)
			}
			if !w.relevant(evt.Name) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.addCreated(evt.Name)
			}
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("%w: error channel closed", ErrFatal)
			}
			if isFatal(err) {
				return fmt.Errorf("%w: %w", ErrFatal, err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// addTree registers root and every non-ignored directory below it.
func (w *Watcher) addTree(root string) error {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		w.logger.Debug("skipping missing watch root", "dir", root)
		return nil
	}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.logger.Warn("skipping inaccessible path", "path", path, "err", walkErr)
			return nil //nolint:nilerr // inaccessible paths are not watched
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && !w.relevantDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return classify(fmt.Errorf("watch: add directory %q: %w", path, err))
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

// addCreated extends the watch to a directory created after startup.
func (w *Watcher) addCreated(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || !w.relevantDir(path) {
		return
	}
	if err := w.addTree(path); err != nil {
		w.logger.Warn("watch new directory", "dir", path, "err", err)
	}
}

// relevant reports whether an event on path should trigger a rebuild.
func (w *Watcher) relevant(path string) bool {
	if w.excluded(path) {
		return false
	}
	rel, ok := w.rel(path)
	if !ok {
		return false
	}
	return !w.ignored(rel)
}

func (w *Watcher) relevantDir(path string) bool {
	if w.excluded(path) {
		return false
	}
	rel, ok := w.rel(path)
	if !ok {
		return false
	}
	return !w.ignored(rel) && !w.ignored(rel+"/")
}

func (w *Watcher) excluded(path string) bool {
	for _, ex := range w.excludes {
		if path == ex || strings.HasPrefix(path, ex+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// rel returns path relative to the innermost root containing it.
func (w *Watcher) rel(path string) (string, bool) {
	best := ""
	for _, root := range w.roots {
		if (path == root || strings.HasPrefix(path, root+string(filepath.Separator))) && len(root) > len(best) {
			best = root
		}
	}
	if best == "" {
		return "", false
	}
	rel, err := filepath.Rel(best, path)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) ignored(rel string) bool {
	for _, pat := range w.ignores {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

func validatePatterns(patterns []string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid ignore pattern %q: %w", pat, doublestar.ErrBadPattern)
		}
	}
	return nil
}

func absAll(dirs []string) ([]string, error) {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve %q: %w", d, err)
		}
		if !slices.Contains(out, abs) {
			out = append(out, abs)
		}
	}
	return out, nil
}

// classify marks resource exhaustion errors as fatal.
func classify(err error) error {
	if isFatal(err) {
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}
	return err
}
