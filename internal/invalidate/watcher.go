// Package invalidate turns signal files written by ingestion into aggregate
// family invalidations.
//
// An ingestion process that has appended facts creates or touches a file
// named after the stale family ("card", "playability") or "all" in the
// signal directory. The Watcher consumes the file and invalidates the family,
// so the next read rebuilds it.
package invalidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ramonehamilton/deckstats/internal/aggregate"
)

// All is the signal name that invalidates every family.
const All = "all"

const (
	DefaultDebounce     = 500 * time.Millisecond
	DefaultPollInterval = 2 * time.Second
)

// Invalidator drops aggregate families.
type Invalidator interface {
	Invalidate(ctx context.Context, family string) error
	InvalidateAll(ctx context.Context) error
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Dir         string
	Invalidator Invalidator
	Logger      *slog.Logger

	// Debounce is how long the signal directory must stay quiet before
	// pending signals are applied.
	Debounce time.Duration

	// UseFsnotify selects file system events; otherwise the directory is
	// polled every PollInterval. Polling also runs alongside fsnotify as a
	// backstop for missed events.
	UseFsnotify  bool
	PollInterval time.Duration
}

// Watcher applies invalidation signals from a directory.
type Watcher struct {
	config WatcherConfig
	logger *slog.Logger
}

// NewWatcher creates a watcher.
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("signal directory is required")
	}
	if config.Invalidator == nil {
		return nil, fmt.Errorf("invalidator is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	return &Watcher{config: config, logger: config.Logger}, nil
}

// Signal asks a watcher on dir to invalidate family. It is what ingestion
// processes call after writing facts.
func Signal(dir, family string) error {
	if !validName(family) {
		return fmt.Errorf("invalid family name %q", family)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create signal directory: %w", err)
	}
	path := filepath.Join(dir, family)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write signal %s: %w", family, err)
	}
	_, err = fmt.Fprintf(f, "%d\n", time.Now().Unix())
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Run watches the signal directory until ctx is done. Signals already
// present when Run starts are applied first.
func (w *Watcher) Run(ctx context.Context) (err error) {
	if err := os.MkdirAll(w.config.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create signal directory: %w", err)
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	if w.config.UseFsnotify {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create file watcher: %w", err)
		}
		defer func() {
			if closeErr := watcher.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		if err := watcher.Add(w.config.Dir); err != nil {
			return fmt.Errorf("failed to watch signal directory: %w", err)
		}
		events, errs = watcher.Events, watcher.Errors
	}

	w.logger.Info("Watching for invalidation signals",
		"dir", w.config.Dir,
		"fsnotify", w.config.UseFsnotify,
		"debounce", w.config.Debounce)

	w.apply(ctx, w.scan())

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	pending := make(map[string]struct{})
	debounce := time.NewTimer(w.config.Debounce)
	debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(event.Name)
			if !validName(name) {
				continue
			}
			pending[name] = struct{}{}
			debounce.Reset(w.config.Debounce)

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", "error", err)

		case <-ticker.C:
			for _, name := range w.scan() {
				pending[name] = struct{}{}
			}
			if len(pending) > 0 {
				debounce.Reset(w.config.Debounce)
			}

		case <-debounce.C:
			names := make([]string, 0, len(pending))
			for name := range pending {
				names = append(names, name)
			}
			clear(pending)
			w.apply(ctx, names)
		}
	}
}

// scan lists the signals present in the directory.
func (w *Watcher) scan() []string {
	entries, err := os.ReadDir(w.config.Dir)
	if err != nil {
		w.logger.Warn("Failed to read signal directory", "dir", w.config.Dir, "error", err)
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && validName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names
}

// apply consumes each signal file and invalidates its family. The file is
// removed before invalidating so that a signal written meanwhile is kept for
// the next round. A failed invalidation writes the signal back, so it is
// retried on the next round.
func (w *Watcher) apply(ctx context.Context, names []string) {
	if len(names) == 0 {
		return
	}
	all := false
	for _, name := range names {
		if name == All {
			all = true
		}
	}

	for _, name := range names {
		err := os.Remove(filepath.Join(w.config.Dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			w.logger.Warn("Failed to consume signal", "signal", name, "error", err)
			continue
		}
		if all && name != All {
			continue
		}

		if name == All {
			err = w.config.Invalidator.InvalidateAll(ctx)
		} else {
			err = w.config.Invalidator.Invalidate(ctx, name)
		}
		switch {
		case errors.Is(err, aggregate.ErrNotFound):
			w.logger.Warn("Ignoring signal for unknown family", "signal", name)
		case err != nil:
			w.logger.Error("Failed to invalidate family, requeueing signal", "signal", name, "error", err)
			if err := Signal(w.config.Dir, name); err != nil {
				w.logger.Error("Failed to requeue signal", "signal", name, "error", err)
			}
		default:
			w.logger.Info("Applied invalidation signal", "signal", name)
		}
	}
}

// validName skips hidden and temporary files.
func validName(name string) bool {
	return name != "" && !strings.HasPrefix(name, ".") && !strings.HasSuffix(name, "~") &&
		!strings.ContainsAny(name, `/\`)
}
