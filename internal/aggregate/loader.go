package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/singleflight"

	"github.com/ramonehamilton/deckstats/internal/metrics"
)

// DefaultReadAttempts bounds how often Read re-checks and refreshes a family
// whose tables keep disappearing under it.
const DefaultReadAttempts = 3

// LoaderConfig configures the staleness-triggered loader.
type LoaderConfig struct {
	Engine       *Engine
	Logger       *slog.Logger
	ReadAttempts int
}

// familyState guards one family.
type familyState struct {
	// Readers hold rw for reading from their staleness check until their
	// query returns, including any rebuild in between. Invalidate holds it
	// for writing while it drops tables.
	rw sync.RWMutex

	// rebuild serializes family rebuilds with invalidations. It is always
	// acquired after rw.
	rebuild sync.Mutex
}

// Loader runs reads against aggregate families, rebuilding a family first
// when any of its tables is missing. A missing table is the only staleness
// signal: Invalidate drops a family's tables to mark it stale.
type Loader struct {
	engine   *Engine
	logger   *slog.Logger
	metrics  *metrics.RefreshMetrics
	attempts int

	group    singleflight.Group
	families *xsync.Map[string, *familyState]
}

// NewLoader creates a loader.
func NewLoader(config LoaderConfig) (*Loader, error) {
	if config.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.ReadAttempts <= 0 {
		config.ReadAttempts = DefaultReadAttempts
	}

	return &Loader{
		engine:   config.Engine,
		logger:   config.Logger,
		metrics:  config.Engine.Metrics(),
		attempts: config.ReadAttempts,
		families: xsync.NewMap[string, *familyState](),
	}, nil
}

// Engine returns the loader's rebuild engine.
func (l *Loader) Engine() *Engine {
	return l.engine
}

func (l *Loader) state(family string) (*familyState, error) {
	if _, err := l.engine.Registry().Family(family); err != nil {
		return nil, err
	}
	st, _ := l.families.LoadOrCompute(family, func() (*familyState, bool) {
		return &familyState{}, false
	})
	return st, nil
}

// Read runs fn once the family is fresh. The family cannot be invalidated
// between the staleness check and the end of fn. If fn still finds a table
// missing, the family is refreshed and fn retried, up to the configured
// number of attempts. Rebuild failures are returned to the caller; stale
// data is never served.
func (l *Loader) Read(ctx context.Context, family string, fn func(ctx context.Context) error) error {
	st, err := l.state(family)
	if err != nil {
		return err
	}

	st.rw.RLock()
	defer st.rw.RUnlock()

	var lastErr error
	for attempt := 1; attempt <= l.attempts; attempt++ {
		if err := l.EnsureFresh(ctx, family); err != nil {
			return err
		}
		err := fn(ctx)
		if err != nil && isMissingTable(err) {
			lastErr = err
			l.metrics.IncrementReadRetries()
			l.logger.Debug("Aggregate table vanished during read, retrying",
				"family", family,
				"attempt", attempt,
				"error", err)
			continue
		}
		return err
	}
	return fmt.Errorf("read of family %s failed after %d attempts: %w",
		family, l.attempts, errors.Join(ErrRefreshFailed, lastErr))
}

// EnsureFresh rebuilds the family if any member table is missing and
// returns once the rebuild has finished. Concurrent callers that find the
// same family stale share one rebuild.
func (l *Loader) EnsureFresh(ctx context.Context, family string) error {
	fresh, err := l.IsFresh(ctx, family)
	if err != nil {
		return err
	}
	if fresh {
		l.metrics.IncrementFreshReads()
		return nil
	}

	l.metrics.IncrementStaleReads()
	_, err, shared := l.group.Do("stale:"+family, func() (any, error) {
		return l.rebuild(ctx, family, true)
	})
	if shared {
		l.metrics.IncrementCoalescedRefresh()
	}
	return err
}

// Refresh rebuilds the family unconditionally. Concurrent forced refreshes
// of the same family share one rebuild.
func (l *Loader) Refresh(ctx context.Context, family string) (*FamilyResult, error) {
	if _, err := l.state(family); err != nil {
		return nil, err
	}
	v, err, shared := l.group.Do("force:"+family, func() (any, error) {
		return l.rebuild(ctx, family, false)
	})
	if shared {
		l.metrics.IncrementCoalescedRefresh()
	}
	res, _ := v.(*FamilyResult)
	return res, err
}

// RefreshAll rebuilds every family in registration order, stopping at the
// first failure.
func (l *Loader) RefreshAll(ctx context.Context) ([]*FamilyResult, error) {
	var results []*FamilyResult
	for _, f := range l.engine.Registry().Families() {
		res, err := l.Refresh(ctx, f.Name)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// rebuild runs a family rebuild detached from the caller's cancellation; a
// rebuild once started runs to completion or failure.
func (l *Loader) rebuild(ctx context.Context, family string, onlyIfStale bool) (*FamilyResult, error) {
	st, err := l.state(family)
	if err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	st.rebuild.Lock()
	defer st.rebuild.Unlock()

	if onlyIfStale {
		missing, err := l.engine.MissingTables(ctx, family)
		if err != nil {
			return nil, err
		}
		if len(missing) == 0 {
			return nil, nil
		}
		l.logger.Info("Aggregate family stale", "family", family, "missing", missing)
	}
	return l.engine.RebuildFamily(ctx, family)
}

// IsFresh reports whether every member table of the family is present.
func (l *Loader) IsFresh(ctx context.Context, family string) (bool, error) {
	missing, err := l.engine.MissingTables(ctx, family)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

// Invalidate marks a family stale by dropping all of its tables in one
// transaction. It waits for in-flight reads and rebuilds of the family.
func (l *Loader) Invalidate(ctx context.Context, family string) error {
	st, err := l.state(family)
	if err != nil {
		return err
	}
	f, _ := l.engine.Registry().Family(family)

	st.rw.Lock()
	defer st.rw.Unlock()
	st.rebuild.Lock()
	defer st.rebuild.Unlock()

	if err := l.engine.Drop(ctx, f.Members...); err != nil {
		return fmt.Errorf("failed to invalidate family %s: %w", family, err)
	}
	l.metrics.IncrementInvalidations()
	l.logger.Info("Invalidated aggregate family", "family", family)
	return nil
}

// InvalidateAll invalidates every family.
func (l *Loader) InvalidateAll(ctx context.Context) error {
	var errs []error
	for _, f := range l.engine.Registry().Families() {
		if err := l.Invalidate(ctx, f.Name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isMissingTable(err error) bool {
	return strings.Contains(err.Error(), "no such table")
}
