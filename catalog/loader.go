package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"github.com/kurtesianplane/andarTayo-sub000/lines"
	"github.com/kurtesianplane/andarTayo-sub000/metrics"
	"github.com/kurtesianplane/andarTayo-sub000/model"
	"github.com/kurtesianplane/andarTayo-sub000/parse"
	"github.com/kurtesianplane/andarTayo-sub000/storage"
)

const (
	// Lines loaded in parallel by Warm.
	DefaultWarmConcurrency = 4
)

type cacheKey struct {
	LineID string
	Kind   model.DatasetKind
}

// Loader fetches, parses and caches per line datasets.
//
// Concurrent requests for the same line and dataset share a single
// fetch. Successful results are cached until Invalidate is called
// for the line, failures are not cached. Returned values are shared
// between callers and must not be modified.
type Loader struct {
	registry *lines.Registry
	source   storage.DatasetReader
	logger   zerolog.Logger
	metrics  *metrics.Collector

	WarmConcurrency int

	mutex      sync.Mutex
	entries    map[cacheKey]any
	generation map[string]uint64
	group      singleflight.Group
}

type Option func(*Loader)

func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(l *Loader) { l.metrics = c }
}

func NewLoader(registry *lines.Registry, source storage.DatasetReader, opts ...Option) *Loader {
	l := &Loader{
		registry:        registry,
		source:          source,
		logger:          log.Logger,
		WarmConcurrency: DefaultWarmConcurrency,
		entries:         map[cacheKey]any{},
		generation:      map[string]uint64{},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With().Str("component", "catalog").Logger()
	return l
}

// Stops of a line, sorted by sequence.
func (l *Loader) LoadStops(ctx context.Context, lineID string) ([]model.Stop, error) {
	line, err := l.registry.Describe(lineID)
	if err != nil {
		return nil, err
	}

	v, err := l.load(ctx, line, model.DatasetStops, func(ctx context.Context, ds *model.Dataset) (any, error) {
		return parse.ParseStops(ds.Format, ds.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrStopDataUnavailable, lineID, err)
	}

	return v.([]model.Stop), nil
}

// Fare table of a line, parsed according to its fare kind.
func (l *Loader) LoadFareTable(ctx context.Context, lineID string) (*model.FareTable, error) {
	line, err := l.registry.Describe(lineID)
	if err != nil {
		return nil, err
	}

	v, err := l.load(ctx, line, model.DatasetFares, func(ctx context.Context, ds *model.Dataset) (any, error) {
		table, err := parse.ParseFareTable(line.FareKind, ds.Format, ds.Data)
		if err != nil {
			return nil, err
		}

		if table.Kind == model.FareKindMatrix {
			stops, err := l.LoadStops(ctx, lineID)
			if err != nil {
				return nil, err
			}
			if err := checkMatrixStations(table.Matrix, stops); err != nil {
				return nil, err
			}
		}

		return table, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrFareDataUnavailable, lineID, err)
	}

	return v.(*model.FareTable), nil
}

// Supplementary line info, or nil if unavailable for any reason.
func (l *Loader) LoadSupplementary(ctx context.Context, lineID string) *model.Supplementary {
	line, err := l.registry.Describe(lineID)
	if err != nil {
		l.logger.Debug().Err(err).Msg("supplementary info for unknown line")
		return nil
	}

	v, err := l.load(ctx, line, model.DatasetSupplementary, func(ctx context.Context, ds *model.Dataset) (any, error) {
		return parse.ParseSupplementary(ds.Data)
	})
	if err != nil {
		l.logger.Debug().Err(err).Str("line", lineID).Msg("supplementary info unavailable")
		return nil
	}

	return v.(*model.Supplementary)
}

// Drops all cached datasets for a line. Fetches already in flight
// complete for their callers but don't repopulate the cache.
func (l *Loader) Invalidate(lineID string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.generation[lineID]++
	for key := range l.entries {
		if key.LineID == lineID {
			delete(l.entries, key)
		}
	}

	label := lineID
	if _, err := l.registry.Describe(lineID); err != nil {
		label = metrics.UnknownLine
	}
	l.metrics.Invalidated(label)
	l.logger.Debug().Str("line", lineID).Msg("invalidated")
}

// Loads stops and fares for every registered line. Failures for one
// line don't prevent others from loading; all failures are
// returned joined.
func (l *Loader) Warm(ctx context.Context) error {
	n := l.WarmConcurrency
	if n <= 0 {
		n = DefaultWarmConcurrency
	}

	p := pool.New().WithContext(ctx).WithMaxGoroutines(n)
	for _, line := range l.registry.List() {
		lineID := line.ID
		p.Go(func(ctx context.Context) error {
			if _, err := l.LoadStops(ctx, lineID); err != nil {
				return err
			}
			if _, err := l.LoadFareTable(ctx, lineID); err != nil {
				return err
			}
			return nil
		})
	}

	return p.Wait()
}

func (l *Loader) load(
	ctx context.Context,
	line model.Line,
	kind model.DatasetKind,
	decode func(context.Context, *model.Dataset) (any, error),
) (any, error) {
	key := cacheKey{line.ID, kind}

	l.mutex.Lock()
	if v, found := l.entries[key]; found {
		l.mutex.Unlock()
		l.metrics.CacheHit(string(kind))
		return v, nil
	}
	gen := l.generation[line.ID]
	l.mutex.Unlock()

	// Callers arriving after an invalidation start a new flight.
	flight := fmt.Sprintf("%s/%s/%d", line.ID, kind, gen)

	ch := l.group.DoChan(flight, func() (any, error) {
		// One caller giving up doesn't cancel the shared fetch.
		fetchCtx := context.WithoutCancel(ctx)

		l.logger.Debug().Str("line", line.ID).Str("kind", string(kind)).Msg("fetching dataset")

		ds, err := l.source.ReadDataset(fetchCtx, line.DataKey, kind)
		l.metrics.DatasetFetched(string(kind), err)
		if err != nil {
			return nil, err
		}

		v, err := decode(fetchCtx, ds)
		if err != nil {
			return nil, fmt.Errorf("%s/%s.%s: %w", line.DataKey, kind, ds.Format, err)
		}

		l.mutex.Lock()
		if l.generation[line.ID] == gen {
			l.entries[key] = v
		}
		l.mutex.Unlock()

		return v, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Matrix fare tables must price exactly the stations in the stop
// catalog.
func checkMatrixStations(m *model.MatrixTable, stops []model.Stop) error {
	if len(m.Stations) != len(stops) {
		return fmt.Errorf("matrix has %d stations, catalog has %d stops", len(m.Stations), len(stops))
	}

	names := map[string]bool{}
	for _, s := range m.Stations {
		names[s] = true
	}
	for _, stop := range stops {
		if !names[stop.Name] {
			return fmt.Errorf("stop '%s' missing from fare matrix", stop.Name)
		}
	}

	return nil
}
