package catalog_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurtesianplane/andarTayo-sub000/catalog"
	"github.com/kurtesianplane/andarTayo-sub000/data"
	"github.com/kurtesianplane/andarTayo-sub000/lines"
	"github.com/kurtesianplane/andarTayo-sub000/metrics"
	"github.com/kurtesianplane/andarTayo-sub000/model"
	"github.com/kurtesianplane/andarTayo-sub000/storage"
	"github.com/kurtesianplane/andarTayo-sub000/testutil"
)

// Counts reads and optionally blocks them until released.
type gatedSource struct {
	source storage.DatasetReader

	mutex sync.Mutex
	calls map[model.DatasetKind]int
	gate  chan struct{}
}

func newGatedSource(source storage.DatasetReader) *gatedSource {
	return &gatedSource{
		source: source,
		calls:  map[model.DatasetKind]int{},
	}
}

func (g *gatedSource) ReadDataset(ctx context.Context, key string, kind model.DatasetKind) (*model.Dataset, error) {
	g.mutex.Lock()
	g.calls[kind]++
	gate := g.gate
	g.mutex.Unlock()

	if gate != nil {
		<-gate
	}

	return g.source.ReadDataset(ctx, key, kind)
}

func (g *gatedSource) Calls(kind model.DatasetKind) int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.calls[kind]
}

func TestLoadStops(t *testing.T) {
	loader := catalog.NewLoader(testutil.Registry(t), testutil.Storage(t))

	stops, err := loader.LoadStops(context.Background(), "rail")
	require.NoError(t, err)
	require.Equal(t, len(testutil.RailStations), len(stops))
	for i, s := range stops {
		assert.Equal(t, i+1, s.Sequence)
		assert.Equal(t, testutil.RailStations[i], s.Name)
		assert.Equal(t, testutil.RailStopID(s.Name), s.ID)
	}

	// CSV backed line
	stops, err = loader.LoadStops(context.Background(), "tier")
	require.NoError(t, err)
	assert.Equal(t, 13, len(stops))
	assert.Equal(t, "t1", stops[0].ID)

	// Object with "stops" field, and segment lengths
	stops, err = loader.LoadStops(context.Background(), "brt")
	require.NoError(t, err)
	require.Equal(t, 6, len(stops))
	require.NotNil(t, stops[2].DistanceToNext)
	assert.Equal(t, 3.0, *stops[2].DistanceToNext)
	assert.Nil(t, stops[5].DistanceToNext)
}

func TestLoadStopsUnknownLine(t *testing.T) {
	loader := catalog.NewLoader(testutil.Registry(t), testutil.Storage(t))

	_, err := loader.LoadStops(context.Background(), "nope")
	assert.ErrorIs(t, err, model.ErrUnknownLine)
	assert.NotErrorIs(t, err, model.ErrStopDataUnavailable)

	var unknown *model.UnknownLineError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "nope", unknown.LineID)
}

func TestLoadStopsBrokenData(t *testing.T) {
	for _, tc := range []struct {
		Name   string
		Format model.DatasetFormat
		Data   string
	}{
		{"NotArrayOrObject", model.FormatJSON, `"hello"`},
		{"ObjectWithoutStops", model.FormatJSON, `{"foo": []}`},
		{"Empty", model.FormatJSON, `[]`},
		{"DuplicateIDs", model.FormatJSON, `[{"id":"a","name":"A","sequence":1},{"id":"a","name":"B","sequence":2}]`},
		{"DuplicateSequence", model.FormatJSON, `[{"id":"a","name":"A","sequence":1},{"id":"b","name":"B","sequence":1}]`},
		{"EmptyName", model.FormatJSON, `[{"id":"a","name":"","sequence":1}]`},
		{"MissingSequence", model.FormatJSON, `[{"id":"a","name":"A"}]`},
		{"BadCSV", model.FormatCSV, "stop_id,stop_name,sequence\na,A,first\n"},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			s := testutil.Storage(t)
			testutil.WriteDataset(t, s, "rail", model.DatasetStops, tc.Format, []byte(tc.Data))
			loader := catalog.NewLoader(testutil.Registry(t), s)

			_, err := loader.LoadStops(context.Background(), "rail")
			assert.ErrorIs(t, err, model.ErrStopDataUnavailable)
			assert.Equal(t, model.ClassData, model.Classify(err))
		})
	}
}

func TestLoadStopsMissingDataset(t *testing.T) {
	s := testutil.Storage(t)
	require.NoError(t, s.DeleteDataset(context.Background(), "rail", model.DatasetStops))
	loader := catalog.NewLoader(testutil.Registry(t), s)

	_, err := loader.LoadStops(context.Background(), "rail")
	assert.ErrorIs(t, err, model.ErrStopDataUnavailable)
	assert.ErrorIs(t, err, storage.ErrDatasetNotFound)
}

func TestLoadStopsSingleFlight(t *testing.T) {
	source := newGatedSource(testutil.Storage(t))
	source.gate = make(chan struct{})
	loader := catalog.NewLoader(testutil.Registry(t), source)

	const callers = 20
	results := make([][]model.Stop, callers)
	errs := make([]error, callers)

	wg := sync.WaitGroup{}
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = loader.LoadStops(context.Background(), "rail")
		}(i)
	}

	// Wait until the shared fetch is underway, give the remaining
	// callers a moment to join it, then release it.
	require.Eventually(t, func() bool { return source.Calls(model.DatasetStops) > 0 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(source.gate)
	wg.Wait()

	assert.Equal(t, 1, source.Calls(model.DatasetStops))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, len(testutil.RailStations), len(results[i]))
		assert.Same(t, &results[0][0], &results[i][0])
	}

	// Subsequent calls are served from cache
	stops, err := loader.LoadStops(context.Background(), "rail")
	require.NoError(t, err)
	assert.Same(t, &results[0][0], &stops[0])
	assert.Equal(t, 1, source.Calls(model.DatasetStops))
}

func TestFailuresAreNotCached(t *testing.T) {
	s := testutil.Storage(t)
	good, err := s.ReadDataset(context.Background(), "rail", model.DatasetStops)
	require.NoError(t, err)
	testutil.WriteDataset(t, s, "rail", model.DatasetStops, model.FormatJSON, []byte(`"broken"`))

	source := newGatedSource(s)
	loader := catalog.NewLoader(testutil.Registry(t), source)

	_, err = loader.LoadStops(context.Background(), "rail")
	require.ErrorIs(t, err, model.ErrStopDataUnavailable)

	// Fixed at the source, next call refetches
	require.NoError(t, s.WriteDataset(context.Background(), good))
	stops, err := loader.LoadStops(context.Background(), "rail")
	require.NoError(t, err)
	assert.Equal(t, len(testutil.RailStations), len(stops))
	assert.Equal(t, 2, source.Calls(model.DatasetStops))
}

func TestInvalidate(t *testing.T) {
	s := testutil.Storage(t)
	source := newGatedSource(s)
	loader := catalog.NewLoader(testutil.Registry(t), source)
	ctx := context.Background()

	_, err := loader.LoadStops(ctx, "rail")
	require.NoError(t, err)
	_, err = loader.LoadStops(ctx, "brt")
	require.NoError(t, err)
	assert.Equal(t, 2, source.Calls(model.DatasetStops))

	// New stop shows up after invalidation
	testutil.WriteDataset(t, s, "rail", model.DatasetStops, model.FormatJSON, []byte(
		`[{"id":"x","name":"X","sequence":1},{"id":"y","name":"Y","sequence":2}]`,
	))
	stops, err := loader.LoadStops(ctx, "rail")
	require.NoError(t, err)
	assert.Equal(t, len(testutil.RailStations), len(stops))

	loader.Invalidate("rail")
	stops, err = loader.LoadStops(ctx, "rail")
	require.NoError(t, err)
	assert.Equal(t, 2, len(stops))
	assert.Equal(t, 3, source.Calls(model.DatasetStops))

	// Other lines unaffected
	_, err = loader.LoadStops(ctx, "brt")
	require.NoError(t, err)
	assert.Equal(t, 3, source.Calls(model.DatasetStops))
}

func TestInvalidateDuringFetch(t *testing.T) {
	source := newGatedSource(testutil.Storage(t))
	source.gate = make(chan struct{})
	loader := catalog.NewLoader(testutil.Registry(t), source)

	done := make(chan error)
	go func() {
		_, err := loader.LoadStops(context.Background(), "rail")
		done <- err
	}()

	require.Eventually(t, func() bool { return source.Calls(model.DatasetStops) == 1 }, time.Second, time.Millisecond)
	loader.Invalidate("rail")
	close(source.gate)
	require.NoError(t, <-done)

	// The stale fetch didn't populate the cache
	source.mutex.Lock()
	source.gate = nil
	source.mutex.Unlock()
	_, err := loader.LoadStops(context.Background(), "rail")
	require.NoError(t, err)
	assert.Equal(t, 2, source.Calls(model.DatasetStops))
}

func TestCallerCancellationDoesNotFailOthers(t *testing.T) {
	source := newGatedSource(testutil.Storage(t))
	source.gate = make(chan struct{})
	loader := catalog.NewLoader(testutil.Registry(t), source)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error)
	go func() {
		_, err := loader.LoadStops(ctx, "rail")
		first <- err
	}()
	require.Eventually(t, func() bool { return source.Calls(model.DatasetStops) == 1 }, time.Second, time.Millisecond)

	second := make(chan error)
	go func() {
		_, err := loader.LoadStops(context.Background(), "rail")
		second <- err
	}()

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(source.gate)
	assert.NoError(t, <-second)
	assert.Equal(t, 1, source.Calls(model.DatasetStops))
}

func TestLoadFareTable(t *testing.T) {
	loader := catalog.NewLoader(testutil.Registry(t), testutil.Storage(t))
	ctx := context.Background()

	table, err := loader.LoadFareTable(ctx, "rail")
	require.NoError(t, err)
	assert.Equal(t, model.FareKindMatrix, table.Kind)
	require.NotNil(t, table.Matrix)
	assert.Equal(t, testutil.RailStations, table.Matrix.Stations)
	assert.Equal(t, 20.0, table.Matrix.Rows["sjt"]["MONUMENTO"][8])

	table, err = loader.LoadFareTable(ctx, "brt")
	require.NoError(t, err)
	assert.Equal(t, model.FareKindDistanceLinear, table.Kind)
	assert.Equal(t, model.LinearFare{BaseFare: 15, MinKM: 4, PerKM: 2.5}, table.Linear["regular"])

	table, err = loader.LoadFareTable(ctx, "tier")
	require.NoError(t, err)
	assert.Equal(t, model.FareKindDistanceTiered, table.Kind)
	assert.Equal(t, 5, len(table.Tiered.Bands))
}

func TestLoadFareTableBrokenData(t *testing.T) {
	for _, tc := range []struct {
		Name string
		Line string
		Data string
	}{
		{"MatrixNotObject", "rail", `[]`},
		{"MatrixStationMismatch", "rail", `{"stations":["MONUMENTO"],"fares":{"sjt":{"MONUMENTO":[0]}}}`},
		{"MatrixShortRow", "rail", `{"stations":["A","B"],"fares":{"sjt":{"A":[0]}}}`},
		{"LinearNegative", "brt", `{"regular":{"base_fare":-1,"min_km":4,"per_km":2}}`},
		{"LinearEmpty", "brt", `{}`},
		{"TieredGap", "tier", `{"bands":[{"minDistance":1,"maxDistance":2,"fare":13},{"minDistance":4,"maxDistance":5,"fare":16}]}`},
		{"TieredNotStartingAtOne", "tier", `{"bands":[{"minDistance":2,"maxDistance":3,"fare":13}]}`},
		{"TieredNoBands", "tier", `{"bands":[]}`},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			s := testutil.Storage(t)
			testutil.WriteDataset(t, s, tc.Line, model.DatasetFares, model.FormatJSON, []byte(tc.Data))
			loader := catalog.NewLoader(testutil.Registry(t), s)

			_, err := loader.LoadFareTable(context.Background(), tc.Line)
			assert.ErrorIs(t, err, model.ErrFareDataUnavailable)
			assert.Equal(t, model.ClassData, model.Classify(err))
		})
	}
}

func TestLoadSupplementary(t *testing.T) {
	s := testutil.Storage(t)
	testutil.WriteDataset(t, s, "tier", model.DatasetSupplementary, model.FormatJSON, []byte(`not json`))
	loader := catalog.NewLoader(testutil.Registry(t), s)
	ctx := context.Background()

	info := loader.LoadSupplementary(ctx, "rail")
	require.NotNil(t, info)
	require.Equal(t, 1, len(info.Socials))
	assert.Equal(t, "https://example.com/rail", info.Socials[0].URL)

	// Missing, malformed and unknown all degrade to nil
	assert.Nil(t, loader.LoadSupplementary(ctx, "brt"))
	assert.Nil(t, loader.LoadSupplementary(ctx, "tier"))
	assert.Nil(t, loader.LoadSupplementary(ctx, "nope"))
}

func TestInvalidateMetrics(t *testing.T) {
	collector := metrics.NewCollector()
	loader := catalog.NewLoader(testutil.Registry(t), testutil.Storage(t), catalog.WithMetrics(collector))

	loader.Invalidate("rail")
	loader.Invalidate("rail")
	for i := 0; i < 10; i++ {
		loader.Invalidate(fmt.Sprintf("nope-%d", i))
	}

	assert.Equal(t, 2.0, promtestutil.ToFloat64(collector.Invalidations.WithLabelValues("rail")))
	assert.Equal(t, 10.0, promtestutil.ToFloat64(collector.Invalidations.WithLabelValues(metrics.UnknownLine)))
	assert.Equal(t, 2, promtestutil.CollectAndCount(collector.Invalidations))
}

func TestWarm(t *testing.T) {
	source := newGatedSource(testutil.Storage(t))
	collector := metrics.NewCollector()
	loader := catalog.NewLoader(testutil.Registry(t), source, catalog.WithMetrics(collector))

	require.NoError(t, loader.Warm(context.Background()))
	assert.Equal(t, 3, source.Calls(model.DatasetStops))
	assert.Equal(t, 3, source.Calls(model.DatasetFares))

	// Everything is cached now
	for _, line := range []string{"rail", "brt", "tier"} {
		_, err := loader.LoadStops(context.Background(), line)
		require.NoError(t, err)
		_, err = loader.LoadFareTable(context.Background(), line)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, source.Calls(model.DatasetStops))
	assert.Equal(t, 3, source.Calls(model.DatasetFares))
}

func TestWarmIsolatesFailures(t *testing.T) {
	s := testutil.Storage(t)
	require.NoError(t, s.DeleteDataset(context.Background(), "brt", model.DatasetFares))
	loader := catalog.NewLoader(testutil.Registry(t), s)

	err := loader.Warm(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrFareDataUnavailable)

	// The other lines still loaded
	_, err = loader.LoadFareTable(context.Background(), "rail")
	assert.NoError(t, err)
	_, err = loader.LoadFareTable(context.Background(), "tier")
	assert.NoError(t, err)
}

func TestBundledDatasets(t *testing.T) {
	registry, err := lines.Default()
	require.NoError(t, err)
	loader := catalog.NewLoader(registry, storage.NewFSStorage(data.FS))

	require.NoError(t, loader.Warm(context.Background()))

	for _, line := range registry.List() {
		stops, err := loader.LoadStops(context.Background(), line.ID)
		require.NoError(t, err)
		assert.True(t, len(stops) > 1, line.ID)

		table, err := loader.LoadFareTable(context.Background(), line.ID)
		require.NoError(t, err)
		assert.Equal(t, line.FareKind, table.Kind)
	}

	assert.NotNil(t, loader.LoadSupplementary(context.Background(), "lrt1"))
	assert.Nil(t, loader.LoadSupplementary(context.Background(), "carousel"))
}
