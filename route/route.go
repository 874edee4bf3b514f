package route

import (
	"fmt"
	"math"

	"github.com/kurtesianplane/andarTayo-sub000/model"
)

// A path between two stops of one line.
type Route struct {
	From      model.Stop
	To        model.Stop
	Direction string

	// Stops from origin to destination inclusive, in travel order.
	Path []model.Stop

	// Stations traversed, or kilometers for distance-linear lines.
	Distance float64
	Unit     model.DistanceUnit

	EstimatedMinutes int
}

// Builds the route between two stops. Stops must be sorted by
// sequence, as returned by the catalog loader.
func Build(line model.Line, stops []model.Stop, fromID, toID string) (*Route, error) {
	fromIdx, toIdx := -1, -1
	for i, s := range stops {
		if s.ID == fromID {
			fromIdx = i
		}
		if s.ID == toID {
			toIdx = i
		}
	}
	if fromIdx < 0 {
		return nil, &model.UnknownStopError{LineID: line.ID, StopID: fromID}
	}
	if toIdx < 0 {
		return nil, &model.UnknownStopError{LineID: line.ID, StopID: toID}
	}
	if fromIdx == toIdx {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidTrip, model.ErrSameEndpoint)
	}

	from, to := stops[fromIdx], stops[toIdx]

	lo, hi := fromIdx, toIdx
	if lo > hi {
		lo, hi = hi, lo
	}

	path := make([]model.Stop, 0, hi-lo+1)
	if fromIdx < toIdx {
		path = append(path, stops[lo:hi+1]...)
	} else {
		for i := hi; i >= lo; i-- {
			path = append(path, stops[i])
		}
	}

	r := &Route{
		From:      from,
		To:        to,
		Direction: line.Direction(from.Sequence, to.Sequence),
		Path:      path,
		Unit:      line.FareKind.DistanceUnit(),
	}

	if r.Unit == model.DistanceUnitKM {
		km, err := kilometers(stops[lo : hi+1])
		if err != nil {
			return nil, fmt.Errorf("%w: line %s: %w", model.ErrStopDataUnavailable, line.ID, err)
		}
		r.Distance = km
	} else {
		r.Distance = math.Abs(float64(to.Sequence - from.Sequence))
	}

	r.EstimatedMinutes = EstimateMinutes(line.Timing, r.Distance)

	return r, nil
}

// Affine travel time, never below the line's floor.
func EstimateMinutes(timing model.Timing, distance float64) int {
	minutes := int(math.Round(distance*timing.PerStopMinutes + timing.BaseMinutes))
	if minutes < timing.MinMinutes {
		return timing.MinMinutes
	}
	return minutes
}

// Sums segment lengths over stops in ascending sequence order, so
// both directions come out identical.
func kilometers(stops []model.Stop) (float64, error) {
	total := 0.0
	for i := 0; i+1 < len(stops); i++ {
		km, ok := segmentKM(stops[i], stops[i+1])
		if !ok {
			return 0, fmt.Errorf("no distance between '%s' and '%s'", stops[i].ID, stops[i+1].ID)
		}
		total += km
	}
	return total, nil
}
