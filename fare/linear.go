package fare

import (
	"github.com/kurtesianplane/andarTayo-sub000/model"
)

// Linear charges a flat base fare up to MinKM, and PerKM for every
// kilometer beyond.
type Linear struct{}

func (Linear) Fare(q Quote, table *model.FareTable) (float64, error) {
	if q.sameStop() {
		return 0, nil
	}
	if err := checkKind(q, table, model.FareKindDistanceLinear); err != nil {
		return 0, err
	}

	f, found := table.Linear[q.Method.ID]
	if !found {
		return 0, lookupError(q, "no fares for payment method")
	}
	if q.Distance < 0 {
		return 0, lookupError(q, "negative distance %f", q.Distance)
	}

	if q.Distance <= f.MinKM {
		return round(f.BaseFare), nil
	}
	return round(f.BaseFare + (q.Distance-f.MinKM)*f.PerKM), nil
}
