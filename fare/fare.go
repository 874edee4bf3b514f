package fare

import (
	"fmt"
	"math"

	"github.com/kurtesianplane/andarTayo-sub000/model"
)

const (
	// Share of the base fare paid by discount categories when a
	// table doesn't price them explicitly.
	DefaultDiscountRate = 0.8
)

// Everything a strategy needs to price one trip.
type Quote struct {
	From   model.Stop
	To     model.Stop
	Method model.PaymentMethod

	// Payment method whose fares discount categories fall back on.
	BaseMethod string

	// Kilometers for distance-linear lines, stations traversed
	// otherwise.
	Distance float64
}

func (q Quote) sameStop() bool {
	return q.From.ID == q.To.ID
}

// A pricing algorithm for one fare kind.
type Strategy interface {
	Fare(q Quote, table *model.FareTable) (float64, error)
}

// Strategy for the given fare kind.
func For(kind model.FareKind) (Strategy, error) {
	switch kind {
	case model.FareKindMatrix:
		return Matrix{}, nil
	case model.FareKindDistanceLinear:
		return Linear{}, nil
	case model.FareKindDistanceTiered:
		return Tiered{}, nil
	}
	return nil, fmt.Errorf("unknown fare kind '%s'", kind)
}

func lookupError(q Quote, format string, args ...any) error {
	return &model.FareLookupError{
		MethodID: q.Method.ID,
		From:     q.From.Name,
		To:       q.To.Name,
		Reason:   fmt.Sprintf(format, args...),
	}
}

func checkKind(q Quote, table *model.FareTable, kind model.FareKind) error {
	if table == nil {
		return lookupError(q, "no fare table")
	}
	if table.Kind != kind {
		return lookupError(q, "expected %s fare table, got %s", kind, table.Kind)
	}
	return nil
}

// Whole currency units.
func round(f float64) float64 {
	return math.Round(f)
}
