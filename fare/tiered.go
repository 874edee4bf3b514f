package fare

import (
	"github.com/kurtesianplane/andarTayo-sub000/model"
)

// Tiered charges the fare of the band containing the number of
// stations traversed. Trips longer than the last band pay the last
// band's fare.
//
// Methods may carry a multiplier in the table. Discount categories
// default to DefaultDiscountRate, everything else to 1.
type Tiered struct{}

func (Tiered) Fare(q Quote, table *model.FareTable) (float64, error) {
	if q.sameStop() {
		return 0, nil
	}
	if err := checkKind(q, table, model.FareKindDistanceTiered); err != nil {
		return 0, err
	}
	t := table.Tiered
	if t == nil || len(t.Bands) == 0 {
		return 0, lookupError(q, "no fare bands")
	}

	distance := q.To.Sequence - q.From.Sequence
	if distance < 0 {
		distance = -distance
	}

	base := t.Bands[len(t.Bands)-1].Fare
	for _, b := range t.Bands {
		if distance >= b.MinDistance && distance <= b.MaxDistance {
			base = b.Fare
			break
		}
	}

	return round(base * multiplier(t, q.Method)), nil
}

func multiplier(t *model.TieredTable, method model.PaymentMethod) float64 {
	if m, found := t.Multipliers[method.ID]; found {
		return m
	}
	if method.Discount {
		return DefaultDiscountRate
	}
	return 1
}
