package fare

import (
	"github.com/kurtesianplane/andarTayo-sub000/model"
)

// Matrix prices trips by direct lookup: the row of the origin's
// name, at the column of the destination's name in the table's
// declared station ordering.
//
// Discount categories without their own rows pay
// DefaultDiscountRate of the base method's fare. Rows are only ever
// keyed by origin.
type Matrix struct{}

func (Matrix) Fare(q Quote, table *model.FareTable) (float64, error) {
	if q.sameStop() {
		return 0, nil
	}
	if err := checkKind(q, table, model.FareKindMatrix); err != nil {
		return 0, err
	}
	m := table.Matrix
	if m == nil {
		return 0, lookupError(q, "no fare matrix")
	}

	rate := 1.0
	rows, found := m.Rows[q.Method.ID]
	if !found {
		if !q.Method.Discount || q.BaseMethod == "" {
			return 0, lookupError(q, "no fares for payment method")
		}
		rows, found = m.Rows[q.BaseMethod]
		if !found {
			return 0, lookupError(q, "no fares for base method '%s'", q.BaseMethod)
		}
		rate = DefaultDiscountRate
	}

	row, found := rows[q.From.Name]
	if !found {
		return 0, lookupError(q, "origin not in fare matrix")
	}
	col := m.Column(q.To.Name)
	if col < 0 {
		return 0, lookupError(q, "destination not in fare matrix")
	}
	if col >= len(row) {
		return 0, lookupError(q, "row has %d fares, need column %d", len(row), col)
	}

	return round(row[col] * rate), nil
}
