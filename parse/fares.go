package parse

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spkg/bom"

	"github.com/kurtesianplane/andarTayo-sub000/model"
)

type LinearFareCSV struct {
	Method   string  `csv:"method"`
	BaseFare float64 `csv:"base_fare"`
	MinKM    float64 `csv:"min_km"`
	PerKM    float64 `csv:"per_km"`
}

// Parses a fare table of the given kind.
//
// Matrix tables are JSON only. Linear tables are a JSON object
// keyed by payment method, or CSV with a method column. Tiered
// tables are a JSON object with bands (and optional per method
// multipliers), or CSV holding only the bands.
func ParseFareTable(kind model.FareKind, format model.DatasetFormat, data []byte) (*model.FareTable, error) {
	data = bom.Clean(data)

	switch kind {
	case model.FareKindMatrix:
		if format == model.FormatCSV {
			return nil, fmt.Errorf("matrix fare tables must be json")
		}
		return parseMatrix(data)

	case model.FareKindDistanceLinear:
		return parseLinear(format, data)

	case model.FareKindDistanceTiered:
		return parseTiered(format, data)
	}

	return nil, fmt.Errorf("unknown fare kind '%s'", kind)
}

func parseMatrix(data []byte) (*model.FareTable, error) {
	if leadingByte(data) != '{' {
		return nil, fmt.Errorf("expected object")
	}

	matrix := &model.MatrixTable{}
	if err := json.Unmarshal(data, matrix); err != nil {
		return nil, fmt.Errorf("unmarshaling matrix: %w", err)
	}

	if len(matrix.Stations) == 0 {
		return nil, fmt.Errorf("matrix declares no stations")
	}
	seen := map[string]bool{}
	for _, s := range matrix.Stations {
		if s == "" {
			return nil, fmt.Errorf("empty station name in matrix")
		}
		if seen[s] {
			return nil, fmt.Errorf("repeated station '%s' in matrix", s)
		}
		seen[s] = true
	}

	if len(matrix.Rows) == 0 {
		return nil, fmt.Errorf("matrix has no payment methods")
	}
	for method, rows := range matrix.Rows {
		for origin, row := range rows {
			if !seen[origin] {
				return nil, fmt.Errorf("method '%s': row for undeclared station '%s'", method, origin)
			}
			if len(row) != len(matrix.Stations) {
				return nil, fmt.Errorf(
					"method '%s': row '%s' has %d fares, expected %d",
					method, origin, len(row), len(matrix.Stations),
				)
			}
		}
	}

	return &model.FareTable{
		Kind:   model.FareKindMatrix,
		Matrix: matrix,
	}, nil
}

func parseLinear(format model.DatasetFormat, data []byte) (*model.FareTable, error) {
	fares := map[string]model.LinearFare{}

	if format == model.FormatCSV {
		rows := []*LinearFareCSV{}
		if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
			return nil, errors.Wrap(err, "unmarshaling linear fares csv")
		}
		for i, r := range rows {
			method := strings.TrimSpace(r.Method)
			if method == "" {
				return nil, fmt.Errorf("empty method (row %d)", i+1)
			}
			if _, found := fares[method]; found {
				return nil, fmt.Errorf("repeated method '%s' (row %d)", method, i+1)
			}
			fares[method] = model.LinearFare{BaseFare: r.BaseFare, MinKM: r.MinKM, PerKM: r.PerKM}
		}
	} else {
		if leadingByte(data) != '{' {
			return nil, fmt.Errorf("expected object")
		}
		if err := json.Unmarshal(data, &fares); err != nil {
			return nil, fmt.Errorf("unmarshaling linear fares: %w", err)
		}
	}

	if len(fares) == 0 {
		return nil, fmt.Errorf("no payment methods")
	}
	for method, f := range fares {
		if f.BaseFare < 0 || f.MinKM < 0 || f.PerKM < 0 {
			return nil, fmt.Errorf("method '%s': negative fare parameter", method)
		}
	}

	return &model.FareTable{
		Kind:   model.FareKindDistanceLinear,
		Linear: fares,
	}, nil
}

func parseTiered(format model.DatasetFormat, data []byte) (*model.FareTable, error) {
	table := &model.TieredTable{}

	if format == model.FormatCSV {
		bands := []*model.FareBand{}
		if err := gocsv.UnmarshalBytes(data, &bands); err != nil {
			return nil, errors.Wrap(err, "unmarshaling fare bands csv")
		}
		for _, b := range bands {
			table.Bands = append(table.Bands, *b)
		}
	} else {
		if leadingByte(data) != '{' {
			return nil, fmt.Errorf("expected object")
		}
		if err := json.Unmarshal(data, table); err != nil {
			return nil, fmt.Errorf("unmarshaling tiered fares: %w", err)
		}
	}

	if err := validateBands(table.Bands); err != nil {
		return nil, err
	}
	for method, m := range table.Multipliers {
		if m < 0 {
			return nil, fmt.Errorf("negative multiplier for method '%s'", method)
		}
	}

	return &model.FareTable{
		Kind:   model.FareKindDistanceTiered,
		Tiered: table,
	}, nil
}

// Bands must cover [1, ∞) without gaps. The last band's fare
// applies beyond its stated maximum.
func validateBands(bands []model.FareBand) error {
	if len(bands) == 0 {
		return fmt.Errorf("no fare bands")
	}

	sort.SliceStable(bands, func(i, j int) bool {
		return bands[i].MinDistance < bands[j].MinDistance
	})

	if bands[0].MinDistance != 1 {
		return fmt.Errorf("first band starts at %d, expected 1", bands[0].MinDistance)
	}

	for i, b := range bands {
		if b.MaxDistance < b.MinDistance {
			return fmt.Errorf("band %d: max %d below min %d", i+1, b.MaxDistance, b.MinDistance)
		}
		if b.Fare < 0 {
			return fmt.Errorf("band %d: negative fare", i+1)
		}
		if i > 0 && b.MinDistance != bands[i-1].MaxDistance+1 {
			return fmt.Errorf(
				"band %d: starts at %d, expected %d",
				i+1, b.MinDistance, bands[i-1].MaxDistance+1,
			)
		}
	}

	return nil
}
