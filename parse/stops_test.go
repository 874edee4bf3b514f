package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurtesianplane/andarTayo-sub000/model"
)

func f(v float64) *float64 { return &v }

func TestParseStops(t *testing.T) {
	for _, tc := range []struct {
		name    string
		format  model.DatasetFormat
		content string
		stops   []model.Stop
		err     bool
	}{
		{
			"json_array",
			model.FormatJSON,
			`[
  {"id": "b", "name": "Bravo", "sequence": 2},
  {"id": "a", "name": "Alpha", "sequence": 1, "lat": 14.5, "lng": 121.0}
]`,
			[]model.Stop{
				{ID: "a", Name: "Alpha", Sequence: 1, Lat: f(14.5), Lon: f(121.0)},
				{ID: "b", Name: "Bravo", Sequence: 2},
			},
			false,
		},

		{
			"json_stations_object",
			model.FormatJSON,
			`{"stations": [
  {"id": 7, "station_name": "Dr. Santos", "sequence": 1, "latitude": 14.48, "longitude": 120.99, "extension": "cavite-extension-1"},
  {"id": 8, "station_name": "Ninoy Aquino Avenue", "sequence": 2, "phase": "cavite-extension-1"}
]}`,
			[]model.Stop{
				{ID: "7", Name: "Dr. Santos", Sequence: 1, Lat: f(14.48), Lon: f(120.99), Extension: "cavite-extension-1"},
				{ID: "8", Name: "Ninoy Aquino Avenue", Sequence: 2, Extension: "cavite-extension-1"},
			},
			false,
		},

		{
			"json_stops_object",
			model.FormatJSON,
			`{"stops": [
  {"stop_id": "m", "stop_name": "Monumento", "sequence": 1, "distance_to_next": 1.6},
  {"stop_id": "b", "stop_name": "Bagong Barrio", "sequence": 2, "distanceToNext": 2.1},
  {"stop_id": "c", "stop_name": "Balintawak", "sequence": 3}
]}`,
			[]model.Stop{
				{ID: "m", Name: "Monumento", Sequence: 1, DistanceToNext: f(1.6)},
				{ID: "b", Name: "Bagong Barrio", Sequence: 2, DistanceToNext: f(2.1)},
				{ID: "c", Name: "Balintawak", Sequence: 3},
			},
			false,
		},

		{
			"json_with_bom",
			model.FormatJSON,
			"\xef\xbb\xbf[{\"id\": \"a\", \"name\": \"Alpha\", \"sequence\": 1}]",
			[]model.Stop{{ID: "a", Name: "Alpha", Sequence: 1}},
			false,
		},

		{
			"csv",
			model.FormatCSV,
			`stop_id,stop_name,sequence,lat,lon,extension,distance_to_next
s2,Quezon Avenue,2,14.6425,121.0387,,
s1,North Avenue,1,14.6522,121.0323,,1.2
`,
			[]model.Stop{
				{ID: "s1", Name: "North Avenue", Sequence: 1, Lat: f(14.6522), Lon: f(121.0323), DistanceToNext: f(1.2)},
				{ID: "s2", Name: "Quezon Avenue", Sequence: 2, Lat: f(14.6425), Lon: f(121.0387)},
			},
			false,
		},

		{
			"csv_minimal_columns",
			model.FormatCSV,
			"stop_id,stop_name,sequence\nx, Xylo ,3\n",
			[]model.Stop{{ID: "x", Name: "Xylo", Sequence: 3}},
			false,
		},

		{"json_scalar", model.FormatJSON, `42`, nil, true},
		{"json_object_without_stops", model.FormatJSON, `{"lines": []}`, nil, true},
		{"json_empty", model.FormatJSON, `[]`, nil, true},
		{"json_missing_sequence", model.FormatJSON, `[{"id": "a", "name": "A"}]`, nil, true},
		{"json_missing_id", model.FormatJSON, `[{"name": "A", "sequence": 1}]`, nil, true},
		{"json_missing_name", model.FormatJSON, `[{"id": "a", "sequence": 1}]`, nil, true},
		{"json_repeated_id", model.FormatJSON, `[{"id": "a", "name": "A", "sequence": 1}, {"id": "a", "name": "B", "sequence": 2}]`, nil, true},
		{"json_repeated_sequence", model.FormatJSON, `[{"id": "a", "name": "A", "sequence": 1}, {"id": "b", "name": "B", "sequence": 1}]`, nil, true},
		{"json_bad_id_type", model.FormatJSON, `[{"id": true, "name": "A", "sequence": 1}]`, nil, true},
		{"csv_bad_sequence", model.FormatCSV, "stop_id,stop_name,sequence\na,A,one\n", nil, true},
		{"csv_bad_lat", model.FormatCSV, "stop_id,stop_name,sequence,lat\na,A,1,north\n", nil, true},
		{"unknown_format", "xml", `<stops/>`, nil, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			stops, err := ParseStops(tc.format, []byte(tc.content))
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.stops, stops)
		})
	}
}
