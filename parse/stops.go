package parse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spkg/bom"

	"github.com/kurtesianplane/andarTayo-sub000/model"
)

// Stop record as found in JSON datasets. Several spellings are
// accepted for most fields.
type stopJSON struct {
	ID               flexString `json:"id"`
	StopID           flexString `json:"stop_id"`
	Name             string     `json:"name"`
	StopName         string     `json:"stop_name"`
	StationName      string     `json:"station_name"`
	Sequence         *int       `json:"sequence"`
	Lat              *float64   `json:"lat"`
	Latitude         *float64   `json:"latitude"`
	Lng              *float64   `json:"lng"`
	Lon              *float64   `json:"lon"`
	Longitude        *float64   `json:"longitude"`
	Extension        string     `json:"extension"`
	Phase            string     `json:"phase"`
	DistanceToNext   *float64   `json:"distance_to_next"`
	DistanceToNextKM *float64   `json:"distanceToNext"`
}

type stopContainer struct {
	Stops    json.RawMessage `json:"stops"`
	Stations json.RawMessage `json:"stations"`
}

type StopCSV struct {
	ID             string `csv:"stop_id"`
	Name           string `csv:"stop_name"`
	Sequence       string `csv:"sequence"`
	Lat            string `csv:"lat"`
	Lon            string `csv:"lon"`
	Extension      string `csv:"extension"`
	DistanceToNext string `csv:"distance_to_next"`
}

// Parses a stop catalog.
//
// JSON datasets are either an array of stop records or an object
// holding such an array under "stops" or "stations". CSV datasets
// have a header row naming the StopCSV columns.
//
// Stops are returned sorted by sequence. IDs and sequence numbers
// must be unique.
func ParseStops(format model.DatasetFormat, data []byte) ([]model.Stop, error) {
	var stops []model.Stop
	var err error

	switch format {
	case model.FormatCSV:
		stops, err = parseStopsCSV(data)
	case model.FormatJSON, "":
		stops, err = parseStopsJSON(data)
	default:
		return nil, fmt.Errorf("unsupported format '%s'", format)
	}
	if err != nil {
		return nil, err
	}

	if len(stops) == 0 {
		return nil, fmt.Errorf("no stops")
	}

	stopIDs := map[string]bool{}
	sequences := map[int]string{}
	for _, s := range stops {
		if s.ID == "" {
			return nil, fmt.Errorf("empty stop id")
		}
		if stopIDs[s.ID] {
			return nil, fmt.Errorf("repeated stop id '%s'", s.ID)
		}
		stopIDs[s.ID] = true

		if s.Name == "" {
			return nil, fmt.Errorf("empty name for stop '%s'", s.ID)
		}

		if other, found := sequences[s.Sequence]; found {
			return nil, fmt.Errorf("stops '%s' and '%s' share sequence %d", other, s.ID, s.Sequence)
		}
		sequences[s.Sequence] = s.ID
	}

	sort.Slice(stops, func(i, j int) bool {
		return stops[i].Sequence < stops[j].Sequence
	})

	return stops, nil
}

func parseStopsJSON(data []byte) ([]model.Stop, error) {
	data = bom.Clean(data)

	var raw json.RawMessage
	switch leadingByte(data) {
	case '[':
		raw = data
	case '{':
		container := stopContainer{}
		if err := json.Unmarshal(data, &container); err != nil {
			return nil, fmt.Errorf("unmarshaling stops: %w", err)
		}
		raw = container.Stops
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			raw = container.Stations
		}
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return nil, fmt.Errorf("object has no stops or stations field")
		}
	default:
		return nil, fmt.Errorf("expected array or object")
	}

	records := []stopJSON{}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("unmarshaling stops: %w", err)
	}

	stops := make([]model.Stop, 0, len(records))
	for i, r := range records {
		if r.Sequence == nil {
			return nil, fmt.Errorf("missing sequence (record %d)", i+1)
		}
		stops = append(stops, model.Stop{
			ID:             firstString(string(r.ID), string(r.StopID)),
			Name:           firstString(r.Name, r.StopName, r.StationName),
			Sequence:       *r.Sequence,
			Lat:            firstFloat(r.Lat, r.Latitude),
			Lon:            firstFloat(r.Lng, r.Lon, r.Longitude),
			Extension:      firstString(r.Extension, r.Phase),
			DistanceToNext: firstFloat(r.DistanceToNext, r.DistanceToNextKM),
		})
	}

	return stops, nil
}

func parseStopsCSV(data []byte) ([]model.Stop, error) {
	stopCsv := []*StopCSV{}
	if err := gocsv.UnmarshalBytes(data, &stopCsv); err != nil {
		return nil, errors.Wrap(err, "unmarshaling stops csv")
	}

	stops := make([]model.Stop, 0, len(stopCsv))
	for i, st := range stopCsv {
		seq, err := strconv.Atoi(strings.TrimSpace(st.Sequence))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing sequence (row %d)", i+1)
		}
		lat, err := optionalFloat(st.Lat)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing lat (row %d)", i+1)
		}
		lon, err := optionalFloat(st.Lon)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing lon (row %d)", i+1)
		}
		distance, err := optionalFloat(st.DistanceToNext)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing distance_to_next (row %d)", i+1)
		}

		stops = append(stops, model.Stop{
			ID:             strings.TrimSpace(st.ID),
			Name:           strings.TrimSpace(st.Name),
			Sequence:       seq,
			Lat:            lat,
			Lon:            lon,
			Extension:      strings.TrimSpace(st.Extension),
			DistanceToNext: distance,
		})
	}

	return stops, nil
}
