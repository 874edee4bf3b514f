package model

import (
	"time"
)

// Holds all external facing types and constants.

type Topology string

const (
	TopologyRail            Topology = "rail"
	TopologyBusRapidTransit Topology = "bus-rapid-transit"
)

type FareKind string

const (
	FareKindMatrix         FareKind = "matrix"
	FareKindDistanceLinear FareKind = "distance-linear"
	FareKindDistanceTiered FareKind = "distance-tiered"
)

// Unit of TripResult.Distance. Linear lines measure kilometers,
// everything else counts stations traversed.
type DistanceUnit string

const (
	DistanceUnitStations DistanceUnit = "stations"
	DistanceUnitKM       DistanceUnit = "km"
)

func (k FareKind) DistanceUnit() DistanceUnit {
	if k == FareKindDistanceLinear {
		return DistanceUnitKM
	}
	return DistanceUnitStations
}

type PaymentMethod struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Name        string `json:"name" yaml:"name" validate:"required"`
	Description string `json:"description" yaml:"description"`

	// Discount categories (students, seniors, PWD) get reduced
	// fares. Stored value cards may be cheaper than the base
	// ticket. Both get a "savings" figure on trip results.
	Discount    bool `json:"discount" yaml:"discount"`
	StoredValue bool `json:"stored_value" yaml:"stored_value"`
}

// Direction labels for travel in ascending and descending sequence
// order, e.g. Northbound/Southbound.
type Directions struct {
	Ascending  string `json:"ascending" yaml:"ascending" validate:"required"`
	Descending string `json:"descending" yaml:"descending" validate:"required,nefield=Ascending"`
}

// Affine travel time model: distance*PerStopMinutes + BaseMinutes,
// never below MinMinutes.
type Timing struct {
	PerStopMinutes float64 `json:"per_stop_minutes" yaml:"per_stop_minutes" validate:"gt=0"`
	BaseMinutes    float64 `json:"base_minutes" yaml:"base_minutes" validate:"gte=0"`
	MinMinutes     int     `json:"min_minutes" yaml:"min_minutes" validate:"gte=0"`
}

// Line Descriptor. One per supported transit line.
type Line struct {
	ID             string          `json:"id" yaml:"id" validate:"required"`
	Name           string          `json:"name" yaml:"name" validate:"required"`
	Topology       Topology        `json:"topology" yaml:"topology" validate:"required,oneof=rail bus-rapid-transit"`
	FareKind       FareKind        `json:"fare_kind" yaml:"fare_kind" validate:"required,oneof=matrix distance-linear distance-tiered"`
	PaymentMethods []PaymentMethod `json:"payment_methods" yaml:"payment_methods" validate:"min=1,unique=ID,dive"`
	BaseMethod     string          `json:"base_method" yaml:"base_method"`
	DataKey        string          `json:"data_key" yaml:"data_key"`
	Directions     Directions      `json:"directions" yaml:"directions"`
	Timing         Timing          `json:"timing" yaml:"timing"`
}

// Looks up a payment method accepted on this line.
func (l Line) PaymentMethod(id string) (PaymentMethod, bool) {
	for _, m := range l.PaymentMethods {
		if m.ID == id {
			return m, true
		}
	}
	return PaymentMethod{}, false
}

// Returns the direction label for travel from sequence a to b.
func (l Line) Direction(fromSeq, toSeq int) string {
	if toSeq > fromSeq {
		return l.Directions.Ascending
	}
	return l.Directions.Descending
}

type Stop struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Sequence  int      `json:"sequence"`
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
	Extension string   `json:"extension,omitempty"`

	// Kilometers to the stop with the next higher sequence. Only
	// used by distance-linear lines.
	DistanceToNext *float64 `json:"distance_to_next,omitempty"`
}

func (s Stop) HasCoordinates() bool {
	return s.Lat != nil && s.Lon != nil
}

// A stop along with its availability, as derived from service
// alerts at some point in time.
type StopStatus struct {
	Stop
	Disabled bool    `json:"disabled"`
	Alerts   []Alert `json:"alerts,omitempty"`
}

// Matrix fare table. Rows are keyed by origin stop name, and each
// row holds one fare per entry in Stations.
type MatrixTable struct {
	Stations []string                        `json:"stations"`
	Rows     map[string]map[string][]float64 `json:"fares"`
}

// Index of a station name in the declared ordering, or -1.
func (m *MatrixTable) Column(name string) int {
	for i, s := range m.Stations {
		if s == name {
			return i
		}
	}
	return -1
}

type LinearFare struct {
	BaseFare float64 `json:"base_fare" csv:"base_fare"`
	MinKM    float64 `json:"min_km" csv:"min_km"`
	PerKM    float64 `json:"per_km" csv:"per_km"`
}

type FareBand struct {
	MinDistance int     `json:"minDistance" csv:"min_distance"`
	MaxDistance int     `json:"maxDistance" csv:"max_distance"`
	Fare        float64 `json:"fare" csv:"fare"`
}

type TieredTable struct {
	Bands []FareBand `json:"bands"`

	// Per payment method fare multipliers. Methods not listed
	// pay full fare, unless they're a discount category.
	Multipliers map[string]float64 `json:"multipliers,omitempty"`
}

// Fare table for one line. Exactly one of Matrix, Linear and
// Tiered is set, as given by Kind.
type FareTable struct {
	Kind   FareKind
	Matrix *MatrixTable
	Linear map[string]LinearFare
	Tiered *TieredTable
}

type TripResult struct {
	LineID           string        `json:"line_id"`
	From             Stop          `json:"from"`
	To               Stop          `json:"to"`
	Direction        string        `json:"direction"`
	Path             []Stop        `json:"path"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	Fare             float64       `json:"fare"`
	Distance         float64       `json:"distance"`
	DistanceUnit     DistanceUnit  `json:"distance_unit"`
	EstimatedMinutes int           `json:"estimated_minutes"`

	// Set for discount and stored value payment methods only.
	FullFare *float64 `json:"full_fare,omitempty"`
	Savings  *float64 `json:"savings,omitempty"`
}

// A service alert, as published by the alert subsystem.
type Alert struct {
	ID      string    `json:"id"`
	LineID  string    `json:"line_id,omitempty"`
	Title   string    `json:"title"`
	Message string    `json:"message,omitempty"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end,omitempty"`
	StopIDs []string  `json:"stop_ids"`

	// If set, affected stops can't be selected while the alert
	// is active.
	DisablesStops bool `json:"disables_stops"`
}

// True if now falls within [Start, End]. A zero End means the alert
// has no announced end.
func (a Alert) ActiveAt(now time.Time) bool {
	if now.Before(a.Start) {
		return false
	}
	if !a.End.IsZero() && now.After(a.End) {
		return false
	}
	return true
}

func (a Alert) Affects(stopID string) bool {
	for _, id := range a.StopIDs {
		if id == stopID {
			return true
		}
	}
	return false
}

func (a Alert) Disables(stopID string, now time.Time) bool {
	return a.DisablesStops && a.ActiveAt(now) && a.Affects(stopID)
}

type SocialLink struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

type StopDetail struct {
	Description string   `json:"description,omitempty"`
	Amenities   []string `json:"amenities,omitempty"`
	Connections []string `json:"connections,omitempty"`
	Landmarks   []string `json:"landmarks,omitempty"`
}

// Non-essential per-line metadata.
type Supplementary struct {
	Socials     []SocialLink          `json:"socials,omitempty"`
	StopDetails map[string]StopDetail `json:"stop_details,omitempty"`
}

type DatasetKind string

const (
	DatasetStops         DatasetKind = "stops"
	DatasetFares         DatasetKind = "fares"
	DatasetSupplementary DatasetKind = "info"
)

type DatasetFormat string

const (
	FormatJSON DatasetFormat = "json"
	FormatCSV  DatasetFormat = "csv"
)

// Raw dataset as held by storage.
type Dataset struct {
	Key       string
	Kind      DatasetKind
	Format    DatasetFormat
	Data      []byte
	UpdatedAt time.Time
}
