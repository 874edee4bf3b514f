package parse

import (
	"fmt"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/google/uuid"
	proto "google.golang.org/protobuf/proto"

	"github.com/kurtesianplane/andarTayo-sub000/model"
)

// Extracts service alerts from GTFS Realtime feeds.
//
// Each active period of an alert becomes one model.Alert. Alerts
// without active periods are active indefinitely. Only the
// NO_SERVICE effect disables stops; everything else is
// informational.
func ParseRealtimeAlerts(feeds [][]byte) ([]model.Alert, error) {
	alerts := []model.Alert{}

	for _, feed := range feeds {
		f := &gtfsproto.FeedMessage{}
		err := proto.Unmarshal(feed, f)
		if err != nil {
			return nil, fmt.Errorf("unmarshaling protobuf: %w", err)
		}

		header := f.GetHeader()

		version := header.GetGtfsRealtimeVersion()
		if version != "2.0" && version != "1.0" {
			return nil, fmt.Errorf("version %s not supported", version)
		}

		if header.GetIncrementality() != gtfsproto.FeedHeader_FULL_DATASET {
			return nil, fmt.Errorf("feed incrementality %s not supported", header.GetIncrementality())
		}

		for _, entity := range f.GetEntity() {
			// We only care about Alerts
			if entity.GetAlert() == nil {
				continue
			}
			alerts = append(alerts, processAlert(entity.GetId(), entity.GetAlert())...)
		}
	}

	return alerts, nil
}

func processAlert(id string, alert *gtfsproto.Alert) []model.Alert {
	if id == "" {
		id = uuid.NewString()
	}

	base := model.Alert{
		ID:            id,
		Title:         translation(alert.GetHeaderText()),
		Message:       translation(alert.GetDescriptionText()),
		StopIDs:       []string{},
		DisablesStops: alert.GetEffect() == gtfsproto.Alert_NO_SERVICE,
	}

	seen := map[string]bool{}
	for _, informed := range alert.GetInformedEntity() {
		if base.LineID == "" {
			base.LineID = informed.GetRouteId()
		}
		stopID := informed.GetStopId()
		if stopID == "" || seen[stopID] {
			continue
		}
		seen[stopID] = true
		base.StopIDs = append(base.StopIDs, stopID)
	}

	periods := alert.GetActivePeriod()
	if len(periods) == 0 {
		return []model.Alert{base}
	}

	alerts := make([]model.Alert, 0, len(periods))
	for i, period := range periods {
		a := base
		a.StopIDs = append([]string(nil), base.StopIDs...)
		if len(periods) > 1 {
			a.ID = fmt.Sprintf("%s:%d", id, i)
		}
		if period.Start != nil {
			a.Start = time.Unix(int64(period.GetStart()), 0).UTC()
		}
		if period.End != nil {
			a.End = time.Unix(int64(period.GetEnd()), 0).UTC()
		}
		alerts = append(alerts, a)
	}

	return alerts
}

// Picks the English translation if present, otherwise the first.
func translation(ts *gtfsproto.TranslatedString) string {
	var first string
	for _, t := range ts.GetTranslation() {
		if t.GetLanguage() == "en" {
			return t.GetText()
		}
		if first == "" {
			first = t.GetText()
		}
	}
	return first
}
