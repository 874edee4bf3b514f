package parse

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spkg/bom"

	"github.com/kurtesianplane/andarTayo-sub000/model"
)

type alertContainer struct {
	Alerts []model.Alert `json:"alerts"`
}

// Parses service alerts from JSON, either an array of alerts or an
// object with an "alerts" array. Alerts without ID are assigned a
// random one.
func ParseAlerts(data []byte) ([]model.Alert, error) {
	data = bom.Clean(data)

	var alerts []model.Alert
	switch leadingByte(data) {
	case '[':
		if err := json.Unmarshal(data, &alerts); err != nil {
			return nil, fmt.Errorf("unmarshaling alerts: %w", err)
		}
	case '{':
		container := alertContainer{}
		if err := json.Unmarshal(data, &container); err != nil {
			return nil, fmt.Errorf("unmarshaling alerts: %w", err)
		}
		alerts = container.Alerts
	case 0:
		return []model.Alert{}, nil
	default:
		return nil, fmt.Errorf("expected array or object")
	}

	for i := range alerts {
		if alerts[i].ID == "" {
			alerts[i].ID = uuid.NewString()
		}
		if !alerts[i].End.IsZero() && alerts[i].End.Before(alerts[i].Start) {
			return nil, fmt.Errorf("alert '%s' ends before it starts", alerts[i].ID)
		}
	}

	return alerts, nil
}
