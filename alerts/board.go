package alerts

import (
	"sync"
	"time"

	"github.com/kurtesianplane/andarTayo-sub000/model"
)

// Overlay tells which stops are currently unselectable, and why.
type Overlay interface {
	IsStopDisabled(stopID string) bool
	AlertsForStop(stopID string) []model.Alert
}

// Board holds the current alert snapshot and evaluates it against
// a clock.
type Board struct {
	// Defaults to time.Now. Replaced in tests.
	Now func() time.Time

	mutex  sync.RWMutex
	alerts []model.Alert
}

func NewBoard(alerts ...model.Alert) *Board {
	b := &Board{Now: time.Now}
	b.Replace(alerts)
	return b
}

// Swaps in a new alert snapshot.
func (b *Board) Replace(alerts []model.Alert) {
	snapshot := make([]model.Alert, len(alerts))
	for i, a := range alerts {
		a.StopIDs = append([]string(nil), a.StopIDs...)
		snapshot[i] = a
	}

	b.mutex.Lock()
	b.alerts = snapshot
	b.mutex.Unlock()
}

// All alerts in the snapshot, active or not.
func (b *Board) Alerts() []model.Alert {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return append([]model.Alert(nil), b.alerts...)
}

func (b *Board) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

func (b *Board) IsStopDisabled(stopID string) bool {
	return b.At(b.now()).IsStopDisabled(stopID)
}

func (b *Board) AlertsForStop(stopID string) []model.Alert {
	return b.At(b.now()).AlertsForStop(stopID)
}

// Alerts active at the given time, across all stops.
func (b *Board) Active(now time.Time) []model.Alert {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	active := []model.Alert{}
	for _, a := range b.alerts {
		if a.ActiveAt(now) {
			active = append(active, a)
		}
	}
	return active
}

// View of the current snapshot evaluated at a fixed time. Later
// calls to Replace don't affect it.
func (b *Board) At(now time.Time) View {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return View{now: now, alerts: b.alerts}
}

// View at the board's current time.
func (b *Board) Snapshot() View {
	return b.At(b.now())
}

// View at the board's current time, limited to alerts for the
// given line or for no line in particular.
func (b *Board) ForLine(lineID string) View {
	return b.Snapshot().ForLine(lineID)
}

// View is an Overlay frozen at one point in time.
type View struct {
	now    time.Time
	alerts []model.Alert
}

// Stop IDs are only unique within a line, so alerts scoped to
// other lines must be dropped before asking about a stop.
func (v View) ForLine(lineID string) View {
	return View{now: v.now, alerts: ForLine(v.alerts, lineID)}
}

func (v View) IsStopDisabled(stopID string) bool {
	for _, a := range v.alerts {
		if a.Disables(stopID, v.now) {
			return true
		}
	}
	return false
}

// Active alerts mentioning the stop, disabling or not.
func (v View) AlertsForStop(stopID string) []model.Alert {
	found := []model.Alert{}
	for _, a := range v.alerts {
		if a.ActiveAt(v.now) && a.Affects(stopID) {
			found = append(found, a)
		}
	}
	return found
}

// Overlay with no alerts.
type None struct{}

func (None) IsStopDisabled(string) bool         { return false }
func (None) AlertsForStop(string) []model.Alert { return nil }
