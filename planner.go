package andartayo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kurtesianplane/andarTayo-sub000/alerts"
	"github.com/kurtesianplane/andarTayo-sub000/fare"
	"github.com/kurtesianplane/andarTayo-sub000/lines"
	"github.com/kurtesianplane/andarTayo-sub000/metrics"
	"github.com/kurtesianplane/andarTayo-sub000/model"
	"github.com/kurtesianplane/andarTayo-sub000/route"
)

// Source of per line datasets. Implemented by catalog.Loader.
type Catalog interface {
	LoadStops(ctx context.Context, lineID string) ([]model.Stop, error)
	LoadFareTable(ctx context.Context, lineID string) (*model.FareTable, error)
	LoadSupplementary(ctx context.Context, lineID string) *model.Supplementary
}

// Planner computes trips on the registered lines.
//
// It holds no state of its own between calls. Datasets are cached
// by the catalog, and stop availability comes from the overlay.
type Planner struct {
	registry *lines.Registry
	catalog  Catalog
	overlay  alerts.Overlay
	logger   zerolog.Logger
	metrics  *metrics.Collector
}

type Option func(*Planner)

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Planner) { p.logger = logger }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(p *Planner) { p.metrics = c }
}

// Creates a Planner. A nil overlay means no stop is ever disabled.
func NewPlanner(registry *lines.Registry, catalog Catalog, overlay alerts.Overlay, opts ...Option) *Planner {
	if overlay == nil {
		overlay = alerts.None{}
	}
	p := &Planner{
		registry: registry,
		catalog:  catalog,
		overlay:  overlay,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("component", "planner").Logger()
	return p
}

// Plans a trip between two stops of a line.
//
// An empty methodID selects the line's base payment method. Errors
// can be classified with model.Classify: unknown line, stop or
// payment method are configuration errors, missing or broken
// datasets are data errors (model.ErrDataUnavailable), and
// disabled or identical endpoints are business rule errors.
func (p *Planner) PlanTrip(ctx context.Context, lineID, fromID, toID, methodID string) (*model.TripResult, error) {
	start := time.Now()

	result, err := p.planTrip(ctx, lineID, fromID, toID, methodID)

	outcome := "ok"
	if err != nil {
		outcome = model.Classify(err).String()
		event := p.logger.Debug()
		if model.Classify(err) == model.ClassData {
			event = p.logger.Warn()
		}
		event.Err(err).
			Str("line", lineID).
			Str("from", fromID).
			Str("to", toID).
			Str("payment", methodID).
			Msg("trip not planned")
	}
	label := lineID
	if _, err := p.registry.Describe(lineID); err != nil {
		label = metrics.UnknownLine
	}
	p.metrics.TripPlanned(label, outcome, time.Since(start))

	return result, err
}

func (p *Planner) planTrip(ctx context.Context, lineID, fromID, toID, methodID string) (*model.TripResult, error) {
	line, err := p.registry.Describe(lineID)
	if err != nil {
		return nil, err
	}

	if methodID == "" {
		methodID = line.BaseMethod
	}
	method, found := line.PaymentMethod(methodID)
	if !found {
		return nil, &model.UnknownPaymentMethodError{LineID: lineID, MethodID: methodID}
	}

	stops, err := p.catalog.LoadStops(ctx, lineID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrDataUnavailable, err)
	}
	table, err := p.catalog.LoadFareTable(ctx, lineID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrDataUnavailable, err)
	}

	// Both endpoints must exist before availability is consulted,
	// and availability is checked before anything else.
	for _, stopID := range []string{fromID, toID} {
		if !hasStop(stops, stopID) {
			return nil, &model.UnknownStopError{LineID: lineID, StopID: stopID}
		}
	}
	overlay := p.view(lineID)
	for _, stopID := range []string{fromID, toID} {
		if overlay.IsStopDisabled(stopID) {
			return nil, &model.StopDisabledError{
				StopID: stopID,
				Alerts: disabling(overlay.AlertsForStop(stopID)),
			}
		}
	}

	r, err := route.Build(line, stops, fromID, toID)
	if err != nil {
		return nil, err
	}

	strategy, err := fare.For(line.FareKind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrDataUnavailable, err)
	}

	quote := fare.Quote{
		From:       r.From,
		To:         r.To,
		Method:     method,
		BaseMethod: line.BaseMethod,
		Distance:   r.Distance,
	}
	amount, err := strategy.Fare(quote, table)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrDataUnavailable, err)
	}

	result := &model.TripResult{
		LineID:           lineID,
		From:             r.From,
		To:               r.To,
		Direction:        r.Direction,
		Path:             r.Path,
		PaymentMethod:    method,
		Fare:             amount,
		Distance:         r.Distance,
		DistanceUnit:     r.Unit,
		EstimatedMinutes: r.EstimatedMinutes,
	}

	if (method.Discount || method.StoredValue) && method.ID != line.BaseMethod {
		base, _ := line.PaymentMethod(line.BaseMethod)
		quote.Method = base
		full, err := strategy.Fare(quote, table)
		if err != nil {
			return nil, fmt.Errorf("%w: full fare: %w", model.ErrDataUnavailable, err)
		}
		savings := full - amount
		result.FullFare = &full
		result.Savings = &savings
	}

	return result, nil
}

// Lines in registry order.
func (p *Planner) ListLines() []model.Line {
	return p.registry.List()
}

func (p *Planner) Line(lineID string) (model.Line, error) {
	return p.registry.Describe(lineID)
}

// Stops of a line in sequence order.
func (p *Planner) ListStops(ctx context.Context, lineID string) ([]model.Stop, error) {
	if _, err := p.registry.Describe(lineID); err != nil {
		return nil, err
	}

	stops, err := p.catalog.LoadStops(ctx, lineID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrDataUnavailable, err)
	}

	return stops, nil
}

func (p *Planner) PaymentMethods(lineID string) ([]model.PaymentMethod, error) {
	return p.registry.PaymentMethods(lineID)
}

// Stops of a line along with their current availability.
func (p *Planner) StopStatuses(ctx context.Context, lineID string) ([]model.StopStatus, error) {
	stops, err := p.ListStops(ctx, lineID)
	if err != nil {
		return nil, err
	}

	overlay := p.view(lineID)
	statuses := make([]model.StopStatus, 0, len(stops))
	for _, s := range stops {
		statuses = append(statuses, model.StopStatus{
			Stop:     s,
			Disabled: overlay.IsStopDisabled(s.ID),
			Alerts:   overlay.AlertsForStop(s.ID),
		})
	}

	return statuses, nil
}

// Supplementary info for a line. Nil, without error, if the line
// has none.
func (p *Planner) Supplementary(ctx context.Context, lineID string) (*model.Supplementary, error) {
	if _, err := p.registry.Describe(lineID); err != nil {
		return nil, err
	}
	return p.catalog.LoadSupplementary(ctx, lineID), nil
}

// The overlay for one line, pinned to a single instant if it
// supports that so every check within one call agrees.
func (p *Planner) view(lineID string) alerts.Overlay {
	if s, ok := p.overlay.(interface{ ForLine(string) alerts.View }); ok {
		return s.ForLine(lineID)
	}
	return p.overlay
}

func hasStop(stops []model.Stop, stopID string) bool {
	for _, s := range stops {
		if s.ID == stopID {
			return true
		}
	}
	return false
}

func disabling(all []model.Alert) []model.Alert {
	found := []model.Alert{}
	for _, a := range all {
		if a.DisablesStops {
			found = append(found, a)
		}
	}
	return found
}
