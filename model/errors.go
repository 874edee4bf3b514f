package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Configuration errors. The caller referenced something that
	// doesn't exist.
	ErrUnknownLine          = errors.New("unknown line")
	ErrUnknownStop          = errors.New("unknown stop")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")

	// Data errors. A static dataset is missing, malformed or
	// incomplete.
	ErrDataUnavailable     = errors.New("data unavailable")
	ErrStopDataUnavailable = errors.New("stop data unavailable")
	ErrFareDataUnavailable = errors.New("fare data unavailable")
	ErrFareLookup          = errors.New("fare lookup failed")

	// Business rule errors. Expected and user-correctable.
	ErrInvalidTrip  = errors.New("invalid trip")
	ErrSameEndpoint = errors.New("origin and destination are the same stop")
	ErrStopDisabled = errors.New("stop disabled")
)

type UnknownLineError struct {
	LineID string
}

func (e *UnknownLineError) Error() string {
	return fmt.Sprintf("unknown line '%s'", e.LineID)
}

func (e *UnknownLineError) Unwrap() error { return ErrUnknownLine }

type UnknownStopError struct {
	LineID string
	StopID string
}

func (e *UnknownStopError) Error() string {
	return fmt.Sprintf("unknown stop '%s' on line '%s'", e.StopID, e.LineID)
}

func (e *UnknownStopError) Unwrap() error { return ErrUnknownStop }

type UnknownPaymentMethodError struct {
	LineID   string
	MethodID string
}

func (e *UnknownPaymentMethodError) Error() string {
	return fmt.Sprintf("payment method '%s' not accepted on line '%s'", e.MethodID, e.LineID)
}

func (e *UnknownPaymentMethodError) Unwrap() error { return ErrUnknownPaymentMethod }

type FareLookupError struct {
	MethodID string
	From     string
	To       string
	Reason   string
}

func (e *FareLookupError) Error() string {
	return fmt.Sprintf("fare lookup %s -> %s (%s): %s", e.From, e.To, e.MethodID, e.Reason)
}

func (e *FareLookupError) Unwrap() error { return ErrFareLookup }

// Returned when an endpoint is disabled by one or more active
// service alerts.
type StopDisabledError struct {
	StopID string
	Alerts []Alert
}

func (e *StopDisabledError) Error() string {
	titles := make([]string, 0, len(e.Alerts))
	for _, a := range e.Alerts {
		titles = append(titles, a.Title)
	}
	if len(titles) == 0 {
		return fmt.Sprintf("stop '%s' is disabled", e.StopID)
	}
	return fmt.Sprintf("stop '%s' is disabled: %s", e.StopID, strings.Join(titles, "; "))
}

func (e *StopDisabledError) Unwrap() error { return ErrStopDisabled }

type Class int

const (
	ClassUnknown Class = iota
	ClassConfiguration
	ClassData
	ClassBusinessRule
)

func (c Class) String() string {
	switch c {
	case ClassConfiguration:
		return "configuration"
	case ClassData:
		return "data"
	case ClassBusinessRule:
		return "business_rule"
	}
	return "unknown"
}

// Data errors may go away on retry, e.g. after the dataset is
// fixed and the cache invalidated.
func (c Class) Retryable() bool {
	return c == ClassData
}

// Maps an error to the severity class that decides how it is
// surfaced to users.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, ErrSameEndpoint),
		errors.Is(err, ErrInvalidTrip),
		errors.Is(err, ErrStopDisabled):
		return ClassBusinessRule
	case errors.Is(err, ErrDataUnavailable),
		errors.Is(err, ErrStopDataUnavailable),
		errors.Is(err, ErrFareDataUnavailable),
		errors.Is(err, ErrFareLookup):
		return ClassData
	case errors.Is(err, ErrUnknownLine),
		errors.Is(err, ErrUnknownStop),
		errors.Is(err, ErrUnknownPaymentMethod):
		return ClassConfiguration
	}
	return ClassUnknown
}
