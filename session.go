package andartayo

import (
	"context"
	"errors"
	"sync"

	"github.com/kurtesianplane/andarTayo-sub000/model"
)

var ErrSuperseded = errors.New("superseded by a later request")

// Session tracks the trip a single user is currently looking at.
//
// Each new request takes a token from Begin. When a request
// completes after a later one has begun, its outcome is discarded
// and ErrSuperseded returned instead, so a slow response can never
// overwrite a newer one.
type Session struct {
	planner *Planner

	mutex       sync.Mutex
	token       uint64
	latest      *model.TripResult
	latestToken uint64
}

func (p *Planner) NewSession() *Session {
	return &Session{planner: p}
}

// Issues a token for a new request, superseding all earlier ones.
func (s *Session) Begin() uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.token++
	return s.token
}

// Plans a trip on behalf of the request holding token.
//
// If the token is still the latest when planning completes, the
// result becomes the session's latest result. A failed plan clears
// it, so no earlier trip is shown alongside the error.
func (s *Session) Plan(ctx context.Context, token uint64, lineID, fromID, toID, methodID string) (*model.TripResult, error) {
	result, err := s.planner.PlanTrip(ctx, lineID, fromID, toID, methodID)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if token != s.token {
		return nil, ErrSuperseded
	}

	s.latestToken = token
	if err != nil {
		s.latest = nil
		return nil, err
	}

	s.latest = result
	return result, nil
}

// The most recently committed result and the token it belongs to.
// Nil if the latest request failed or none has completed.
func (s *Session) Latest() (*model.TripResult, uint64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.latest, s.latestToken
}
