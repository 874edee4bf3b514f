package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	andartayo "github.com/kurtesianplane/andarTayo-sub000"
	"github.com/kurtesianplane/andarTayo-sub000/metrics"
	"github.com/kurtesianplane/andarTayo-sub000/model"
)

const (
	DefaultAddr = ":8081"

	// Cache lifetime of responses derived from the line registry.
	DefaultStaticMaxAge = 5 * time.Minute
)

// Server exposes the planner over HTTP as JSON.
type Server struct {
	AllowedOrigins []string
	StaticMaxAge   time.Duration
	Metrics        *metrics.Collector
	Logger         zerolog.Logger

	planner *andartayo.Planner
}

func New(planner *andartayo.Planner) *Server {
	return &Server{
		AllowedOrigins: []string{"*"},
		StaticMaxAge:   DefaultStaticMaxAge,
		Logger:         log.Logger,
		planner:        planner,
	}
}

// Class of errors in requests that never reach the planner, such as
// missing query parameters. Served with status 400.
const ClassRequest = "request"

type ErrorResponse struct {
	Error string `json:"error"`

	// A model.Class name, or ClassRequest.
	Class     string        `json:"class"`
	Retryable bool          `json:"retryable"`
	StopID    string        `json:"stop_id,omitempty"`
	Alerts    []model.Alert `json:"alerts,omitempty"`
}

type LinesResponse struct {
	Lines []model.Line `json:"lines"`
	Count int          `json:"count"`
}

type StopsResponse struct {
	LineID string             `json:"line_id"`
	Stops  []model.StopStatus `json:"stops"`
	Count  int                `json:"count"`
}

type PaymentMethodsResponse struct {
	LineID         string                `json:"line_id"`
	PaymentMethods []model.PaymentMethod `json:"payment_methods"`
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/lines", s.getLines)
		r.Get("/lines/{lineID}", s.getLine)
		r.Get("/lines/{lineID}/stops", s.getStops)
		r.Get("/lines/{lineID}/payment-methods", s.getPaymentMethods)
		r.Get("/lines/{lineID}/info", s.getInfo)
		r.Get("/trips", s.getTrip)
	})

	return r
}

// GET /api/lines
func (s *Server) getLines(w http.ResponseWriter, r *http.Request) {
	lines := s.planner.ListLines()
	s.cacheable(w)
	s.writeJSON(w, http.StatusOK, LinesResponse{Lines: lines, Count: len(lines)})
}

// GET /api/lines/{lineID}
func (s *Server) getLine(w http.ResponseWriter, r *http.Request) {
	line, err := s.planner.Line(chi.URLParam(r, "lineID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.cacheable(w)
	s.writeJSON(w, http.StatusOK, line)
}

// GET /api/lines/{lineID}/stops
//
// Includes each stop's disabled flag and active alerts.
func (s *Server) getStops(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "lineID")
	statuses, err := s.planner.StopStatuses(r.Context(), lineID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	s.writeJSON(w, http.StatusOK, StopsResponse{LineID: lineID, Stops: statuses, Count: len(statuses)})
}

// GET /api/lines/{lineID}/payment-methods
func (s *Server) getPaymentMethods(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "lineID")
	methods, err := s.planner.PaymentMethods(lineID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.cacheable(w)
	s.writeJSON(w, http.StatusOK, PaymentMethodsResponse{LineID: lineID, PaymentMethods: methods})
}

// GET /api/lines/{lineID}/info
func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.planner.Supplementary(r.Context(), chi.URLParam(r, "lineID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if info == nil {
		info = &model.Supplementary{}
	}
	s.cacheable(w)
	s.writeJSON(w, http.StatusOK, info)
}

// GET /api/trips?line=&from=&to=&payment=
func (s *Server) getTrip(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lineID, from, to := q.Get("line"), q.Get("from"), q.Get("to")
	if lineID == "" || from == "" || to == "" {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "line, from and to parameters are required",
			Class: ClassRequest,
		})
		return
	}

	result, err := s.planner.PlanTrip(r.Context(), lineID, from, to, q.Get("payment"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) cacheable(w http.ResponseWriter) {
	if s.StaticMaxAge > 0 {
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(s.StaticMaxAge.Seconds())))
	}
}

// Maps planner errors to status codes by class.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	class := model.Classify(err)

	status := http.StatusInternalServerError
	switch class {
	case model.ClassConfiguration:
		status = http.StatusNotFound
	case model.ClassData:
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "30")
	case model.ClassBusinessRule:
		status = http.StatusUnprocessableEntity
	}

	resp := ErrorResponse{
		Error:     err.Error(),
		Class:     class.String(),
		Retryable: class.Retryable(),
	}

	var disabled *model.StopDisabledError
	var unknown *model.UnknownStopError
	switch {
	case errors.As(err, &disabled):
		resp.StopID = disabled.StopID
		resp.Alerts = disabled.Alerts
	case errors.As(err, &unknown):
		resp.StopID = unknown.StopID
	}

	if status == http.StatusInternalServerError {
		s.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("unclassified error")
	}

	s.writeJSON(w, status, resp)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.Logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("query", r.URL.RawQuery).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Debug().Err(err).Int("status", status).Msg("writing response")
	}
}
