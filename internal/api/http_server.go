package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"slotengine/internal/availability"
	"slotengine/internal/config"
	"slotengine/internal/domain"
	"slotengine/internal/metrics"
	"slotengine/internal/models"
	"slotengine/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AvailabilityReader is the facade surface the API exposes.
type AvailabilityReader interface {
	GetDay(ctx context.Context, date time.Time, serviceID string, opts availability.DayOptions) models.DayAvailability
	GetWeek(ctx context.Context, weekStart time.Time, serviceID string) models.WeekAvailability
	NextAvailableSlot(ctx context.Context, serviceID string, from time.Time, horizonDays int) (availability.NextSlot, bool)
	InvalidateDate(ctx context.Context, date time.Time)
	InvalidateAll(ctx context.Context)
}

// BookingFlows is the write side the API exposes.
type BookingFlows interface {
	CreateBooking(ctx context.Context, identity models.Identity, req service.BookingRequest) (*models.Booking, error)
	CancelBooking(ctx context.Context, identity models.Identity, bookingID int64) (*models.Booking, error)
	CompleteBooking(ctx context.Context, bookingID int64, changedBy string) (*models.Booking, error)
	ListUserBookings(ctx context.Context, identity models.Identity) ([]models.Booking, error)
}

// ServiceCatalog is the catalog surface the API reads and manages.
type ServiceCatalog interface {
	domain.ServiceCatalog
	UpsertService(ctx context.Context, svc *models.Service) error
	DeactivateService(ctx context.Context, id string) error
}

// HTTPServer exposes availability queries and booking flows as JSON over HTTP.
type HTTPServer struct {
	cfg          config.APIConfig
	availability AvailabilityReader
	bookings     BookingFlows
	catalog      ServiceCatalog
	clock        domain.Clock
	logger       *zerolog.Logger
	server       *http.Server
	auth         *HTTPAuth
}

func NewHTTPServer(
	cfg config.APIConfig,
	availability AvailabilityReader,
	bookings BookingFlows,
	catalog ServiceCatalog,
	clock domain.Clock,
	logger *zerolog.Logger,
) *HTTPServer {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{
		cfg:          cfg,
		availability: availability,
		bookings:     bookings,
		catalog:      catalog,
		clock:        clock,
		logger:       logger,
		auth:         NewHTTPAuth(cfg),
	}

	mux := http.NewServeMux()
	srv.route(mux, "GET /healthz", srv.handleHealth)
	srv.route(mux, "GET /api/v1/services", srv.handleServices)
	srv.route(mux, "PUT /api/v1/services/{id}", srv.handleUpsertService)
	srv.route(mux, "DELETE /api/v1/services/{id}", srv.handleDeactivateService)
	srv.route(mux, "GET /api/v1/availability/day", srv.handleDay)
	srv.route(mux, "GET /api/v1/availability/week", srv.handleWeek)
	srv.route(mux, "GET /api/v1/availability/next", srv.handleNext)
	srv.route(mux, "GET /api/v1/bookings", srv.handleListBookings)
	srv.route(mux, "POST /api/v1/bookings", srv.handleCreateBooking)
	srv.route(mux, "POST /api/v1/bookings/{id}/cancel", srv.handleCancelBooking)
	srv.route(mux, "POST /api/v1/bookings/{id}/complete", srv.handleCompleteBooking)
	srv.route(mux, "DELETE /api/v1/cache", srv.handleInvalidate)

	handler := loggingMiddleware(logger, srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(pattern)
		h(w, r)
	}))
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the id assigned to the request by the logging middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zerolog.Logger, next http.Handler) http.Handler {
	base := logger.With().Str("component", "http").Logger()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID))

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		base.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
