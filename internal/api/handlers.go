package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"slotengine/internal/availability"
	"slotengine/internal/models"
	"slotengine/internal/service"
)

const (
	userIDHeader    = "X-User-ID"
	userEmailHeader = "X-User-Email"
)

func identityFromRequest(r *http.Request) models.Identity {
	return models.Identity{
		UserID: strings.TrimSpace(r.Header.Get(userIDHeader)),
		Email:  strings.TrimSpace(r.Header.Get(userEmailHeader)),
	}
}

func (s *HTTPServer) location() *time.Location {
	return s.clock.Now().Location()
}

// queryDate parses a YYYY-MM-DD query parameter; an absent optional value yields today.
func (s *HTTPServer) queryDate(r *http.Request, name string, required bool) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		if required {
			return time.Time{}, fmt.Errorf("%s is required", name)
		}
		return models.DateOf(s.clock.Now()), nil
	}
	date, err := models.ParseDate(raw, s.location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s; expected YYYY-MM-DD", name)
	}
	return date, nil
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"services": s.catalog.ActiveServices()})
}

// knownService writes 404 and reports false unless serviceID is an active service.
func (s *HTTPServer) knownService(w http.ResponseWriter, serviceID string) bool {
	if _, err := s.catalog.GetService(serviceID); err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown service %q", serviceID))
		return false
	}
	return true
}

type upsertServiceRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
	SortOrder       int64  `json:"sort_order"`
}

// handleUpsertService creates or replaces an active service. Durations feed
// every cached grid, so the whole availability cache is dropped.
func (s *HTTPServer) handleUpsertService(w http.ResponseWriter, r *http.Request) {
	var body upsertServiceRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.DurationMinutes <= 0 {
		writeError(w, http.StatusBadRequest, "duration_minutes must be positive")
		return
	}

	svc := &models.Service{
		ID:              strings.TrimSpace(r.PathValue("id")),
		Name:            strings.TrimSpace(body.Name),
		Description:     body.Description,
		DurationMinutes: body.DurationMinutes,
		SortOrder:       body.SortOrder,
		IsActive:        true,
	}
	if err := s.catalog.UpsertService(r.Context(), svc); err != nil {
		s.logger.Error().Err(err).Str("service_id", svc.ID).Str("request_id", RequestID(r.Context())).Msg("upsert service failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.availability.InvalidateAll(r.Context())
	writeJSON(w, http.StatusOK, svc)
}

func (s *HTTPServer) handleDeactivateService(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	err := s.catalog.DeactivateService(r.Context(), id)
	if errors.Is(err, service.ErrServiceNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("service_id", id).Str("request_id", RequestID(r.Context())).Msg("deactivate service failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.availability.InvalidateAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"deactivated": id})
}

func (s *HTTPServer) handleDay(w http.ResponseWriter, r *http.Request) {
	date, err := s.queryDate(r, "date", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	if serviceID == "" {
		writeError(w, http.StatusBadRequest, "service_id is required")
		return
	}
	if !s.knownService(w, serviceID) {
		return
	}

	var opts availability.DayOptions
	if raw := r.URL.Query().Get("only_available"); raw != "" {
		opts.OnlyAvailable, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid only_available")
			return
		}
	}

	writeJSON(w, http.StatusOK, s.availability.GetDay(r.Context(), date, serviceID, opts))
}

func (s *HTTPServer) handleWeek(w http.ResponseWriter, r *http.Request) {
	weekStart, err := s.queryDate(r, "week_start", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	if serviceID != "" && !s.knownService(w, serviceID) {
		return
	}

	writeJSON(w, http.StatusOK, s.availability.GetWeek(r.Context(), weekStart, serviceID))
}

func (s *HTTPServer) handleNext(w http.ResponseWriter, r *http.Request) {
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	if serviceID == "" {
		writeError(w, http.StatusBadRequest, "service_id is required")
		return
	}
	from, err := s.queryDate(r, "from", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	horizon := 0
	if raw := r.URL.Query().Get("horizon_days"); raw != "" {
		horizon, err = strconv.Atoi(raw)
		if err != nil || horizon < 0 || horizon > models.MaxHorizonDays {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("horizon_days must be within 0..%d", models.MaxHorizonDays))
			return
		}
	}
	if !s.knownService(w, serviceID) {
		return
	}

	next, ok := s.availability.NextAvailableSlot(r.Context(), serviceID, from, horizon)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"found": true,
		"date":  models.DateKey(next.Date),
		"time":  next.Time,
	})
}

type createBookingRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	ServiceID string `json:"service_id"`
	OwnerName string `json:"owner_name"`
	Notes     string `json:"notes"`
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var body createBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, err := models.ParseDate(body.Date, s.location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date; expected YYYY-MM-DD")
		return
	}
	start, err := models.ParseClockTime(body.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_time; expected HH:MM")
		return
	}
	serviceID := strings.TrimSpace(body.ServiceID)
	if serviceID == "" {
		writeError(w, http.StatusBadRequest, "service_id is required")
		return
	}
	if !s.knownService(w, serviceID) {
		return
	}

	booking, err := s.bookings.CreateBooking(r.Context(), identityFromRequest(r), service.BookingRequest{
		Date:      date,
		StartTime: start,
		ServiceID: serviceID,
		OwnerName: strings.TrimSpace(body.OwnerName),
		Notes:     body.Notes,
	})
	if err != nil {
		s.writeBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.bookings.ListUserBookings(r.Context(), identityFromRequest(r))
	if err != nil {
		s.writeBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	booking, err := s.bookings.CancelBooking(r.Context(), identityFromRequest(r), id)
	if err != nil {
		s.writeBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCompleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	changedBy := identityFromRequest(r).UserID
	if client, ok := ClientFromContext(r.Context()); ok && changedBy == "" {
		changedBy = client.Name
	}

	booking, err := s.bookings.CompleteBooking(r.Context(), id, changedBy)
	if err != nil {
		s.writeBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(r.URL.Query().Get("date")) == "" {
		s.availability.InvalidateAll(r.Context())
		writeJSON(w, http.StatusOK, map[string]string{"invalidated": "all"})
		return
	}

	date, err := s.queryDate(r, "date", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.availability.InvalidateDate(r.Context(), date)
	writeJSON(w, http.StatusOK, map[string]string{"invalidated": models.DateKey(date)})
}

func (s *HTTPServer) writeBookingError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrIdentityRequired):
		statusCode = http.StatusUnauthorized
	case errors.Is(err, service.ErrBookingNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, service.ErrNotOwner):
		statusCode = http.StatusForbidden
	case errors.Is(err, service.ErrSlotTaken), errors.Is(err, service.ErrInvalidStatus):
		statusCode = http.StatusConflict
	case errors.Is(err, service.ErrNotBookable),
		errors.Is(err, service.ErrBookingLimitReached),
		errors.Is(err, service.ErrCancellationTooLate):
		statusCode = http.StatusUnprocessableEntity
	}

	if statusCode == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("booking request failed")
		writeError(w, statusCode, "internal error")
		return
	}
	writeError(w, statusCode, err.Error())
}
