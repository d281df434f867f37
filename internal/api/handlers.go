package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/idopont/booking/internal/booking"
	"github.com/idopont/booking/internal/model"
	"github.com/idopont/booking/internal/registry"
	redisclient "github.com/idopont/booking/internal/redis"
)

func createBookingHandler(mgr *booking.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		serviceID, err := uuid.Parse(req.ServiceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}

		b, err := mgr.CreateBooking(r.Context(), slotID, patientID, serviceID, req.Note)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(b))
	}
}

func updateBookingStatusHandler(mgr *booking.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		var req UpdateBookingStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		status, ok := model.ParseBookingStatus(req.Status)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_status", "status must be one of NEW, CONFIRMED, CANCELED, DONE")
			return
		}

		b, err := mgr.UpdateStatus(r.Context(), id, status)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func deleteBookingHandler(mgr *booking.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		if err := mgr.DeleteBooking(r.Context(), id); err != nil {
			handleDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func queryFreeSlotsHandler(eng *booking.SlotEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		from, to, err := parseTimeRange(r, true)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time_range", err.Error())
			return
		}

		slots, err := eng.QueryFree(r.Context(), doctorID, *from, *to)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, toSlotResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func doctorScheduleHandler(reports *booking.Reports) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		entries, err := reports.DoctorSchedule(r.Context(), doctorID)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]ScheduleEntryResponse, 0, len(entries))
		for _, e := range entries {
			entry := ScheduleEntryResponse{Slot: toSlotResponse(e.Slot)}
			if e.Booking != nil {
				b := toBookingResponse(e.Booking)
				entry.Booking = &b
			}
			resp = append(resp, entry)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func patientHistoryHandler(reports *booking.Reports) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		bookings, err := reports.PatientHistory(r.Context(), patientID)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]BookingResponse, 0, len(bookings))
		for i := range bookings {
			resp = append(resp, toBookingResponse(&bookings[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func freeSlotCountHandler(reports *booking.Reports) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doctorID *uuid.UUID
		if raw := r.URL.Query().Get("doctor_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			doctorID = &id
		}

		from, to, err := parseTimeRange(r, false)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time_range", err.Error())
			return
		}

		count, err := reports.FreeSlotCount(r.Context(), doctorID, from, to)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, FreeSlotCountResponse{Count: count})
	}
}

// parseTimeRange reads RFC 3339 from/to query params. When required is
// false, missing bounds come back nil.
func parseTimeRange(r *http.Request, required bool) (*time.Time, *time.Time, error) {
	var from, to *time.Time

	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, nil, errors.New("from must be an RFC 3339 timestamp")
		}
		from = &t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, nil, errors.New("to must be an RFC 3339 timestamp")
		}
		to = &t
	}

	if required {
		if from == nil || to == nil {
			return nil, nil, errors.New("from and to are required")
		}
		if !from.Before(*to) {
			return nil, nil, errors.New("from must be before to")
		}
	}

	return from, to, nil
}

// handleDomainError maps core errors onto HTTP statuses: missing
// entities are 404, lost races and constraint hits are 409, illegal
// transitions and bad arguments are 400.
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrUserNotFound),
		errors.Is(err, booking.ErrPatientNotFound),
		errors.Is(err, booking.ErrDoctorNotFound),
		errors.Is(err, booking.ErrClinicNotFound),
		errors.Is(err, booking.ErrServiceNotFound),
		errors.Is(err, booking.ErrDoctorServiceNotFound),
		errors.Is(err, booking.ErrSlotNotFound),
		errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", "someone else took this slot")
	case errors.Is(err, booking.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrConstraintViolation):
		writeError(w, http.StatusConflict, "constraint_violation", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, "invalid_status_transition", err.Error())
	case errors.Is(err, registry.ErrRoleMismatch),
		errors.Is(err, registry.ErrInvalidTimeWindow),
		errors.Is(err, registry.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
