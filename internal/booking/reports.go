package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/idopont/booking/internal/model"
)

// Reports is the read-only facade over the entity store. It never
// mutates anything and never participates in the booking state machine.
type Reports struct {
	repo Repository
}

func NewReports(repo Repository) *Reports {
	return &Reports{repo: repo}
}

// FreeSlotCount counts FREE slots, optionally filtered by doctor and
// time range. Nil filters mean "all".
func (r *Reports) FreeSlotCount(ctx context.Context, doctorID *uuid.UUID, from, to *time.Time) (int, error) {
	n, err := r.repo.CountFreeSlots(ctx, doctorID, from, to)
	if err != nil {
		return 0, fmt.Errorf("count free slots: %w", err)
	}
	return n, nil
}

// DoctorSchedule returns all of a doctor's slots with the live booking
// holding each BOOKED slot.
func (r *Reports) DoctorSchedule(ctx context.Context, doctorID uuid.UUID) ([]model.ScheduleEntry, error) {
	if _, err := r.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	entries, err := r.repo.ListScheduleByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list doctor schedule: %w", err)
	}
	return entries, nil
}

// PatientHistory returns the patient's bookings, newest first.
func (r *Reports) PatientHistory(ctx context.Context, patientID uuid.UUID) ([]model.Booking, error) {
	if _, err := r.repo.GetPatientByID(ctx, patientID); err != nil {
		return nil, err
	}

	bookings, err := r.repo.ListBookingsByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list patient bookings: %w", err)
	}
	return bookings, nil
}
