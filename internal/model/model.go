package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleDoctor  Role = "DOCTOR"
	RolePatient Role = "PATIENT"
)

type SlotState string

const (
	SlotFree   SlotState = "FREE"
	SlotBooked SlotState = "BOOKED"
)

type BookingStatus string

const (
	BookingNew       BookingStatus = "NEW"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCanceled  BookingStatus = "CANCELED"
	BookingDone      BookingStatus = "DONE"
)

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Name         string
	Phone        *string
	Role         Role
	Active       bool
	CreatedAt    time.Time
}

// Patient is the 1:1 profile of a PATIENT user.
type Patient struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	HealthID *string // national health identifier, optional
	Note     *string
}

// Doctor is the 1:1 profile of a DOCTOR user.
type Doctor struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	LicenseNumber string
	Bio           *string
}

type Clinic struct {
	ID        uuid.UUID
	Name      string
	Address   string
	FloorRoom *string
}

// Service is a bookable procedure type with a base duration and price.
type Service struct {
	ID              uuid.UUID
	Name            string
	BaseDurationMin int
	BasePrice       int
}

// DoctorService carries per-doctor overrides for a service.
// Identity is the (DoctorID, ServiceID) pair.
type DoctorService struct {
	DoctorID    uuid.UUID
	ServiceID   uuid.UUID
	Price       *int
	DurationMin *int
}

// Slot is a doctor's bookable time window, optionally tied to a clinic.
// StartsAt < EndsAt always holds for persisted slots. State only changes
// through the slot engine, never by direct writes.
type Slot struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
	ClinicID *uuid.UUID
	StartsAt time.Time
	EndsAt   time.Time
	State    SlotState
}

// Booking reserves exactly one slot for one patient and one service.
type Booking struct {
	ID        uuid.UUID
	SlotID    uuid.UUID
	PatientID uuid.UUID
	ServiceID uuid.UUID
	Status    BookingStatus
	Note      *string
	CreatedAt time.Time
}

// Live reports whether the booking currently holds its slot.
// A slot is BOOKED iff it has exactly one live booking.
func (b Booking) Live() bool {
	return b.Status == BookingNew || b.Status == BookingConfirmed
}

// HoldsSlot reports whether the booking still occupies its slot.
// Only cancellation gives a slot back; a DONE booking keeps it.
func (b Booking) HoldsSlot() bool {
	return b.Status != BookingCanceled
}

// ScheduleEntry pairs a slot with its live booking, if any.
type ScheduleEntry struct {
	Slot    Slot
	Booking *Booking
}

// EventLog is an append-only audit record of booking activity.
type EventLog struct {
	ID        int64
	EventType string
	BookingID *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}
