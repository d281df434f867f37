package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/idopont/booking/internal/model"
)

type CreateBookingRequest struct {
	SlotID    string  `json:"slot_id"`
	PatientID string  `json:"patient_id"`
	ServiceID string  `json:"service_id"`
	Note      *string `json:"note,omitempty"`
}

type UpdateBookingStatusRequest struct {
	Status string `json:"status"`
}

type BookingResponse struct {
	ID        uuid.UUID `json:"id"`
	SlotID    uuid.UUID `json:"slot_id"`
	PatientID uuid.UUID `json:"patient_id"`
	ServiceID uuid.UUID `json:"service_id"`
	Status    string    `json:"status"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toBookingResponse(b *model.Booking) BookingResponse {
	return BookingResponse{
		ID:        b.ID,
		SlotID:    b.SlotID,
		PatientID: b.PatientID,
		ServiceID: b.ServiceID,
		Status:    string(b.Status),
		Note:      b.Note,
		CreatedAt: b.CreatedAt,
	}
}

type SlotResponse struct {
	ID       uuid.UUID  `json:"id"`
	DoctorID uuid.UUID  `json:"doctor_id"`
	ClinicID *uuid.UUID `json:"clinic_id,omitempty"`
	StartsAt time.Time  `json:"starts_at"`
	EndsAt   time.Time  `json:"ends_at"`
	State    string     `json:"state"`
}

func toSlotResponse(s model.Slot) SlotResponse {
	return SlotResponse{
		ID:       s.ID,
		DoctorID: s.DoctorID,
		ClinicID: s.ClinicID,
		StartsAt: s.StartsAt,
		EndsAt:   s.EndsAt,
		State:    string(s.State),
	}
}

type ScheduleEntryResponse struct {
	Slot    SlotResponse     `json:"slot"`
	Booking *BookingResponse `json:"booking,omitempty"`
}

type FreeSlotCountResponse struct {
	Count int `json:"count"`
}

type CreateUserRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     string  `json:"name"`
	Phone    *string `json:"phone,omitempty"`
	Role     string  `json:"role"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone,omitempty"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type CreatePatientRequest struct {
	UserID   string  `json:"user_id"`
	HealthID *string `json:"health_id,omitempty"`
	Note     *string `json:"note,omitempty"`
}

type PatientResponse struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	HealthID *string   `json:"health_id,omitempty"`
	Note     *string   `json:"note,omitempty"`
}

type CreateDoctorRequest struct {
	UserID        string  `json:"user_id"`
	LicenseNumber string  `json:"license_number"`
	Bio           *string `json:"bio,omitempty"`
}

type DoctorResponse struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	LicenseNumber string    `json:"license_number"`
	Bio           *string   `json:"bio,omitempty"`
}

type CreateClinicRequest struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	FloorRoom *string `json:"floor_room,omitempty"`
}

type ClinicResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	FloorRoom *string   `json:"floor_room,omitempty"`
}

type CreateServiceRequest struct {
	Name            string `json:"name"`
	BaseDurationMin int    `json:"base_duration_min"`
	BasePrice       int    `json:"base_price"`
}

type ServiceResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	BaseDurationMin int       `json:"base_duration_min"`
	BasePrice       int       `json:"base_price"`
}

type SetDoctorServiceRequest struct {
	Price       *int `json:"price,omitempty"`
	DurationMin *int `json:"duration_min,omitempty"`
}

type DoctorServiceResponse struct {
	DoctorID    uuid.UUID `json:"doctor_id"`
	ServiceID   uuid.UUID `json:"service_id"`
	Price       *int      `json:"price,omitempty"`
	DurationMin *int      `json:"duration_min,omitempty"`
}

type CreateSlotRequest struct {
	DoctorID string    `json:"doctor_id"`
	ClinicID *string   `json:"clinic_id,omitempty"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
