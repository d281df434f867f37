package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/idopont/booking/internal/model"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrPatientNotFound       = errors.New("patient not found")
	ErrDoctorNotFound        = errors.New("doctor not found")
	ErrClinicNotFound        = errors.New("clinic not found")
	ErrServiceNotFound       = errors.New("service not found")
	ErrDoctorServiceNotFound = errors.New("doctor service override not found")
	ErrSlotNotFound          = errors.New("slot not found")
	ErrBookingNotFound       = errors.New("booking not found")

	// ErrStaleState means a compare-and-set missed because another
	// transaction changed the row first. Callers translate it into a
	// domain error and roll back.
	ErrStaleState = errors.New("state changed concurrently")

	// ErrConstraintViolation wraps storage-layer unique/foreign-key
	// violations. Never swallowed.
	ErrConstraintViolation = errors.New("constraint violation")
)

// Repository is the entity store: every durable record and the
// transactional boundary the slot engine and booking manager run inside.
type Repository interface {
	// WithTx runs fn against a repository bound to one transaction.
	// fn returning an error rolls everything back.
	WithTx(ctx context.Context, fn func(Repository) error) error

	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error

	CreatePatient(ctx context.Context, p *model.Patient) error
	GetPatientByID(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error)
	DeletePatient(ctx context.Context, id uuid.UUID) error

	CreateDoctor(ctx context.Context, d *model.Doctor) error
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
	GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error)
	ListDoctors(ctx context.Context) ([]model.Doctor, error)
	DeleteDoctor(ctx context.Context, id uuid.UUID) error

	CreateClinic(ctx context.Context, c *model.Clinic) error
	GetClinicByID(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
	ListClinics(ctx context.Context) ([]model.Clinic, error)

	CreateService(ctx context.Context, s *model.Service) error
	GetServiceByID(ctx context.Context, id uuid.UUID) (*model.Service, error)
	ListServices(ctx context.Context) ([]model.Service, error)
	DeleteService(ctx context.Context, id uuid.UUID) error

	UpsertDoctorService(ctx context.Context, ds *model.DoctorService) error
	GetDoctorService(ctx context.Context, doctorID, serviceID uuid.UUID) (*model.DoctorService, error)
	ListDoctorServices(ctx context.Context, doctorID uuid.UUID) ([]model.DoctorService, error)
	DeleteDoctorServicesByDoctor(ctx context.Context, doctorID uuid.UUID) error
	DeleteDoctorServicesByService(ctx context.Context, serviceID uuid.UUID) error

	CreateSlot(ctx context.Context, s *model.Slot) error
	GetSlotByID(ctx context.Context, id uuid.UUID) (*model.Slot, error)
	// UpdateSlotState is the check-and-set every slot transition goes
	// through: fails with ErrStaleState when the slot is no longer in
	// the expected state.
	UpdateSlotState(ctx context.Context, id uuid.UUID, from, to model.SlotState) (*model.Slot, error)
	ListFreeSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]model.Slot, error)
	ListSlotsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]model.Slot, error)
	// ListScheduleByDoctor joins each of the doctor's slots with its
	// live booking, if any, ordered by start time.
	ListScheduleByDoctor(ctx context.Context, doctorID uuid.UUID) ([]model.ScheduleEntry, error)
	CountFreeSlots(ctx context.Context, doctorID *uuid.UUID, from, to *time.Time) (int, error)
	DeleteSlot(ctx context.Context, id uuid.UUID) error

	CreateBooking(ctx context.Context, b *model.Booking) error
	GetBookingByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// GetLiveBookingForSlot returns the NEW or CONFIRMED booking holding
	// the slot, or ErrBookingNotFound.
	GetLiveBookingForSlot(ctx context.Context, slotID uuid.UUID) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to model.BookingStatus) (*model.Booking, error)
	ListBookingsByPatient(ctx context.Context, patientID uuid.UUID) ([]model.Booking, error)
	DeleteBooking(ctx context.Context, id uuid.UUID) error
	// DeleteBookingsBySlot removes every booking referencing the slot,
	// live or not. Used by administrative cascades before slot removal.
	DeleteBookingsBySlot(ctx context.Context, slotID uuid.UUID) error

	InsertEvent(ctx context.Context, ev model.EventLog) error
}
