// Package registry is the administrative side of the store: it creates
// and removes users, profiles, clinics, services and slots. It never
// touches Slot.State after creation; only the booking engine does that.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/idopont/booking/internal/booking"
	"github.com/idopont/booking/internal/model"
)

var (
	ErrRoleMismatch      = errors.New("profile role does not match user role")
	ErrInvalidTimeWindow = errors.New("slot must start before it ends")
	ErrInvalidArgument   = errors.New("invalid argument")
)

type Service struct {
	repo booking.Repository
}

func NewService(repo booking.Repository) *Service {
	return &Service{repo: repo}
}

// CreateUser stores a new identity with a bcrypt credential hash.
func (s *Service) CreateUser(ctx context.Context, email, password, name string, phone *string, role model.Role) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" || name == "" {
		return nil, fmt.Errorf("%w: email, password and name are required", ErrInvalidArgument)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Phone:        phone,
		Role:         role,
		Active:       true,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// CreatePatient attaches a patient profile to a PATIENT user.
func (s *Service) CreatePatient(ctx context.Context, userID uuid.UUID, healthID, note *string) (*model.Patient, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != model.RolePatient {
		return nil, ErrRoleMismatch
	}

	p := &model.Patient{
		UserID:   userID,
		HealthID: healthID,
		Note:     note,
	}
	if err := s.repo.CreatePatient(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateDoctor attaches a doctor profile to a DOCTOR user.
func (s *Service) CreateDoctor(ctx context.Context, userID uuid.UUID, licenseNumber string, bio *string) (*model.Doctor, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != model.RoleDoctor {
		return nil, ErrRoleMismatch
	}

	d := &model.Doctor{
		UserID:        userID,
		LicenseNumber: licenseNumber,
		Bio:           bio,
	}
	if err := s.repo.CreateDoctor(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) CreateClinic(ctx context.Context, name, address string, floorRoom *string) (*model.Clinic, error) {
	if name == "" || address == "" {
		return nil, fmt.Errorf("%w: name and address are required", ErrInvalidArgument)
	}

	c := &model.Clinic{
		Name:      name,
		Address:   address,
		FloorRoom: floorRoom,
	}
	if err := s.repo.CreateClinic(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) CreateService(ctx context.Context, name string, baseDurationMin, basePrice int) (*model.Service, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if baseDurationMin <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidArgument)
	}

	svc := &model.Service{
		Name:            name,
		BaseDurationMin: baseDurationMin,
		BasePrice:       basePrice,
	}
	if err := s.repo.CreateService(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// SetDoctorService records a per-doctor price/duration override,
// replacing any previous override for the same (doctor, service) pair.
func (s *Service) SetDoctorService(ctx context.Context, doctorID, serviceID uuid.UUID, price, durationMin *int) (*model.DoctorService, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetServiceByID(ctx, serviceID); err != nil {
		return nil, err
	}

	ds := &model.DoctorService{
		DoctorID:    doctorID,
		ServiceID:   serviceID,
		Price:       price,
		DurationMin: durationMin,
	}
	if err := s.repo.UpsertDoctorService(ctx, ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// CreateSlot publishes a new bookable window. Every slot starts FREE;
// there is no way to create one already booked.
func (s *Service) CreateSlot(ctx context.Context, doctorID uuid.UUID, clinicID *uuid.UUID, startsAt, endsAt time.Time) (*model.Slot, error) {
	if !startsAt.Before(endsAt) {
		return nil, ErrInvalidTimeWindow
	}
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}
	if clinicID != nil {
		if _, err := s.repo.GetClinicByID(ctx, *clinicID); err != nil {
			return nil, err
		}
	}

	slot := &model.Slot{
		DoctorID: doctorID,
		ClinicID: clinicID,
		StartsAt: startsAt,
		EndsAt:   endsAt,
		State:    model.SlotFree,
	}
	if err := s.repo.CreateSlot(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

// DeleteUser removes a user and everything hanging off it in one
// transaction: the patient profile with its bookings (slots released),
// or the doctor profile with its overrides, slots and their bookings.
func (s *Service) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(tx booking.Repository) error {
		if _, err := tx.GetUserByID(ctx, userID); err != nil {
			return err
		}

		if p, err := tx.GetPatientByUserID(ctx, userID); err == nil {
			if err := deletePatientCascade(ctx, tx, p.ID); err != nil {
				return err
			}
		} else if !errors.Is(err, booking.ErrPatientNotFound) {
			return err
		}

		if d, err := tx.GetDoctorByUserID(ctx, userID); err == nil {
			if err := deleteDoctorCascade(ctx, tx, d.ID); err != nil {
				return err
			}
		} else if !errors.Is(err, booking.ErrDoctorNotFound) {
			return err
		}

		return tx.DeleteUser(ctx, userID)
	})
}

// DeleteService removes a service and its per-doctor overrides. Fails
// with a constraint violation while bookings still reference it.
func (s *Service) DeleteService(ctx context.Context, serviceID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(tx booking.Repository) error {
		if _, err := tx.GetServiceByID(ctx, serviceID); err != nil {
			return err
		}
		if err := tx.DeleteDoctorServicesByService(ctx, serviceID); err != nil {
			return err
		}
		return tx.DeleteService(ctx, serviceID)
	})
}

// deletePatientCascade removes the patient's bookings, releasing any
// slot a booking still holds, then the profile itself.
func deletePatientCascade(ctx context.Context, tx booking.Repository, patientID uuid.UUID) error {
	bookings, err := tx.ListBookingsByPatient(ctx, patientID)
	if err != nil {
		return err
	}

	eng := booking.NewSlotEngine(tx)
	for _, b := range bookings {
		if b.HoldsSlot() {
			if err := eng.Release(ctx, b.SlotID); err != nil {
				return err
			}
		}
		if err := tx.DeleteBooking(ctx, b.ID); err != nil {
			return err
		}
	}

	return tx.DeletePatient(ctx, patientID)
}

// deleteDoctorCascade removes the doctor's service overrides, slots and
// the bookings on those slots, then the profile itself.
func deleteDoctorCascade(ctx context.Context, tx booking.Repository, doctorID uuid.UUID) error {
	if err := tx.DeleteDoctorServicesByDoctor(ctx, doctorID); err != nil {
		return err
	}

	slots, err := tx.ListSlotsByDoctor(ctx, doctorID)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		if err := tx.DeleteBookingsBySlot(ctx, slot.ID); err != nil {
			return err
		}
		if err := tx.DeleteSlot(ctx, slot.ID); err != nil {
			return err
		}
	}

	return tx.DeleteDoctor(ctx, doctorID)
}
