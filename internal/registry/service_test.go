package registry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/idopont/booking/internal/booking"
	"github.com/idopont/booking/internal/model"
	redisclient "github.com/idopont/booking/internal/redis"
)

type harness struct {
	repo *booking.MemoryRepository
	reg  *Service
	mgr  *booking.Manager
}

func newHarness() *harness {
	repo := booking.NewMemoryRepository()
	return &harness{
		repo: repo,
		reg:  NewService(repo),
		mgr:  booking.NewManager(repo, redisclient.NopLocker{}),
	}
}

func (h *harness) doctor(t *testing.T, email string) *model.Doctor {
	t.Helper()
	ctx := context.Background()
	u, err := h.reg.CreateUser(ctx, email, "secret123", "Dr. Doe", nil, model.RoleDoctor)
	require.NoError(t, err)
	d, err := h.reg.CreateDoctor(ctx, u.ID, "99999", nil)
	require.NoError(t, err)
	return d
}

func (h *harness) patient(t *testing.T, email string) *model.Patient {
	t.Helper()
	ctx := context.Background()
	u, err := h.reg.CreateUser(ctx, email, "secret123", "Pat Smith", nil, model.RolePatient)
	require.NoError(t, err)
	p, err := h.reg.CreatePatient(ctx, u.ID, nil, nil)
	require.NoError(t, err)
	return p
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	u, err := h.reg.CreateUser(ctx, "  Admin@Example.COM ", "hunter22", "Ada", nil, model.RoleAdmin)
	require.NoError(t, err)

	assert.Equal(t, "admin@example.com", u.Email, "email is normalized")
	assert.True(t, u.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("hunter22")))

	t.Run("duplicate email", func(t *testing.T) {
		_, err := h.reg.CreateUser(ctx, "admin@example.com", "other", "Ada II", nil, model.RoleAdmin)
		assert.ErrorIs(t, err, booking.ErrConstraintViolation)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := h.reg.CreateUser(ctx, "", "pw", "name", nil, model.RoleAdmin)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestProfileRoleEnforcement(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	docUser, err := h.reg.CreateUser(ctx, "doc@example.com", "secret123", "Dr. Doe", nil, model.RoleDoctor)
	require.NoError(t, err)

	t.Run("patient profile on doctor user", func(t *testing.T) {
		_, err := h.reg.CreatePatient(ctx, docUser.ID, nil, nil)
		assert.ErrorIs(t, err, ErrRoleMismatch)
	})

	t.Run("doctor profile on doctor user", func(t *testing.T) {
		_, err := h.reg.CreateDoctor(ctx, docUser.ID, "12345", nil)
		assert.NoError(t, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := h.reg.CreateDoctor(ctx, uuid.New(), "12345", nil)
		assert.ErrorIs(t, err, booking.ErrUserNotFound)
	})
}

func TestCreateSlot(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	doc := h.doctor(t, "doc@example.com")

	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	t.Run("created free", func(t *testing.T) {
		slot, err := h.reg.CreateSlot(ctx, doc.ID, nil, start, start.Add(30*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, model.SlotFree, slot.State)
	})

	t.Run("inverted window", func(t *testing.T) {
		_, err := h.reg.CreateSlot(ctx, doc.ID, nil, start, start)
		assert.ErrorIs(t, err, ErrInvalidTimeWindow)
	})

	t.Run("duplicate window for doctor", func(t *testing.T) {
		_, err := h.reg.CreateSlot(ctx, doc.ID, nil, start, start.Add(30*time.Minute))
		assert.ErrorIs(t, err, booking.ErrConstraintViolation)
	})

	t.Run("unknown clinic", func(t *testing.T) {
		badClinic := uuid.New()
		_, err := h.reg.CreateSlot(ctx, doc.ID, &badClinic, start.Add(time.Hour), start.Add(90*time.Minute))
		assert.ErrorIs(t, err, booking.ErrClinicNotFound)
	})
}

func TestSetDoctorService(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	doc := h.doctor(t, "doc@example.com")

	svc, err := h.reg.CreateService(ctx, "Consultation", 30, 20000)
	require.NoError(t, err)

	price := 18000
	ds, err := h.reg.SetDoctorService(ctx, doc.ID, svc.ID, &price, nil)
	require.NoError(t, err)
	require.NotNil(t, ds.Price)
	assert.Equal(t, 18000, *ds.Price)

	// second call replaces the override
	price2 := 21000
	_, err = h.reg.SetDoctorService(ctx, doc.ID, svc.ID, &price2, nil)
	require.NoError(t, err)

	got, err := h.repo.GetDoctorService(ctx, doc.ID, svc.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Price)
	assert.Equal(t, 21000, *got.Price)

	t.Run("unknown service", func(t *testing.T) {
		_, err := h.reg.SetDoctorService(ctx, doc.ID, uuid.New(), &price, nil)
		assert.ErrorIs(t, err, booking.ErrServiceNotFound)
	})
}

func TestDeletePatientUserCascade(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	doc := h.doctor(t, "doc@example.com")
	pat := h.patient(t, "pat@example.com")

	svc, err := h.reg.CreateService(ctx, "Consultation", 30, 20000)
	require.NoError(t, err)

	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	slot, err := h.reg.CreateSlot(ctx, doc.ID, nil, start, start.Add(30*time.Minute))
	require.NoError(t, err)

	b, err := h.mgr.CreateBooking(ctx, slot.ID, pat.ID, svc.ID, nil)
	require.NoError(t, err)

	require.NoError(t, h.reg.DeleteUser(ctx, pat.UserID))

	_, err = h.repo.GetUserByID(ctx, pat.UserID)
	assert.ErrorIs(t, err, booking.ErrUserNotFound)
	_, err = h.repo.GetPatientByID(ctx, pat.ID)
	assert.ErrorIs(t, err, booking.ErrPatientNotFound)
	_, err = h.repo.GetBookingByID(ctx, b.ID)
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)

	// the slot the live booking held is free again
	got, err := h.repo.GetSlotByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotFree, got.State)
}

func TestDeletePatientUserCascadeFreesDoneSlot(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	doc := h.doctor(t, "doc@example.com")
	pat := h.patient(t, "pat@example.com")

	svc, err := h.reg.CreateService(ctx, "Consultation", 30, 20000)
	require.NoError(t, err)

	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	slot, err := h.reg.CreateSlot(ctx, doc.ID, nil, start, start.Add(30*time.Minute))
	require.NoError(t, err)

	b, err := h.mgr.CreateBooking(ctx, slot.ID, pat.ID, svc.ID, nil)
	require.NoError(t, err)
	_, err = h.mgr.UpdateStatus(ctx, b.ID, model.BookingDone)
	require.NoError(t, err)

	require.NoError(t, h.reg.DeleteUser(ctx, pat.UserID))

	// the DONE booking still occupied the slot, so removing it frees it
	got, err := h.repo.GetSlotByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotFree, got.State)
}

func TestDeleteDoctorUserCascade(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	doc := h.doctor(t, "doc@example.com")
	pat := h.patient(t, "pat@example.com")

	svc, err := h.reg.CreateService(ctx, "Consultation", 30, 20000)
	require.NoError(t, err)
	price := 18000
	_, err = h.reg.SetDoctorService(ctx, doc.ID, svc.ID, &price, nil)
	require.NoError(t, err)

	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	slot, err := h.reg.CreateSlot(ctx, doc.ID, nil, start, start.Add(30*time.Minute))
	require.NoError(t, err)

	// a canceled booking also references the slot and must go with it
	b, err := h.mgr.CreateBooking(ctx, slot.ID, pat.ID, svc.ID, nil)
	require.NoError(t, err)
	_, err = h.mgr.UpdateStatus(ctx, b.ID, model.BookingCanceled)
	require.NoError(t, err)
	b2, err := h.mgr.CreateBooking(ctx, slot.ID, pat.ID, svc.ID, nil)
	require.NoError(t, err)

	require.NoError(t, h.reg.DeleteUser(ctx, doc.UserID))

	_, err = h.repo.GetDoctorByID(ctx, doc.ID)
	assert.ErrorIs(t, err, booking.ErrDoctorNotFound)
	_, err = h.repo.GetSlotByID(ctx, slot.ID)
	assert.ErrorIs(t, err, booking.ErrSlotNotFound)
	_, err = h.repo.GetBookingByID(ctx, b.ID)
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
	_, err = h.repo.GetBookingByID(ctx, b2.ID)
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
	_, err = h.repo.GetDoctorService(ctx, doc.ID, svc.ID)
	assert.ErrorIs(t, err, booking.ErrDoctorServiceNotFound)

	// the patient and the service are untouched
	_, err = h.repo.GetPatientByID(ctx, pat.ID)
	assert.NoError(t, err)
	_, err = h.repo.GetServiceByID(ctx, svc.ID)
	assert.NoError(t, err)
}

func TestDeleteService(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	doc := h.doctor(t, "doc@example.com")

	svc, err := h.reg.CreateService(ctx, "Consultation", 30, 20000)
	require.NoError(t, err)
	price := 18000
	_, err = h.reg.SetDoctorService(ctx, doc.ID, svc.ID, &price, nil)
	require.NoError(t, err)

	require.NoError(t, h.reg.DeleteService(ctx, svc.ID))

	_, err = h.repo.GetServiceByID(ctx, svc.ID)
	assert.ErrorIs(t, err, booking.ErrServiceNotFound)
	_, err = h.repo.GetDoctorService(ctx, doc.ID, svc.ID)
	assert.ErrorIs(t, err, booking.ErrDoctorServiceNotFound)

	t.Run("unknown service", func(t *testing.T) {
		err := h.reg.DeleteService(ctx, uuid.New())
		assert.ErrorIs(t, err, booking.ErrServiceNotFound)
	})
}
