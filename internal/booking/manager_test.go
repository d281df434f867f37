package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idopont/booking/internal/model"
	redisclient "github.com/idopont/booking/internal/redis"
)

type fixture struct {
	repo    *MemoryRepository
	mgr     *Manager
	engine  *SlotEngine
	doctor  model.Doctor
	patient model.Patient
	service model.Service
	slot    model.Slot
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := NewMemoryRepository()

	docUser := &model.User{Email: "doc@example.com", Name: "Dr. Doe", Role: model.RoleDoctor, Active: true}
	require.NoError(t, repo.CreateUser(ctx, docUser))
	doctor := &model.Doctor{UserID: docUser.ID, LicenseNumber: "12345"}
	require.NoError(t, repo.CreateDoctor(ctx, doctor))

	patUser := &model.User{Email: "pat@example.com", Name: "Pat Smith", Role: model.RolePatient, Active: true}
	require.NoError(t, repo.CreateUser(ctx, patUser))
	patient := &model.Patient{UserID: patUser.ID}
	require.NoError(t, repo.CreatePatient(ctx, patient))

	service := &model.Service{Name: "General Checkup", BaseDurationMin: 30, BasePrice: 25000}
	require.NoError(t, repo.CreateService(ctx, service))

	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	slot := &model.Slot{DoctorID: doctor.ID, StartsAt: start, EndsAt: start.Add(30 * time.Minute), State: model.SlotFree}
	require.NoError(t, repo.CreateSlot(ctx, slot))

	return &fixture{
		repo:    repo,
		mgr:     NewManager(repo, redisclient.NopLocker{}),
		engine:  NewSlotEngine(repo),
		doctor:  *doctor,
		patient: *patient,
		service: *service,
		slot:    *slot,
	}
}

func (f *fixture) addPatient(t *testing.T, email string) model.Patient {
	t.Helper()
	ctx := context.Background()
	u := &model.User{Email: email, Name: "Another Patient", Role: model.RolePatient, Active: true}
	require.NoError(t, f.repo.CreateUser(ctx, u))
	p := &model.Patient{UserID: u.ID}
	require.NoError(t, f.repo.CreatePatient(ctx, p))
	return *p
}

// requireCoupled asserts the slot/booking coupling invariant: the slot
// is BOOKED exactly when one live booking references it.
func (f *fixture) requireCoupled(t *testing.T, slotID uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	slot, err := f.repo.GetSlotByID(ctx, slotID)
	require.NoError(t, err)

	live, err := f.repo.GetLiveBookingForSlot(ctx, slotID)
	switch slot.State {
	case model.SlotBooked:
		require.NoError(t, err, "BOOKED slot must have a live booking")
		require.Equal(t, slotID, live.SlotID)
	case model.SlotFree:
		require.ErrorIs(t, err, ErrBookingNotFound, "FREE slot must have no live booking")
	}
}

func TestBookingLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p2 := f.addPatient(t, "pat2@example.com")

	// Scenario A: booking a free slot
	b1, err := f.mgr.CreateBooking(ctx, f.slot.ID, f.patient.ID, f.service.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BookingNew, b1.Status)

	slot, err := f.repo.GetSlotByID(ctx, f.slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotBooked, slot.State)
	f.requireCoupled(t, f.slot.ID)

	// Scenario B: booking the same slot again fails, b1 still holds it
	_, err = f.mgr.CreateBooking(ctx, f.slot.ID, p2.ID, f.service.ID, nil)
	require.ErrorIs(t, err, ErrSlotUnavailable)

	live, err := f.repo.GetLiveBookingForSlot(ctx, f.slot.ID)
	require.NoError(t, err)
	assert.Equal(t, b1.ID, live.ID)

	// Scenario C: cancelling releases the slot
	b1, err = f.mgr.UpdateStatus(ctx, b1.ID, model.BookingCanceled)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCanceled, b1.Status)

	slot, err = f.repo.GetSlotByID(ctx, f.slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotFree, slot.State)
	f.requireCoupled(t, f.slot.ID)

	// Scenario D: the freed slot can be booked by someone else
	b2, err := f.mgr.CreateBooking(ctx, f.slot.ID, p2.ID, f.service.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BookingNew, b2.Status)
	f.requireCoupled(t, f.slot.ID)

	// Scenario E: deleting a live booking frees the slot
	require.NoError(t, f.mgr.DeleteBooking(ctx, b2.ID))

	_, err = f.repo.GetBookingByID(ctx, b2.ID)
	require.ErrorIs(t, err, ErrBookingNotFound)

	slot, err = f.repo.GetSlotByID(ctx, f.slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotFree, slot.State)
	f.requireCoupled(t, f.slot.ID)
}

func TestCreateBookingValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("unknown patient", func(t *testing.T) {
		_, err := f.mgr.CreateBooking(ctx, f.slot.ID, uuid.New(), f.service.ID, nil)
		assert.ErrorIs(t, err, ErrPatientNotFound)
	})

	t.Run("unknown service", func(t *testing.T) {
		_, err := f.mgr.CreateBooking(ctx, f.slot.ID, f.patient.ID, uuid.New(), nil)
		assert.ErrorIs(t, err, ErrServiceNotFound)
	})

	t.Run("unknown slot", func(t *testing.T) {
		_, err := f.mgr.CreateBooking(ctx, uuid.New(), f.patient.ID, f.service.ID, nil)
		assert.ErrorIs(t, err, ErrSlotNotFound)
	})
}

func TestCreateBookingLoserLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p2 := f.addPatient(t, "pat2@example.com")

	_, err := f.mgr.CreateBooking(ctx, f.slot.ID, f.patient.ID, f.service.ID, nil)
	require.NoError(t, err)

	_, err = f.mgr.CreateBooking(ctx, f.slot.ID, p2.ID, f.service.ID, nil)
	require.ErrorIs(t, err, ErrSlotUnavailable)

	// the losing call must not persist anything
	history, err := f.repo.ListBookingsByPatient(ctx, p2.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestConcurrentCreateBookingSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const attempts = 64

	patients := make([]model.Patient, attempts)
	for i := range patients {
		patients[i] = f.addPatient(t, uuid.NewString()+"@example.com")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		losses    int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(p model.Patient) {
			defer wg.Done()
			_, err := f.mgr.CreateBooking(ctx, f.slot.ID, p.ID, f.service.ID, nil)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSlotUnavailable):
				losses++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(patients[i])
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "exactly one concurrent creator may win")
	assert.Equal(t, attempts-1, losses)
	f.requireCoupled(t, f.slot.ID)
}

func TestUpdateStatusTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.mgr.CreateBooking(ctx, f.slot.ID, f.patient.ID, f.service.ID, nil)
	require.NoError(t, err)

	t.Run("confirm keeps slot booked", func(t *testing.T) {
		b2, err := f.mgr.UpdateStatus(ctx, b.ID, model.BookingConfirmed)
		require.NoError(t, err)
		assert.Equal(t, model.BookingConfirmed, b2.Status)

		slot, err := f.repo.GetSlotByID(ctx, f.slot.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SlotBooked, slot.State)
	})

	t.Run("done keeps slot booked", func(t *testing.T) {
		b2, err := f.mgr.UpdateStatus(ctx, b.ID, model.BookingDone)
		require.NoError(t, err)
		assert.Equal(t, model.BookingDone, b2.Status)
	})

	t.Run("terminal status rejects everything", func(t *testing.T) {
		for _, to := range []model.BookingStatus{model.BookingNew, model.BookingConfirmed, model.BookingCanceled, model.BookingDone} {
			_, err := f.mgr.UpdateStatus(ctx, b.ID, to)
			assert.ErrorIs(t, err, ErrInvalidTransition, "DONE -> %s must fail", to)
		}
	})

	t.Run("unknown booking", func(t *testing.T) {
		_, err := f.mgr.UpdateStatus(ctx, uuid.New(), model.BookingConfirmed)
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})
}

func TestDeleteBookingAdministrativeOverride(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p2 := f.addPatient(t, "pat2@example.com")

	b1, err := f.mgr.CreateBooking(ctx, f.slot.ID, f.patient.ID, f.service.ID, nil)
	require.NoError(t, err)

	_, err = f.mgr.UpdateStatus(ctx, b1.ID, model.BookingCanceled)
	require.NoError(t, err)

	// slot is free again and rebooked by someone else
	b2, err := f.mgr.CreateBooking(ctx, f.slot.ID, p2.ID, f.service.ID, nil)
	require.NoError(t, err)

	// deleting the old canceled booking must not free b2's slot
	require.NoError(t, f.mgr.DeleteBooking(ctx, b1.ID))

	slot, err := f.repo.GetSlotByID(ctx, f.slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotBooked, slot.State)

	live, err := f.repo.GetLiveBookingForSlot(ctx, f.slot.ID)
	require.NoError(t, err)
	assert.Equal(t, b2.ID, live.ID)

	t.Run("unknown booking", func(t *testing.T) {
		err := f.mgr.DeleteBooking(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})
}

func TestDeleteDoneBookingFreesSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.mgr.CreateBooking(ctx, f.slot.ID, f.patient.ID, f.service.ID, nil)
	require.NoError(t, err)

	// a finished booking keeps occupying its slot
	_, err = f.mgr.UpdateStatus(ctx, b.ID, model.BookingDone)
	require.NoError(t, err)

	slot, err := f.repo.GetSlotByID(ctx, f.slot.ID)
	require.NoError(t, err)
	require.Equal(t, model.SlotBooked, slot.State)

	// deleting it must not strand the slot in BOOKED
	require.NoError(t, f.mgr.DeleteBooking(ctx, b.ID))

	slot, err = f.repo.GetSlotByID(ctx, f.slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotFree, slot.State, "slot must revert to FREE when its DONE booking is deleted")
	f.requireCoupled(t, f.slot.ID)
}
