package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idopont/booking/internal/model"
)

func (f *fixture) addSlot(t *testing.T, start time.Time, dur time.Duration, state model.SlotState) model.Slot {
	t.Helper()
	s := &model.Slot{DoctorID: f.doctor.ID, StartsAt: start, EndsAt: start.Add(dur), State: state}
	require.NoError(t, f.repo.CreateSlot(context.Background(), s))
	return *s
}

func TestSlotEngineReserve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("free slot becomes booked", func(t *testing.T) {
		require.NoError(t, f.engine.Reserve(ctx, f.slot.ID))

		slot, err := f.repo.GetSlotByID(ctx, f.slot.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SlotBooked, slot.State)
	})

	t.Run("booked slot rejects a second reserve", func(t *testing.T) {
		err := f.engine.Reserve(ctx, f.slot.ID)
		assert.ErrorIs(t, err, ErrSlotUnavailable)
	})

	t.Run("unknown slot", func(t *testing.T) {
		err := f.engine.Reserve(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrSlotNotFound)
	})
}

func TestSlotEngineReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.engine.Reserve(ctx, f.slot.ID))
	require.NoError(t, f.engine.Release(ctx, f.slot.ID))

	// releasing again must succeed and leave the slot FREE
	require.NoError(t, f.engine.Release(ctx, f.slot.ID))

	slot, err := f.repo.GetSlotByID(ctx, f.slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotFree, slot.State)

	t.Run("unknown slot", func(t *testing.T) {
		err := f.engine.Release(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrSlotNotFound)
	})
}

func TestSlotEngineQueryFree(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	early := f.addSlot(t, day.Add(9*time.Hour), 30*time.Minute, model.SlotFree)
	late := f.addSlot(t, day.Add(15*time.Hour), 30*time.Minute, model.SlotFree)
	f.addSlot(t, day.Add(10*time.Hour), 30*time.Minute, model.SlotBooked)

	// straddles the range end, still overlaps
	straddle := f.addSlot(t, day.Add(16*time.Hour).Add(45*time.Minute), 30*time.Minute, model.SlotFree)

	// outside the range entirely
	f.addSlot(t, day.Add(24*time.Hour), 30*time.Minute, model.SlotFree)

	from := day.Add(9 * time.Hour)
	to := day.Add(17 * time.Hour)

	slots, err := f.engine.QueryFree(ctx, f.doctor.ID, from, to)
	require.NoError(t, err)

	ids := make([]uuid.UUID, 0, len(slots))
	for _, s := range slots {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []uuid.UUID{early.ID, late.ID, straddle.ID}, ids, "free overlapping slots ordered by start time")

	t.Run("other doctor sees nothing", func(t *testing.T) {
		slots, err := f.engine.QueryFree(ctx, uuid.New(), from, to)
		require.NoError(t, err)
		assert.Empty(t, slots)
	})
}

func TestReports(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reports := NewReports(f.repo)

	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	s2 := f.addSlot(t, day.Add(9*time.Hour), 30*time.Minute, model.SlotFree)
	f.addSlot(t, day.Add(10*time.Hour), 30*time.Minute, model.SlotFree)

	b1, err := f.mgr.CreateBooking(ctx, f.slot.ID, f.patient.ID, f.service.ID, nil)
	require.NoError(t, err)
	b2, err := f.mgr.CreateBooking(ctx, s2.ID, f.patient.ID, f.service.ID, nil)
	require.NoError(t, err)

	t.Run("free slot count", func(t *testing.T) {
		n, err := reports.FreeSlotCount(ctx, nil, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		other := uuid.New()
		n, err = reports.FreeSlotCount(ctx, &other, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		from := day.Add(11 * time.Hour)
		n, err = reports.FreeSlotCount(ctx, &f.doctor.ID, &from, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, n, "only booked slots after 11:00")
	})

	t.Run("doctor schedule pairs booked slots with live bookings", func(t *testing.T) {
		entries, err := reports.DoctorSchedule(ctx, f.doctor.ID)
		require.NoError(t, err)
		require.Len(t, entries, 3)

		byID := map[uuid.UUID]model.ScheduleEntry{}
		for _, e := range entries {
			byID[e.Slot.ID] = e
		}
		require.NotNil(t, byID[f.slot.ID].Booking)
		assert.Equal(t, b1.ID, byID[f.slot.ID].Booking.ID)
		require.NotNil(t, byID[s2.ID].Booking)
		assert.Equal(t, b2.ID, byID[s2.ID].Booking.ID)

		_, err = reports.DoctorSchedule(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrDoctorNotFound)
	})

	t.Run("patient history newest first", func(t *testing.T) {
		history, err := reports.PatientHistory(ctx, f.patient.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, b2.ID, history[0].ID)
		assert.Equal(t, b1.ID, history[1].ID)

		_, err = reports.PatientHistory(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrPatientNotFound)
	})
}
