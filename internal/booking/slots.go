package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/idopont/booking/internal/model"
)

// ErrSlotUnavailable is the user-facing "someone else took this slot"
// condition: the slot was not FREE at reservation time.
var ErrSlotUnavailable = errors.New("slot is not free")

// SlotEngine owns slot state. Nothing else writes Slot.State: bookings
// flip it through Reserve and Release, always inside the caller's
// transaction.
type SlotEngine struct {
	repo Repository
}

func NewSlotEngine(repo Repository) *SlotEngine {
	return &SlotEngine{repo: repo}
}

// Reserve flips a FREE slot to BOOKED. Losing the check-and-set to a
// concurrent writer surfaces as ErrSlotUnavailable, never as a partial
// write.
func (e *SlotEngine) Reserve(ctx context.Context, slotID uuid.UUID) error {
	slot, err := e.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return err
	}
	if slot.State != model.SlotFree {
		return ErrSlotUnavailable
	}

	if _, err := e.repo.UpdateSlotState(ctx, slotID, model.SlotFree, model.SlotBooked); err != nil {
		if errors.Is(err, ErrStaleState) {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("reserve slot: %w", err)
	}
	return nil
}

// Release flips a BOOKED slot back to FREE. Releasing an already-FREE
// slot is a no-op success: cancellation paths may race.
func (e *SlotEngine) Release(ctx context.Context, slotID uuid.UUID) error {
	slot, err := e.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return err
	}
	if slot.State == model.SlotFree {
		return nil
	}

	if _, err := e.repo.UpdateSlotState(ctx, slotID, model.SlotBooked, model.SlotFree); err != nil {
		if errors.Is(err, ErrStaleState) {
			// another release got there first
			return nil
		}
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

// QueryFree returns the doctor's FREE slots overlapping [from, to),
// ordered by start time.
func (e *SlotEngine) QueryFree(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]model.Slot, error) {
	slots, err := e.repo.ListFreeSlots(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list free slots: %w", err)
	}
	return slots, nil
}
