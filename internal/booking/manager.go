package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/idopont/booking/internal/model"
	redisclient "github.com/idopont/booking/internal/redis"
)

const (
	EventBookingCreated       = "BOOKING_CREATED"
	EventBookingStatusChanged = "BOOKING_STATUS_CHANGED"
	EventBookingDeleted       = "BOOKING_DELETED"
)

var (
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrSlotBeingBooked   = errors.New("slot is currently being booked, please retry")
)

// Manager is the booking state machine and its coupling to slot state.
// Every mutating operation runs as one transaction: booking row and slot
// state move together or not at all.
type Manager struct {
	repo   Repository
	locker redisclient.Locker
}

func NewManager(repo Repository, locker redisclient.Locker) *Manager {
	return &Manager{
		repo:   repo,
		locker: locker,
	}
}

// CreateBooking reserves a slot for a patient and creates the booking in
// one transaction. The per-slot lock sheds contention up front; the
// check-and-set on slot state inside the transaction is what actually
// guarantees a single winner.
func (m *Manager) CreateBooking(ctx context.Context, slotID, patientID, serviceID uuid.UUID, note *string) (*model.Booking, error) {
	if _, err := m.repo.GetPatientByID(ctx, patientID); err != nil {
		return nil, err
	}
	if _, err := m.repo.GetServiceByID(ctx, serviceID); err != nil {
		return nil, err
	}

	// Fast pre-check outside the lock. Racy by itself, re-checked inside.
	slot, err := m.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.State != model.SlotFree {
		return nil, ErrSlotUnavailable
	}

	var created *model.Booking

	err = m.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		return m.repo.WithTx(lockCtx, func(tx Repository) error {
			if err := NewSlotEngine(tx).Reserve(lockCtx, slotID); err != nil {
				return err
			}

			b := &model.Booking{
				SlotID:    slotID,
				PatientID: patientID,
				ServiceID: serviceID,
				Status:    model.BookingNew,
				Note:      note,
			}
			if err := tx.CreateBooking(lockCtx, b); err != nil {
				return fmt.Errorf("create booking: %w", err)
			}

			created = b
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	m.logEvent(ctx, &created.ID, EventBookingCreated, map[string]any{
		"slot_id":    slotID.String(),
		"patient_id": patientID.String(),
		"service_id": serviceID.String(),
	})

	return created, nil
}

// UpdateStatus moves a booking through the state machine. A transition
// into CANCELED releases the slot in the same transaction as the status
// write.
func (m *Manager) UpdateStatus(ctx context.Context, bookingID uuid.UUID, to model.BookingStatus) (*model.Booking, error) {
	var updated *model.Booking

	err := m.repo.WithTx(ctx, func(tx Repository) error {
		b, err := tx.GetBookingByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if !model.CanTransition(b.Status, to) {
			return ErrInvalidTransition
		}

		upd, err := tx.UpdateBookingStatus(ctx, b.ID, b.Status, to)
		if err != nil {
			if errors.Is(err, ErrStaleState) {
				// status moved under us, the observed transition no longer applies
				return ErrInvalidTransition
			}
			return fmt.Errorf("update booking status: %w", err)
		}

		if to == model.BookingCanceled {
			if err := NewSlotEngine(tx).Release(ctx, b.SlotID); err != nil {
				return err
			}
		}

		updated = upd
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logEvent(ctx, &updated.ID, EventBookingStatusChanged, map[string]any{
		"status": string(updated.Status),
	})

	return updated, nil
}

// DeleteBooking removes a booking outright, releasing its slot when the
// booking still holds it. Allowed from any status: this is the
// administrative override, unlike UpdateStatus.
func (m *Manager) DeleteBooking(ctx context.Context, bookingID uuid.UUID) error {
	err := m.repo.WithTx(ctx, func(tx Repository) error {
		b, err := tx.GetBookingByID(ctx, bookingID)
		if err != nil {
			return err
		}

		// A CANCELED booking already gave up its slot, which may even
		// be held by a newer booking by now. Every other status still
		// occupies it: finishing a booking never releases the slot.
		if b.HoldsSlot() {
			if err := NewSlotEngine(tx).Release(ctx, b.SlotID); err != nil {
				return err
			}
		}

		return tx.DeleteBooking(ctx, b.ID)
	})
	if err != nil {
		return err
	}

	// The row is gone, so the event carries the id in its payload
	// instead of the foreign key.
	m.logEvent(ctx, nil, EventBookingDeleted, map[string]any{
		"booking_id": bookingID.String(),
	})
	return nil
}

func (m *Manager) logEvent(ctx context.Context, bookingID *uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	ev := model.EventLog{
		EventType: eventType,
		BookingID: bookingID,
		Payload:   data,
		CreatedAt: time.Now(),
	}

	if err := m.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for booking %s: %v", eventType, bookingID, err)
	}
}
