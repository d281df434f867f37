package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL is the storage-layer second line of defense: the unique and
// foreign-key constraints backing the invariants the services enforce
// transactionally. Note the partial unique index on bookings: at most
// one live (NEW/CONFIRMED) booking may hold a slot, while canceled ones
// may pile up.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            uuid PRIMARY KEY,
		email         text NOT NULL UNIQUE,
		password_hash text NOT NULL,
		name          text NOT NULL,
		phone         text,
		role          text NOT NULL CHECK (role IN ('ADMIN', 'DOCTOR', 'PATIENT')),
		active        boolean NOT NULL DEFAULT true,
		created_at    timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS patients (
		id        uuid PRIMARY KEY,
		user_id   uuid NOT NULL UNIQUE REFERENCES users (id),
		health_id text,
		note      text
	)`,
	`CREATE TABLE IF NOT EXISTS doctors (
		id             uuid PRIMARY KEY,
		user_id        uuid NOT NULL UNIQUE REFERENCES users (id),
		license_number text NOT NULL,
		bio            text
	)`,
	`CREATE TABLE IF NOT EXISTS clinics (
		id         uuid PRIMARY KEY,
		name       text NOT NULL,
		address    text NOT NULL,
		floor_room text
	)`,
	`CREATE TABLE IF NOT EXISTS services (
		id                uuid PRIMARY KEY,
		name              text NOT NULL UNIQUE,
		base_duration_min integer NOT NULL,
		base_price        integer NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS doctor_services (
		doctor_id    uuid NOT NULL REFERENCES doctors (id),
		service_id   uuid NOT NULL REFERENCES services (id),
		price        integer,
		duration_min integer,
		PRIMARY KEY (doctor_id, service_id)
	)`,
	`CREATE TABLE IF NOT EXISTS slots (
		id        uuid PRIMARY KEY,
		doctor_id uuid NOT NULL REFERENCES doctors (id),
		clinic_id uuid REFERENCES clinics (id),
		starts_at timestamptz NOT NULL,
		ends_at   timestamptz NOT NULL,
		state     text NOT NULL DEFAULT 'FREE' CHECK (state IN ('FREE', 'BOOKED')),
		CONSTRAINT slot_window CHECK (starts_at < ends_at),
		CONSTRAINT uq_slot_doctor_window UNIQUE (doctor_id, starts_at, ends_at)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_slot_doctor_start ON slots (doctor_id, starts_at)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id         uuid PRIMARY KEY,
		slot_id    uuid NOT NULL REFERENCES slots (id),
		patient_id uuid NOT NULL REFERENCES patients (id),
		service_id uuid NOT NULL REFERENCES services (id),
		status     text NOT NULL DEFAULT 'NEW' CHECK (status IN ('NEW', 'CONFIRMED', 'CANCELED', 'DONE')),
		note       text,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_booking_live_slot
		ON bookings (slot_id)
		WHERE status IN ('NEW', 'CONFIRMED')`,
	`CREATE INDEX IF NOT EXISTS idx_booking_patient ON bookings (patient_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		id         bigserial PRIMARY KEY,
		event_type text NOT NULL,
		booking_id uuid REFERENCES bookings (id) ON DELETE SET NULL,
		payload    jsonb,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates any missing tables and indexes. Idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaDDL {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
