package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/idopont/booking/internal/model"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same
// repository code runs inside and outside a transaction.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
	q    pgxQuerier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

// WithTx starts one transaction and runs fn against a repository bound
// to it. Nested calls run inline in the enclosing transaction.
func (r *PgRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	if r.pool == nil {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PgRepository{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// wrapConstraint maps integrity-constraint violations (SQLSTATE class
// 23) onto ErrConstraintViolation so callers never have to know pgconn.
func wrapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return fmt.Errorf("%w: %s", ErrConstraintViolation, pgErr.ConstraintName)
	}
	return err
}

// Scan helpers

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.Role, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func scanPatient(row pgx.Row) (*model.Patient, error) {
	var p model.Patient
	err := row.Scan(&p.ID, &p.UserID, &p.HealthID, &p.Note)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanDoctor(row pgx.Row) (*model.Doctor, error) {
	var d model.Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.LicenseNumber, &d.Bio)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanClinic(row pgx.Row) (*model.Clinic, error) {
	var c model.Clinic
	err := row.Scan(&c.ID, &c.Name, &c.Address, &c.FloorRoom)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicNotFound
		}
		return nil, err
	}
	return &c, nil
}

func scanService(row pgx.Row) (*model.Service, error) {
	var s model.Service
	err := row.Scan(&s.ID, &s.Name, &s.BaseDurationMin, &s.BasePrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanDoctorService(row pgx.Row) (*model.DoctorService, error) {
	var ds model.DoctorService
	err := row.Scan(&ds.DoctorID, &ds.ServiceID, &ds.Price, &ds.DurationMin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorServiceNotFound
		}
		return nil, err
	}
	return &ds, nil
}

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var s model.Slot
	err := row.Scan(&s.ID, &s.DoctorID, &s.ClinicID, &s.StartsAt, &s.EndsAt, &s.State)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.SlotID, &b.PatientID, &b.ServiceID, &b.Status, &b.Note, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Users

func (r *PgRepository) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, name, phone, role, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING created_at
	`, u.ID, u.Email, u.PasswordHash, u.Name, u.Phone, u.Role, u.Active).Scan(&u.CreatedAt)
	if err != nil {
		return wrapConstraint(err)
	}
	return nil
}

func (r *PgRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return scanUser(r.q.QueryRow(ctx, `
		SELECT id, email, password_hash, name, phone, role, active, created_at
		FROM users
		WHERE id = $1
	`, id))
}

func (r *PgRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.q.QueryRow(ctx, `
		SELECT id, email, password_hash, name, phone, role, active, created_at
		FROM users
		WHERE email = $1
	`, email))
}

func (r *PgRepository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return wrapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Patients

func (r *PgRepository) CreatePatient(ctx context.Context, p *model.Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO patients (id, user_id, health_id, note)
		VALUES ($1, $2, $3, $4)
	`, p.ID, p.UserID, p.HealthID, p.Note)
	if err != nil {
		return wrapConstraint(err)
	}
	return nil
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	return scanPatient(r.q.QueryRow(ctx, `
		SELECT id, user_id, health_id, note
		FROM patients
		WHERE id = $1
	`, id))
}

func (r *PgRepository) GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	return scanPatient(r.q.QueryRow(ctx, `
		SELECT id, user_id, health_id, note
		FROM patients
		WHERE user_id = $1
	`, userID))
}

func (r *PgRepository) DeletePatient(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return wrapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

// Doctors

func (r *PgRepository) CreateDoctor(ctx context.Context, d *model.Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO doctors (id, user_id, license_number, bio)
		VALUES ($1, $2, $3, $4)
	`, d.ID, d.UserID, d.LicenseNumber, d.Bio)
	if err != nil {
		return wrapConstraint(err)
	}
	return nil
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	return scanDoctor(r.q.QueryRow(ctx, `
		SELECT id, user_id, license_number, bio
		FROM doctors
		WHERE id = $1
	`, id))
}

func (r *PgRepository) GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	return scanDoctor(r.q.QueryRow(ctx, `
		SELECT id, user_id, license_number, bio
		FROM doctors
		WHERE user_id = $1
	`, userID))
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, user_id, license_number, bio
		FROM doctors
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (r *PgRepository) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return wrapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

// Clinics

func (r *PgRepository) CreateClinic(ctx context.Context, c *model.Clinic) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO clinics (id, name, address, floor_room)
		VALUES ($1, $2, $3, $4)
	`, c.ID, c.Name, c.Address, c.FloorRoom)
	if err != nil {
		return wrapConstraint(err)
	}
	return nil
}

func (r *PgRepository) GetClinicByID(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	return scanClinic(r.q.QueryRow(ctx, `
		SELECT id, name, address, floor_room
		FROM clinics
		WHERE id = $1
	`, id))
}

func (r *PgRepository) ListClinics(ctx context.Context) ([]model.Clinic, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, name, address, floor_room
		FROM clinics
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Clinic
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

// Services

func (r *PgRepository) CreateService(ctx context.Context, s *model.Service) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO services (id, name, base_duration_min, base_price)
		VALUES ($1, $2, $3, $4)
	`, s.ID, s.Name, s.BaseDurationMin, s.BasePrice)
	if err != nil {
		return wrapConstraint(err)
	}
	return nil
}

func (r *PgRepository) GetServiceByID(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	return scanService(r.q.QueryRow(ctx, `
		SELECT id, name, base_duration_min, base_price
		FROM services
		WHERE id = $1
	`, id))
}

func (r *PgRepository) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, name, base_duration_min, base_price
		FROM services
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) DeleteService(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return wrapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServiceNotFound
	}
	return nil
}

// Doctor services

func (r *PgRepository) UpsertDoctorService(ctx context.Context, ds *model.DoctorService) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO doctor_services (doctor_id, service_id, price, duration_min)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (doctor_id, service_id)
		DO UPDATE SET price = EXCLUDED.price, duration_min = EXCLUDED.duration_min
	`, ds.DoctorID, ds.ServiceID, ds.Price, ds.DurationMin)
	if err != nil {
		return wrapConstraint(err)
	}
	return nil
}

func (r *PgRepository) GetDoctorService(ctx context.Context, doctorID, serviceID uuid.UUID) (*model.DoctorService, error) {
	return scanDoctorService(r.q.QueryRow(ctx, `
		SELECT doctor_id, service_id, price, duration_min
		FROM doctor_services
		WHERE doctor_id = $1 AND service_id = $2
	`, doctorID, serviceID))
}

func (r *PgRepository) ListDoctorServices(ctx context.Context, doctorID uuid.UUID) ([]model.DoctorService, error) {
	rows, err := r.q.Query(ctx, `
		SELECT doctor_id, service_id, price, duration_min
		FROM doctor_services
		WHERE doctor_id = $1
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.DoctorService
	for rows.Next() {
		ds, err := scanDoctorService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ds)
	}
	return result, rows.Err()
}

func (r *PgRepository) DeleteDoctorServicesByDoctor(ctx context.Context, doctorID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `DELETE FROM doctor_services WHERE doctor_id = $1`, doctorID)
	return err
}

func (r *PgRepository) DeleteDoctorServicesByService(ctx context.Context, serviceID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `DELETE FROM doctor_services WHERE service_id = $1`, serviceID)
	return err
}

// Slots

func (r *PgRepository) CreateSlot(ctx context.Context, s *model.Slot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO slots (id, doctor_id, clinic_id, starts_at, ends_at, state)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.DoctorID, s.ClinicID, s.StartsAt, s.EndsAt, s.State)
	if err != nil {
		return wrapConstraint(err)
	}
	return nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	return scanSlot(r.q.QueryRow(ctx, `
		SELECT id, doctor_id, clinic_id, starts_at, ends_at, state
		FROM slots
		WHERE id = $1
	`, id))
}

func (r *PgRepository) UpdateSlotState(ctx context.Context, id uuid.UUID, from, to model.SlotState) (*model.Slot, error) {
	s, err := scanSlot(r.q.QueryRow(ctx, `
		UPDATE slots
		SET state = $2
		WHERE id = $1
		  AND state = $3
		RETURNING id, doctor_id, clinic_id, starts_at, ends_at, state
	`, id, to, from))
	if errors.Is(err, ErrSlotNotFound) {
		return nil, ErrStaleState
	}
	return s, err
}

func (r *PgRepository) ListFreeSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]model.Slot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, doctor_id, clinic_id, starts_at, ends_at, state
		FROM slots
		WHERE doctor_id = $1
		  AND state = 'FREE'
		  AND starts_at < $3
		  AND ends_at > $2
		ORDER BY starts_at ASC
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListSlotsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]model.Slot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, doctor_id, clinic_id, starts_at, ends_at, state
		FROM slots
		WHERE doctor_id = $1
		ORDER BY starts_at ASC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListScheduleByDoctor(ctx context.Context, doctorID uuid.UUID) ([]model.ScheduleEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT s.id, s.doctor_id, s.clinic_id, s.starts_at, s.ends_at, s.state,
		       b.id, b.slot_id, b.patient_id, b.service_id, b.status, b.note, b.created_at
		FROM slots s
		LEFT JOIN bookings b
		  ON b.slot_id = s.id AND b.status IN ('NEW', 'CONFIRMED')
		WHERE s.doctor_id = $1
		ORDER BY s.starts_at ASC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.ScheduleEntry
	for rows.Next() {
		var (
			s         model.Slot
			bID       *uuid.UUID
			bSlotID   *uuid.UUID
			bPatient  *uuid.UUID
			bService  *uuid.UUID
			bStatus   *model.BookingStatus
			bNote     *string
			bCreated  *time.Time
		)
		err := rows.Scan(
			&s.ID, &s.DoctorID, &s.ClinicID, &s.StartsAt, &s.EndsAt, &s.State,
			&bID, &bSlotID, &bPatient, &bService, &bStatus, &bNote, &bCreated,
		)
		if err != nil {
			return nil, err
		}

		entry := model.ScheduleEntry{Slot: s}
		if bID != nil {
			entry.Booking = &model.Booking{
				ID:        *bID,
				SlotID:    *bSlotID,
				PatientID: *bPatient,
				ServiceID: *bService,
				Status:    *bStatus,
				Note:      bNote,
				CreatedAt: *bCreated,
			}
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *PgRepository) CountFreeSlots(ctx context.Context, doctorID *uuid.UUID, from, to *time.Time) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		SELECT count(*)
		FROM slots
		WHERE state = 'FREE'
		  AND ($1::uuid IS NULL OR doctor_id = $1)
		  AND ($2::timestamptz IS NULL OR ends_at > $2)
		  AND ($3::timestamptz IS NULL OR starts_at < $3)
	`, doctorID, from, to).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PgRepository) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return wrapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// Bookings

func (r *PgRepository) CreateBooking(ctx context.Context, b *model.Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO bookings (id, slot_id, patient_id, service_id, status, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING created_at
	`, b.ID, b.SlotID, b.PatientID, b.ServiceID, b.Status, b.Note).Scan(&b.CreatedAt)
	if err != nil {
		return wrapConstraint(err)
	}
	return nil
}

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return scanBooking(r.q.QueryRow(ctx, `
		SELECT id, slot_id, patient_id, service_id, status, note, created_at
		FROM bookings
		WHERE id = $1
	`, id))
}

func (r *PgRepository) GetLiveBookingForSlot(ctx context.Context, slotID uuid.UUID) (*model.Booking, error) {
	return scanBooking(r.q.QueryRow(ctx, `
		SELECT id, slot_id, patient_id, service_id, status, note, created_at
		FROM bookings
		WHERE slot_id = $1 AND status IN ('NEW', 'CONFIRMED')
	`, slotID))
}

func (r *PgRepository) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to model.BookingStatus) (*model.Booking, error) {
	b, err := scanBooking(r.q.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2
		WHERE id = $1
		  AND status = $3
		RETURNING id, slot_id, patient_id, service_id, status, note, created_at
	`, id, to, from))
	if errors.Is(err, ErrBookingNotFound) {
		return nil, ErrStaleState
	}
	return b, err
}

func (r *PgRepository) ListBookingsByPatient(ctx context.Context, patientID uuid.UUID) ([]model.Booking, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, slot_id, patient_id, service_id, status, note, created_at
		FROM bookings
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

func (r *PgRepository) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return wrapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *PgRepository) DeleteBookingsBySlot(ctx context.Context, slotID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `DELETE FROM bookings WHERE slot_id = $1`, slotID)
	return err
}

// Events

func (r *PgRepository) InsertEvent(ctx context.Context, ev model.EventLog) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO event_logs (event_type, booking_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.BookingID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
