package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/idopont/booking/internal/model"
)

type dsKey struct {
	doctorID  uuid.UUID
	serviceID uuid.UUID
}

type memState struct {
	users          map[uuid.UUID]model.User
	patients       map[uuid.UUID]model.Patient
	doctors        map[uuid.UUID]model.Doctor
	clinics        map[uuid.UUID]model.Clinic
	services       map[uuid.UUID]model.Service
	doctorServices map[dsKey]model.DoctorService
	slots          map[uuid.UUID]model.Slot
	bookings       map[uuid.UUID]model.Booking
	events         []model.EventLog
	nextEventID    int64
	lastCreated    time.Time
}

func newMemState() *memState {
	return &memState{
		users:          map[uuid.UUID]model.User{},
		patients:       map[uuid.UUID]model.Patient{},
		doctors:        map[uuid.UUID]model.Doctor{},
		clinics:        map[uuid.UUID]model.Clinic{},
		services:       map[uuid.UUID]model.Service{},
		doctorServices: map[dsKey]model.DoctorService{},
		slots:          map[uuid.UUID]model.Slot{},
		bookings:       map[uuid.UUID]model.Booking{},
	}
}

func (s *memState) clone() memState {
	c := memState{
		users:          make(map[uuid.UUID]model.User, len(s.users)),
		patients:       make(map[uuid.UUID]model.Patient, len(s.patients)),
		doctors:        make(map[uuid.UUID]model.Doctor, len(s.doctors)),
		clinics:        make(map[uuid.UUID]model.Clinic, len(s.clinics)),
		services:       make(map[uuid.UUID]model.Service, len(s.services)),
		doctorServices: make(map[dsKey]model.DoctorService, len(s.doctorServices)),
		slots:          make(map[uuid.UUID]model.Slot, len(s.slots)),
		bookings:       make(map[uuid.UUID]model.Booking, len(s.bookings)),
		events:         append([]model.EventLog(nil), s.events...),
		nextEventID:    s.nextEventID,
		lastCreated:    s.lastCreated,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.patients {
		c.patients[k] = v
	}
	for k, v := range s.doctors {
		c.doctors[k] = v
	}
	for k, v := range s.clinics {
		c.clinics[k] = v
	}
	for k, v := range s.services {
		c.services[k] = v
	}
	for k, v := range s.doctorServices {
		c.doctorServices[k] = v
	}
	for k, v := range s.slots {
		c.slots[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	return c
}

// now hands out strictly increasing timestamps so creation-order sorts
// stay deterministic even when the clock does not move between calls.
func (s *memState) now() time.Time {
	t := time.Now()
	if !t.After(s.lastCreated) {
		t = s.lastCreated.Add(time.Nanosecond)
	}
	s.lastCreated = t
	return t
}

// MemoryRepository is a mutex-guarded in-memory entity store. A
// transaction holds the mutex for its whole duration and rolls back by
// restoring a pre-transaction snapshot, which gives the same
// check-and-set isolation the Postgres store gets from row versions.
type MemoryRepository struct {
	mu    *sync.Mutex // nil when bound to a transaction
	state *memState
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		mu:    &sync.Mutex{},
		state: newMemState(),
	}
}

func (m *MemoryRepository) lock() func() {
	if m.mu == nil {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemoryRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	if m.mu == nil {
		return fn(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.state.clone()
	if err := fn(&MemoryRepository{state: m.state}); err != nil {
		*m.state = snap
		return err
	}
	return nil
}

// Users

func (m *MemoryRepository) CreateUser(ctx context.Context, u *model.User) error {
	defer m.lock()()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	for _, existing := range m.state.users {
		if existing.Email == u.Email {
			return ErrConstraintViolation
		}
	}
	u.CreatedAt = m.state.now()
	m.state.users[u.ID] = *u
	return nil
}

func (m *MemoryRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	defer m.lock()()
	u, ok := m.state.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (m *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	defer m.lock()()
	for _, u := range m.state.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MemoryRepository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	defer m.lock()()
	if _, ok := m.state.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(m.state.users, id)
	return nil
}

// Patients

func (m *MemoryRepository) CreatePatient(ctx context.Context, p *model.Patient) error {
	defer m.lock()()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	for _, existing := range m.state.patients {
		if existing.UserID == p.UserID {
			return ErrConstraintViolation
		}
	}
	m.state.patients[p.ID] = *p
	return nil
}

func (m *MemoryRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	defer m.lock()()
	p, ok := m.state.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	defer m.lock()()
	for _, p := range m.state.patients {
		if p.UserID == userID {
			out := p
			return &out, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (m *MemoryRepository) DeletePatient(ctx context.Context, id uuid.UUID) error {
	defer m.lock()()
	if _, ok := m.state.patients[id]; !ok {
		return ErrPatientNotFound
	}
	delete(m.state.patients, id)
	return nil
}

// Doctors

func (m *MemoryRepository) CreateDoctor(ctx context.Context, d *model.Doctor) error {
	defer m.lock()()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	for _, existing := range m.state.doctors {
		if existing.UserID == d.UserID {
			return ErrConstraintViolation
		}
	}
	m.state.doctors[d.ID] = *d
	return nil
}

func (m *MemoryRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	defer m.lock()()
	d, ok := m.state.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (m *MemoryRepository) GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	defer m.lock()()
	for _, d := range m.state.doctors {
		if d.UserID == userID {
			out := d
			return &out, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (m *MemoryRepository) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	defer m.lock()()
	result := make([]model.Doctor, 0, len(m.state.doctors))
	for _, d := range m.state.doctors {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (m *MemoryRepository) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	defer m.lock()()
	if _, ok := m.state.doctors[id]; !ok {
		return ErrDoctorNotFound
	}
	delete(m.state.doctors, id)
	return nil
}

// Clinics

func (m *MemoryRepository) CreateClinic(ctx context.Context, c *model.Clinic) error {
	defer m.lock()()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.state.clinics[c.ID] = *c
	return nil
}

func (m *MemoryRepository) GetClinicByID(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	defer m.lock()()
	c, ok := m.state.clinics[id]
	if !ok {
		return nil, ErrClinicNotFound
	}
	return &c, nil
}

func (m *MemoryRepository) ListClinics(ctx context.Context) ([]model.Clinic, error) {
	defer m.lock()()
	result := make([]model.Clinic, 0, len(m.state.clinics))
	for _, c := range m.state.clinics {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Services

func (m *MemoryRepository) CreateService(ctx context.Context, s *model.Service) error {
	defer m.lock()()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	for _, existing := range m.state.services {
		if existing.Name == s.Name {
			return ErrConstraintViolation
		}
	}
	m.state.services[s.ID] = *s
	return nil
}

func (m *MemoryRepository) GetServiceByID(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	defer m.lock()()
	s, ok := m.state.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	return &s, nil
}

func (m *MemoryRepository) ListServices(ctx context.Context) ([]model.Service, error) {
	defer m.lock()()
	result := make([]model.Service, 0, len(m.state.services))
	for _, s := range m.state.services {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *MemoryRepository) DeleteService(ctx context.Context, id uuid.UUID) error {
	defer m.lock()()
	if _, ok := m.state.services[id]; !ok {
		return ErrServiceNotFound
	}
	for _, b := range m.state.bookings {
		if b.ServiceID == id {
			return ErrConstraintViolation
		}
	}
	delete(m.state.services, id)
	return nil
}

// Doctor services

func (m *MemoryRepository) UpsertDoctorService(ctx context.Context, ds *model.DoctorService) error {
	defer m.lock()()
	m.state.doctorServices[dsKey{ds.DoctorID, ds.ServiceID}] = *ds
	return nil
}

func (m *MemoryRepository) GetDoctorService(ctx context.Context, doctorID, serviceID uuid.UUID) (*model.DoctorService, error) {
	defer m.lock()()
	ds, ok := m.state.doctorServices[dsKey{doctorID, serviceID}]
	if !ok {
		return nil, ErrDoctorServiceNotFound
	}
	return &ds, nil
}

func (m *MemoryRepository) ListDoctorServices(ctx context.Context, doctorID uuid.UUID) ([]model.DoctorService, error) {
	defer m.lock()()
	var result []model.DoctorService
	for k, ds := range m.state.doctorServices {
		if k.doctorID == doctorID {
			result = append(result, ds)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ServiceID.String() < result[j].ServiceID.String()
	})
	return result, nil
}

func (m *MemoryRepository) DeleteDoctorServicesByDoctor(ctx context.Context, doctorID uuid.UUID) error {
	defer m.lock()()
	for k := range m.state.doctorServices {
		if k.doctorID == doctorID {
			delete(m.state.doctorServices, k)
		}
	}
	return nil
}

func (m *MemoryRepository) DeleteDoctorServicesByService(ctx context.Context, serviceID uuid.UUID) error {
	defer m.lock()()
	for k := range m.state.doctorServices {
		if k.serviceID == serviceID {
			delete(m.state.doctorServices, k)
		}
	}
	return nil
}

// Slots

func (m *MemoryRepository) CreateSlot(ctx context.Context, s *model.Slot) error {
	defer m.lock()()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	for _, existing := range m.state.slots {
		if existing.DoctorID == s.DoctorID && existing.StartsAt.Equal(s.StartsAt) && existing.EndsAt.Equal(s.EndsAt) {
			return ErrConstraintViolation
		}
	}
	m.state.slots[s.ID] = *s
	return nil
}

func (m *MemoryRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	defer m.lock()()
	s, ok := m.state.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (m *MemoryRepository) UpdateSlotState(ctx context.Context, id uuid.UUID, from, to model.SlotState) (*model.Slot, error) {
	defer m.lock()()
	s, ok := m.state.slots[id]
	if !ok || s.State != from {
		return nil, ErrStaleState
	}
	s.State = to
	m.state.slots[id] = s
	return &s, nil
}

func (m *MemoryRepository) ListFreeSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]model.Slot, error) {
	defer m.lock()()
	var result []model.Slot
	for _, s := range m.state.slots {
		if s.DoctorID == doctorID && s.State == model.SlotFree && s.StartsAt.Before(to) && s.EndsAt.After(from) {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartsAt.Before(result[j].StartsAt) })
	return result, nil
}

func (m *MemoryRepository) ListSlotsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]model.Slot, error) {
	defer m.lock()()
	var result []model.Slot
	for _, s := range m.state.slots {
		if s.DoctorID == doctorID {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartsAt.Before(result[j].StartsAt) })
	return result, nil
}

func (m *MemoryRepository) ListScheduleByDoctor(ctx context.Context, doctorID uuid.UUID) ([]model.ScheduleEntry, error) {
	slots, err := m.ListSlotsByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	defer m.lock()()
	result := make([]model.ScheduleEntry, 0, len(slots))
	for _, s := range slots {
		entry := model.ScheduleEntry{Slot: s}
		for _, b := range m.state.bookings {
			if b.SlotID == s.ID && b.Live() {
				live := b
				entry.Booking = &live
				break
			}
		}
		result = append(result, entry)
	}
	return result, nil
}

func (m *MemoryRepository) CountFreeSlots(ctx context.Context, doctorID *uuid.UUID, from, to *time.Time) (int, error) {
	defer m.lock()()
	n := 0
	for _, s := range m.state.slots {
		if s.State != model.SlotFree {
			continue
		}
		if doctorID != nil && s.DoctorID != *doctorID {
			continue
		}
		if from != nil && !s.EndsAt.After(*from) {
			continue
		}
		if to != nil && !s.StartsAt.Before(*to) {
			continue
		}
		n++
	}
	return n, nil
}

func (m *MemoryRepository) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	defer m.lock()()
	if _, ok := m.state.slots[id]; !ok {
		return ErrSlotNotFound
	}
	delete(m.state.slots, id)
	return nil
}

// Bookings

func (m *MemoryRepository) CreateBooking(ctx context.Context, b *model.Booking) error {
	defer m.lock()()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Live() {
		for _, existing := range m.state.bookings {
			if existing.SlotID == b.SlotID && existing.Live() {
				return ErrConstraintViolation
			}
		}
	}
	b.CreatedAt = m.state.now()
	m.state.bookings[b.ID] = *b
	return nil
}

func (m *MemoryRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	defer m.lock()()
	b, ok := m.state.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (m *MemoryRepository) GetLiveBookingForSlot(ctx context.Context, slotID uuid.UUID) (*model.Booking, error) {
	defer m.lock()()
	for _, b := range m.state.bookings {
		if b.SlotID == slotID && b.Live() {
			out := b
			return &out, nil
		}
	}
	return nil, ErrBookingNotFound
}

func (m *MemoryRepository) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to model.BookingStatus) (*model.Booking, error) {
	defer m.lock()()
	b, ok := m.state.bookings[id]
	if !ok || b.Status != from {
		return nil, ErrStaleState
	}
	b.Status = to
	m.state.bookings[id] = b
	return &b, nil
}

func (m *MemoryRepository) ListBookingsByPatient(ctx context.Context, patientID uuid.UUID) ([]model.Booking, error) {
	defer m.lock()()
	var result []model.Booking
	for _, b := range m.state.bookings {
		if b.PatientID == patientID {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MemoryRepository) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	defer m.lock()()
	if _, ok := m.state.bookings[id]; !ok {
		return ErrBookingNotFound
	}
	delete(m.state.bookings, id)
	return nil
}

func (m *MemoryRepository) DeleteBookingsBySlot(ctx context.Context, slotID uuid.UUID) error {
	defer m.lock()()
	for id, b := range m.state.bookings {
		if b.SlotID == slotID {
			delete(m.state.bookings, id)
		}
	}
	return nil
}

// Events

func (m *MemoryRepository) InsertEvent(ctx context.Context, ev model.EventLog) error {
	defer m.lock()()
	m.state.nextEventID++
	ev.ID = m.state.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	m.state.events = append(m.state.events, ev)
	return nil
}
