package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/idopont/booking/internal/booking"
	"github.com/idopont/booking/internal/db"
	"github.com/idopont/booking/internal/model"
	redisclient "github.com/idopont/booking/internal/redis"
	"github.com/idopont/booking/internal/registry"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(context.Background(), pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	repo := booking.NewPgRepository(pool)
	reg := registry.NewService(repo)
	// seeding is single-threaded, no distributed lock needed
	mgr := booking.NewManager(repo, redisclient.NopLocker{})

	if err := seedReferenceData(context.Background(), reg, mgr); err != nil {
		log.Fatalf("seed reference data: %v", err)
	}
	if err := seedExtraPatients(context.Background(), reg, 200); err != nil {
		log.Fatalf("seed extra patients: %v", err)
	}

	log.Println("seed complete")
}

// seedReferenceData builds the sample world: services, clinics, one
// doctor and one patient with users, an override, a few slots and one
// booking — everything through the regular create paths, never by
// writing state fields directly.
func seedReferenceData(ctx context.Context, reg *registry.Service, mgr *booking.Manager) error {
	checkup, err := reg.CreateService(ctx, "General Checkup", 30, 25000)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	dental, err := reg.CreateService(ctx, "Dental Hygiene", 45, 35000)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	if _, err := reg.CreateService(ctx, "Cardiology Consultation", 40, 40000); err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	clinicA, err := reg.CreateClinic(ctx, "University Clinical Center", "Nagyerdei krt. 98", ptr("2/205"))
	if err != nil {
		return fmt.Errorf("create clinic: %w", err)
	}
	clinicB, err := reg.CreateClinic(ctx, "Nepkert Private Clinic", "Bottyan Janos u. 3", ptr("3/312"))
	if err != nil {
		return fmt.Errorf("create clinic: %w", err)
	}

	docUser, err := reg.CreateUser(ctx, "dr.kinga@example.com", "seed-password-1", "Dr. Kinga Kiraly", ptr("+36 20 652 3211"), model.RoleDoctor)
	if err != nil {
		return fmt.Errorf("create doctor user: %w", err)
	}
	doctor, err := reg.CreateDoctor(ctx, docUser.ID, "32912", ptr("Oral surgeon"))
	if err != nil {
		return fmt.Errorf("create doctor: %w", err)
	}

	patUser, err := reg.CreateUser(ctx, "gizella.kovacs@example.com", "seed-password-2", "Gizella Kovacs", ptr("+36 70 252 3311"), model.RolePatient)
	if err != nil {
		return fmt.Errorf("create patient user: %w", err)
	}
	patient, err := reg.CreatePatient(ctx, patUser.ID, ptr("141238921"), ptr("Allergic to peanuts."))
	if err != nil {
		return fmt.Errorf("create patient: %w", err)
	}

	if _, err := reg.SetDoctorService(ctx, doctor.ID, dental.ID, intPtr(35000), intPtr(45)); err != nil {
		return fmt.Errorf("set doctor service: %w", err)
	}

	base := time.Now().Truncate(time.Minute).AddDate(0, 0, 1)
	base = time.Date(base.Year(), base.Month(), base.Day(), 9, 0, 0, 0, base.Location())

	var slots []uuid.UUID
	for i, clinic := range []uuid.UUID{clinicA.ID, clinicA.ID, clinicB.ID} {
		start := base.Add(time.Duration(i) * time.Hour)
		c := clinic
		slot, err := reg.CreateSlot(ctx, doctor.ID, &c, start, start.Add(30*time.Minute))
		if err != nil {
			return fmt.Errorf("create slot: %w", err)
		}
		slots = append(slots, slot.ID)
	}

	if _, err := mgr.CreateBooking(ctx, slots[0], patient.ID, checkup.ID, ptr("First visit.")); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}

	log.Printf("reference data seeded: doctor=%s patient=%s slots=%d", doctor.ID, patient.ID, len(slots))
	return nil
}

func seedExtraPatients(ctx context.Context, reg *registry.Service, count int) error {
	log.Printf("seeding %d extra patients", count)

	for i := 0; i < count; i++ {
		email := fmt.Sprintf("%d.%s", i, gofakeit.Email())
		phone := gofakeit.Phone()

		u, err := reg.CreateUser(ctx, email, gofakeit.Password(true, true, true, false, false, 16), gofakeit.Name(), &phone, model.RolePatient)
		if err != nil {
			return err
		}
		if _, err := reg.CreatePatient(ctx, u.ID, nil, nil); err != nil {
			return err
		}

		if (i+1)%50 == 0 {
			log.Printf("patients seeded: %d/%d", i+1, count)
		}
	}

	return nil
}

func ptr(s string) *string { return &s }
func intPtr(n int) *int    { return &n }
