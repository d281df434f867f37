package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/idopont/booking/internal/booking"
	"github.com/idopont/booking/internal/config"
	"github.com/idopont/booking/internal/db"
	"github.com/idopont/booking/internal/registry"
)

// slot-planner publishes upcoming FREE slots for every doctor on a
// fixed weekday grid. Windows that already exist are skipped via the
// (doctor, starts_at, ends_at) unique constraint, so re-runs are safe.

const (
	dayStartHour = 9
	dayEndHour   = 17
	slotMinutes  = 30
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("slot-planner starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running slot planner in env=%s interval=%s days_ahead=%d", cfg.Env, cfg.PlannerInterval, cfg.PlannerDaysAhead)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	repo := booking.NewPgRepository(pgPool)
	reg := registry.NewService(repo)

	// Run once at startup
	runOnce(rootCtx, repo, reg, cfg.PlannerDaysAhead)

	ticker := time.NewTicker(cfg.PlannerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping slot planner")
			return
		case <-ticker.C:
			runOnce(rootCtx, repo, reg, cfg.PlannerDaysAhead)
		}
	}
}

func runOnce(ctx context.Context, repo booking.Repository, reg *registry.Service, daysAhead int) {
	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	start := time.Now()
	created, err := planSlots(runCtx, repo, reg, daysAhead)
	if err != nil {
		log.Printf("planner run error: %v", err)
		return
	}
	log.Printf("planner run complete: created=%d duration=%s", created, time.Since(start))
}

func planSlots(ctx context.Context, repo booking.Repository, reg *registry.Service, daysAhead int) (int, error) {
	doctors, err := repo.ListDoctors(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	now := time.Now()

	for _, doc := range doctors {
		for day := 1; day <= daysAhead; day++ {
			date := now.AddDate(0, 0, day)
			if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
				continue
			}

			dayStart := time.Date(date.Year(), date.Month(), date.Day(), dayStartHour, 0, 0, 0, date.Location())
			dayEnd := time.Date(date.Year(), date.Month(), date.Day(), dayEndHour, 0, 0, 0, date.Location())

			for t := dayStart; t.Before(dayEnd); t = t.Add(slotMinutes * time.Minute) {
				_, err := reg.CreateSlot(ctx, doc.ID, nil, t, t.Add(slotMinutes*time.Minute))
				if err != nil {
					if errors.Is(err, booking.ErrConstraintViolation) {
						continue // window already published
					}
					return created, err
				}
				created++
			}
		}
	}

	return created, nil
}
