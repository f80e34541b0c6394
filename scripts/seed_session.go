package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"medbook/internal/booking"
	"medbook/internal/catalog"
	"medbook/internal/config"
	"medbook/internal/models"
	"medbook/internal/repository"
	"medbook/internal/slot"
	"medbook/internal/token"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// seed_session writes a last appointment into a session so the summary page
// can be exercised without going through the review step.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config.yaml")
		sessionID  = flag.String("session", "", "session id; a new one is generated when empty")
		doctorID   = flag.String("doctor", "", "doctor id; the catalog default when empty")
		patientID  = flag.String("patient", "", "optional patient id")
		day        = flag.String("date", time.Now().Format("2006-01-02"), "appointment date (YYYY-MM-DD)")
		label      = flag.String("slot", models.DefaultSlot, "slot label")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Redis.Address == "" {
		return fmt.Errorf("redis address is not configured")
	}
	cat, err := catalog.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	doctor := cat.DefaultDoctor()
	if *doctorID != "" {
		if doctor, err = cat.DoctorByID(*doctorID); err != nil {
			return err
		}
	}
	if *patientID != "" {
		if _, err = cat.PatientByID(*patientID); err != nil {
			return err
		}
	}

	ref, err := time.ParseInLocation("2006-01-02", *day, loc)
	if err != nil {
		return fmt.Errorf("parse date: %w", err)
	}
	if _, ok := slot.ParseLabel(*label); !ok {
		return fmt.Errorf("invalid slot label %q", *label)
	}
	resolver := slot.NewResolver(loc)
	start, end := resolver.Resolve(ref, *label)

	sid := *sessionID
	if sid == "" {
		sid = uuid.NewString()
	} else if _, err = uuid.Parse(sid); err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	client := repository.NewRedisClient(cfg.Redis)
	defer (func() { _ = repository.Close(client) })()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err = repository.Ping(ctx, client); err != nil {
		return err
	}

	store := booking.NewStore(
		repository.NewRedisSessionStore(client, cfg.Session.TTL),
		cat,
		token.NewGenerator(nil),
		resolver,
		&logger,
	)
	apt := &models.Appointment{
		DoctorID:  doctor.ID,
		PatientID: *patientID,
		Start:     models.FormatTime(start),
		End:       models.FormatTime(end),
		Slot:      *label,
	}
	if err = store.SaveLastAppointment(ctx, sid, apt); err != nil {
		return err
	}

	fmt.Printf("done: session=%s doctor=%s start=%s\n", sid, doctor.ID, apt.Start)
	return nil
}
