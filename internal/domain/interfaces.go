package domain

import (
	"context"

	"medbook/internal/models"
	"medbook/internal/navigation"
)

// SessionStore is the ephemeral per-tab store. Values are structured text;
// Get returns (nil, nil) for a missing key.
type SessionStore interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, error)
	Set(ctx context.Context, sessionID, key string, value []byte) error
	Delete(ctx context.Context, sessionID, key string) error
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Catalog is the doctor/patient reference set.
type Catalog interface {
	Doctors() []models.Doctor
	DoctorByID(id string) (*models.Doctor, error)
	DefaultDoctor() *models.Doctor
	PatientByID(id string) (*models.Patient, error)
}

// Navigator moves the user to a named destination with an optional payload.
type Navigator interface {
	Navigate(dest navigation.Destination, nav *models.Navigation)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
