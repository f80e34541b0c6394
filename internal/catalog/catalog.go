package catalog

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"medbook/internal/config"
	"medbook/internal/models"

	"gopkg.in/yaml.v3"
)

var (
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrEmptyCatalog    = errors.New("catalog has no doctors")
)

// Catalog is the read-only doctor/patient reference set. The first doctor is
// the stable default used when a lookup misses.
type Catalog struct {
	mu          sync.RWMutex
	doctors     []models.Doctor
	doctorsByID map[string]models.Doctor
	patientByID map[string]models.Patient
}

func New(doctors []models.Doctor, patients []models.Patient) (*Catalog, error) {
	if len(doctors) == 0 {
		return nil, ErrEmptyCatalog
	}
	if err := config.ValidateDoctors(doctors); err != nil {
		return nil, err
	}
	if err := config.ValidatePatients(patients); err != nil {
		return nil, err
	}

	c := &Catalog{
		doctors:     append([]models.Doctor(nil), doctors...),
		doctorsByID: make(map[string]models.Doctor, len(doctors)),
		patientByID: make(map[string]models.Patient, len(patients)),
	}
	for _, d := range doctors {
		c.doctorsByID[d.ID] = d
	}
	for _, p := range patients {
		c.patientByID[p.ID] = p
	}
	return c, nil
}

type file struct {
	Doctors  []models.Doctor  `yaml:"doctors"`
	Patients []models.Patient `yaml:"patients"`
}

// Load reads a catalog YAML file with top-level doctors and patients lists.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(f.Doctors, f.Patients)
}

// FromConfig prefers the catalog file, then inline config entries, then the
// built-in demo set.
func FromConfig(cfg *config.Config) (*Catalog, error) {
	if cfg.Catalog.Path != "" {
		return Load(cfg.Catalog.Path)
	}
	if len(cfg.Doctors) > 0 {
		return New(cfg.Doctors, cfg.Patients)
	}
	return Demo(), nil
}

func (c *Catalog) Doctors() []models.Doctor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Doctor(nil), c.doctors...)
}

func (c *Catalog) DoctorByID(id string) (*models.Doctor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.doctorsByID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDoctorNotFound, id)
	}
	return &d, nil
}

func (c *Catalog) DefaultDoctor() *models.Doctor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d := c.doctors[0]
	return &d
}

func (c *Catalog) PatientByID(id string) (*models.Patient, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.patientByID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, id)
	}
	return &p, nil
}

// Demo is the built-in reference set used when nothing is configured.
func Demo() *Catalog {
	c, err := New(demoDoctors, demoPatients)
	if err != nil {
		panic(err)
	}
	return c
}

var demoDoctors = []models.Doctor{
	{ID: "d1", Name: "Dr. Ananya Rao", Specialty: "general-physician", Qualification: "MBBS, MD", Image: "https://images.unsplash.com/photo-1559839734-2b71ea197ec2?auto=format&fit=crop&w=200&q=60"},
	{ID: "d2", Name: "Dr. Vikram Mehta", Specialty: "cardiology", Qualification: "MBBS, DM (Cardiology)", Image: "https://images.unsplash.com/photo-1612349317150-e413f6a5b16d?auto=format&fit=crop&w=200&q=60"},
	{ID: "d3", Name: "Dr. Sara Thomas", Specialty: "dermatology", Qualification: "MBBS, MD (Dermatology)", Image: "https://images.unsplash.com/photo-1594824476967-48c8b964273f?auto=format&fit=crop&w=200&q=60"},
	{ID: "d4", Name: "Dr. Arjun Nair", Specialty: "pediatrics", Qualification: "MBBS, DCH", Image: "https://images.unsplash.com/photo-1622253692010-333f2da6031d?auto=format&fit=crop&w=200&q=60"},
}

var demoPatients = []models.Patient{
	{ID: "p1", Name: "Rahul Sharma", Age: "34", Gender: "Male", Mobile: "9876543210", Relation: "Self", Weight: "72"},
	{ID: "p2", Name: "Meera Sharma", Age: "8", Gender: "Female", Mobile: "9876543210", Relation: "Daughter", Problem: "Recurring fever"},
}
