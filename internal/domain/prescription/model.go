package prescription

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// transitions lists the statuses reachable from each status.
var transitions = map[string][]string{
	StatusActive: {StatusCompleted, StatusCancelled},
}

func canTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Item struct {
	ID             uuid.UUID `json:"id"`
	PrescriptionID uuid.UUID `json:"prescription_id"`
	MedicineName   string    `json:"medicine_name"`
	Dosage         string    `json:"dosage"`
	Frequency      string    `json:"frequency"`
	DurationDays   int       `json:"duration_days"`
	Instructions   *string   `json:"instructions,omitempty"`
}

type Prescription struct {
	ID           uuid.UUID  `json:"id"`
	DoctorID     uuid.UUID  `json:"doctor_id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	DoctorName   string     `json:"doctor_name,omitempty"`
	PatientName  string     `json:"patient_name,omitempty"`
	Diagnosis    string     `json:"diagnosis"`
	Notes        *string    `json:"notes,omitempty"`
	Advice       *string    `json:"advice,omitempty"`
	FollowUpDate *time.Time `json:"follow_up_date,omitempty"`
	PDFURL       *string    `json:"pdf_url,omitempty"`
	Status       string     `json:"status"`
	Items        []Item     `json:"items"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type ItemInput struct {
	MedicineName string  `json:"medicine_name"`
	Dosage       string  `json:"dosage"`
	Frequency    string  `json:"frequency"`
	DurationDays int     `json:"duration_days"`
	Instructions *string `json:"instructions"`
}

type CreateRequest struct {
	PatientID    uuid.UUID   `json:"patient_id"`
	Diagnosis    string      `json:"diagnosis"`
	Notes        *string     `json:"notes"`
	Advice       *string     `json:"advice"`
	FollowUpDate string      `json:"follow_up_date"`
	Items        []ItemInput `json:"items"`
}

type StatusUpdate struct {
	Status string `json:"status"`
}

type ListFilter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Status    string
	Limit     int
	Offset    int
}
