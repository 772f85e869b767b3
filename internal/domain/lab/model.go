package lab

import (
	"time"

	"github.com/google/uuid"
)

// Lab order statuses.
const (
	StatusBooked          = "booked"
	StatusSampleCollected = "sample_collected"
	StatusProcessing      = "processing"
	StatusCompleted       = "completed"
	StatusCancelled       = "cancelled"
)

var Statuses = []string{
	StatusBooked, StatusSampleCollected, StatusProcessing, StatusCompleted, StatusCancelled,
}

var transitions = map[string][]string{
	StatusBooked:          {StatusSampleCollected, StatusCancelled},
	StatusSampleCollected: {StatusProcessing},
	StatusProcessing:      {StatusCompleted},
}

// CanTransition reports whether a lab order may move between two statuses.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func validStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// acceptsReport reports whether a report may be attached in status s.
func acceptsReport(s string) bool {
	return s == StatusProcessing || s == StatusCompleted
}

// FileReport is the multipart field carrying the report.
const FileReport = "report"

type Order struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	PatientName string    `json:"patient_name,omitempty"`
	LabID       uuid.UUID `json:"lab_id"`
	TestName    string    `json:"test_name"`
	TestCode    *string   `json:"test_code,omitempty"`
	Status      string    `json:"status"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ReportURL   *string   `json:"report_url,omitempty"`
	Price       float64   `json:"price"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type BookRequest struct {
	LabID       uuid.UUID `json:"lab_id"`
	TestName    string    `json:"test_name"`
	TestCode    *string   `json:"test_code"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Price       float64   `json:"price"`
	Notes       *string   `json:"notes"`
}

type StatusUpdate struct {
	Status string `json:"status"`
}

type ListFilter struct {
	PatientID *uuid.UUID
	LabID     *uuid.UUID
	Status    string
	Search    string
	Limit     int
	Offset    int
}

// Dashboard summarises a lab's workload.
type Dashboard struct {
	OrdersByStatus map[string]int `json:"orders_by_status"`
	CompletedToday int            `json:"completed_today"`
}
