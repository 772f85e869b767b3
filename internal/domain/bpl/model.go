package bpl

import (
	"time"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/storage"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var validStatuses = map[string]bool{
	StatusPending: true, StatusApproved: true, StatusRejected: true,
}

// MaxBulkDelete caps the number of ids accepted by one bulk delete.
const MaxBulkDelete = 100

// Document form fields.
const (
	FileIncomeCertificate = "income_certificate"
	FileBPLCard           = "bpl_card"
)

// Request is a below-poverty-line welfare application.
type Request struct {
	ID                   uuid.UUID  `json:"id"`
	PatientID            uuid.UUID  `json:"patient_id"`
	ApplicantName        string     `json:"applicant_name"`
	BPLCardNumber        string     `json:"bpl_card_number"`
	AadhaarEnc           string     `json:"-"`
	AadhaarMasked        string     `json:"aadhaar_number"`
	AnnualIncome         float64    `json:"annual_income"`
	FamilySize           int        `json:"family_size"`
	Address              string     `json:"address"`
	District             string     `json:"district"`
	State                string     `json:"state"`
	IncomeCertificateURL string     `json:"income_certificate_url"`
	BPLCardURL           string     `json:"bpl_card_url"`
	Status               string     `json:"status"`
	AdminRemarks         *string    `json:"admin_remarks,omitempty"`
	ReviewedBy           *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewedAt           *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Submission is a parsed application form.
type Submission struct {
	ApplicantName string
	BPLCardNumber string
	AadhaarNumber string
	AnnualIncome  float64
	FamilySize    int
	Address       string
	District      string
	State         string

	IncomeCertificate *storage.File
	BPLCard           *storage.File
}

type ListFilter struct {
	PatientID *uuid.UUID
	Status    string
	Search    string
	Limit     int
	Offset    int
}

type StatusUpdate struct {
	Status  string `json:"status"`
	Remarks string `json:"remarks"`
}

type BulkDeleteRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// Stats counts applications per status.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}
