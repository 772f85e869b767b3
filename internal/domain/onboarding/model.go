package onboarding

import (
	"time"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/storage"
)

// Provider kinds. Each maps to the user role of the same name.
const (
	KindDoctor   = auth.RoleDoctor
	KindHospital = auth.RoleHospital
	KindChemist  = auth.RoleChemist
	KindLab      = auth.RoleLab
)

var validKinds = map[string]bool{
	KindDoctor: true, KindHospital: true, KindChemist: true, KindLab: true,
}

// ValidKind reports whether k is an onboarding kind.
func ValidKind(k string) bool { return validKinds[k] }

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var validStatuses = map[string]bool{
	StatusPending: true, StatusApproved: true, StatusRejected: true,
}

// requiredFiles lists the document fields each kind must upload.
var requiredFiles = map[string][]string{
	KindDoctor:   {"license", "id_proof"},
	KindHospital: {"registration_cert"},
	KindChemist:  {"license"},
	KindLab:      {"accreditation"},
}

// RequiredFiles returns the multipart file fields a kind must send.
func RequiredFiles(kind string) []string {
	return requiredFiles[kind]
}

type DoctorProfile struct {
	RegistrationNumber string     `json:"registration_number"`
	Specialization     string     `json:"specialization"`
	Qualification      string     `json:"qualification"`
	ExperienceYears    int        `json:"experience_years"`
	HospitalID         *uuid.UUID `json:"hospital_id,omitempty"`
	LicenseURL         string     `json:"license_url"`
	IDProofURL         string     `json:"id_proof_url"`
}

type HospitalProfile struct {
	HospitalName        string `json:"hospital_name"`
	RegistrationNumber  string `json:"registration_number"`
	Address             string `json:"address"`
	City                string `json:"city"`
	State               string `json:"state"`
	Pincode             string `json:"pincode"`
	BedCount            int    `json:"bed_count"`
	RegistrationCertURL string `json:"registration_cert_url"`
}

type ChemistProfile struct {
	StoreName         string `json:"store_name"`
	DrugLicenseNumber string `json:"drug_license_number"`
	Address           string `json:"address"`
	City              string `json:"city"`
	Pincode           string `json:"pincode"`
	LicenseURL        string `json:"license_url"`
}

type LabProfile struct {
	LabName             string `json:"lab_name"`
	AccreditationNumber string `json:"accreditation_number"`
	Address             string `json:"address"`
	City                string `json:"city"`
	Pincode             string `json:"pincode"`
	AccreditationURL    string `json:"accreditation_url"`
}

// Application is a provider's onboarding record. Exactly one profile is set,
// matching Kind.
type Application struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	Kind          string     `json:"kind"`
	Phone         string     `json:"phone"`
	FullName      string     `json:"full_name"`
	Status        string     `json:"onboarding_status"`
	ReviewRemarks *string    `json:"review_remarks,omitempty"`
	ReviewedBy    *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Doctor   *DoctorProfile   `json:"doctor,omitempty"`
	Hospital *HospitalProfile `json:"hospital,omitempty"`
	Chemist  *ChemistProfile  `json:"chemist,omitempty"`
	Lab      *LabProfile      `json:"lab,omitempty"`
}

// Submission is a parsed onboarding form.
type Submission struct {
	Kind     string
	Phone    string
	FullName string
	Email    string

	Doctor   *DoctorProfile
	Hospital *HospitalProfile
	Chemist  *ChemistProfile
	Lab      *LabProfile

	// Files holds the validated uploads keyed by form field.
	Files map[string]*storage.File
}

type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

type ReviewRequest struct {
	Status  string `json:"status"`
	Remarks string `json:"remarks"`
}
