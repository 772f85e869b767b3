package screening

import (
	"time"

	"github.com/google/uuid"
)

// MaxStage is the number of answers a session collects before diagnosis.
const MaxStage = 5

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

const (
	UrgencyLow       = "low"
	UrgencyMedium    = "medium"
	UrgencyHigh      = "high"
	UrgencyEmergency = "emergency"
)

var urgencyRank = map[string]int{
	UrgencyLow: 0, UrgencyMedium: 1, UrgencyHigh: 2, UrgencyEmergency: 3,
}

// Turn is one answered question.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Diagnosis struct {
	Summary               string   `json:"summary"`
	PossibleConditions    []string `json:"possible_conditions"`
	Urgency               string   `json:"urgency"`
	RecommendedSpecialist string   `json:"recommended_specialist"`
	Advice                []string `json:"advice"`
}

type Session struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	Stage           int        `json:"stage"`
	Status          string     `json:"status"`
	ChiefComplaint  string     `json:"chief_complaint"`
	Transcript      []Turn     `json:"transcript"`
	CurrentQuestion string     `json:"current_question,omitempty"`
	Diagnosis       *Diagnosis `json:"diagnosis,omitempty"`
	UsedFallback    bool       `json:"used_fallback"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type StartRequest struct {
	ChiefComplaint string `json:"chief_complaint"`
}

type AnswerRequest struct {
	SessionID uuid.UUID `json:"session_id"`
	Answer    string    `json:"answer"`
}

type ListFilter struct {
	PatientID uuid.UUID
	Status    string
	Limit     int
	Offset    int
}
