package assessment

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeHeart   = "heart"
	TypeLung    = "lung"
	TypeGeneral = "general"
)

const (
	RiskLow      = "low"
	RiskModerate = "moderate"
	RiskHigh     = "high"
)

type HeartInput struct {
	Age              int     `json:"age"`
	SystolicBP       int     `json:"systolic_bp"`
	DiastolicBP      int     `json:"diastolic_bp"`
	Cholesterol      int     `json:"cholesterol"`
	RestingHeartRate int     `json:"resting_heart_rate"`
	Smoker           bool    `json:"smoker"`
	Diabetic         bool    `json:"diabetic"`
	FamilyHistory    bool    `json:"family_history"`
	BMI              float64 `json:"bmi"`
}

type LungInput struct {
	Smoker            bool `json:"smoker"`
	PackYears         int  `json:"pack_years"`
	CoughWeeks        int  `json:"cough_weeks"`
	ShortnessOfBreath bool `json:"shortness_of_breath"`
	Wheezing          bool `json:"wheezing"`
	SpO2              int  `json:"spo2"`
	PollutionExposure bool `json:"pollution_exposure"`
}

type Assessment struct {
	ID              uuid.UUID   `json:"id"`
	PatientID       uuid.UUID   `json:"patient_id"`
	Type            string      `json:"assessment_type"`
	HealthScore     int         `json:"health_score"`
	RiskLevel       string      `json:"risk_level"`
	Recommendations []string    `json:"recommendations"`
	Heart           *HeartInput `json:"heart_inputs,omitempty"`
	Lung            *LungInput  `json:"lung_inputs,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

type ListFilter struct {
	PatientID uuid.UUID
	Type      string
	Limit     int
	Offset    int
}
