package assessment

import "testing"

func healthyHeart() HeartInput {
	return HeartInput{Age: 30, SystolicBP: 118, DiastolicBP: 76, Cholesterol: 170, RestingHeartRate: 68, BMI: 22}
}

func TestScoreHeart(t *testing.T) {
	tests := []struct {
		name  string
		in    func() HeartInput
		score int
		risk  string
	}{
		{"healthy", healthyHeart, 100, RiskLow},
		{"borderline", func() HeartInput {
			h := healthyHeart()
			h.Age, h.SystolicBP, h.Cholesterol, h.BMI = 50, 135, 210, 27
			return h
		}, 69, RiskModerate},
		{"age over 60 stacks", func() HeartInput {
			h := healthyHeart()
			h.Age = 65
			return h
		}, 85, RiskLow},
		{"hypertensive smoker", func() HeartInput {
			h := healthyHeart()
			h.SystolicBP, h.DiastolicBP, h.Smoker, h.Diabetic = 150, 95, true, true
			return h
		}, 53, RiskModerate},
		{"every penalty", func() HeartInput {
			return HeartInput{Age: 70, SystolicBP: 160, DiastolicBP: 100, Cholesterol: 280,
				RestingHeartRate: 110, Smoker: true, Diabetic: true, FamilyHistory: true, BMI: 34}
		}, 0, RiskHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ScoreHeart(tt.in())
			if r.Score != tt.score || r.Risk != tt.risk {
				t.Errorf("got score %d risk %s, want %d %s", r.Score, r.Risk, tt.score, tt.risk)
			}
			if len(r.Recommendations) == 0 {
				t.Error("expected at least one recommendation")
			}
		})
	}
}

func TestScoreLung(t *testing.T) {
	tests := []struct {
		name  string
		in    LungInput
		score int
		risk  string
	}{
		{"clear", LungInput{SpO2: 98}, 100, RiskLow},
		{"spo2 unknown", LungInput{}, 100, RiskLow},
		{"light smoker", LungInput{Smoker: true, PackYears: 12, SpO2: 97}, 75, RiskLow},
		{"heavy smoker with cough", LungInput{Smoker: true, PackYears: 25, CoughWeeks: 4, SpO2: 94}, 50, RiskModerate},
		{"hypoxic", LungInput{ShortnessOfBreath: true, Wheezing: true, SpO2: 90, PollutionExposure: true}, 47, RiskHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ScoreLung(tt.in)
			if r.Score != tt.score || r.Risk != tt.risk {
				t.Errorf("got score %d risk %s, want %d %s", r.Score, r.Risk, tt.score, tt.risk)
			}
		})
	}
}

func TestFinish_ClampsScore(t *testing.T) {
	r := finish([]penalty{{80, "a"}, {70, "b"}})
	if r.Score != 0 || r.Risk != RiskHigh {
		t.Errorf("expected clamp to 0/high, got %d/%s", r.Score, r.Risk)
	}
	if len(r.Recommendations) != 2 {
		t.Errorf("expected one recommendation per penalty, got %d", len(r.Recommendations))
	}
	if r := finish([]penalty{{-30, "bonus"}}); r.Score != 100 {
		t.Errorf("expected clamp to 100, got %d", r.Score)
	}
}

func TestRiskFor_Boundaries(t *testing.T) {
	cases := map[int]string{100: RiskLow, 75: RiskLow, 74: RiskModerate, 50: RiskModerate, 49: RiskHigh, 0: RiskHigh}
	for score, want := range cases {
		if got := RiskFor(score); got != want {
			t.Errorf("RiskFor(%d) = %s, want %s", score, got, want)
		}
	}
}
