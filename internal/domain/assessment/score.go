package assessment

// Result is the outcome of scoring one set of inputs.
type Result struct {
	Score           int
	Risk            string
	Recommendations []string
}

type penalty struct {
	points int
	advice string
}

func finish(ps []penalty) Result {
	score := 100
	recs := []string{}
	for _, p := range ps {
		score -= p.points
		recs = append(recs, p.advice)
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	if len(recs) == 0 {
		recs = append(recs, "Keep up your current healthy routine and repeat this check yearly.")
	}
	return Result{Score: score, Risk: RiskFor(score), Recommendations: recs}
}

// RiskFor maps a health score to a risk band.
func RiskFor(score int) string {
	switch {
	case score >= 75:
		return RiskLow
	case score >= 50:
		return RiskModerate
	}
	return RiskHigh
}

// ScoreHeart applies the cardiac risk penalties.
func ScoreHeart(in HeartInput) Result {
	var ps []penalty
	if in.Age > 45 {
		ps = append(ps, penalty{10, "Age above 45 raises cardiac risk; schedule an annual heart check-up."})
	}
	if in.Age > 60 {
		ps = append(ps, penalty{5, "Above 60, discuss an ECG and stress test with your doctor."})
	}
	switch {
	case in.SystolicBP >= 140:
		ps = append(ps, penalty{15, "Systolic pressure is in the hypertensive range; consult a physician about treatment."})
	case in.SystolicBP >= 130:
		ps = append(ps, penalty{8, "Systolic pressure is elevated; reduce salt and monitor it weekly."})
	}
	if in.DiastolicBP >= 90 {
		ps = append(ps, penalty{5, "Diastolic pressure is high; track readings and review them with a doctor."})
	}
	switch {
	case in.Cholesterol >= 240:
		ps = append(ps, penalty{15, "Total cholesterol is high; get a lipid profile and dietary advice."})
	case in.Cholesterol >= 200:
		ps = append(ps, penalty{8, "Cholesterol is borderline; cut saturated fats and increase fibre."})
	}
	if in.RestingHeartRate > 100 {
		ps = append(ps, penalty{5, "Resting heart rate is above 100; have it evaluated."})
	}
	if in.Smoker {
		ps = append(ps, penalty{15, "Stop smoking; it is the largest modifiable heart risk."})
	}
	if in.Diabetic {
		ps = append(ps, penalty{12, "Keep blood sugar under control and check HbA1c every three months."})
	}
	if in.FamilyHistory {
		ps = append(ps, penalty{8, "Family history of heart disease warrants regular screening."})
	}
	switch {
	case in.BMI >= 30:
		ps = append(ps, penalty{10, "BMI is in the obese range; aim for gradual weight loss with diet and exercise."})
	case in.BMI >= 25:
		ps = append(ps, penalty{5, "BMI is above normal; 30 minutes of daily activity helps."})
	}
	return finish(ps)
}

// ScoreLung applies the respiratory risk penalties.
func ScoreLung(in LungInput) Result {
	var ps []penalty
	if in.Smoker {
		ps = append(ps, penalty{20, "Stop smoking; ask about a cessation programme."})
	}
	switch {
	case in.PackYears > 20:
		ps = append(ps, penalty{10, "Smoking history above 20 pack-years qualifies for low-dose CT screening."})
	case in.PackYears > 10:
		ps = append(ps, penalty{5, "Smoking history above 10 pack-years; get a lung function test."})
	}
	if in.CoughWeeks >= 3 {
		ps = append(ps, penalty{10, "A cough lasting three weeks or more needs a chest examination."})
	}
	if in.ShortnessOfBreath {
		ps = append(ps, penalty{15, "Shortness of breath should be assessed by a pulmonologist."})
	}
	if in.Wheezing {
		ps = append(ps, penalty{10, "Wheezing may indicate asthma or COPD; get spirometry done."})
	}
	switch {
	case in.SpO2 > 0 && in.SpO2 < 92:
		ps = append(ps, penalty{20, "Oxygen saturation below 92% needs prompt medical attention."})
	case in.SpO2 > 0 && in.SpO2 < 95:
		ps = append(ps, penalty{10, "Oxygen saturation is below normal; recheck and consult a doctor."})
	}
	if in.PollutionExposure {
		ps = append(ps, penalty{8, "Reduce exposure to smoke and dust; wear a mask outdoors on high-pollution days."})
	}
	return finish(ps)
}
