package screening

import (
	"fmt"
	"strings"
)

// fallbackQuestions are asked when the LLM is unavailable. Index i is the
// question for stage i.
var fallbackQuestions = [MaxStage]string{
	"When did your symptoms start, and have they been getting better or worse since then?",
	"On a scale of 1 to 10, how severe is it, and does anything make it better or worse?",
	"Do you have any other symptoms such as fever, cough, vomiting, pain elsewhere or difficulty breathing?",
	"Do you have any existing medical conditions, allergies, or take any regular medicines?",
	"Have you had any recent travel, injury, or contact with someone who was unwell?",
}

// redFlags are phrases that escalate urgency regardless of the model output.
var redFlags = []string{"chest pain", "breathless", "unconscious", "bleeding", "seizure"}

// hasRedFlag reports whether the complaint or any answer mentions a red flag.
func hasRedFlag(s *Session) bool {
	texts := []string{s.ChiefComplaint}
	for _, t := range s.Transcript {
		texts = append(texts, t.Answer)
	}
	for _, text := range texts {
		lower := strings.ToLower(text)
		for _, flag := range redFlags {
			if strings.Contains(lower, flag) {
				return true
			}
		}
	}
	return false
}

// fallbackDiagnosis summarises the transcript without a model.
func fallbackDiagnosis(s *Session) *Diagnosis {
	d := &Diagnosis{
		Summary: fmt.Sprintf("You reported %q and answered %d follow-up questions. "+
			"An automated assessment was not available, so a doctor should review these answers.",
			s.ChiefComplaint, len(s.Transcript)),
		PossibleConditions:    []string{"Needs clinical evaluation"},
		Urgency:               UrgencyMedium,
		RecommendedSpecialist: "General Physician",
		Advice: []string{
			"Book a consultation with a general physician.",
			"Keep a note of how your symptoms change over the next few days.",
			"Seek emergency care if symptoms suddenly get worse.",
		},
	}
	if hasRedFlag(s) {
		d.Urgency = UrgencyHigh
		d.Advice = append([]string{"Some of your answers describe warning signs. Please see a doctor today."}, d.Advice...)
	}
	return d
}

// escalate raises urgency to high when a red flag is present and the given
// urgency is lower.
func escalate(s *Session, d *Diagnosis) {
	if _, ok := urgencyRank[d.Urgency]; !ok {
		d.Urgency = UrgencyMedium
	}
	if hasRedFlag(s) && urgencyRank[d.Urgency] < urgencyRank[UrgencyHigh] {
		d.Urgency = UrgencyHigh
	}
}

const systemPrompt = `You are a careful medical triage assistant for an Indian telehealth service.
You ask one short, plain-language follow-up question at a time and never give a definitive diagnosis.
Always reply with a single JSON object and nothing else.`

func transcriptText(s *Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Chief complaint: %s\n", s.ChiefComplaint)
	for i, t := range s.Transcript {
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n", i+1, t.Question, i+1, t.Answer)
	}
	return b.String()
}

func questionPrompt(s *Session) string {
	return transcriptText(s) + fmt.Sprintf(
		"\nAsk follow-up question %d of %d that best narrows down the cause. "+
			`Respond as {"question": "..."}.`, s.Stage+1, MaxStage)
}

func diagnosisPrompt(s *Session) string {
	return transcriptText(s) +
		"\nBased on this conversation, respond as " +
		`{"summary": "...", "possible_conditions": ["..."], "urgency": "low|medium|high|emergency", ` +
		`"recommended_specialist": "...", "advice": ["..."]}.`
}
