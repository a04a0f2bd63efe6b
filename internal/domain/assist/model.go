package assist

// Urgency levels for symptom triage, ordered least to most serious.
const (
	UrgencyLow       = "low"
	UrgencyModerate  = "moderate"
	UrgencyHigh      = "high"
	UrgencyEmergency = "emergency"
)

// SymptomInput describes a logged symptom plus optional patient context that
// sharpens the triage.
type SymptomInput struct {
	Symptom     string   `json:"symptom"`
	Conditions  []string `json:"conditions"`
	Medications []string `json:"medications"`
	Age         int      `json:"age"`
}

// TriageResult is the structured outcome of a symptom analysis.
type TriageResult struct {
	Symptom            string   `json:"symptom"`
	Urgency            string   `json:"urgency"`
	Recommendation     string   `json:"recommendation"`
	SuggestAppointment bool     `json:"suggest_appointment"`
	SuggestedTimeframe string   `json:"suggested_timeframe"`
	QuestionsToAsk     []string `json:"questions_to_ask"`
	// Fallback is set when the completion service was unavailable and the
	// result came from the local keyword heuristic.
	Fallback bool `json:"fallback,omitempty"`
}

// EmailReplyInput is an incoming email the user wants help answering.
type EmailReplyInput struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Context string `json:"context"`
	Tone    string `json:"tone"`
}

// EmailDraft is a drafted reply. It is never sent by this service.
type EmailDraft struct {
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Fallback bool   `json:"fallback,omitempty"`
}

// SummaryInput gathers recent care data for a narrative summary.
type SummaryInput struct {
	PatientName string   `json:"patient_name"`
	Symptoms    []string `json:"symptoms"`
	Medications []string `json:"medications"`
	Notes       []string `json:"notes"`
}

// Summary is a short narrative plus actionable observations.
type Summary struct {
	Text     string   `json:"text"`
	Insights []string `json:"insights"`
	Fallback bool     `json:"fallback,omitempty"`
}
