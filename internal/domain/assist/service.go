package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/carelink/carelink/internal/platform/completion"
)

// Service wraps the completion client with prompt construction, response
// parsing, and local fallbacks. A completion outage degrades the answer, it
// never fails the request.
type Service struct {
	ai completion.Client
}

// NewService builds the assist service. A nil client is allowed; every
// operation then answers from its local heuristic.
func NewService(ai completion.Client) *Service {
	return &Service{ai: ai}
}

// Symptoms that must always escalate, per the triage rules embedded in the
// prompt. The same lists back the keyword fallback.
var emergencyKeywords = []string{
	"chest pain", "chest tightness", "chest pressure",
	"difficulty breathing", "shortness of breath",
	"stroke", "facial drooping", "arm weakness", "speech difficulty",
	"anaphylaxis", "severe allergic",
	"loss of consciousness", "fainting", "unresponsive",
	"severe bleeding", "head injury",
	"worst headache",
	"choking",
	"seizure",
	"suicidal", "self-harm",
}

var highKeywords = []string{
	"high fever", "persistent vomiting",
	"vision changes", "severe abdominal pain",
	"red streaks", "infection",
	"fall", "fracture",
	"adverse reaction",
	"confusion", "disorientation",
	"severe tremors", "rigidity",
}

// AnalyzeSymptom triages a symptom description. The completion service
// answers in a fixed line format; when it is unreachable or returns garbage
// the keyword heuristic produces a conservative local result.
func (s *Service) AnalyzeSymptom(ctx context.Context, in SymptomInput) (*TriageResult, error) {
	symptom := strings.TrimSpace(in.Symptom)
	if symptom == "" {
		return nil, fmt.Errorf("symptom description is required")
	}
	if s.ai == nil {
		return s.fallbackTriage(symptom), nil
	}
	text, err := s.ai.Complete(ctx, triagePrompt(symptom, in))
	if err != nil {
		log.Warn().Err(err).Msg("symptom analysis falling back to local heuristic")
		return s.fallbackTriage(symptom), nil
	}
	return parseTriage(text, symptom), nil
}

func triagePrompt(symptom string, in SymptomInput) string {
	var b strings.Builder
	b.WriteString("You are a medical triage assistant helping caregivers determine if a symptom requires medical attention.\n\n")
	fmt.Fprintf(&b, "Symptom reported: %s\n", symptom)
	if len(in.Conditions) > 0 {
		fmt.Fprintf(&b, "Patient's conditions: %s\n", strings.Join(in.Conditions, ", "))
	}
	if len(in.Medications) > 0 {
		fmt.Fprintf(&b, "Current medications: %s\n", strings.Join(in.Medications, ", "))
	}
	if in.Age > 0 {
		fmt.Fprintf(&b, "Patient age: %d\n", in.Age)
	}
	b.WriteString(`
CRITICAL: For the following symptoms, ALWAYS set urgency to "emergency":
- Chest pain, tightness, or pressure
- Difficulty breathing or shortness of breath
- Signs of stroke (facial drooping, arm weakness, speech difficulty)
- Severe allergic reaction / anaphylaxis
- Loss of consciousness, fainting, unresponsiveness
- Severe bleeding or head injury
- Sudden severe headache ("worst headache of my life")
- Choking or inability to swallow
- Seizure (especially first-time)
- Suicidal thoughts or self-harm

For these symptoms, ALWAYS set urgency to "high":
- High fever (above 103F / 39.4C)
- Persistent vomiting or inability to keep fluids down
- Sudden vision changes
- Severe abdominal pain
- Signs of infection (red streaks, warmth, fever with wound)
- Falls with possible fracture
- Medication adverse reaction
- Confusion or disorientation (new onset)
- Severe tremors or rigidity (in Parkinson's patients)

Analyze this symptom and provide:
1. URGENCY: One of [low, moderate, high, emergency]
2. RECOMMENDATION: A brief explanation of what the caregiver should do
3. SUGGEST_APPOINTMENT: yes or no - whether to suggest booking a doctor appointment
4. SUGGESTED_TIMEFRAME: If appointment suggested, when (e.g., "within 24 hours", "within 3 days", "next available")
5. QUESTIONS_TO_ASK: 2-3 additional questions the caregiver might want to note for the doctor

Format your response exactly like this:
URGENCY: [level]
RECOMMENDATION: [text]
SUGGEST_APPOINTMENT: [yes/no]
SUGGESTED_TIMEFRAME: [timeframe]
QUESTIONS_TO_ASK:
- [question 1]
- [question 2]
- [question 3]

Be helpful but conservative - when in doubt about serious symptoms, escalate to higher urgency.`)
	return b.String()
}

// parseTriage reads the fixed line format. Missing fields keep conservative
// defaults rather than failing.
func parseTriage(text, symptom string) *TriageResult {
	result := &TriageResult{
		Symptom:            symptom,
		Urgency:            UrgencyModerate,
		SuggestAppointment: true,
		SuggestedTimeframe: "within 3 days",
		QuestionsToAsk:     []string{},
	}
	inQuestions := false
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "URGENCY:"):
			inQuestions = false
			result.Urgency = strings.ToLower(strings.TrimSpace(valueAfterColon(line)))
		case strings.HasPrefix(upper, "RECOMMENDATION:"):
			inQuestions = false
			result.Recommendation = strings.TrimSpace(valueAfterColon(line))
		case strings.HasPrefix(upper, "SUGGEST_APPOINTMENT:"):
			inQuestions = false
			val := strings.ToLower(strings.TrimSpace(valueAfterColon(line)))
			result.SuggestAppointment = strings.HasPrefix(val, "y")
		case strings.HasPrefix(upper, "SUGGESTED_TIMEFRAME:"):
			inQuestions = false
			result.SuggestedTimeframe = strings.TrimSpace(valueAfterColon(line))
		case strings.HasPrefix(upper, "QUESTIONS_TO_ASK:"):
			inQuestions = true
		case inQuestions && strings.HasPrefix(line, "-"):
			result.QuestionsToAsk = append(result.QuestionsToAsk, strings.TrimSpace(line[1:]))
		}
	}
	return result
}

func valueAfterColon(line string) string {
	if i := strings.Index(line, ":"); i >= 0 {
		return line[i+1:]
	}
	return ""
}

// fallbackTriage classifies with the keyword lists when no completion is
// available. It stays on the cautious side of every ambiguity.
func (s *Service) fallbackTriage(symptom string) *TriageResult {
	lowered := strings.ToLower(symptom)
	result := &TriageResult{
		Symptom:            symptom,
		Urgency:            UrgencyModerate,
		Recommendation:     "Unable to analyze symptom. Consider consulting with healthcare provider.",
		SuggestAppointment: true,
		SuggestedTimeframe: "within 3 days",
		QuestionsToAsk: []string{
			"When did this symptom start?",
			"How severe is it on a scale of 1-10?",
		},
		Fallback: true,
	}
	for _, kw := range emergencyKeywords {
		if strings.Contains(lowered, kw) {
			result.Urgency = UrgencyEmergency
			result.Recommendation = "This symptom may require emergency care. Call emergency services now."
			result.SuggestedTimeframe = "immediately"
			return result
		}
	}
	for _, kw := range highKeywords {
		if strings.Contains(lowered, kw) {
			result.Urgency = UrgencyHigh
			result.Recommendation = "This symptom should be seen promptly. Contact the doctor today."
			result.SuggestedTimeframe = "within 24 hours"
			return result
		}
	}
	return result
}

// DraftEmailReply asks the completion service for a reply in SUBJECT/BODY
// format. On failure it falls back to a plain acknowledgment the user can
// edit.
func (s *Service) DraftEmailReply(ctx context.Context, in EmailReplyInput) (*EmailDraft, error) {
	if strings.TrimSpace(in.Body) == "" {
		return nil, fmt.Errorf("email body is required")
	}
	tone := strings.TrimSpace(in.Tone)
	if tone == "" {
		tone = "professional"
	}
	if s.ai == nil {
		return fallbackDraft(in), nil
	}
	text, err := s.ai.Complete(ctx, replyPrompt(in, tone))
	if err != nil {
		log.Warn().Err(err).Msg("email reply falling back to local draft")
		return fallbackDraft(in), nil
	}
	subject, body := parseReply(text, in.Subject)
	return &EmailDraft{Subject: subject, Body: body}, nil
}

func replyPrompt(in EmailReplyInput, tone string) string {
	var b strings.Builder
	b.WriteString("You are an email assistant helping to draft a reply to an email.\n\n")
	b.WriteString("Original Email Details:\n")
	fmt.Fprintf(&b, "From: %s\n", in.Sender)
	fmt.Fprintf(&b, "Subject: %s\n\n", in.Subject)
	fmt.Fprintf(&b, "Email Body:\n%s\n\n", in.Body)
	if strings.TrimSpace(in.Context) != "" {
		fmt.Fprintf(&b, "Additional Context:\n%s\n\n", in.Context)
	}
	fmt.Fprintf(&b, `Please generate a %s email reply. Follow these guidelines:
1. Address the main points of the original email
2. Be clear and concise
3. Maintain a %s tone
4. If the email requires specific information you don't have, acknowledge this politely
5. End with an appropriate closing

Format your response as:
SUBJECT: [Reply subject line]

BODY:
[Reply email body]`, tone, tone)
	return b.String()
}

// parseReply extracts the SUBJECT and BODY sections. Unparseable output is
// kept wholesale as the body under a "Re:" subject.
func parseReply(text, originalSubject string) (string, string) {
	subject := "Re: " + originalSubject
	body := strings.TrimSpace(text)

	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(line)), "SUBJECT:") {
			subject = strings.TrimSpace(valueAfterColon(line))
			for j := i + 1; j < len(lines); j++ {
				if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(lines[j])), "BODY:") {
					body = strings.TrimSpace(strings.Join(lines[j+1:], "\n"))
					break
				}
			}
			break
		}
	}
	return subject, body
}

func fallbackDraft(in EmailReplyInput) *EmailDraft {
	return &EmailDraft{
		Subject: "Re: " + in.Subject,
		Body: "Thank you for your email. I have received your message and will " +
			"get back to you with a full response as soon as possible.",
		Fallback: true,
	}
}

// Summarize turns recent care data into a short narrative with observations.
// Without a completion service it assembles a factual local summary.
func (s *Service) Summarize(ctx context.Context, in SummaryInput) (*Summary, error) {
	if s.ai == nil {
		return fallbackSummary(in), nil
	}
	text, err := s.ai.Complete(ctx, summaryPrompt(in))
	if err != nil {
		log.Warn().Err(err).Msg("care summary falling back to local assembly")
		return fallbackSummary(in), nil
	}
	summary, insights := parseSummary(text)
	return &Summary{Text: summary, Insights: insights}, nil
}

func summaryPrompt(in SummaryInput) string {
	var b strings.Builder
	b.WriteString("You are a care coordination assistant. Summarize the following recent care data for a caregiver.\n\n")
	if in.PatientName != "" {
		fmt.Fprintf(&b, "Patient: %s\n", in.PatientName)
	}
	if len(in.Symptoms) > 0 {
		fmt.Fprintf(&b, "Recent symptoms:\n- %s\n", strings.Join(in.Symptoms, "\n- "))
	}
	if len(in.Medications) > 0 {
		fmt.Fprintf(&b, "Medications:\n- %s\n", strings.Join(in.Medications, "\n- "))
	}
	if len(in.Notes) > 0 {
		fmt.Fprintf(&b, "Notes:\n- %s\n", strings.Join(in.Notes, "\n- "))
	}
	b.WriteString(`
Provide:
SUMMARY: A short narrative (2-4 sentences) of the patient's recent status.
INSIGHTS:
- [observation or suggested follow-up]
- [observation or suggested follow-up]

Do not diagnose. Flag patterns a caregiver should mention to the doctor.`)
	return b.String()
}

func parseSummary(text string) (string, []string) {
	var summary string
	insights := []string{}
	inInsights := false
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "SUMMARY:"):
			inInsights = false
			summary = strings.TrimSpace(valueAfterColon(line))
		case strings.HasPrefix(upper, "INSIGHTS:"):
			inInsights = true
		case inInsights && strings.HasPrefix(line, "-"):
			insights = append(insights, strings.TrimSpace(line[1:]))
		case summary != "" && !inInsights && line != "":
			summary += " " + line
		}
	}
	if summary == "" {
		summary = strings.TrimSpace(text)
	}
	return summary, insights
}

func fallbackSummary(in SummaryInput) *Summary {
	var parts []string
	if len(in.Symptoms) > 0 {
		parts = append(parts, fmt.Sprintf("%d symptom(s) logged recently: %s.",
			len(in.Symptoms), strings.Join(in.Symptoms, "; ")))
	} else {
		parts = append(parts, "No symptoms logged recently.")
	}
	if len(in.Medications) > 0 {
		parts = append(parts, fmt.Sprintf("Current medications: %s.", strings.Join(in.Medications, ", ")))
	}
	return &Summary{
		Text:     strings.Join(parts, " "),
		Insights: []string{"Review the logged entries with the doctor at the next visit."},
		Fallback: true,
	}
}
