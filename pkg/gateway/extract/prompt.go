package extract

import (
	"strings"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intake"
)

const promptHeader = "You are a medical data extraction assistant. " +
	"Extract structured medical intake information from this conversation. " +
	"Return ONLY valid JSON with EXACTLY these fields:\n" +
	"{\n" +
	`  "chief_complaint": "main health issue",` + "\n" +
	`  "current_medications": [{"name": "med name", "dose": "dosage", "frequency": "how often"}],` + "\n" +
	`  "allergies": [{"allergen": "substance", "reaction": ["symptom1", "symptom2"], "severity": "mild"}],` + "\n" +
	`  "past_medical_history": {"conditions": ["condition1"], "surgeries": ["surgery1"], "hospitalizations": ["hospital1"]},` + "\n" +
	`  "social_history": {"smoking": "status", "alcohol": "status", "occupation": "job"}` + "\n" +
	"}\n" +
	"IMPORTANT:\n" +
	`- Use "current_medications" NOT "medications"` + "\n" +
	`- Use "past_medical_history" NOT "medical_history"` + "\n" +
	`- allergies.reaction must be ARRAY of strings like ["hives", "rash"], NOT single string` + "\n" +
	`- allergies.severity must be one of: "mild", "moderate", "serious", "life-threatening"` + "\n" +
	"- If information not mentioned, use empty arrays [] or empty strings\n\n"

// BuildTranscript renders one "Role: text" line per turn in history order.
func BuildTranscript(history []intake.Turn) string {
	var b strings.Builder
	for i, turn := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(turn.Role.Title())
		b.WriteString(": ")
		b.WriteString(turn.Text)
	}
	return b.String()
}

func BuildPrompt(transcript string) string {
	return promptHeader + "Conversation:\n" + transcript
}
