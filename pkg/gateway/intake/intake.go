// Package intake holds the values shared by the live session, the extraction
// client and the intake stores.
package intake

import (
	"sort"
	"strings"
	"time"
)

const (
	// CompletionToolName is the zero-argument function the model calls once
	// the patient confirmed the spoken summary.
	CompletionToolName = "complete_intake"

	CompletionToolDescription = "Call this function when you have successfully collected ALL required " +
		"medical information AND provided a verbal summary to the patient " +
		"for confirmation. Only call after patient confirms the summary is correct."

	CompletedMessage = "Medical intake completed successfully"
)

type Role string

const (
	RoleAssistant Role = "assistant"
	RolePatient   Role = "patient"
)

// Title returns the role name with its first letter upper-cased, as used in
// extraction transcripts.
func (r Role) Title() string {
	s := string(r)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Turn is one finalized, role-attributed block of speech.
type Turn struct {
	Role     Role   `json:"role"`
	Text     string `json:"text"`
	Sequence int64  `json:"-"`
}

// Record is the schema-free structured intake returned by extraction.
type Record map[string]any

func (r Record) IsEmpty() bool {
	return len(r) == 0
}

func (r Record) ChiefComplaint() string {
	if r == nil {
		return ""
	}
	s, _ := r["chief_complaint"].(string)
	return strings.TrimSpace(s)
}

func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Conversation is the persisted form of a completed intake.
type Conversation struct {
	SessionID     string    `json:"session_id"`
	Timestamp     time.Time `json:"timestamp"`
	Clinic        string    `json:"clinic"`
	VoiceModel    string    `json:"voice_model"`
	GreetingStyle string    `json:"greeting_style"`
	Turns         []Turn    `json:"conversation"`
	ExtractedData Record    `json:"extracted_data"`
}

// Normalized returns a copy safe to serialize: nil turns and records become
// empty values and the timestamp is in UTC.
func (c Conversation) Normalized() Conversation {
	out := c
	if out.Turns == nil {
		out.Turns = []Turn{}
	}
	if out.ExtractedData == nil {
		out.ExtractedData = Record{}
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now()
	}
	out.Timestamp = out.Timestamp.UTC()
	return out
}
