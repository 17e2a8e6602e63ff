package session

import (
	"strings"
	"sync"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intake"
)

const maxHistoryTurns = 40

// turnHistory holds the per-role accumulators and the finalized turns. The
// receiver is the only writer; the dispatcher reads snapshots.
type turnHistory struct {
	mu        sync.Mutex
	limit     int
	turns     []intake.Turn
	seq       int64
	assistant strings.Builder
	patient   strings.Builder
}

func newTurnHistory(limit int) *turnHistory {
	if limit <= 0 {
		limit = maxHistoryTurns
	}
	return &turnHistory{
		limit: limit,
		turns: make([]intake.Turn, 0, limit),
	}
}

func (h *turnHistory) appendDelta(role intake.Role, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch role {
	case intake.RoleAssistant:
		h.assistant.WriteString(text)
	case intake.RolePatient:
		h.patient.WriteString(text)
	}
}

// finalizeTurn flushes the assistant then the patient accumulator into
// history, skipping whitespace-only text, and returns the appended turns.
// Calling it with empty accumulators is a no-op.
func (h *turnHistory) finalizeTurn() []intake.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	var added []intake.Turn
	flush := func(role intake.Role, buf *strings.Builder) {
		text := strings.TrimSpace(buf.String())
		buf.Reset()
		if text == "" {
			return
		}
		h.seq++
		turn := intake.Turn{Role: role, Text: text, Sequence: h.seq}
		h.turns = append(h.turns, turn)
		added = append(added, turn)
	}
	flush(intake.RoleAssistant, &h.assistant)
	flush(intake.RolePatient, &h.patient)

	if over := len(h.turns) - h.limit; over > 0 {
		h.turns = append(h.turns[:0], h.turns[over:]...)
	}
	return added
}

func (h *turnHistory) snapshot() []intake.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]intake.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *turnHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}
