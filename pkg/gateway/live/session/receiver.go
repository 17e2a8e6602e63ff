package session

import (
	"context"
	"fmt"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intake"
)

// receiveLoop turns AI events into client items and finalizes turns. It is
// the only writer of the turn history.
func (s *LiveSession) receiveLoop(ctx context.Context, inbound *inboundQueue, ai AIConnection) error {
	for {
		events, err := ai.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("receive from ai: %w", err)
		}
		for _, ev := range events {
			s.handleAIEvent(ev, inbound)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *LiveSession) handleAIEvent(ev AIEvent, inbound *inboundQueue) {
	switch e := ev.(type) {
	case AudioChunkEvent:
		if len(e.Data) == 0 {
			return
		}
		inbound.Put(clientAudio{data: e.Data})
	case TranscriptDeltaEvent:
		if e.Text == "" {
			return
		}
		s.history.appendDelta(e.Role, e.Text)
		inbound.Put(clientTranscript{role: e.Role, text: e.Text})
	case ToolCallEvent:
		if e.Name != intake.CompletionToolName {
			s.logger.Debug("ignoring tool call", "name", e.Name)
			return
		}
		s.events.Log("function_call", map[string]any{"name": e.Name, "id": e.ID})
		s.logger.Info("completion tool called", "id", e.ID)
		inbound.Put(clientToolCall{name: e.Name, id: e.ID})
	case TurnCompleteEvent:
		for _, turn := range s.history.finalizeTurn() {
			s.events.Log("transcript", map[string]any{"role": string(turn.Role), "text": turn.Text})
		}
		inbound.Put(clientTurnComplete{})
	}
}
