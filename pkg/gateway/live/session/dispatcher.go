package session

import (
	"context"
	"fmt"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intake"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/live/protocol"
)

// dispatchLoop delivers queued items to the client in FIFO order. Completion
// handling runs inline, so nothing queued after a tool call is sent before
// the intake is complete.
func (s *LiveSession) dispatchLoop(ctx context.Context, inbound *inboundQueue) error {
	for {
		item, err := inbound.Get(ctx)
		if err != nil {
			return err
		}
		if err := s.dispatch(ctx, item); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

func (s *LiveSession) dispatch(ctx context.Context, item clientItem) error {
	switch it := item.(type) {
	case clientAudio:
		if err := s.transport.WriteBinary(it.data); err != nil {
			return fmt.Errorf("write audio frame: %w", err)
		}
		s.metrics.AddAudioBytes("out", len(it.data))
	case clientTranscript:
		return s.writeJSON(protocol.ServerTranscript{Type: "transcript", Role: it.role, Text: it.text})
	case clientToolCall:
		return s.completeIntake(ctx, it)
	case clientTurnComplete:
		if err := s.writeJSON(protocol.ServerTurnComplete{Type: "turn_complete"}); err != nil {
			return err
		}
		s.events.Log("turn_complete", map[string]any{"turns": s.history.count()})
		return s.maybeFallbackExtract(ctx)
	}
	return nil
}

// completeIntake extracts, sends the record if there is one, persists, and
// announces completion. A repeated call id is processed once.
func (s *LiveSession) completeIntake(ctx context.Context, call clientToolCall) error {
	if call.id != "" {
		if _, seen := s.handledCalls[call.id]; seen {
			s.events.Log("duplicate_function_call", map[string]any{"id": call.id})
			s.logger.Debug("duplicate completion call ignored", "id", call.id)
			return nil
		}
		s.handledCalls[call.id] = struct{}{}
	}
	s.events.Log("function_call_processing", map[string]any{"name": call.name, "id": call.id})

	history := s.history.snapshot()
	res := s.extractor.Extract(ctx, triggerCompletion, history)
	if !res.Record.IsEmpty() {
		if err := s.writeJSON(protocol.ServerExtractedData{Type: "extracted_data", Data: res.Record}); err != nil {
			return err
		}
	}
	s.persist(ctx, history, res.Record)

	if err := s.writeJSON(protocol.ServerIntakeComplete{Type: "intake_complete", Message: intake.CompletedMessage}); err != nil {
		return err
	}
	s.metrics.IncIntakesCompleted()
	s.logger.Info("intake complete", "turns", len(history), "extraction", res.Kind.String())
	return nil
}

// maybeFallbackExtract runs one extraction for long sessions that never got a
// completion call. It fires at most once and never completes the intake.
// The success check is a plain read of the extractor: a completion call
// queued behind this turn still extracts again.
func (s *LiveSession) maybeFallbackExtract(ctx context.Context) error {
	if s.fallbackFired {
		return nil
	}
	n := s.history.count()
	if n < fallbackMinTurns || s.extractor.HasSucceeded() {
		return nil
	}
	s.fallbackFired = true
	s.events.Log("fallback_extraction", map[string]any{"turns": n})

	history := s.history.snapshot()
	res := s.extractor.Extract(ctx, triggerFallback, history)
	if res.Record.ChiefComplaint() == "" {
		return nil
	}
	if err := s.writeJSON(protocol.ServerExtractedData{Type: "extracted_data", Data: res.Record}); err != nil {
		return err
	}
	s.persist(ctx, history, res.Record)
	return nil
}

func (s *LiveSession) persist(ctx context.Context, history []intake.Turn, record intake.Record) {
	if s.store == nil || !s.cfg.SaveConversations {
		return
	}
	location, err := s.store.Save(ctx, intake.Conversation{
		SessionID:     s.cfg.SessionID,
		Timestamp:     s.now(),
		Clinic:        s.cfg.Clinic,
		VoiceModel:    s.cfg.Voice,
		GreetingStyle: s.cfg.GreetingStyle,
		Turns:         history,
		ExtractedData: record,
	})
	if err != nil {
		s.metrics.IncPersistErrors()
		s.logger.Warn("failed to persist intake", "error", err)
		return
	}
	s.logger.Info("intake saved", "location", location)
}

func (s *LiveSession) writeJSON(v any) error {
	if err := s.transport.WriteJSON(v); err != nil {
		return fmt.Errorf("write client frame: %w", err)
	}
	return nil
}
