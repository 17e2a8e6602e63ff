package session

import (
	"context"
	"fmt"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/live/protocol"
	"github.com/gorilla/websocket"
)

type inboundFrame struct {
	messageType int
	data        []byte
	err         error
}

func (s *LiveSession) readLoop(ctx context.Context, out chan<- inboundFrame) {
	for {
		messageType, data, err := s.transport.ReadMessage()
		if err != nil {
			select {
			case out <- inboundFrame{err: err}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case out <- inboundFrame{messageType: messageType, data: data}:
		case <-ctx.Done():
			return
		}
	}
}

// relay moves client audio onto the outbound queue and acts on control
// frames. It blocks while the outbound queue is full.
func (s *LiveSession) relay(ctx context.Context, frames <-chan inboundFrame, outbound chan<- AudioChunk, inbound *inboundQueue, ai AIConnection) error {
	for {
		var frame inboundFrame
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame = <-frames:
		}
		if frame.err != nil {
			return fmt.Errorf("read client frame: %w", frame.err)
		}

		switch frame.messageType {
		case websocket.BinaryMessage:
			if len(frame.data) == 0 {
				continue
			}
			if !s.limiter.Allow(len(frame.data)) {
				s.droppedAudio++
				if s.droppedAudio == 1 {
					s.events.Log("audio_rate_limited", nil)
				}
				s.logger.Debug("client audio over rate, dropping frame", "bytes", len(frame.data), "dropped", s.droppedAudio)
				continue
			}
			chunk := AudioChunk{Data: frame.data, MIMEType: audioMIMEType}
			select {
			case outbound <- chunk:
				s.metrics.AddAudioBytes("in", len(frame.data))
			case <-ctx.Done():
				return ctx.Err()
			}
		case websocket.TextMessage:
			if err := s.handleControl(frame.data, inbound, ai); err != nil {
				return err
			}
		}
	}
}

func (s *LiveSession) handleControl(data []byte, inbound *inboundQueue, ai AIConnection) error {
	msg, err := protocol.DecodeClientMessage(data)
	if err != nil {
		if protocol.IsUnsupported(err) {
			s.logger.Debug("ignoring client message", "reason", err.Error())
			return nil
		}
		s.logger.Warn("invalid client message", "error", err)
		return nil
	}

	switch m := msg.(type) {
	case protocol.ClientInterrupt:
		s.interrupt(inbound)
		s.signalEndOfTurn(ai, "legacy_interrupt")
	case protocol.ClientEndSession:
		s.events.Log("end_session_request", nil)
		return ErrEndSession
	case protocol.ClientControl:
		s.events.Log("control", map[string]any{"action": m.Action})
		s.logger.Debug("client control", "action", m.Action)
		switch m.Action {
		case protocol.ControlActionStop:
			s.signalEndOfTurn(ai, "mic_stop")
		case protocol.ControlActionInterrupt:
			s.interrupt(inbound)
			s.signalEndOfTurn(ai, "control_interrupt")
		}
	}
	return nil
}

// interrupt discards model output that has not reached the client yet. Items
// the dispatcher already dequeued still go out.
func (s *LiveSession) interrupt(inbound *inboundQueue) {
	dropped := inbound.Drain()
	s.metrics.IncInterrupts()
	s.events.Log("interrupt_triggered", map[string]any{"dropped": dropped})
	s.logger.Info("interrupt", "dropped", dropped)
}

func (s *LiveSession) signalEndOfTurn(ai AIConnection, reason string) {
	if err := ai.SignalEndOfTurn(); err != nil {
		s.logger.Warn("failed to signal end of turn", "reason", reason, "error", err)
		return
	}
	s.events.Log("turn_end_signal", map[string]any{"reason": reason})
}
