package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intake"
)

const (
	ControlActionStart     = "start"
	ControlActionStop      = "stop"
	ControlActionInterrupt = "interrupt"

	StateReady    = "ready"
	StateDraining = "draining"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

// IsUnsupported reports whether err is a well-formed frame this server does
// not act on.
func IsUnsupported(err error) bool {
	de, ok := err.(*DecodeError)
	return ok && de != nil && de.Code == "unsupported"
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// Client text frames. Audio arrives as binary frames and never reaches the decoder.

type ClientInterrupt struct {
	Type string `json:"type"`
}

type ClientEndSession struct {
	Type string `json:"type"`
}

type ClientControl struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "interrupt":
		return ClientInterrupt{Type: typ}, nil
	case "end_session":
		return ClientEndSession{Type: typ}, nil
	case "control":
		var msg ClientControl
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid control frame", "")
		}
		msg.Action = strings.ToLower(strings.TrimSpace(msg.Action))
		switch msg.Action {
		case ControlActionStart, ControlActionStop, ControlActionInterrupt:
			return msg, nil
		case "":
			return nil, badRequest("control.action is required", "action")
		default:
			return nil, unsupported("unsupported control action", "action")
		}
	default:
		return nil, unsupported("unsupported message type", "type")
	}
}

// Server text frames.

type ServerStatus struct {
	Type    string `json:"type"`
	State   string `json:"state"`
	Message string `json:"message"`
}

type ServerTranscript struct {
	Type string      `json:"type"`
	Role intake.Role `json:"role"`
	Text string      `json:"text"`
}

type ServerExtractedData struct {
	Type string        `json:"type"`
	Data intake.Record `json:"data"`
}

type ServerIntakeComplete struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ServerTurnComplete struct {
	Type string `json:"type"`
}

type ServerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
