package session

import (
	"context"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intake"
)

const audioMIMEType = "audio/pcm"

// AudioChunk is one client microphone frame on its way to the AI backend.
type AudioChunk struct {
	Data     []byte
	MIMEType string
}

// ToolDeclaration is a zero-argument function the model may call.
type ToolDeclaration struct {
	Name        string
	Description string
}

type AIConfig struct {
	Voice             string
	SystemInstruction string
	Tools             []ToolDeclaration
}

type AIConnector interface {
	Connect(ctx context.Context, cfg AIConfig) (AIConnection, error)
}

// AIConnection is one live duplex conversation with the model. SendAudio and
// SignalEndOfTurn may be called from different goroutines; Receive is only
// called by the receiver.
type AIConnection interface {
	SendAudio(chunk AudioChunk) error
	SignalEndOfTurn() error
	// Receive blocks for the next server message and returns the events it
	// carried, in order. Close unblocks a pending Receive.
	Receive() ([]AIEvent, error)
	Close() error
}

// AIEvent is one of AudioChunkEvent, TranscriptDeltaEvent, ToolCallEvent or
// TurnCompleteEvent.
type AIEvent interface {
	isAIEvent()
}

type AudioChunkEvent struct {
	Data []byte
}

type TranscriptDeltaEvent struct {
	Role intake.Role
	Text string
}

type ToolCallEvent struct {
	Name string
	ID   string
	Args map[string]any
}

type TurnCompleteEvent struct{}

func (AudioChunkEvent) isAIEvent()      {}
func (TranscriptDeltaEvent) isAIEvent() {}
func (ToolCallEvent) isAIEvent()        {}
func (TurnCompleteEvent) isAIEvent()    {}
