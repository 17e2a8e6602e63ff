package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intake"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/upstream"
	"google.golang.org/genai"
)

// GeminiConnector opens Gemini Live sessions on the shared genai client.
type GeminiConnector struct {
	Clients upstream.ClientSource
	Model   string
}

func (c GeminiConnector) Connect(ctx context.Context, cfg AIConfig) (AIConnection, error) {
	if c.Clients == nil {
		return nil, fmt.Errorf("gemini client source is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		return nil, fmt.Errorf("live model is required")
	}
	client, err := c.Clients.Client(ctx)
	if err != nil {
		return nil, err
	}
	sess, err := client.Live.Connect(ctx, c.Model, liveConnectConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect gemini live: %w", err)
	}
	return &geminiLiveConn{sess: sess}, nil
}

func liveConnectConfig(cfg AIConfig) *genai.LiveConnectConfig {
	out := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if voice := strings.TrimSpace(cfg.Voice); voice != "" {
		out.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		}
	}
	if strings.TrimSpace(cfg.SystemInstruction) != "" {
		out.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(cfg.SystemInstruction)}}
	}
	if len(cfg.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(cfg.Tools))
		for _, tool := range cfg.Tools {
			decls = append(decls, &genai.FunctionDeclaration{Name: tool.Name, Description: tool.Description})
		}
		out.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return out
}

type geminiLiveConn struct {
	sess *genai.Session

	// genai.Session writes straight to its websocket, which allows one writer.
	sendMu    sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *geminiLiveConn) SendAudio(chunk AudioChunk) error {
	mime := chunk.MIMEType
	if mime == "" {
		mime = audioMIMEType
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.sess.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: chunk.Data, MIMEType: mime},
	})
}

func (c *geminiLiveConn) SignalEndOfTurn() error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.sess.SendClientContent(genai.LiveClientContentInput{TurnComplete: genai.Ptr(true)})
}

func (c *geminiLiveConn) Receive() ([]AIEvent, error) {
	msg, err := c.sess.Receive()
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errors.New("gemini live returned an empty message")
	}
	return liveEvents(msg), nil
}

func (c *geminiLiveConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.sess.Close()
	})
	return c.closeErr
}

// liveEvents flattens one server message into events. Patient transcription
// comes first, then model audio and text parts, then output transcription,
// tool calls and finally the turn boundary.
func liveEvents(msg *genai.LiveServerMessage) []AIEvent {
	var out []AIEvent
	if sc := msg.ServerContent; sc != nil {
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			out = append(out, TranscriptDeltaEvent{Role: intake.RolePatient, Text: sc.InputTranscription.Text})
		}
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part == nil {
					continue
				}
				if part.InlineData != nil && len(part.InlineData.Data) > 0 {
					out = append(out, AudioChunkEvent{Data: part.InlineData.Data})
				}
				if part.Text != "" && !part.Thought {
					out = append(out, TranscriptDeltaEvent{Role: intake.RoleAssistant, Text: part.Text})
				}
			}
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			out = append(out, TranscriptDeltaEvent{Role: intake.RoleAssistant, Text: sc.OutputTranscription.Text})
		}
	}
	if tc := msg.ToolCall; tc != nil {
		for _, call := range tc.FunctionCalls {
			if call == nil {
				continue
			}
			out = append(out, ToolCallEvent{Name: call.Name, ID: call.ID, Args: call.Args})
		}
	}
	if msg.ServerContent != nil && msg.ServerContent.TurnComplete {
		out = append(out, TurnCompleteEvent{})
	}
	return out
}
