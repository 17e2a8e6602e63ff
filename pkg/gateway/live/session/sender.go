package session

import (
	"context"
	"fmt"
)

// sendLoop forwards queued client audio to the AI backend. A send failure
// ends the session.
func (s *LiveSession) sendLoop(ctx context.Context, outbound <-chan AudioChunk, ai AIConnection) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk := <-outbound:
			if err := ai.SendAudio(chunk); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("send audio to ai: %w", err)
			}
		}
	}
}
