package upstream

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

// ClientSource yields a ready genai client.
type ClientSource interface {
	Client(ctx context.Context) (*genai.Client, error)
}

// JSONGenerator issues single-shot GenerateContent calls constrained to a
// JSON response body.
type JSONGenerator struct {
	Clients ClientSource
	Model   string
}

func (g JSONGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.Clients == nil {
		return "", ErrMissingAPIKey
	}
	client, err := g.Clients.Client(ctx)
	if err != nil {
		return "", err
	}
	resp, err := client.Models.GenerateContent(ctx, g.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

// responseText joins the non-thought text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini response has no candidates")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String(), nil
}
