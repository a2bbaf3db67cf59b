package sender

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"workhub/internal/model"
)

const (
	geminiModel      = "gemini-2.0-flash"
	completionBudget = 10 * time.Second
)

// CompleteAIPrompt runs one chat completion: the system text is injected as
// the leading user turn, the transcript (including the newest user turn)
// follows. Returns the first candidate's first text part, trimmed.
func (g *Gateway) CompleteAIPrompt(ctx context.Context, apiKey, system string, turns []model.Turn) (string, error) {
	if len(turns) == 0 {
		return "", errors.New("completion: empty transcript")
	}
	ctx, cancel := context.WithTimeout(ctx, completionBudget)
	defer cancel()

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("completion: client: %w", err)
	}
	defer client.Close()

	m := client.GenerativeModel(geminiModel)
	cs := m.StartChat()
	cs.History = []*genai.Content{
		{Role: model.RoleUser, Parts: []genai.Part{genai.Text(system)}},
	}
	for _, t := range turns[:len(turns)-1] {
		cs.History = append(cs.History, &genai.Content{
			Role:  t.Role,
			Parts: []genai.Part{genai.Text(t.Text)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(turns[len(turns)-1].Text))
	if err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("completion: empty response")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", errors.New("completion: no text part")
	}
	return strings.TrimSpace(string(text)), nil
}
