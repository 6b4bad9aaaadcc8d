package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jwebster45206/narrative-engine/pkg/chat"
	"github.com/jwebster45206/narrative-engine/pkg/world"
)

const choicePromptTemplate = `Based on the current story context, generate %d possible actions the player could take. Format as a JSON array of objects containing "action" and "description" fields. Keep actions concise and relevant to the story.

Current context:
- Location: %s (%s)
- Date: %s, %s
- Inventory: %s
- Known characters: %s

Respond with only the JSON array.`

// GeminiService generates action choices with the Gemini API.
type GeminiService struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

var _ ChoiceGenerator = (*GeminiService)(nil)

// NewGeminiService creates a Gemini-backed choice generator.
func NewGeminiService(ctx context.Context, apiKey, modelName string, logger *slog.Logger) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiService{
		client: client,
		model:  client.GenerativeModel(modelName),
		logger: logger,
	}, nil
}

func (g *GeminiService) Close() error {
	return g.client.Close()
}

// GenerateChoices asks the model for count action candidates grounded
// in the snapshot. The result is truncated to count; it is never
// padded.
func (g *GeminiService) GenerateChoices(ctx context.Context, snap world.Snapshot, count int) ([]chat.Choice, error) {
	prompt := buildChoicePrompt(snap, count)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generate failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("gemini returned a non-text part")
	}

	choices, err := parseChoiceResponse(string(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse gemini choices: %w", err)
	}

	if len(choices) > count {
		choices = choices[:count]
	}
	return choices, nil
}

func buildChoicePrompt(snap world.Snapshot, count int) string {
	items := make([]string, 0, len(snap.Inventory))
	for _, item := range snap.Inventory {
		items = append(items, fmt.Sprintf("%s x%d", item.Name, item.Quantity))
	}
	if len(items) == 0 {
		items = append(items, "empty")
	}

	names := make([]string, 0, len(snap.Relationships))
	for _, rel := range snap.Relationships {
		names = append(names, fmt.Sprintf("%s (%s)", rel.Name, rel.Category))
	}
	if len(names) == 0 {
		names = append(names, "none")
	}

	return fmt.Sprintf(choicePromptTemplate, count,
		snap.Location, snap.Region,
		snap.Date, snap.TimeOfDay,
		strings.Join(items, ", "),
		strings.Join(names, ", "))
}

// parseChoiceResponse unmarshals the JSON array from the model. The
// model sometimes wraps the JSON in markdown fences, so those are
// removed first.
func parseChoiceResponse(response string) ([]chat.Choice, error) {
	clean := strings.TrimSpace(response)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	var choices []chat.Choice
	if err := json.Unmarshal([]byte(clean), &choices); err != nil {
		return nil, err
	}
	return choices, nil
}
