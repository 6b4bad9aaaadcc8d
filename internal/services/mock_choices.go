package services

import (
	"context"
	"sync"

	"github.com/jwebster45206/narrative-engine/pkg/chat"
	"github.com/jwebster45206/narrative-engine/pkg/world"
)

// MockChoiceGenerator is a ChoiceGenerator for testing and for running
// the engine without an LLM provider configured.
type MockChoiceGenerator struct {
	GenerateChoicesFunc func(ctx context.Context, snap world.Snapshot, count int) ([]chat.Choice, error)

	// Track calls for testing
	GenerateCalls []GenerateChoicesCall

	mu sync.Mutex
}

type GenerateChoicesCall struct {
	Snapshot world.Snapshot
	Count    int
}

func NewMockChoiceGenerator() *MockChoiceGenerator {
	return &MockChoiceGenerator{
		GenerateCalls: make([]GenerateChoicesCall, 0),
	}
}

var defaultChoices = []chat.Choice{
	{Action: "Continue forward", Description: "Press onward with your journey"},
	{Action: "Examine surroundings", Description: "Take a closer look at your environment"},
	{Action: "Talk to someone nearby", Description: "Engage in conversation"},
	{Action: "Check inventory", Description: "Review your belongings"},
	{Action: "Rest a while", Description: "Let some time pass"},
	{Action: "Consult your journal", Description: "Recall what you know"},
}

// GenerateChoices returns canned placeholder actions, truncated to count.
func (m *MockChoiceGenerator) GenerateChoices(ctx context.Context, snap world.Snapshot, count int) ([]chat.Choice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GenerateCalls = append(m.GenerateCalls, GenerateChoicesCall{Snapshot: snap, Count: count})

	if m.GenerateChoicesFunc != nil {
		return m.GenerateChoicesFunc(ctx, snap, count)
	}

	choices := defaultChoices
	if count >= 0 && count < len(choices) {
		choices = choices[:count]
	}
	out := make([]chat.Choice, len(choices))
	copy(out, choices)
	return out, nil
}

func (m *MockChoiceGenerator) Close() error {
	return nil
}
