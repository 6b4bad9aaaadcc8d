package services

import (
	"context"

	"github.com/jwebster45206/narrative-engine/pkg/chat"
	"github.com/jwebster45206/narrative-engine/pkg/world"
)

// ChoiceGenerator defines the interface for the external action-choice
// collaborator. Implementations decide how count is honored (the Gemini
// provider truncates, never pads); callers must tolerate an empty
// result.
type ChoiceGenerator interface {
	// GenerateChoices produces up to count action candidates for the
	// current world snapshot.
	GenerateChoices(ctx context.Context, snap world.Snapshot, count int) ([]chat.Choice, error)

	// Close releases any underlying client connection
	Close() error
}
