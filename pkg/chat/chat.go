package chat

import (
	"fmt"

	"github.com/jwebster45206/narrative-engine/pkg/directive"
	"github.com/jwebster45206/narrative-engine/pkg/world"
)

const (
	RoleUser      = "user"      // The player
	RoleAssistant = "assistant" // AI narrator; the only role that mutates world state
	RoleSystem    = "system"    // Host application
)

// MessageRequest is one inbound narrative message from the host chat
// application.
type MessageRequest struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func (r *MessageRequest) Validate() error {
	if r.Text == "" {
		return fmt.Errorf("text cannot be empty")
	}
	if r.Role == "" {
		return fmt.Errorf("role cannot be empty")
	}
	return nil
}

// Choice is one action candidate offered to the player by the
// choice-generation collaborator.
type Choice struct {
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
}

// MessageResponse is the outcome of one processed turn: the visible
// text with update directives stripped, any inline choices, generated
// choices when configured, and the post-apply render snapshot.
type MessageResponse struct {
	SessionID string                   `json:"session_id"`
	Text      string                   `json:"text"`
	Choices   []directive.ChoiceOption `json:"choices,omitempty"`
	Generated []Choice                 `json:"generated_choices,omitempty"`
	Snapshot  world.Snapshot           `json:"snapshot"`
}
