package directive

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

// Wire format of the tags embedded in assistant narrative text. These
// patterns must stay bit-exact for compatibility with existing prompts.
var (
	updateTag      = regexp.MustCompile(`\[DATA: (.*?)\]`)
	updateStripTag = regexp.MustCompile(`\[DATA:.*?\]`)
	choiceTag      = regexp.MustCompile(`\[Choice (\d)\]: (.*)`)
)

// payload is the loosely-typed JSON object inside a [DATA: ...] tag.
// A single payload may carry more than one update.
type payload struct {
	Item     string     `json:"item"`
	Location string     `json:"location"`
	NPC      *NPCUpdate `json:"npc"`
}

// Parser extracts update and choice directives from raw narrative text.
// It is stateless; all methods are total and never fail on malformed
// input. A nil logger is allowed.
type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logger}
}

// ExtractUpdates scans text for every [DATA: {...}] tag, left to right,
// and returns the updates they carry. A tag whose payload is not valid
// JSON is logged and skipped; the rest of the text is still processed.
func (p *Parser) ExtractUpdates(text string) []Update {
	matches := updateTag.FindAllStringSubmatch(text, -1)
	updates := make([]Update, 0, len(matches))

	for _, m := range matches {
		var body payload
		if err := json.Unmarshal([]byte(m[1]), &body); err != nil {
			if p.logger != nil {
				p.logger.Warn("Skipping malformed update directive", "payload", m[1], "error", err)
			}
			continue
		}

		if body.Item != "" {
			updates = append(updates, Update{Kind: KindItemGrant, Item: body.Item})
		}
		if body.Location != "" {
			updates = append(updates, Update{Kind: KindLocationChange, Location: body.Location})
		}
		if body.NPC != nil && body.NPC.Name != "" {
			npc := *body.NPC
			updates = append(updates, Update{Kind: KindNPCUpdate, NPC: &npc})
		}
	}

	return updates
}

// ExtractChoices returns one option per [Choice <digit>]: line, in order
// of appearance in the text. The index is the literal digit from the
// tag, not the position in the returned slice.
func (p *Parser) ExtractChoices(text string) []ChoiceOption {
	matches := choiceTag.FindAllStringSubmatch(text, -1)
	choices := make([]ChoiceOption, 0, len(matches))

	for _, m := range matches {
		choices = append(choices, ChoiceOption{
			Index: int(m[1][0] - '0'),
			Text:  strings.TrimSpace(m[2]),
		})
	}

	return choices
}

// Strip removes every [DATA: ...] tag from text and trims surrounding
// whitespace. Choice lines are left in place; the renderer decides how
// to present those.
func (p *Parser) Strip(text string) string {
	return strings.TrimSpace(updateStripTag.ReplaceAllString(text, ""))
}
