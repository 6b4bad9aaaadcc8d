package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/narrative-engine/pkg/directive"
)

// Fresh-session defaults.
const (
	DefaultLocation = "Unknown"
	DefaultRegion   = "Starting Area"
)

// Journal defaults applied when an NPC is first recorded without
// explicit values.
const (
	DefaultJournalStatus   = "Known"
	DefaultJournalRelation = TierAcquaint
)

// ErrDeserialization is returned when an imported save blob cannot be
// parsed or fails validation. The prior state is left untouched.
var ErrDeserialization = errors.New("invalid save data")

var titleCaser = cases.Title(language.English)

// InventoryItem is a held item. Name is unique within the inventory;
// Quantity never drops below 1 (the entry is removed instead).
type InventoryItem struct {
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description,omitempty"`
	AcquiredAt  string `json:"acquired_at"`
}

// JournalEntry holds free-text narrative notes about an NPC,
// independent of the quantified relationship score.
type JournalEntry struct {
	Status   string `json:"status"`
	Notes    string `json:"notes,omitempty"`
	Relation string `json:"relation"`
}

// RelationshipEntry quantifies standing with a character.
type RelationshipEntry struct {
	Category     string `json:"category"`
	Affection    int    `json:"affection"`
	MetAt        string `json:"met_at"`
	Interactions int    `json:"interactions"`
}

// Clock holds the accumulated in-world minute counter. It is the sole
// source of truth for the derived date and time of day.
type Clock struct {
	TotalMinutes int `json:"total_minutes"`
}

// State is the canonical world model for one session. It is mutated
// only through its methods; callers render it via Snapshot.
type State struct {
	ID               uuid.UUID                    `json:"id"`
	Location         string                       `json:"location"`
	Region           string                       `json:"region,omitempty"`
	VisitedLocations []string                     `json:"visited_locations,omitempty"`
	Inventory        []InventoryItem              `json:"inventory,omitempty"`
	Journal          map[string]JournalEntry      `json:"journal,omitempty"`
	Relationships    map[string]RelationshipEntry `json:"relationships,omitempty"`
	Clock            Clock                        `json:"clock"`
	CreatedAt        time.Time                    `json:"created_at"`
	UpdatedAt        time.Time                    `json:"updated_at,omitempty"`
}

// NewState creates a fresh world state with default values.
func NewState() *State {
	return &State{
		ID:               uuid.New(),
		Location:         DefaultLocation,
		Region:           DefaultRegion,
		VisitedLocations: make([]string, 0),
		Inventory:        make([]InventoryItem, 0),
		Journal:          make(map[string]JournalEntry),
		Relationships:    make(map[string]RelationshipEntry),
		CreatedAt:        time.Now(),
	}
}

// Reset replaces everything except the session ID with fresh defaults.
func (s *State) Reset() {
	id := s.ID
	*s = *NewState()
	s.ID = id
}

// Clone returns a deep copy of the state. Mutating the copy never
// touches the original, so a clone can be handed to callers that read
// or encode it outside the session lock.
func (s *State) Clone() *State {
	out := *s

	out.VisitedLocations = make([]string, len(s.VisitedLocations))
	copy(out.VisitedLocations, s.VisitedLocations)

	out.Inventory = make([]InventoryItem, len(s.Inventory))
	copy(out.Inventory, s.Inventory)

	out.Journal = make(map[string]JournalEntry, len(s.Journal))
	for name, entry := range s.Journal {
		out.Journal[name] = entry
	}

	out.Relationships = make(map[string]RelationshipEntry, len(s.Relationships))
	for name, entry := range s.Relationships {
		out.Relationships[name] = entry
	}

	return &out
}

// Date returns the current derived calendar date, used to stamp new
// inventory and relationship entries.
func (s *State) Date() string {
	return DeriveClock(s.Clock.TotalMinutes).Date
}

// ApplyUpdate applies one parsed directive to the state.
func (s *State) ApplyUpdate(u directive.Update) {
	switch u.Kind {
	case directive.KindItemGrant:
		// Directive grants are always +1 with no description.
		s.AddItem(u.Item, 1, "")
	case directive.KindLocationChange:
		s.SetLocation(u.Location, "")
	case directive.KindNPCUpdate:
		if u.NPC != nil {
			s.UpdateJournal(u.NPC.Name, u.NPC.Relation, u.NPC.Notes, u.NPC.Status)
		}
	}
}

// AddItem adds quantity of the named item, merging with an existing
// entry of the same name. A non-positive quantity is treated as 1.
// The description of an existing entry is never overwritten.
func (s *State) AddItem(name string, quantity int, description string) {
	if name == "" {
		return
	}
	if quantity < 1 {
		quantity = 1
	}

	for i := range s.Inventory {
		if s.Inventory[i].Name == name {
			s.Inventory[i].Quantity += quantity
			return
		}
	}

	s.Inventory = append(s.Inventory, InventoryItem{
		Name:        name,
		Quantity:    quantity,
		Description: description,
		AcquiredAt:  s.Date(),
	})
}

// RemoveItem subtracts quantity from the named item, deleting the entry
// once its quantity reaches zero or below. Removing an item that is not
// held is a no-op.
func (s *State) RemoveItem(name string, quantity int) {
	if quantity < 1 {
		quantity = 1
	}

	for i := range s.Inventory {
		if s.Inventory[i].Name != name {
			continue
		}
		s.Inventory[i].Quantity -= quantity
		if s.Inventory[i].Quantity <= 0 {
			s.Inventory = append(s.Inventory[:i], s.Inventory[i+1:]...)
		}
		return
	}
}

// SetLocation moves to the named place, recording it in the visited set
// on first visit. Region is only updated when non-empty.
func (s *State) SetLocation(name, region string) {
	if name == "" {
		return
	}
	s.Location = name
	if region != "" {
		s.Region = region
	}

	for _, visited := range s.VisitedLocations {
		if visited == name {
			return
		}
	}
	s.VisitedLocations = append(s.VisitedLocations, name)
}

// UpdateJournal creates or updates the journal entry for an NPC.
// Blank arguments never erase existing values; a new entry gets
// default status and relation when those are unset.
func (s *State) UpdateJournal(name, relation, notes, status string) {
	if name == "" {
		return
	}
	key := titleCaser.String(name)

	entry, exists := s.Journal[key]
	if !exists {
		entry = JournalEntry{
			Status:   DefaultJournalStatus,
			Relation: DefaultJournalRelation,
		}
	}

	if relation != "" {
		entry.Relation = relation
	}
	if notes != "" {
		entry.Notes = notes
	}
	if status != "" {
		entry.Status = status
	}

	if s.Journal == nil {
		s.Journal = make(map[string]JournalEntry)
	}
	s.Journal[key] = entry
}

// UpdateRelationship adjusts standing with a character, creating the
// entry on first reference. Affection is clamped to [-100, 100] after
// the delta is applied; a nonzero delta re-derives the tier from the
// clamped score, overriding any explicit category argument. The
// interaction counter increments on every call.
func (s *State) UpdateRelationship(name, category string, affectionDelta int) {
	if name == "" {
		return
	}
	key := titleCaser.String(name)

	rel, exists := s.Relationships[key]
	if !exists {
		rel = RelationshipEntry{
			Category: TierStranger,
			MetAt:    s.Date(),
		}
	}

	if category != "" {
		rel.Category = category
	}
	if affectionDelta != 0 {
		rel.Affection = clampAffection(rel.Affection + affectionDelta)
		rel.Category = CategoryForAffection(rel.Affection)
	}
	rel.Interactions++

	if s.Relationships == nil {
		s.Relationships = make(map[string]RelationshipEntry)
	}
	s.Relationships[key] = rel
}

// AdvanceTime adds minutes to the world clock. The counter only ever
// grows; non-positive amounts are ignored.
func (s *State) AdvanceTime(minutes int) {
	if minutes <= 0 {
		return
	}
	s.Clock.TotalMinutes += minutes
}

// Export serializes the full state as indented JSON, suitable for a
// save file.
func (s *State) Export() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to export state: %w", err)
	}
	return data, nil
}

// ImportState parses and validates a save blob, returning a fully
// formed state. On any failure the error wraps ErrDeserialization and
// no partial state is returned; the caller's current state is expected
// to remain in place.
func ImportState(data []byte) (*State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	if err := st.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	st.normalize()
	return &st, nil
}

func (s *State) validate() error {
	if s.Clock.TotalMinutes < 0 {
		return fmt.Errorf("clock must be non-negative, got %d", s.Clock.TotalMinutes)
	}
	for _, item := range s.Inventory {
		if item.Name == "" {
			return errors.New("inventory item missing name")
		}
		if item.Quantity < 1 {
			return fmt.Errorf("item %q has quantity %d", item.Name, item.Quantity)
		}
	}
	for name, rel := range s.Relationships {
		if rel.Affection < minAffection || rel.Affection > maxAffection {
			return fmt.Errorf("relationship %q affection %d out of range", name, rel.Affection)
		}
		if rel.Interactions < 0 {
			return fmt.Errorf("relationship %q has negative interactions", name)
		}
	}
	return nil
}

// normalize fills in zero values an older or hand-edited save may omit.
func (s *State) normalize() {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Location == "" {
		s.Location = DefaultLocation
	}
	if s.VisitedLocations == nil {
		s.VisitedLocations = make([]string, 0)
	}
	if s.Inventory == nil {
		s.Inventory = make([]InventoryItem, 0)
	}
	if s.Journal == nil {
		s.Journal = make(map[string]JournalEntry)
	}
	if s.Relationships == nil {
		s.Relationships = make(map[string]RelationshipEntry)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
}
