package world

import "sort"

// JournalView is a journal entry resolved with its NPC name for display.
type JournalView struct {
	Name string `json:"name"`
	JournalEntry
}

// RelationshipView is a relationship entry resolved with its character name.
type RelationshipView struct {
	Name string `json:"name"`
	RelationshipEntry
}

// Snapshot is a flat, fully-resolved read view of the world state at a
// point in time. Map-backed sections are sorted by name so consecutive
// snapshots of an unchanged state are structurally equal.
type Snapshot struct {
	SessionID         string             `json:"session_id"`
	Location          string             `json:"location"`
	Region            string             `json:"region,omitempty"`
	Date              string             `json:"date"`
	TimeOfDay         string             `json:"time_of_day"`
	Inventory         []InventoryItem    `json:"inventory"`
	InventoryCount    int                `json:"inventory_count"`
	Journal           []JournalView      `json:"journal"`
	Relationships     []RelationshipView `json:"relationships"`
	RelationshipCount int                `json:"relationship_count"`
	VisitedLocations  []string           `json:"visited_locations"`
	VisitedCount      int                `json:"visited_count"`
}

// Snapshot builds the render projection. It never mutates the state;
// all slices are copies.
func (s *State) Snapshot() Snapshot {
	reading := DeriveClock(s.Clock.TotalMinutes)

	inventory := make([]InventoryItem, len(s.Inventory))
	copy(inventory, s.Inventory)

	journal := make([]JournalView, 0, len(s.Journal))
	for name, entry := range s.Journal {
		journal = append(journal, JournalView{Name: name, JournalEntry: entry})
	}
	sort.Slice(journal, func(i, j int) bool { return journal[i].Name < journal[j].Name })

	relationships := make([]RelationshipView, 0, len(s.Relationships))
	for name, entry := range s.Relationships {
		relationships = append(relationships, RelationshipView{Name: name, RelationshipEntry: entry})
	}
	sort.Slice(relationships, func(i, j int) bool { return relationships[i].Name < relationships[j].Name })

	visited := make([]string, len(s.VisitedLocations))
	copy(visited, s.VisitedLocations)

	return Snapshot{
		SessionID:         s.ID.String(),
		Location:          s.Location,
		Region:            s.Region,
		Date:              reading.Date,
		TimeOfDay:         reading.TimeOfDay,
		Inventory:         inventory,
		InventoryCount:    len(inventory),
		Journal:           journal,
		Relationships:     relationships,
		RelationshipCount: len(relationships),
		VisitedLocations:  visited,
		VisitedCount:      len(visited),
	}
}
