package directive

// Kind identifies which world mutation an Update carries.
type Kind string

const (
	KindItemGrant      Kind = "item_grant"
	KindLocationChange Kind = "location_change"
	KindNPCUpdate      Kind = "npc_update"
)

// NPCUpdate is the npc descriptor carried inside a [DATA: ...] tag.
// Every field except Name is optional.
type NPCUpdate struct {
	Name     string `json:"name"`
	Relation string `json:"relation,omitempty"`
	Notes    string `json:"notes,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Update is a single parsed world mutation. Exactly one of Item,
// Location or NPC is populated, selected by Kind.
type Update struct {
	Kind     Kind       `json:"kind"`
	Item     string     `json:"item,omitempty"`
	Location string     `json:"location,omitempty"`
	NPC      *NPCUpdate `json:"npc,omitempty"`
}

// ChoiceOption is an inline player choice lifted from narrative text,
// in order of appearance.
type ChoiceOption struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}
