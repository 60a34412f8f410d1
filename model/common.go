package model

type (
	// ParticipantId equals the participant connection (session) id.
	ParticipantId string

	// Seq is a sequence number (clientSeq / serverSeq).
	Seq uint64
)

type ActionKind string

const (
	MoveActionKind   ActionKind = "MOVE"
	RotateActionKind ActionKind = "ROTATE"
	TapActionKind    ActionKind = "TAP"
	FlipActionKind   ActionKind = "FLIP"
	ZoneActionKind   ActionKind = "ZONE"
)

// Default zones every board starts with.
const (
	ZoneHand        = "hand"
	ZoneBattlefield = "battlefield"
	ZoneGraveyard   = "graveyard"
	ZoneLibrary     = "library"
	ZoneExile       = "exile"
)

// DefaultZones lists the zones created for an empty board (display order).
var DefaultZones = []string{ZoneHand, ZoneBattlefield, ZoneGraveyard, ZoneLibrary, ZoneExile}

// Valid checks if the kind is known.
func (k ActionKind) Valid() bool {
	switch k {
	case MoveActionKind, RotateActionKind, TapActionKind, FlipActionKind, ZoneActionKind:
		return true
	}

	return false
}
