package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedAction is returned when an action payload misses a field required by its kind.
var ErrMalformedAction = errors.New("malformed action")

type (
	// Action is an operation a participant requests on a Card.
	// Implementations are closed to this package: MoveAction, RotateAction, TapAction, FlipAction and ZoneAction.
	Action interface {
		Kind() ActionKind
		Header() ActionHeader
		// WithHeader returns a copy of the action with the header replaced
		WithHeader(h ActionHeader) Action
		// apply mutates the card fields the kind targets and returns the delta
		apply(c *Card) CardDelta
	}

	// ActionHeader is common to all action kinds.
	ActionHeader struct {
		CardId    string
		ClientSeq Seq
		Timestamp time.Time
	}

	MoveAction struct {
		ActionHeader
		X, Y float64
	}

	RotateAction struct {
		ActionHeader
		Rotation float64
	}

	TapAction struct {
		ActionHeader
		Tapped bool
	}

	FlipAction struct {
		ActionHeader
		Flipped bool
	}

	ZoneAction struct {
		ActionHeader
		Zone string
	}
)

func (a MoveAction) Kind() ActionKind   { return MoveActionKind }
func (a RotateAction) Kind() ActionKind { return RotateActionKind }
func (a TapAction) Kind() ActionKind    { return TapActionKind }
func (a FlipAction) Kind() ActionKind   { return FlipActionKind }
func (a ZoneAction) Kind() ActionKind   { return ZoneActionKind }

func (a MoveAction) Header() ActionHeader   { return a.ActionHeader }
func (a RotateAction) Header() ActionHeader { return a.ActionHeader }
func (a TapAction) Header() ActionHeader    { return a.ActionHeader }
func (a FlipAction) Header() ActionHeader   { return a.ActionHeader }
func (a ZoneAction) Header() ActionHeader   { return a.ActionHeader }

func (a MoveAction) WithHeader(h ActionHeader) Action   { a.ActionHeader = h; return a }
func (a RotateAction) WithHeader(h ActionHeader) Action { a.ActionHeader = h; return a }
func (a TapAction) WithHeader(h ActionHeader) Action    { a.ActionHeader = h; return a }
func (a FlipAction) WithHeader(h ActionHeader) Action   { a.ActionHeader = h; return a }
func (a ZoneAction) WithHeader(h ActionHeader) Action   { a.ActionHeader = h; return a }

func (a MoveAction) apply(c *Card) CardDelta {
	c.X, c.Y = a.X, a.Y
	return CardDelta{Id: c.Id, X: &a.X, Y: &a.Y}
}

func (a RotateAction) apply(c *Card) CardDelta {
	c.Rotation = a.Rotation
	return CardDelta{Id: c.Id, Rotation: &a.Rotation}
}

func (a TapAction) apply(c *Card) CardDelta {
	c.Tapped = a.Tapped
	return CardDelta{Id: c.Id, Tapped: &a.Tapped}
}

func (a FlipAction) apply(c *Card) CardDelta {
	c.Flipped = a.Flipped
	return CardDelta{Id: c.Id, Flipped: &a.Flipped}
}

// apply only changes the Card field, zone membership is moved by the Board.
func (a ZoneAction) apply(c *Card) CardDelta {
	c.Zone = a.Zone
	return CardDelta{Id: c.Id, Zone: &a.Zone}
}

// ValidateAction checks the action is structurally complete.
func ValidateAction(a Action) error {
	if a == nil {
		return fmt.Errorf("%w: nil", ErrMalformedAction)
	}

	h := a.Header()
	if h.CardId == "" {
		return fmt.Errorf("%w: %s: empty", ErrMalformedAction, "cardId")
	}
	if h.ClientSeq == 0 {
		return fmt.Errorf("%w: %s: must be GT 0", ErrMalformedAction, "clientSeq")
	}
	if za, ok := a.(ZoneAction); ok && za.Zone == "" {
		return fmt.Errorf("%w: %s: empty", ErrMalformedAction, "zone")
	}

	return nil
}

// Sequencer assigns per-submitter action sequence numbers: previous + 1, starting at 1.
type Sequencer struct {
	last Seq
	now  func() time.Time
}

// Next returns the header for the next action targeting cardId.
func (s *Sequencer) Next(cardId string) ActionHeader {
	s.last++

	now := time.Now
	if s.now != nil {
		now = s.now
	}

	return ActionHeader{
		CardId:    cardId,
		ClientSeq: s.last,
		Timestamp: now().UTC(),
	}
}

// Last returns the last assigned sequence number (0 if none).
func (s *Sequencer) Last() Seq {
	return s.last
}

// Stamp assigns the next header to the action keeping its target and payload.
func (s *Sequencer) Stamp(a Action) Action {
	return a.WithHeader(s.Next(a.Header().CardId))
}

// NewSequencer creates a new Sequencer object, now is optional (time.Now is used if nil).
func NewSequencer(now func() time.Time) *Sequencer {
	return &Sequencer{now: now}
}
