package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types.
const (
	// client -> server
	ActionMessageType = "action"
	// server -> all
	StatePatchMessageType = "statePatch"
	// server -> originator
	AckMessageType = "ack"
	// server -> joining client
	FullStateMessageType = "fullState"
	// server -> all (presence)
	PlayerJoinedMessageType = "playerJoined"
	PlayerLeftMessageType   = "playerLeft"
	// both directions: echoed by server to all
	PingMessageType = "ping"
)

type (
	// Message is the transport envelope.
	Message struct {
		Op   string          `json:"op"`
		Data json.RawMessage `json:"data,omitempty"`
	}

	// ActionMessage is the wire form of an Action.
	// Payload fields are pointers to tell a missing field from a zero value.
	ActionMessage struct {
		Type      ActionKind `json:"type"`
		CardId    string     `json:"cardId"`
		ClientSeq Seq        `json:"clientSeq"`
		Timestamp time.Time  `json:"timestamp"`
		X         *float64   `json:"x,omitempty"`
		Y         *float64   `json:"y,omitempty"`
		Rotation  *float64   `json:"rotation,omitempty"`
		Tapped    *bool      `json:"tapped,omitempty"`
		Flipped   *bool      `json:"flipped,omitempty"`
		Zone      *string    `json:"zone,omitempty"`
	}

	// StatePatch is the authoritative delta produced by an accepted action.
	StatePatch struct {
		// Global accepted actions counter
		ServerSeq Seq           `json:"serverSeq"`
		// Acknowledged action (0 if not a direct response)
		ClientSeq Seq           `json:"clientSeq,omitempty"`
		// Participant that submitted the action, clientSeq is only unique per participant
		Origin    ParticipantId `json:"origin,omitempty"`
		Timestamp time.Time     `json:"timestamp"`
		Changes   []CardDelta   `json:"changes"`
	}

	// Acknowledgment confirms or rejects a specific action, sent to the originator only.
	Acknowledgment struct {
		ClientSeq Seq    `json:"clientSeq"`
		ServerSeq Seq    `json:"serverSeq"`
		Success   bool   `json:"success"`
		Error     string `json:"error,omitempty"`
	}

	// FullState is the board snapshot sent on join / recovery.
	FullState struct {
		// Receiver session id (used to reconnect)
		SessionId ParticipantId `json:"sessionId,omitempty"`
		ServerSeq Seq           `json:"serverSeq"`
		Cards     []Card        `json:"cards"`
		Players   []Participant `json:"players,omitempty"`
	}

	PlayerLeft struct {
		Id ParticipantId `json:"id"`
	}

	Ping struct {
		From ParticipantId `json:"from,omitempty"`
	}
)

// NewMessage marshals the payload into a Message.
func NewMessage(op string, payload interface{}) (Message, error) {
	msg := Message{Op: op}
	if payload == nil {
		return msg, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("%s: marshal: %w", op, err)
	}
	msg.Data = data

	return msg, nil
}

// Decode unmarshals the Message data into the payload.
func (m Message) Decode(payload interface{}) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s: empty data", m.Op)
	}
	if err := json.Unmarshal(m.Data, payload); err != nil {
		return fmt.Errorf("%s: unmarshal: %w", m.Op, err)
	}

	return nil
}

// EncodeAction builds the wire form of an Action.
func EncodeAction(a Action) ActionMessage {
	h := a.Header()
	msg := ActionMessage{
		Type:      a.Kind(),
		CardId:    h.CardId,
		ClientSeq: h.ClientSeq,
		Timestamp: h.Timestamp,
	}

	switch act := a.(type) {
	case MoveAction:
		msg.X, msg.Y = &act.X, &act.Y
	case RotateAction:
		msg.Rotation = &act.Rotation
	case TapAction:
		msg.Tapped = &act.Tapped
	case FlipAction:
		msg.Flipped = &act.Flipped
	case ZoneAction:
		msg.Zone = &act.Zone
	}

	return msg
}

// DecodeAction builds an Action from its wire form.
// Returns ErrMalformedAction if the kind is unknown or a field required by the kind is missing.
func DecodeAction(msg ActionMessage) (Action, error) {
	h := ActionHeader{
		CardId:    msg.CardId,
		ClientSeq: msg.ClientSeq,
		Timestamp: msg.Timestamp,
	}

	missing := func(field string) error {
		return fmt.Errorf("%w: %s: %s: missing", ErrMalformedAction, msg.Type, field)
	}

	var a Action
	switch msg.Type {
	case MoveActionKind:
		if msg.X == nil {
			return nil, missing("x")
		}
		if msg.Y == nil {
			return nil, missing("y")
		}
		a = MoveAction{ActionHeader: h, X: *msg.X, Y: *msg.Y}
	case RotateActionKind:
		if msg.Rotation == nil {
			return nil, missing("rotation")
		}
		a = RotateAction{ActionHeader: h, Rotation: *msg.Rotation}
	case TapActionKind:
		if msg.Tapped == nil {
			return nil, missing("tapped")
		}
		a = TapAction{ActionHeader: h, Tapped: *msg.Tapped}
	case FlipActionKind:
		if msg.Flipped == nil {
			return nil, missing("flipped")
		}
		a = FlipAction{ActionHeader: h, Flipped: *msg.Flipped}
	case ZoneActionKind:
		if msg.Zone == nil {
			return nil, missing("zone")
		}
		a = ZoneAction{ActionHeader: h, Zone: *msg.Zone}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedAction, msg.Type)
	}

	if err := ValidateAction(a); err != nil {
		return nil, err
	}

	return a, nil
}
