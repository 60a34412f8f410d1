package model

import (
	"encoding/json"
	"fmt"
)

type (
	// Card is a shared board object.
	Card struct {
		Id       string  `json:"id" yaml:"id"`
		Name     string  `json:"name" yaml:"name"`
		Type     string  `json:"type" yaml:"type"`
		X        float64 `json:"x" yaml:"x"`
		Y        float64 `json:"y" yaml:"y"`
		Rotation float64 `json:"rotation" yaml:"rotation"` // degrees
		Tapped   bool    `json:"tapped" yaml:"tapped"`
		Flipped  bool    `json:"flipped" yaml:"flipped"`
		Zone     string  `json:"zone" yaml:"zone"`
	}

	// CardDelta is a partial Card: only non-nil fields have changed.
	CardDelta struct {
		Id       string   `json:"id"`
		Name     *string  `json:"name,omitempty"`
		Type     *string  `json:"type,omitempty"`
		X        *float64 `json:"x,omitempty"`
		Y        *float64 `json:"y,omitempty"`
		Rotation *float64 `json:"rotation,omitempty"`
		Tapped   *bool    `json:"tapped,omitempty"`
		Flipped  *bool    `json:"flipped,omitempty"`
		Zone     *string  `json:"zone,omitempty"`
	}

	// Participant is a player connected to the board session.
	Participant struct {
		Id        ParticipantId `json:"id"`
		Name      string        `json:"name"`
		Connected bool          `json:"connected"`
	}
)

// String implements stringer interface.
func (c Card) String() string {
	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("marshal: %v", err)
	}

	return string(raw)
}

// Merge overwrites Card fields with the delta's non-nil ones (last write wins per field).
// Applying the same delta twice yields the same Card.
func (c *Card) Merge(d CardDelta) {
	if d.Name != nil {
		c.Name = *d.Name
	}
	if d.Type != nil {
		c.Type = *d.Type
	}
	if d.X != nil {
		c.X = *d.X
	}
	if d.Y != nil {
		c.Y = *d.Y
	}
	if d.Rotation != nil {
		c.Rotation = *d.Rotation
	}
	if d.Tapped != nil {
		c.Tapped = *d.Tapped
	}
	if d.Flipped != nil {
		c.Flipped = *d.Flipped
	}
	if d.Zone != nil {
		c.Zone = *d.Zone
	}
}

// ToCard builds a new Card from the delta (unset fields get zero values).
func (d CardDelta) ToCard() Card {
	c := Card{Id: d.Id}
	c.Merge(d)

	return c
}

// IsEmpty checks if the delta carries no field changes.
func (d CardDelta) IsEmpty() bool {
	return d.Name == nil && d.Type == nil &&
		d.X == nil && d.Y == nil && d.Rotation == nil &&
		d.Tapped == nil && d.Flipped == nil && d.Zone == nil
}

// FullDelta builds a delta carrying every Card field.
func FullDelta(c Card) CardDelta {
	return CardDelta{
		Id:       c.Id,
		Name:     &c.Name,
		Type:     &c.Type,
		X:        &c.X,
		Y:        &c.Y,
		Rotation: &c.Rotation,
		Tapped:   &c.Tapped,
		Flipped:  &c.Flipped,
		Zone:     &c.Zone,
	}
}
