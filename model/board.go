package model

import (
	"sort"
)

// Board keeps the card table alongside the zone index.
// It implements the per-kind field update and zone reindex logic shared by the server and the client mirror.
// Board is not thread-safe.
type Board struct {
	cards map[string]*Card
	zones *ZoneIndex
}

// Apply mutates the card targeted by the action and returns the changed fields.
// Returns false if the card is unknown (nothing is mutated).
func (b *Board) Apply(a Action) (CardDelta, bool) {
	card, found := b.cards[a.Header().CardId]
	if !found {
		return CardDelta{}, false
	}

	prevZone := card.Zone
	delta := a.apply(card)
	if card.Zone != prevZone {
		b.zones.MoveMembership(card.Id, prevZone, card.Zone)
	}

	return delta, true
}

// MergeDelta merges the delta fields into an existing card or inserts a new card if unknown.
func (b *Board) MergeDelta(d CardDelta) {
	if d.Id == "" {
		return
	}

	card, found := b.cards[d.Id]
	if !found {
		newCard := d.ToCard()
		b.cards[d.Id] = &newCard
		b.zones.Add(newCard.Zone, newCard.Id)
		return
	}

	prevZone := card.Zone
	card.Merge(d)
	if card.Zone != prevZone {
		b.zones.MoveMembership(card.Id, prevZone, card.Zone)
	}
}

// Load replaces the board contents.
func (b *Board) Load(cards []Card) {
	b.cards = make(map[string]*Card, len(cards))
	b.zones = NewZoneIndex()

	for i := range cards {
		card := cards[i]
		if prev, found := b.cards[card.Id]; found {
			b.zones.Remove(prev.Zone, prev.Id)
		}
		b.cards[card.Id] = &card
		b.zones.Add(card.Zone, card.Id)
	}
}

// Card returns a card copy.
func (b *Board) Card(id string) (Card, bool) {
	card, found := b.cards[id]
	if !found {
		return Card{}, false
	}

	return *card, true
}

// Cards returns card copies sorted by id.
func (b *Board) Cards() []Card {
	cards := make([]Card, 0, len(b.cards))
	for _, card := range b.cards {
		cards = append(cards, *card)
	}
	sort.Slice(cards, func(i, j int) bool {
		return cards[i].Id < cards[j].Id
	})

	return cards
}

// Len returns the number of cards.
func (b *Board) Len() int {
	return len(b.cards)
}

// Zones returns the zone index.
func (b *Board) Zones() *ZoneIndex {
	return b.zones
}

// Check verifies the zone index is consistent with the card table.
func (b *Board) Check() error {
	return b.zones.Check(b.cards)
}

// NewBoard creates a new Board object with the initial cards.
func NewBoard(cards ...Card) *Board {
	b := &Board{}
	b.Load(cards)

	return b
}
