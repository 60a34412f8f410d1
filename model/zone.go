package model

import (
	"fmt"
	"sort"
	"strings"
)

// ZoneIndex maps a zone to the ordered list of card ids it contains.
// Membership order is insertion order and is kept for display purposes.
type ZoneIndex struct {
	zones map[string][]string
}

// String implements the stringer interface.
func (z *ZoneIndex) String() string {
	str := strings.Builder{}
	for _, zone := range z.Names() {
		str.WriteString(fmt.Sprintf("- %s: [%s]\n", zone, strings.Join(z.zones[zone], ", ")))
	}

	return str.String()
}

// Add appends cardId to zone if not already present.
func (z *ZoneIndex) Add(zone, cardId string) {
	ids := z.zones[zone]
	for _, id := range ids {
		if id == cardId {
			return
		}
	}

	z.zones[zone] = append(ids, cardId)
}

// Remove removes cardId from zone keeping the relative order of the rest (no-op if absent).
func (z *ZoneIndex) Remove(zone, cardId string) {
	ids, found := z.zones[zone]
	if !found {
		return
	}

	for i, id := range ids {
		if id == cardId {
			z.zones[zone] = append(ids[:i:i], ids[i+1:]...)
			return
		}
	}
}

// MoveMembership removes cardId from fromZone and appends it to toZone (idempotent insert).
func (z *ZoneIndex) MoveMembership(cardId, fromZone, toZone string) {
	z.Remove(fromZone, cardId)
	z.Add(toZone, cardId)
}

// Members returns a copy of the zone card ids.
func (z *ZoneIndex) Members(zone string) []string {
	ids := z.zones[zone]
	out := make([]string, len(ids))
	copy(out, ids)

	return out
}

// Names returns known zone names sorted.
func (z *ZoneIndex) Names() []string {
	names := make([]string, 0, len(z.zones))
	for name := range z.zones {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Export returns a deep copy of the index.
func (z *ZoneIndex) Export() map[string][]string {
	out := make(map[string][]string, len(z.zones))
	for name := range z.zones {
		out[name] = z.Members(name)
	}

	return out
}

// Check verifies the index against the card table: every card is listed exactly once,
// in the zone its Zone field names, and no zone lists an unknown card.
func (z *ZoneIndex) Check(cards map[string]*Card) error {
	seen := make(map[string]string, len(cards))
	for zone, ids := range z.zones {
		for _, id := range ids {
			if prevZone, found := seen[id]; found {
				return fmt.Errorf("card %s: listed in zones %s and %s", id, prevZone, zone)
			}
			seen[id] = zone

			card, found := cards[id]
			if !found {
				return fmt.Errorf("zone %s: unknown card %s", zone, id)
			}
			if card.Zone != zone {
				return fmt.Errorf("card %s: listed in zone %s, but card zone is %s", id, zone, card.Zone)
			}
		}
	}

	if len(seen) != len(cards) {
		for id := range cards {
			if _, found := seen[id]; !found {
				return fmt.Errorf("card %s: not listed in any zone", id)
			}
		}
	}

	return nil
}

// NewZoneIndex creates a new ZoneIndex object with DefaultZones.
func NewZoneIndex() *ZoneIndex {
	z := &ZoneIndex{
		zones: make(map[string][]string, len(DefaultZones)),
	}
	for _, zone := range DefaultZones {
		z.zones[zone] = make([]string, 0)
	}

	return z
}
