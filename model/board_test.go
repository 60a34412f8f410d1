package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCards() []Card {
	return []Card{
		{Id: "card-0", Name: "Forest", Type: "land", Zone: ZoneBattlefield},
		{Id: "card-1", Name: "Llanowar Elves", Type: "creature", Zone: ZoneHand},
		{Id: "card-2", Name: "Giant Growth", Type: "instant", Zone: ZoneHand},
	}
}

func header(cardId string, seq Seq) ActionHeader {
	return ActionHeader{CardId: cardId, ClientSeq: seq, Timestamp: time.Unix(0, 0).UTC()}
}

// Test applies every action kind and checks the returned delta only carries the targeted fields.
func Test_Board_ApplyDelta(t *testing.T) {
	b := NewBoard(newTestCards()...)

	// TAP
	{
		delta, ok := b.Apply(TapAction{ActionHeader: header("card-0", 1), Tapped: true})
		require.True(t, ok)
		require.Equal(t, "card-0", delta.Id)
		require.NotNil(t, delta.Tapped)
		require.True(t, *delta.Tapped)
		delta.Tapped = nil
		require.True(t, delta.IsEmpty(), "only tapped expected")

		card, _ := b.Card("card-0")
		require.True(t, card.Tapped)
		require.False(t, card.Flipped)
	}

	// MOVE
	{
		delta, ok := b.Apply(MoveAction{ActionHeader: header("card-1", 2), X: 150, Y: 200})
		require.True(t, ok)
		require.Equal(t, 150.0, *delta.X)
		require.Equal(t, 200.0, *delta.Y)
		delta.X, delta.Y = nil, nil
		require.True(t, delta.IsEmpty())
	}

	// ROTATE / FLIP
	{
		delta, ok := b.Apply(RotateAction{ActionHeader: header("card-1", 3), Rotation: 90})
		require.True(t, ok)
		require.Equal(t, 90.0, *delta.Rotation)

		delta, ok = b.Apply(FlipAction{ActionHeader: header("card-1", 4), Flipped: true})
		require.True(t, ok)
		require.True(t, *delta.Flipped)

		card, _ := b.Card("card-1")
		require.Equal(t, Card{
			Id: "card-1", Name: "Llanowar Elves", Type: "creature",
			X: 150, Y: 200, Rotation: 90, Flipped: true, Zone: ZoneHand,
		}, card)
	}

	// ZONE
	{
		delta, ok := b.Apply(ZoneAction{ActionHeader: header("card-1", 5), Zone: ZoneBattlefield})
		require.True(t, ok)
		require.Equal(t, ZoneBattlefield, *delta.Zone)
		require.Equal(t, []string{"card-0", "card-1"}, b.Zones().Members(ZoneBattlefield))
		require.Equal(t, []string{"card-2"}, b.Zones().Members(ZoneHand))
		require.NoError(t, b.Check())
	}

	// same zone: order untouched
	{
		_, ok := b.Apply(ZoneAction{ActionHeader: header("card-0", 6), Zone: ZoneBattlefield})
		require.True(t, ok)
		require.Equal(t, []string{"card-0", "card-1"}, b.Zones().Members(ZoneBattlefield))
	}

	// unknown card
	{
		_, ok := b.Apply(TapAction{ActionHeader: header("card-9", 7), Tapped: true})
		require.False(t, ok)
		require.Equal(t, 3, b.Len())
	}
}

func Test_Board_MergeDelta(t *testing.T) {
	b := NewBoard(newTestCards()...)

	zone := ZoneGraveyard
	tapped := true
	delta := CardDelta{Id: "card-2", Zone: &zone, Tapped: &tapped}

	b.MergeDelta(delta)
	first := b.Cards()
	b.MergeDelta(delta)
	require.Equal(t, first, b.Cards(), "merge is not idempotent")
	require.Equal(t, []string{"card-2"}, b.Zones().Members(ZoneGraveyard))
	require.Equal(t, []string{"card-1"}, b.Zones().Members(ZoneHand))

	// unknown card gets inserted
	b.MergeDelta(FullDelta(Card{Id: "card-3", Name: "Island", Zone: ZoneLibrary}))
	card, found := b.Card("card-3")
	require.True(t, found)
	require.Equal(t, "Island", card.Name)
	require.Equal(t, []string{"card-3"}, b.Zones().Members(ZoneLibrary))
	require.NoError(t, b.Check())

	// empty id is ignored
	b.MergeDelta(CardDelta{})
	require.Equal(t, 4, b.Len())
}

func Test_Board_Load(t *testing.T) {
	b := NewBoard(newTestCards()...)
	require.NoError(t, b.Check())

	b.Load([]Card{
		{Id: "x", Zone: ZoneExile},
		{Id: "x", Zone: ZoneHand},
	})
	require.Equal(t, 1, b.Len())
	require.Empty(t, b.Zones().Members(ZoneExile))
	require.Equal(t, []string{"x"}, b.Zones().Members(ZoneHand))
	require.NoError(t, b.Check())
}
