package storage

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/itiky/collaborate-board/model"
)

func newTestStorage() *Storage {
	return NewStorage(
		model.Card{Id: "card-1", Name: "Forest", Type: "land", Zone: model.ZoneBattlefield},
		model.Card{Id: "card-2", Name: "Grizzly Bears", Type: "creature", Zone: model.ZoneHand},
		model.Card{Id: "card-3", Name: "Counterspell", Type: "instant", Zone: model.ZoneHand},
	)
}

func hdr(cardId string, seq model.Seq) model.ActionHeader {
	return model.ActionHeader{CardId: cardId, ClientSeq: seq, Timestamp: time.Now()}
}

// Test rejects an action on an unknown card and checks nothing changed.
func Test_Storage_Reject(t *testing.T) {
	s := newTestStorage()
	before := s.Snapshot()

	_, err := s.ApplyAction(model.MoveAction{ActionHeader: hdr("card-0", 1), X: 150, Y: 200})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTargetNotFound))
	require.EqualValues(t, 0, s.ServerSeq())
	require.Equal(t, before, s.Snapshot())

	_, err = s.ApplyAction(model.ZoneAction{ActionHeader: hdr("card-1", 2)})
	require.True(t, errors.Is(err, model.ErrMalformedAction))
	require.EqualValues(t, 0, s.ServerSeq())
}

// Test taps a card and checks the patch carries the tapped field only.
func Test_Storage_TapPatch(t *testing.T) {
	s := newTestStorage()

	patch, err := s.ApplyAction(model.TapAction{ActionHeader: hdr("card-1", 7), Tapped: true})
	require.NoError(t, err)
	require.EqualValues(t, 1, patch.ServerSeq)
	require.EqualValues(t, 7, patch.ClientSeq)
	require.False(t, patch.Timestamp.IsZero())
	require.Len(t, patch.Changes, 1)

	tapped := true
	require.Equal(t, model.CardDelta{Id: "card-1", Tapped: &tapped}, patch.Changes[0])

	card, found := s.Card("card-1")
	require.True(t, found)
	require.True(t, card.Tapped)
	require.Equal(t, "Forest", card.Name)
}

// Test checks serverSeq grows by 1 per accepted action only, same-zone moves included.
func Test_Storage_ServerSeq(t *testing.T) {
	s := newTestStorage()

	actions := []model.Action{
		model.ZoneAction{ActionHeader: hdr("card-2", 1), Zone: model.ZoneGraveyard},
		model.ZoneAction{ActionHeader: hdr("card-2", 2), Zone: model.ZoneGraveyard},
		model.TapAction{ActionHeader: hdr("card-9", 3), Tapped: true},
		model.RotateAction{ActionHeader: hdr("card-3", 4), Rotation: 90},
	}
	expSeqs := []model.Seq{1, 2, 0, 3}

	for i, a := range actions {
		patch, err := s.ApplyAction(a)
		if expSeqs[i] == 0 {
			require.Error(t, err, "action[%d]", i)
			continue
		}
		require.NoError(t, err, "action[%d]", i)
		require.Equal(t, expSeqs[i], patch.ServerSeq, "action[%d]", i)
	}

	require.EqualValues(t, 3, s.ServerSeq())
	zones := s.Zones()
	require.Equal(t, []string{"card-2"}, zones[model.ZoneGraveyard])
	require.Equal(t, []string{"card-3"}, zones[model.ZoneHand])
	require.NoError(t, s.Check())
	t.Logf("%s", s)
}

// Test checks the final state equals a sequential replay of the accepted actions in acceptance order.
func Test_Storage_OrderDetermines(t *testing.T) {
	cardIds := []string{"card-1", "card-2", "card-3", "card-4"}
	buildAction := func(seed int, seq model.Seq) model.Action {
		h := hdr(cardIds[seed%len(cardIds)], seq)
		switch seed % 3 {
		case 0:
			return model.MoveAction{ActionHeader: h, X: float64(seed), Y: float64(seed / 2)}
		case 1:
			return model.TapAction{ActionHeader: h, Tapped: seed%2 == 0}
		default:
			return model.ZoneAction{ActionHeader: h, Zone: model.DefaultZones[seed%len(model.DefaultZones)]}
		}
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("replay of accepted actions reproduces the state", prop.ForAll(
		func(seeds []int) bool {
			s := newTestStorage()
			accepted := make([]model.Action, 0, len(seeds))
			for i, seed := range seeds {
				a := buildAction(seed, model.Seq(i+1))
				patch, err := s.ApplyAction(a)
				if err != nil {
					continue
				}
				accepted = append(accepted, a)
				if patch.ServerSeq != model.Seq(len(accepted)) {
					return false
				}
			}

			replay := newTestStorage()
			for _, a := range accepted {
				if _, err := replay.ApplyAction(a); err != nil {
					return false
				}
			}

			return reflect.DeepEqual(s.Snapshot(), replay.Snapshot()) &&
				reflect.DeepEqual(s.Zones(), replay.Zones()) &&
				s.Check() == nil
		},
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	properties.TestingRun(t)
}

func Test_Storage_Deck(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "deck.yaml")

	require.Error(t, GenAndSaveDeck(filePath, 0))
	require.NoError(t, GenAndSaveDeck(filePath, 20))

	deck, err := LoadDeck(filePath)
	require.NoError(t, err)
	require.Len(t, deck.Cards, 20)

	s, err := NewStorageFromFile(filePath, 0)
	require.NoError(t, err)
	require.NoError(t, s.Check())

	snapshot := s.Snapshot()
	require.Len(t, snapshot.Cards, 20)
	require.Len(t, s.Zones()[model.ZoneBattlefield], 3)
	require.Len(t, s.Zones()[model.ZoneHand], 7)

	generated, err := NewStorageFromFile("", 5)
	require.NoError(t, err)
	require.Len(t, generated.Snapshot().Cards, 5)

	_, err = NewStorageFromFile(filepath.Join(t.TempDir(), "missing.yaml"), 0)
	require.Error(t, err)
}

func Test_Storage_GeneratedDeckSize(t *testing.T) {
	_, err := NewStorageFromFile("", -1)
	require.Error(t, err)

	empty, err := NewStorageFromFile("", 0)
	require.NoError(t, err)
	require.Empty(t, empty.Snapshot().Cards)
	require.NoError(t, empty.Check())
}
