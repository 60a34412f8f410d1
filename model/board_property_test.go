package model

import (
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// actionFromSeed deterministically builds an action on one of newTestCards (or an unknown card).
func actionFromSeed(seed int, clientSeq Seq) Action {
	cardIds := []string{"card-0", "card-1", "card-2", "card-x"}
	h := ActionHeader{
		CardId:    cardIds[(seed/5)%len(cardIds)],
		ClientSeq: clientSeq,
		Timestamp: time.Unix(int64(seed), 0).UTC(),
	}
	v := float64(seed % 360)

	switch seed % 5 {
	case 0:
		return MoveAction{ActionHeader: h, X: v, Y: -v}
	case 1:
		return RotateAction{ActionHeader: h, Rotation: v}
	case 2:
		return TapAction{ActionHeader: h, Tapped: seed%2 == 0}
	case 3:
		return FlipAction{ActionHeader: h, Flipped: seed%3 == 0}
	default:
		return ZoneAction{ActionHeader: h, Zone: DefaultZones[(seed/7)%len(DefaultZones)]}
	}
}

// Test checks that predictive application and patch application are field-equivalent,
// and that delta merge is idempotent.
func Test_Board_PredictiveEquivalence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("optimistic apply == patch merge", prop.ForAll(
		func(seeds []int) bool {
			authority := NewBoard(newTestCards()...)
			predictive := NewBoard(newTestCards()...)
			follower := NewBoard(newTestCards()...)

			for i, seed := range seeds {
				a := actionFromSeed(seed, Seq(i+1))
				predictive.Apply(a)

				delta, ok := authority.Apply(a)
				if !ok {
					continue
				}
				follower.MergeDelta(delta)
				follower.MergeDelta(delta)
			}

			if authority.Check() != nil || predictive.Check() != nil || follower.Check() != nil {
				return false
			}

			return reflect.DeepEqual(authority.Cards(), follower.Cards()) &&
				reflect.DeepEqual(authority.Cards(), predictive.Cards()) &&
				reflect.DeepEqual(authority.Zones().Export(), follower.Zones().Export())
		},
		gen.SliceOf(gen.IntRange(0, 1<<16)),
	))

	properties.TestingRun(t)
}

// Test checks the zone index invariant after any sequence of ZONE actions.
func Test_Board_ZoneInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("every card listed in exactly its zone", prop.ForAll(
		func(zoneIdxs []int) bool {
			b := NewBoard(newTestCards()...)
			cardIds := []string{"card-0", "card-1", "card-2"}

			for i, zoneIdx := range zoneIdxs {
				b.Apply(ZoneAction{
					ActionHeader: ActionHeader{CardId: cardIds[i%len(cardIds)], ClientSeq: Seq(i + 1)},
					Zone:         DefaultZones[zoneIdx],
				})
			}

			return b.Check() == nil
		},
		gen.SliceOf(gen.IntRange(0, len(DefaultZones)-1)),
	))

	properties.TestingRun(t)
}
