package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/itiky/collaborate-board/model"
)

// ErrTargetNotFound is returned when an action references an unknown card.
var ErrTargetNotFound = errors.New("object not found")

type (
	// Storage is the authoritative board state of a session.
	// It owns the card table, the zone index and the global serverSeq counter.
	Storage struct {
		sync.RWMutex
		board     *model.Board
		serverSeq model.Seq
		now       func() time.Time
	}
)

// String implements stringer interface.
func (s *Storage) String() string {
	s.RLock()
	defer s.RUnlock()

	return fmt.Sprintf("Storage (v%d, %d cards):\n%s", s.serverSeq, s.board.Len(), s.board.Zones())
}

// ApplyAction validates the action and mutates the targeted card fields.
// On success serverSeq is incremented by 1 and the StatePatch with changed fields only is returned.
// On failure nothing is mutated and serverSeq stays the same.
func (s *Storage) ApplyAction(a model.Action) (model.StatePatch, error) {
	if err := model.ValidateAction(a); err != nil {
		return model.StatePatch{}, err
	}

	s.Lock()
	defer s.Unlock()

	delta, found := s.board.Apply(a)
	if !found {
		return model.StatePatch{}, fmt.Errorf("%w: %s", ErrTargetNotFound, a.Header().CardId)
	}
	s.serverSeq++

	return model.StatePatch{
		ServerSeq: s.serverSeq,
		ClientSeq: a.Header().ClientSeq,
		Timestamp: s.now().UTC(),
		Changes:   []model.CardDelta{delta},
	}, nil
}

// Snapshot builds a model.FullState (cards sorted by id).
func (s *Storage) Snapshot() model.FullState {
	s.RLock()
	defer s.RUnlock()

	return model.FullState{
		ServerSeq: s.serverSeq,
		Cards:     s.board.Cards(),
	}
}

// ServerSeq returns the number of accepted actions.
func (s *Storage) ServerSeq() model.Seq {
	s.RLock()
	defer s.RUnlock()

	return s.serverSeq
}

// Card returns a card copy.
func (s *Storage) Card(id string) (model.Card, bool) {
	s.RLock()
	defer s.RUnlock()

	return s.board.Card(id)
}

// Zones returns a copy of the zone index.
func (s *Storage) Zones() map[string][]string {
	s.RLock()
	defer s.RUnlock()

	return s.board.Zones().Export()
}

// Check verifies the zone index invariant.
func (s *Storage) Check() error {
	s.RLock()
	defer s.RUnlock()

	return s.board.Check()
}

// NewStorage creates a new Storage object with the initial cards.
func NewStorage(cards ...model.Card) *Storage {
	return &Storage{
		board: model.NewBoard(cards...),
		now:   time.Now,
	}
}
