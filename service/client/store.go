package client

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/itiky/collaborate-board/model"
)

type EventType string

const (
	SubmittedEventType      EventType = "submitted"
	PatchedEventType        EventType = "patched"
	AcknowledgedEventType   EventType = "acknowledged"
	FullStateEventType      EventType = "fullState"
	PlayersEventType        EventType = "players"
	ResetEventType          EventType = "reset"
	PendingDroppedEventType EventType = "pendingDropped"
)

type (
	// Store is the local predictive mirror of the board.
	// Local submissions and inbound server messages are serialized: each one is applied to completion
	// before the next, then the listeners are notified synchronously.
	Store struct {
		mu sync.Mutex
		// Mirror
		board   *model.Board
		players map[model.ParticipantId]model.Participant
		// Protocol state
		selfId    model.ParticipantId
		sequencer *model.Sequencer
		serverSeq model.Seq
		pending   map[model.Seq]model.Action // not yet confirmed actions by clientSeq
		//
		listeners      map[int]Listener
		nextListenerId int
		now            func() time.Time
	}

	// Listener is notified after each Store mutation.
	Listener func(event Event)

	// Event describes a Store mutation.
	Event struct {
		Type      EventType
		ClientSeq model.Seq // submitted / acknowledged / patched (own) action
		ServerSeq model.Seq
		// Set for AcknowledgedEventType
		Ack *model.Acknowledgment
	}

	// Snapshot is a Store state copy.
	Snapshot struct {
		SelfId    model.ParticipantId
		ServerSeq model.Seq
		ClientSeq model.Seq
		Cards     []model.Card
		Zones     map[string][]string
		Players   []model.Participant
		Pending   []model.Seq
	}
)

// String implements the stringer interface.
func (s *Store) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fmt.Sprintf("Store (%s, v%d, %d cards, %d pending)", s.selfId, s.serverSeq, s.board.Len(), len(s.pending))
}

// Submit assigns the next clientSeq to the draft action, applies it to the mirror optimistically
// and records it as pending. The returned action carries the assigned clientSeq.
// Unknown target card: the mirror is untouched, but the action is still pending (the server decides).
func (s *Store) Submit(draft model.Action) (model.Action, error) {
	if draft == nil {
		return nil, fmt.Errorf("%w: nil", model.ErrMalformedAction)
	}

	s.mu.Lock()
	// Invalid drafts must not consume a clientSeq
	candidate := draft.WithHeader(model.ActionHeader{CardId: draft.Header().CardId, ClientSeq: s.sequencer.Last() + 1})
	if err := model.ValidateAction(candidate); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	action := s.sequencer.Stamp(draft)

	s.board.Apply(action)
	s.pending[action.Header().ClientSeq] = action
	event := Event{Type: SubmittedEventType, ClientSeq: action.Header().ClientSeq, ServerSeq: s.serverSeq}
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, event)

	return action, nil
}

// OnPatch merges the authoritative deltas into the mirror.
// The patch confirms our own pending action if it carries its clientSeq.
func (s *Store) OnPatch(patch model.StatePatch) {
	s.mu.Lock()
	for _, delta := range patch.Changes {
		s.board.MergeDelta(delta)
	}
	s.serverSeq = patch.ServerSeq

	event := Event{Type: PatchedEventType, ServerSeq: patch.ServerSeq}
	if patch.ClientSeq != 0 && s.isOwnLocked(patch.Origin) {
		delete(s.pending, patch.ClientSeq)
		event.ClientSeq = patch.ClientSeq
	}
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, event)
}

// OnAcknowledgment removes the action from the pending set (success or failure).
// A failed action is not rolled back: its optimistic effect stays in the mirror
// until a listener reacts to the event or a later patch / full state overrides it.
func (s *Store) OnAcknowledgment(ack model.Acknowledgment) {
	s.mu.Lock()
	delete(s.pending, ack.ClientSeq)
	if ack.ServerSeq > s.serverSeq {
		s.serverSeq = ack.ServerSeq
	}

	event := Event{Type: AcknowledgedEventType, ClientSeq: ack.ClientSeq, ServerSeq: ack.ServerSeq, Ack: &ack}
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, event)
}

// OnFullState replaces the mirror cards, zones and players.
// Pending actions are kept: their acknowledgments may still arrive.
func (s *Store) OnFullState(state model.FullState) {
	s.mu.Lock()
	s.board.Load(state.Cards)
	s.serverSeq = state.ServerSeq
	if state.SessionId != "" {
		s.selfId = state.SessionId
	}
	s.players = make(map[model.ParticipantId]model.Participant, len(state.Players))
	for _, p := range state.Players {
		s.players[p.Id] = p
	}

	event := Event{Type: FullStateEventType, ServerSeq: s.serverSeq}
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, event)
}

// Seed merges cards into the mirror keeping the existing ones (local demo data).
func (s *Store) Seed(cards ...model.Card) {
	s.mu.Lock()
	for _, card := range cards {
		s.board.MergeDelta(model.FullDelta(card))
	}
	event := Event{Type: FullStateEventType, ServerSeq: s.serverSeq}
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, event)
}

// OnPlayerJoined adds or updates the player.
func (s *Store) OnPlayerJoined(p model.Participant) {
	s.mu.Lock()
	s.players[p.Id] = p
	event := Event{Type: PlayersEventType, ServerSeq: s.serverSeq}
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, event)
}

// OnPlayerLeft removes the player.
func (s *Store) OnPlayerLeft(id model.ParticipantId) {
	s.mu.Lock()
	delete(s.players, id)
	event := Event{Type: PlayersEventType, ServerSeq: s.serverSeq}
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, event)
}

// DropPending forgets all pending actions keeping the mirror and the clientSeq counter.
// Used when the acknowledgments can no longer arrive (the connection they were sent over is lost).
func (s *Store) DropPending() []model.Seq {
	s.mu.Lock()
	dropped := s.pendingLocked()
	s.pending = make(map[model.Seq]model.Action)
	event := Event{Type: PendingDroppedEventType, ServerSeq: s.serverSeq}
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, event)

	return dropped
}

// Reset drops the whole local state (the clientSeq counter restarts at 1).
func (s *Store) Reset() {
	s.mu.Lock()
	s.resetLocked()
	event := Event{Type: ResetEventType}
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, event)
}

// Subscribe registers the listener, the returned func cancels the subscription.
func (s *Store) Subscribe(listener Listener) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListenerId
	s.nextListenerId++
	s.listeners[id] = listener

	once := sync.Once{}
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
		})
	}
}

// Card returns a mirror card copy.
func (s *Store) Card(id string) (model.Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.board.Card(id)
}

// Pending returns not yet confirmed clientSeqs sorted.
func (s *Store) Pending() []model.Seq {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pendingLocked()
}

// PendingAction returns the pending action.
func (s *Store) PendingAction(clientSeq model.Seq) (model.Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, found := s.pending[clientSeq]
	return a, found
}

// ServerSeq returns the last known serverSeq.
func (s *Store) ServerSeq() model.Seq {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.serverSeq
}

// SelfId returns the own session id (empty until the full state is received).
func (s *Store) SelfId() model.ParticipantId {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selfId
}

// Snapshot returns a copy of the Store state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	players := make([]model.Participant, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].Id < players[j].Id
	})

	return Snapshot{
		SelfId:    s.selfId,
		ServerSeq: s.serverSeq,
		ClientSeq: s.sequencer.Last(),
		Cards:     s.board.Cards(),
		Zones:     s.board.Zones().Export(),
		Players:   players,
		Pending:   s.pendingLocked(),
	}
}

// Check verifies the mirror zone index invariant.
func (s *Store) Check() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.board.Check()
}

// isOwnLocked checks if the patch origin is us (patches without origin are treated as own).
func (s *Store) isOwnLocked(origin model.ParticipantId) bool {
	return origin == "" || s.selfId == "" || origin == s.selfId
}

func (s *Store) pendingLocked() []model.Seq {
	seqs := make([]model.Seq, 0, len(s.pending))
	for seq := range s.pending {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool {
		return seqs[i] < seqs[j]
	})

	return seqs
}

// listenersLocked returns listeners in subscription order.
func (s *Store) listenersLocked() []Listener {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}

	return listeners
}

func (s *Store) resetLocked() {
	s.board = model.NewBoard()
	s.players = make(map[model.ParticipantId]model.Participant)
	s.selfId = ""
	s.sequencer = model.NewSequencer(s.now)
	s.serverSeq = 0
	s.pending = make(map[model.Seq]model.Action)
}

func notify(listeners []Listener, event Event) {
	for _, l := range listeners {
		l(event)
	}
}

// NewStore creates a new empty Store object, now is optional (action timestamps source).
func NewStore(now func() time.Time) *Store {
	s := &Store{
		listeners: make(map[int]Listener),
		now:       now,
	}
	s.resetLocked()

	return s
}
