package server

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/itiky/collaborate-board/model"
)

// DefaultGracePeriod is the time a disconnected participant is kept for reconnection.
const DefaultGracePeriod = 10 * time.Second

type (
	// Participants keeps session players.
	// Disconnected players are purged after the grace period unless they reconnect.
	Participants struct {
		sync.Mutex
		gracePeriod time.Duration
		players     map[model.ParticipantId]*participantEntry
		joined      int
	}

	participantEntry struct {
		model.Participant
		purgeTimer *time.Timer
	}
)

// Join registers a new connected participant.
func (p *Participants) Join(id model.ParticipantId, name string) model.Participant {
	p.Lock()
	defer p.Unlock()

	p.joined++
	if name == "" {
		name = fmt.Sprintf("Player %d", p.joined)
	}

	if prev, found := p.players[id]; found && prev.purgeTimer != nil {
		prev.purgeTimer.Stop()
	}

	entry := &participantEntry{
		Participant: model.Participant{Id: id, Name: name, Connected: true},
	}
	p.players[id] = entry

	return entry.Participant
}

// Reconnect marks a known participant connected again cancelling its purge.
// Returns false if the participant is unknown (never joined or already purged).
func (p *Participants) Reconnect(id model.ParticipantId) (model.Participant, bool) {
	p.Lock()
	defer p.Unlock()

	entry, found := p.players[id]
	if !found {
		return model.Participant{}, false
	}

	if entry.purgeTimer != nil {
		entry.purgeTimer.Stop()
		entry.purgeTimer = nil
	}
	entry.Connected = true

	return entry.Participant, true
}

// Leave clears the participant connectivity flag and schedules its purge.
func (p *Participants) Leave(id model.ParticipantId) bool {
	p.Lock()
	defer p.Unlock()

	entry, found := p.players[id]
	if !found {
		return false
	}

	entry.Connected = false
	if entry.purgeTimer != nil {
		entry.purgeTimer.Stop()
	}
	entry.purgeTimer = time.AfterFunc(p.gracePeriod, func() {
		p.purge(id, entry)
	})

	return true
}

// purge removes the entry if it is still the registered one and still disconnected.
func (p *Participants) purge(id model.ParticipantId, entry *participantEntry) {
	p.Lock()
	defer p.Unlock()

	if cur, found := p.players[id]; found && cur == entry && !cur.Connected {
		delete(p.players, id)
	}
}

// Get returns the participant.
func (p *Participants) Get(id model.ParticipantId) (model.Participant, bool) {
	p.Lock()
	defer p.Unlock()

	entry, found := p.players[id]
	if !found {
		return model.Participant{}, false
	}

	return entry.Participant, true
}

// List returns participants sorted by id.
func (p *Participants) List() []model.Participant {
	p.Lock()
	defer p.Unlock()

	list := make([]model.Participant, 0, len(p.players))
	for _, entry := range p.players {
		list = append(list, entry.Participant)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Id < list[j].Id
	})

	return list
}

// Stop cancels all the scheduled purges.
func (p *Participants) Stop() {
	p.Lock()
	defer p.Unlock()

	for _, entry := range p.players {
		if entry.purgeTimer != nil {
			entry.purgeTimer.Stop()
		}
	}
}

// NewParticipants creates a new Participants object.
func NewParticipants(gracePeriod time.Duration) (*Participants, error) {
	if gracePeriod <= 0 {
		return nil, fmt.Errorf("%s: must be GT 0", "gracePeriod")
	}

	return &Participants{
		gracePeriod: gracePeriod,
		players:     make(map[model.ParticipantId]*participantEntry),
	}, nil
}
