package client

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/itiky/collaborate-board/model"
)

// Submitter sends actions to the board.
type Submitter interface {
	Submit(draft model.Action) (model.Action, error)
}

// Bot periodically submits random actions on the known cards.
type Bot struct {
	// Config
	name          string
	actionsPeriod time.Duration
	actionsMax    int
	// State
	store     *Store
	submitter Submitter
	rnd       *rand.Rand
	//
	logger *log.Logger
	stopCh chan interface{}
}

// String implements the stringer interface.
func (b *Bot) String() string {
	return fmt.Sprintf("Bot (%s)", b.name)
}

// Start starts the Bot worker.
func (b *Bot) Start() {
	if b.stopCh != nil {
		return
	}

	b.stopCh = make(chan interface{})
	go b.worker()
}

// Stop stops the Bot worker.
func (b *Bot) Stop() {
	if b.stopCh == nil {
		return
	}

	close(b.stopCh)
}

// worker does the actual job.
func (b *Bot) worker() {
	ticker := time.NewTicker(b.actionsPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			if err := b.sendActions(); err != nil {
				b.logger.Printf("%s: sendActions: %v", b.String(), err)
			}
		}
	}
}

// sendActions creates 1..actionsMax random actions on the known cards and submits them.
func (b *Bot) sendActions() error {
	cards := b.store.Snapshot().Cards
	if len(cards) == 0 {
		return nil
	}

	sendN := b.rnd.Intn(b.actionsMax) + 1
	for i := 0; i < sendN; i++ {
		card := cards[b.rnd.Intn(len(cards))]
		if _, err := b.submitter.Submit(b.randomAction(card)); err != nil {
			return err
		}
	}

	b.logger.Printf("%s: %d actions sent, %s", b.String(), sendN, b.store.String())

	return nil
}

// randomAction builds a random draft action targeting the card.
func (b *Bot) randomAction(card model.Card) model.Action {
	h := model.ActionHeader{CardId: card.Id}

	switch b.rnd.Intn(5) {
	case 0:
		return model.MoveAction{ActionHeader: h, X: float64(b.rnd.Intn(1000)), Y: float64(b.rnd.Intn(800))}
	case 1:
		return model.RotateAction{ActionHeader: h, Rotation: float64(b.rnd.Intn(4) * 90)}
	case 2:
		return model.TapAction{ActionHeader: h, Tapped: !card.Tapped}
	case 3:
		return model.FlipAction{ActionHeader: h, Flipped: !card.Flipped}
	default:
		return model.ZoneAction{ActionHeader: h, Zone: model.DefaultZones[b.rnd.Intn(len(model.DefaultZones))]}
	}
}

// NewBot creates a new Bot object.
func NewBot(name string, store *Store, submitter Submitter, actionsPeriod time.Duration, actionsMax int, logger *log.Logger) (*Bot, error) {
	if store == nil {
		return nil, fmt.Errorf("%s: nil", "store")
	}
	if submitter == nil {
		return nil, fmt.Errorf("%s: nil", "submitter")
	}
	if actionsPeriod <= 0 {
		return nil, fmt.Errorf("%s: must be GT 0", "actionsPeriod")
	}
	if actionsMax <= 0 {
		return nil, fmt.Errorf("%s: must be GT 0", "actionsMax")
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Bot{
		name:          name,
		actionsPeriod: actionsPeriod,
		actionsMax:    actionsMax,
		store:         store,
		submitter:     submitter,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:        logger,
	}, nil
}
