package storage

import (
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/itiky/collaborate-board/model"
)

type (
	// Deck is the seed file layout.
	Deck struct {
		Name  string       `yaml:"name"`
		Cards []model.Card `yaml:"cards"`
	}

	deckTemplate struct {
		Name string
		Type string
	}
)

var deckTemplates = []deckTemplate{
	{"Forest", "land"},
	{"Island", "land"},
	{"Mountain", "land"},
	{"Llanowar Elves", "creature"},
	{"Grizzly Bears", "creature"},
	{"Serra Angel", "creature"},
	{"Giant Growth", "instant"},
	{"Counterspell", "instant"},
	{"Lightning Bolt", "instant"},
	{"Wrath of God", "sorcery"},
	{"Sol Ring", "artifact"},
}

// GenAndSaveDeck generates random cards and saves them to the YAML file.
func GenAndSaveDeck(filePath string, deckSize int) error {
	if deckSize <= 0 {
		return fmt.Errorf("%s: must be GT 0", "deckSize")
	}

	log.Printf("Creating cards...")
	deck := Deck{
		Name:  "generated",
		Cards: newDeckMockCards(deckSize),
	}

	log.Printf("YAML marshal...")
	data, err := yaml.Marshal(deck)
	if err != nil {
		return fmt.Errorf("YAML marshal: %w", err)
	}

	log.Printf("Saving file...")
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("write to file (%s): %w", filePath, err)
	}

	log.Printf("Done")

	return nil
}

// LoadDeck reads the YAML deck file.
func LoadDeck(filePath string) (Deck, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Deck{}, fmt.Errorf("reading file (%s): %w", filePath, err)
	}

	deck := Deck{}
	if err := yaml.Unmarshal(data, &deck); err != nil {
		return Deck{}, fmt.Errorf("YAML unmarshal: %w", err)
	}

	for i, card := range deck.Cards {
		if card.Id == "" {
			return Deck{}, fmt.Errorf("card[%d]: %s: empty", i, "id")
		}
		if card.Zone == "" {
			deck.Cards[i].Zone = model.ZoneLibrary
		}
	}

	return deck, nil
}

// NewStorageFromFile builds the Storage object from the deck file.
// An empty filePath gives a Storage seeded with the generated deckSize cards (0 is an empty board).
func NewStorageFromFile(filePath string, deckSize int) (*Storage, error) {
	if filePath == "" {
		if deckSize < 0 {
			return nil, fmt.Errorf("%s: must be GTE 0", "deckSize")
		}
		log.Printf("Storage creation: %d generated cards", deckSize)
		return NewStorage(newDeckMockCards(deckSize)...), nil
	}

	log.Printf("Reading deck file...")
	deck, err := LoadDeck(filePath)
	if err != nil {
		return nil, err
	}

	s := NewStorage(deck.Cards...)
	log.Printf("Storage created: %d cards (%s)", s.board.Len(), deck.Name)

	return s, nil
}

// newDeckMockCards builds mock cards: a few on the battlefield, a hand, the rest in the library.
func newDeckMockCards(n int) []model.Card {
	cards := make([]model.Card, 0, n)
	for i := 0; i < n; i++ {
		tmpl := deckTemplates[rand.Intn(len(deckTemplates))]

		zone := model.ZoneLibrary
		switch {
		case i < 3:
			zone = model.ZoneBattlefield
		case i < 10:
			zone = model.ZoneHand
		}

		cards = append(cards, model.Card{
			Id:   uuid.New().String(),
			Name: tmpl.Name,
			Type: tmpl.Type,
			X:    float64(100 + 120*(i%8)),
			Y:    float64(100 + 160*(i/8%4)),
			Zone: zone,
		})
	}

	return cards
}
