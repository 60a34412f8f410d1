package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/itiky/collaborate-board/storage"
)

const (
	FlagDeckPath = "deck-path"
	FlagDeckSize = "deck-size"
)

// GetGenerateCmd returns generate mock deck command.
func GetGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate mock deck",
		Run: func(cmd *cobra.Command, args []string) {
			// Parse inputs
			deckPath, err := cmd.Flags().GetString(FlagDeckPath)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagDeckPath, err)
			}
			deckSize, err := cmd.Flags().GetInt(FlagDeckSize)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagDeckSize, err)
			}

			// Work
			if err := storage.GenAndSaveDeck(deckPath, deckSize); err != nil {
				log.Fatalf("gen failed: %v", err)
			}
			log.Printf("deck of %d cards saved: %s", deckSize, deckPath)
		},
	}
	cmd.Flags().String(FlagDeckPath, "./deck.yaml", "(optional) output file path")
	cmd.Flags().Int(FlagDeckSize, 60, "(optional) number of cards")

	return cmd
}

func init() {
	rootCmd.AddCommand(GetGenerateCmd())
}
