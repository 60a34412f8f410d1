package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/itiky/collaborate-board/model"
	"github.com/itiky/collaborate-board/service/client"
)

const (
	FlagServerUrl     = "server-url"
	FlagName          = "name"
	FlagSession       = "session"
	FlagActionsPeriod = "actions-period"
	FlagActionsMax    = "actions-max"
)

// GetClientCmd returns bot client start command.
func GetClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Start bot client sending random card actions",
		Run: func(cmd *cobra.Command, args []string) {
			// Parse inputs
			serverUrl, err := cmd.Flags().GetString(FlagServerUrl)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagServerUrl, err)
			}
			name, err := cmd.Flags().GetString(FlagName)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagName, err)
			}
			sessionId, err := cmd.Flags().GetString(FlagSession)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagSession, err)
			}
			actionsMax, err := cmd.Flags().GetInt(FlagActionsMax)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagActionsMax, err)
			}
			actionsDur, err := cmd.Flags().GetDuration(FlagActionsPeriod)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagActionsPeriod, err)
			}
			monitorPeriod, err := cmd.Flags().GetDuration(FlagMonitorPeriod)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagMonitorPeriod, err)
			}

			// Init service
			logger := log.Default()
			store := client.NewStore(nil)
			monitor := client.NewMonitor(monitorPeriod, logger)

			c, err := client.NewClient(serverUrl, name, model.ParticipantId(sessionId), store, monitor, logger)
			if err != nil {
				log.Fatalf("client init: %v", err)
			}
			bot, err := client.NewBot(name, store, c, actionsDur, actionsMax, logger)
			if err != nil {
				log.Fatalf("bot init: %v", err)
			}

			monitor.Start()
			c.Start()
			bot.Start()

			// Wait for signal or connection loss (reconnects are handled by the Client)
			signalCh := make(chan os.Signal, 1)
			signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-signalCh:
			case <-c.Done():
				log.Printf("%s: connection lost, session %s", c.String(), c.Store().SelfId())
			}

			bot.Stop()
			c.Stop()
			monitor.Stop()
		},
	}
	cmd.Flags().String(FlagServerUrl, "127.0.0.1:2412", "(optional) server url")
	cmd.Flags().String(FlagName, "", "(optional) player name")
	cmd.Flags().String(FlagSession, "", "(optional) previous session id to reconnect with")
	cmd.Flags().Int(FlagActionsMax, 3, "(optional) max number of actions per period")
	cmd.Flags().Duration(FlagActionsPeriod, 1*time.Second, "(optional) actions send period")
	cmd.Flags().Duration(FlagMonitorPeriod, 5*time.Second, "(optional) stats report period")

	return cmd
}

func init() {
	rootCmd.AddCommand(GetClientCmd())
}
