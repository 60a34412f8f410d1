package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/itiky/collaborate-board/service/server"
	"github.com/itiky/collaborate-board/storage"
)

const (
	FlagPort          = "port"
	FlagActionsChSize = "actions-ch-size"
	FlagGracePeriod   = "grace-period"
	FlagMonitorPeriod = "monitor-period"
)

// GetServerCmd returns board server start command.
func GetServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start board server",
		Run: func(cmd *cobra.Command, args []string) {
			// Parse inputs
			port, err := cmd.Flags().GetInt(FlagPort)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagPort, err)
			}
			chSize, err := cmd.Flags().GetInt(FlagActionsChSize)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagActionsChSize, err)
			}
			gracePeriod, err := cmd.Flags().GetDuration(FlagGracePeriod)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagGracePeriod, err)
			}
			monitorPeriod, err := cmd.Flags().GetDuration(FlagMonitorPeriod)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagMonitorPeriod, err)
			}
			deckPath, err := cmd.Flags().GetString(FlagDeckPath)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagDeckPath, err)
			}
			deckSize, err := cmd.Flags().GetInt(FlagDeckSize)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagDeckSize, err)
			}

			// Init service
			st, err := storage.NewStorageFromFile(deckPath, deckSize)
			if err != nil {
				log.Fatalf("storage init: %v", err)
			}
			log.Printf("%s loaded", st.String())

			logger := log.Default()
			monitor := server.NewMonitor(monitorPeriod, logger)
			hub := server.NewHub(monitor, logger)

			session, err := server.NewSession(st, hub, chSize, monitor, logger)
			if err != nil {
				log.Fatalf("session init: %v", err)
			}
			players, err := server.NewParticipants(gracePeriod)
			if err != nil {
				log.Fatalf("participants init: %v", err)
			}

			// Start server
			monitor.Start()
			session.Start()

			httpSrv := &http.Server{
				Addr:    ":" + strconv.Itoa(port),
				Handler: server.NewHandler(session, hub, players, logger).Router(),
			}
			go func() {
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("HTTP server: listen: %v", err)
				}
			}()

			log.Printf("Board server started: :%d", port)

			// Wait for signal
			signalCh := make(chan os.Signal, 1)
			signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
			<-signalCh

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(ctx); err != nil {
				log.Printf("HTTP server: shutdown: %v", err)
			}

			session.Stop()
			players.Stop()
			monitor.Stop()
		},
	}
	cmd.Flags().Int(FlagPort, 2412, "(optional) server port")
	cmd.Flags().Int(FlagActionsChSize, 50, "(optional) input actions channel limit")
	cmd.Flags().Duration(FlagGracePeriod, server.DefaultGracePeriod, "(optional) disconnected participant grace period")
	cmd.Flags().Duration(FlagMonitorPeriod, 5*time.Second, "(optional) stats report period")
	cmd.Flags().String(FlagDeckPath, "", "(optional) path to the deck file (mock deck is generated if empty)")
	cmd.Flags().Int(FlagDeckSize, 60, "(optional) mock deck size")

	return cmd
}

func init() {
	rootCmd.AddCommand(GetServerCmd())
}
