package main

import (
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/patient-portal/internal/api"
	"github.com/nhle/patient-portal/internal/app"
	"github.com/nhle/patient-portal/internal/credential"
	"github.com/nhle/patient-portal/internal/model"
	"github.com/nhle/patient-portal/internal/notify"
	"github.com/nhle/patient-portal/internal/push"
	"github.com/nhle/patient-portal/internal/session"
	"github.com/nhle/patient-portal/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "portal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := model.DefaultConfigPath()
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	s, err := store.NewSQLiteStore(model.DefaultDataPath())
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Printf("closing store: %v", err)
		}
	}()

	gateway := api.NewClient(
		cfg.Gateway.BaseURL,
		time.Duration(cfg.Gateway.TimeoutSec)*time.Second,
	)

	sessions := session.New(gateway, credential.NewKeyring())
	defer sessions.Dispose()

	channel := push.New(
		push.NewWebsocketTransport(),
		cfg.Gateway.PushURL,
		push.WithBackoff(
			time.Duration(cfg.Push.ReconnectMinSec)*time.Second,
			time.Duration(cfg.Push.ReconnectMaxSec)*time.Second,
		),
	)
	defer channel.Close()

	notifier := notify.New(
		notify.NewConfigPermissions(configPath, cfg),
		notify.NewTerminalPrompter(),
		notify.NewDesktopAlerter(),
		cfg.Notifications.MaxEvents,
	)

	// Ask before the TUI takes over the terminal; a recorded answer is
	// never re-asked.
	notifier.RequestPermissionIfDefault()

	root := app.New(gateway, sessions, channel, notifier, s)

	program := tea.NewProgram(root, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}
