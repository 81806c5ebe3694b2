// forgedeck - Terminal console for the Morgan Forge platform assistant.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/forgedeck/internal/api"
	"github.com/jeranaias/forgedeck/internal/catalog"
	"github.com/jeranaias/forgedeck/internal/config"
	"github.com/jeranaias/forgedeck/internal/conversation"
	"github.com/jeranaias/forgedeck/internal/credentials"
	"github.com/jeranaias/forgedeck/internal/repl"
	"github.com/jeranaias/forgedeck/internal/session"
	"github.com/jeranaias/forgedeck/internal/storage"
	"github.com/jeranaias/forgedeck/internal/tooltrack"
	"github.com/jeranaias/forgedeck/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "0.4.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// ARGUMENT PARSING
// =============================================================================

type args struct {
	command    string
	configPath string
	theme      string
	plain      bool
	quiet      bool
	noCache    bool
}

func parseArgs(argv []string) (args, error) {
	var a args
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--plain" || arg == "-p":
			a.plain = true
		case arg == "--quiet" || arg == "-q":
			a.quiet = true
		case arg == "--no-cache":
			a.noCache = true
		case arg == "--theme":
			if i+1 >= len(argv) {
				return a, fmt.Errorf("--theme requires a value")
			}
			i++
			a.theme = argv[i]
		case arg == "--config" || arg == "-c":
			if i+1 >= len(argv) {
				return a, fmt.Errorf("--config requires a path")
			}
			i++
			a.configPath = argv[i]
		case strings.HasPrefix(arg, "-"):
			return a, fmt.Errorf("unknown flag: %s", arg)
		case a.command == "":
			a.command = arg
		default:
			return a, fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	return a, nil
}

func usage() {
	fmt.Print(`forgedeck - Morgan Forge platform console

Usage:
  forgedeck               Start the full-screen console
  forgedeck chat          Start the line-oriented console
  forgedeck login         Store the platform API token
  forgedeck logout        Remove the stored token
  forgedeck version       Print version information
  forgedeck help          Show this help

Flags:
  -p, --plain         Use the line-oriented console
  -q, --quiet         Suppress banners and statistics
  -c, --config PATH   Use an explicit config file
      --theme NAME    Color theme: dark, light, auto
      --no-cache      Disable the local conversation cache
`)
}

// =============================================================================
// ENTRY POINT
// =============================================================================

func main() {
	a, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		usage()
		os.Exit(2)
	}

	switch a.command {
	case "help", "--help", "-h":
		usage()
		return
	case "version", "--version":
		fmt.Printf("forgedeck %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	case "login":
		if err := runLogin(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Token stored.")
		return
	case "logout":
		if err := runLogout(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Token removed.")
		return
	case "", "chat":
		if err := runConsole(a); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", a.command)
		usage()
		os.Exit(2)
	}
}

func runLogin() error {
	store, err := credentials.NewFileStore(credentials.DefaultDir())
	if err != nil {
		return err
	}
	return credentials.PromptToken(store)
}

func runLogout() error {
	store, err := credentials.NewFileStore(credentials.DefaultDir())
	if err != nil {
		return err
	}
	return store.Remove(credentials.TokenKey)
}

// =============================================================================
// CONSOLE STARTUP
// =============================================================================

func runConsole(a args) error {
	cfg, err := loadConfig(a)
	if err != nil {
		return err
	}
	config.SetGlobal(cfg)

	// Reload the config on file changes so theme and timeout tweaks
	// apply to the next turn without a restart.
	configPath := a.configPath
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	if watcher, err := config.NewWatcher(configPath, 500*time.Millisecond, func(next *config.Config) {
		config.SetGlobal(next)
	}); err == nil {
		if err := watcher.Start(); err == nil {
			defer watcher.Close()
		}
	}

	creds, err := credentials.NewFileStore(credentials.DefaultDir())
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	if _, err := creds.Get(credentials.TokenKey); err != nil {
		if tok := strings.TrimSpace(os.Getenv("FORGEDECK_TOKEN")); tok != "" {
			if err := creds.Set(credentials.TokenKey, tok); err != nil {
				return fmt.Errorf("failed to store token: %w", err)
			}
		} else {
			fmt.Fprintln(os.Stderr, "No platform token found.")
			if err := credentials.PromptToken(creds); err != nil {
				return err
			}
		}
	}

	client := api.NewClient(api.ClientConfig{BaseURL: cfg.APIBase}, creds)

	store := conversation.NewStore()
	tracker := tooltrack.NewTracker()

	var cache catalog.Cache
	if cfg.Cache.Enabled && !a.noCache {
		db, err := storage.Open(cfg.Cache.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: conversation cache unavailable: %v\n", err)
		} else {
			defer db.Close()
			cache = db
		}
	}

	cat := catalog.New(client, store, cache, cfg.MaxTitleLength)
	if err := cat.WarmStart(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not read cached conversations: %v\n", err)
	}

	// The controller needs its hooks at construction, but the frontend
	// needs the controller first. The bridge forwards to whichever
	// hooks the frontend wires in below.
	var wired session.Hooks
	bridge := session.Hooks{
		Notify: func(kind, message string) {
			if wired.Notify != nil {
				wired.Notify(kind, message)
			}
		},
		Navigate: func(destination string) {
			if wired.Navigate != nil {
				wired.Navigate(destination)
			}
		},
		RequestSignIn: func() {
			if wired.RequestSignIn != nil {
				wired.RequestSignIn()
			}
		},
		OnAssistantFinalized: func(msg *conversation.Message) {
			if wired.OnAssistantFinalized != nil {
				wired.OnAssistantFinalized(msg)
			}
		},
	}

	ctrl := session.NewController(
		session.NewAPITransport(client),
		store, tracker, cat, bridge,
		session.Options{
			InactivityTimeout: time.Duration(cfg.InactivityTimeoutMs) * time.Millisecond,
			SendRatePerMin:    cfg.SendRatePerMin,
		},
	)

	ctx := context.Background()
	if err := cat.Refresh(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load conversations: %v\n", err)
	}

	if a.plain || a.command == "chat" || cfg.UI.Plain {
		r := repl.New(repl.Deps{
			Controller: ctrl,
			Store:      store,
			Tracker:    tracker,
			Catalog:    cat,
			Apps:       client,
			Quiet:      a.quiet,
		})
		wired = r.Hooks()
		return r.Run(ctx)
	}

	theme := cfg.UI.Theme
	if a.theme != "" {
		theme = a.theme
	}
	m := ui.NewModel(ui.Deps{
		Controller: ctrl,
		Store:      store,
		Tracker:    tracker,
		Catalog:    cat,
		Apps:       client,
		Theme:      ui.NewTheme(theme),
	})
	wired = m.Wire()
	wired.RequestSignIn = func() {
		wired.Notify("error", "Session expired. Run `forgedeck login` and restart.")
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("console failed: %w", err)
	}
	return nil
}

func loadConfig(a args) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if a.configPath != "" {
		cfg, err = config.LoadFrom(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if a.theme != "" {
		cfg.UI.Theme = a.theme
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
