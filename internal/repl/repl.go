// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package repl

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/forgedeck/internal/api"
	"github.com/jeranaias/forgedeck/internal/catalog"
	"github.com/jeranaias/forgedeck/internal/conversation"
	"github.com/jeranaias/forgedeck/internal/session"
	"github.com/jeranaias/forgedeck/internal/tooltrack"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#56B6C2")).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#C678DD")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5C6370"))

	commandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98C379"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5C07B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E06C75")).
			Bold(true)

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#61AFEF")).
			Underline(true)
)

// =============================================================================
// REPL
// =============================================================================

// AppLister fetches the user's applications for the /app command.
type AppLister interface {
	ListApps(ctx context.Context) ([]api.App, error)
}

// Deps are the collaborators the REPL drives.
type Deps struct {
	Controller *session.Controller
	Store      *conversation.Store
	Tracker    *tooltrack.Tracker
	Catalog    *catalog.Catalog
	Apps       AppLister
	Quiet      bool
}

// REPL is the line-oriented console loop.
type REPL struct {
	controller *session.Controller
	store      *conversation.Store
	tracker    *tooltrack.Tracker
	catalog    *catalog.Catalog
	apps       AppLister
	input      *Input
	quiet      bool

	mu       sync.Mutex
	turnDone chan session.Snapshot
	unsubs   []func()
}

// New creates a REPL. Hooks() must be wired into the controller before
// Run is called.
func New(deps Deps) *REPL {
	return &REPL{
		controller: deps.Controller,
		store:      deps.Store,
		tracker:    deps.Tracker,
		catalog:    deps.Catalog,
		apps:       deps.Apps,
		input:      NewInput(),
		quiet:      deps.Quiet,
	}
}

// Hooks returns the controller callbacks that route session output to
// the terminal.
func (r *REPL) Hooks() session.Hooks {
	return session.Hooks{
		Notify: func(kind, message string) {
			fmt.Println()
			if kind == "error" {
				fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("[Error]"), message)
			} else {
				fmt.Printf("%s %s\n", infoStyle.Render("[Info]"), message)
			}
		},
		Navigate: func(destination string) {
			fmt.Printf("%s %s\n",
				commandStyle.Render("[Created]"),
				linkStyle.Render(destination))
		},
		RequestSignIn: func() {
			fmt.Fprintln(os.Stderr, warningStyle.Render("Session expired. Run `forgedeck login` and try again."))
		},
		OnAssistantFinalized: func(msg *conversation.Message) {
			if r.quiet || msg == nil || msg.Stats == nil {
				return
			}
			fmt.Printf("\n%s\n", infoStyle.Render(fmt.Sprintf(
				"first event %s | %d deltas | %.1f deltas/s",
				msg.Stats.FirstEvent.Round(time.Millisecond),
				msg.Stats.Deltas,
				msg.Stats.DeltasPerSec())))
		},
	}
}

// Run drives the read-eval loop until the user exits or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	defer r.input.Close()
	defer r.dropSubscriptions()

	r.subscribe()

	// Ctrl+C during a turn cancels the stream; at the prompt liner
	// reports it as ErrPromptAborted.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if r.controller.State().Active() {
				r.controller.Cancel()
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Cancelled]"))
			}
		}
	}()

	if !r.quiet {
		r.printWelcome()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		input, err := r.input.ReadLine(promptStyle.Render("forgedeck> "))
		if err != nil {
			if err == liner.ErrPromptAborted {
				fmt.Println()
				continue
			}
			// EOF (Ctrl+D) exits gracefully.
			fmt.Println()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			cont, err := r.handleCommand(ctx, input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
			}
			if !cont {
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}

		r.sendAndWait(ctx, func() error {
			return r.controller.Send(ctx, input)
		})
	}
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

func (r *REPL) subscribe() {
	unsubStore := r.store.Subscribe(func(ch conversation.Change) {
		switch ch.Kind {
		case conversation.ChangeDelta:
			fmt.Print(ch.Delta)
		case conversation.ChangeToolAttached:
			r.announceTool(ch.MessageID)
		}
	})

	unsubCtrl := r.controller.Subscribe(func(s session.Snapshot) {
		if s.State.Active() {
			return
		}
		r.mu.Lock()
		done := r.turnDone
		r.turnDone = nil
		r.mu.Unlock()
		if done != nil {
			done <- s
		}
	})

	r.mu.Lock()
	r.unsubs = append(r.unsubs, unsubStore, unsubCtrl)
	r.mu.Unlock()
}

func (r *REPL) dropSubscriptions() {
	r.mu.Lock()
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()
	for _, fn := range unsubs {
		fn()
	}
}

// announceTool prints the newest tool call attached to a message and
// arranges for its result to be printed when it lands.
func (r *REPL) announceTool(messageID string) {
	var callID string
	for _, msg := range r.store.Messages() {
		if msg.ID == messageID && len(msg.ToolCalls) > 0 {
			callID = msg.ToolCalls[len(msg.ToolCalls)-1]
			break
		}
	}
	if callID == "" {
		return
	}

	inv := r.tracker.Get(callID)
	if inv == nil {
		return
	}
	fmt.Printf("\n%s %s...\n", infoStyle.Render("[Tool]"), inv.Label())

	unsub := r.tracker.Subscribe(callID, func(inv *tooltrack.Invocation) {
		if !inv.Terminal() {
			return
		}
		marker := commandStyle.Render("[OK]")
		if inv.State == tooltrack.StateFailed {
			marker = errorStyle.Render("[Failed]")
		}
		result := inv.Render()
		if result != "" {
			fmt.Printf("%s %s: %s\n", marker, inv.Label(), firstLine(result))
		} else {
			fmt.Printf("%s %s\n", marker, inv.Label())
		}
	})
	r.mu.Lock()
	r.unsubs = append(r.unsubs, unsub)
	r.mu.Unlock()
}

// =============================================================================
// TURN SUBMISSION
// =============================================================================

// sendAndWait registers a completion channel, invokes submit (Send or
// Retry), and blocks until the controller returns to a resting state.
func (r *REPL) sendAndWait(ctx context.Context, submit func() error) {
	done := make(chan session.Snapshot, 1)
	r.mu.Lock()
	r.turnDone = done
	r.mu.Unlock()

	if err := submit(); err != nil {
		r.mu.Lock()
		r.turnDone = nil
		r.mu.Unlock()
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		return
	}

	fmt.Println()

	select {
	case snap := <-done:
		fmt.Println()
		if snap.State == session.StateError {
			// The notify hook has already printed the failure.
			r.controller.Acknowledge()
			fmt.Println(infoStyle.Render("Use /retry to resend."))
		}
	case <-ctx.Done():
		r.controller.Cancel()
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
