// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package repl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/forgedeck/internal/api"
	"github.com/jeranaias/forgedeck/internal/conversation"
	"github.com/jeranaias/forgedeck/internal/ui"
	"github.com/jeranaias/forgedeck/internal/util"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleCommand dispatches a slash command. The bool is false when the
// loop should exit.
func (r *REPL) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		r.printHelp()
		return true, nil

	case "/list", "/ls", "/l":
		r.printConversations(r.catalog.Summaries())
		return true, nil

	case "/select", "/sel":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /select <number|id>")
		}
		id, err := r.resolveConversation(args[0])
		if err != nil {
			return true, err
		}
		if err := r.controller.SelectConversation(ctx, id); err != nil {
			return true, err
		}
		fmt.Printf("%s Switched to %s\n", commandStyle.Render("[OK]"), r.titleOf(id))
		return true, nil

	case "/new", "/n":
		r.controller.NewConversation()
		fmt.Println(commandStyle.Render("[New conversation]"))
		return true, nil

	case "/delete", "/del", "/rm":
		return true, r.deleteConversation(ctx, args)

	case "/search":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /search <query>")
		}
		r.printConversations(r.catalog.Search(strings.Join(args, " ")))
		return true, nil

	case "/export":
		return true, r.exportConversation(ctx, args)

	case "/code", "/c":
		return true, r.printCodeBlocks()

	case "/app", "/a":
		return true, r.handleApp(ctx, args)

	case "/retry", "/r":
		r.sendAndWait(ctx, func() error {
			return r.controller.Retry(ctx)
		})
		return true, nil

	case "/history":
		r.printHistory()
		return true, nil

	case "/status", "/s":
		r.printStatus()
		return true, nil

	case "/refresh":
		if err := r.catalog.Refresh(ctx); err != nil {
			return true, err
		}
		fmt.Println(commandStyle.Render("[Refreshed]"))
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// resolveConversation turns a 1-based list index or a raw id into a
// conversation id.
func (r *REPL) resolveConversation(arg string) (string, error) {
	summaries := r.catalog.Summaries()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(summaries) {
			return "", fmt.Errorf("no conversation #%d (have %d)", n, len(summaries))
		}
		return summaries[n-1].ID, nil
	}
	for _, s := range summaries {
		if s.ID == arg {
			return s.ID, nil
		}
	}
	return "", fmt.Errorf("no conversation %q", arg)
}

func (r *REPL) titleOf(id string) string {
	for _, s := range r.catalog.Summaries() {
		if s.ID == id {
			if s.Title != "" {
				return s.Title
			}
			break
		}
	}
	return id
}

func (r *REPL) deleteConversation(ctx context.Context, args []string) error {
	id := r.catalog.ActiveID()
	if len(args) > 0 {
		var err error
		id, err = r.resolveConversation(args[0])
		if err != nil {
			return err
		}
	}
	if id == "" {
		return fmt.Errorf("no conversation to delete")
	}

	title := r.titleOf(id)
	if err := r.controller.DeleteConversation(ctx, id); err != nil {
		return err
	}
	fmt.Printf("%s Deleted %s\n", commandStyle.Render("[OK]"), title)
	return nil
}

func (r *REPL) exportConversation(ctx context.Context, args []string) error {
	selector, format, err := splitExportArgs(args)
	if err != nil {
		return err
	}

	id := r.catalog.ActiveID()
	if selector != "" {
		id, err = r.resolveConversation(selector)
		if err != nil {
			return err
		}
	}
	if id == "" {
		return fmt.Errorf("no conversation to export")
	}

	var data []byte
	switch format {
	case "json":
		data, err = r.catalog.ExportJSON(ctx, id)
	default:
		var markdown string
		markdown, err = r.catalog.ExportMarkdown(ctx, id)
		data = []byte(markdown)
	}
	if err != nil {
		return err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	path := filepath.Join(home, ".forgedeck", "exports", id+"."+format)
	if err := util.AtomicWriteFile(path, data, 0o600); err != nil {
		return err
	}
	fmt.Printf("%s Exported to %s\n", commandStyle.Render("[OK]"), path)
	return nil
}

// splitExportArgs separates the optional conversation selector from the
// optional format token. Markdown is the default format.
func splitExportArgs(args []string) (selector, format string, err error) {
	format = "md"
	for _, arg := range args {
		switch strings.ToLower(arg) {
		case "md", "markdown":
			format = "md"
		case "json":
			format = "json"
		default:
			if selector != "" {
				return "", "", fmt.Errorf("unexpected export argument %q", arg)
			}
			selector = arg
		}
	}
	return selector, format, nil
}

// printCodeBlocks shows the fenced code blocks of the most recent
// completed assistant reply, syntax highlighted.
func (r *REPL) printCodeBlocks() error {
	var target *conversation.Message
	msgs := r.store.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == conversation.RoleAssistant && !msgs[i].Streaming {
			target = msgs[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("no assistant reply yet")
	}

	blocks := ui.ExtractCodeBlocks(target.DisplayContent())
	if len(blocks) == 0 {
		fmt.Println(infoStyle.Render("  (no code blocks in the last reply)"))
		return nil
	}
	fmt.Print(renderCodeBlocks(blocks))
	return nil
}

// renderCodeBlocks formats extracted code blocks, one highlighted
// section per block.
func renderCodeBlocks(blocks []ui.CodeBlock) string {
	var sb strings.Builder
	for i, b := range blocks {
		lang := b.Language
		if lang == "" {
			lang = "text"
		}
		sb.WriteString(infoStyle.Render(fmt.Sprintf("── block %d (%s) ──", i+1, lang)) + "\n")
		sb.WriteString(b.Highlight() + "\n")
	}
	return sb.String()
}

// handleApp shows, sets, or clears the bound app context.
func (r *REPL) handleApp(ctx context.Context, args []string) error {
	if len(args) == 0 {
		if app := r.controller.AppContext(); app != "" {
			fmt.Printf("%s %s\n", infoStyle.Render("App context:"), commandStyle.Render(app))
		} else {
			fmt.Println(infoStyle.Render("No app context bound. Usage: /app <name|id> or /app clear"))
		}
		return r.printApps(ctx)
	}

	if strings.EqualFold(args[0], "clear") {
		r.controller.SetAppContext("")
		fmt.Println(commandStyle.Render("[App context cleared]"))
		return nil
	}

	apps, err := r.apps.ListApps(ctx)
	if err != nil {
		return err
	}
	want := strings.ToLower(strings.Join(args, " "))
	for _, app := range apps {
		if strings.ToLower(app.Name) == want || app.ID == args[0] {
			r.controller.SetAppContext(app.ID)
			fmt.Printf("%s Bound to %s\n", commandStyle.Render("[OK]"), app.Name)
			return nil
		}
	}
	return fmt.Errorf("no app matching %q", strings.Join(args, " "))
}

func (r *REPL) printApps(ctx context.Context) error {
	apps, err := r.apps.ListApps(ctx)
	if err != nil {
		return err
	}
	if len(apps) == 0 {
		fmt.Println(infoStyle.Render("  (no apps)"))
		return nil
	}
	for _, app := range apps {
		fmt.Printf("  %s %s\n",
			commandStyle.Render(app.Name),
			infoStyle.Render(fmt.Sprintf("(%s, %s)", app.ID, app.Status)))
	}
	return nil
}

// =============================================================================
// DISPLAY
// =============================================================================

func (r *REPL) printWelcome() {
	fmt.Println()
	fmt.Println(welcomeStyle.Render("forgedeck console"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 30)))
	if app := r.controller.AppContext(); app != "" {
		fmt.Printf("%s %s\n", infoStyle.Render("App context:"), commandStyle.Render(app))
	}
	fmt.Println(infoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

func (r *REPL) printHelp() {
	fmt.Println()
	fmt.Println(welcomeStyle.Render("Available Commands"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/list, /l", "List conversations"},
		{"/select <n|id>", "Switch conversation"},
		{"/new, /n", "Start a new conversation"},
		{"/delete [n|id]", "Delete a conversation (default: active)"},
		{"/search <query>", "Filter conversations by title"},
		{"/export [n|id] [json]", "Export a conversation (markdown default)"},
		{"/code, /c", "Show code blocks from the last reply"},
		{"/app [name|clear]", "Show, bind, or clear app context"},
		{"/retry, /r", "Resend the last unanswered message"},
		{"/history", "Show the active conversation"},
		{"/status, /s", "Show session status"},
		{"/refresh", "Reload the conversation list"},
		{"/quit, /q", "Exit"},
	}
	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-22s", c.cmd)),
			infoStyle.Render(c.desc))
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("Tip: Ctrl+C cancels the current reply, Ctrl+D exits"))
	fmt.Println()
}

func (r *REPL) printConversations(summaries []api.ConversationSummary) {
	if len(summaries) == 0 {
		fmt.Println(infoStyle.Render("  (no conversations)"))
		return
	}
	active := r.catalog.ActiveID()
	for i, s := range summaries {
		marker := " "
		if s.ID == active {
			marker = commandStyle.Render("*")
		}
		title := s.Title
		if title == "" {
			title = "New conversation"
		}
		fmt.Printf("%s %2d. %s %s\n",
			marker, i+1, title,
			infoStyle.Render(relativeTime(s.LastActivity)))
	}
}

func (r *REPL) printHistory() {
	msgs := r.store.Messages()
	if len(msgs) == 0 {
		fmt.Println(infoStyle.Render("  (empty conversation)"))
		return
	}
	for _, msg := range msgs {
		var label string
		switch msg.Role {
		case conversation.RoleUser:
			label = promptStyle.Render("You")
		case conversation.RoleAssistant:
			label = commandStyle.Render("Assistant")
		default:
			label = warningStyle.Render("System")
		}
		fmt.Printf("\n%s %s\n%s\n",
			label,
			infoStyle.Render(msg.CreatedAt.Format("15:04")),
			msg.DisplayContent())
	}
	fmt.Println()
}

func (r *REPL) printStatus() {
	snap := r.controller.Snapshot()

	fmt.Println()
	fmt.Println(welcomeStyle.Render("Session Status"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Printf("  %s %s\n", infoStyle.Render("State:"), commandStyle.Render(snap.State.String()))
	if snap.ActiveID != "" {
		fmt.Printf("  %s %s\n", infoStyle.Render("Conversation:"), r.titleOf(snap.ActiveID))
	} else {
		fmt.Printf("  %s %s\n", infoStyle.Render("Conversation:"), infoStyle.Render("(unsaved)"))
	}
	if snap.AppContext != "" {
		fmt.Printf("  %s %s\n", infoStyle.Render("App context:"), commandStyle.Render(snap.AppContext))
	}
	fmt.Printf("  %s %d\n", infoStyle.Render("Messages:"), r.store.Len())
	if pending := r.tracker.Pending(); len(pending) > 0 {
		fmt.Printf("  %s %d\n", infoStyle.Render("Pending tools:"), len(pending))
	}
	fmt.Println()
}

// relativeTime renders a compact age for conversation listings.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
