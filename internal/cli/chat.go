// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive line-mode chat for the perpdeck CLI.
//
// USABILITY: Markdown rendering and input history for better CLI experience
//
// Handles "perpdeck chat": a readline-style REPL over the same session
// controller the TUI uses. Responses stream to stdout; on a TTY the
// completed response is re-rendered as markdown.

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"

	"github.com/perpdeck/perpdeck-tui/internal/config"
	"github.com/perpdeck/perpdeck-tui/internal/model"
	"github.com/perpdeck/perpdeck-tui/internal/session"
	"github.com/perpdeck/perpdeck-tui/internal/transcript"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for the REPL.
// USABILITY: Supports arrow keys for history navigation and editing.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI with history loaded from the config
// directory.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	cli.loadHistory()
	return cli
}

func (c *ChatCLI) loadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads one line with the given prompt, recording non-empty
// input in the history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// saveHistory persists history with owner-only permissions.
func (c *ChatCLI) saveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and releases the terminal.
func (c *ChatCLI) Close() {
	c.saveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// ChatSession holds the state of one REPL run.
type ChatSession struct {
	Controller *session.Controller
	Config     *config.Config
	Input      *ChatCLI

	Quiet bool
	md    *glamour.TermRenderer

	StartTime   time.Time
	TotalFrames int
	Interrupted bool
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChatCommand handles the "chat" command.
func HandleChatCommand(args Args) error {
	if err := RequireTTY("start interactive chat"); err != nil {
		return err
	}

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	_, ctrl, err := NewSession(cfg, args)
	if err != nil {
		return err
	}

	chat := &ChatSession{
		Controller: ctrl,
		Config:     cfg,
		Input:      NewChatCLI(),
		Quiet:      args.Quiet,
		md:         newMarkdownRenderer(args.Plain),
		StartTime:  time.Now(),
	}
	defer chat.Input.Close()

	if !chat.Quiet {
		printWelcome(chat)
	}

	// Ctrl+C during a stream interrupts the round; at the prompt liner
	// reports it as ErrPromptAborted.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if ctrl.Streaming() {
				ctrl.Interrupt()
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Stopped]"))
			}
		}
	}()

	for {
		input, err := chat.Input.ReadInput(promptStyle.Render("perpdeck> "))
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D, or a closed terminal all
			// end the session.
			fmt.Println()
			printExitSummary(chat)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			keepGoing, err := handleSlashCommand(input, chat)
			if err != nil {
				printError(err)
			}
			if !keepGoing {
				printExitSummary(chat)
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			printExitSummary(chat)
			return nil
		}

		if err := chat.runRound(input); err != nil {
			printError(err)
		}
	}
}

// =============================================================================
// ROUND PROCESSING
// =============================================================================

// runRound sends one message and blocks until the round finishes,
// streaming output as it arrives.
func (s *ChatSession) runRound(input string) error {
	if err := s.Controller.Send(input); err != nil {
		return err
	}

	fmt.Println()

	// When markdown rendering is on, the raw stream is withheld and the
	// completed response is rendered once; interleaving ANSI rewrites
	// with glamour output mangles the terminal.
	streamRaw := s.md == nil
	printed := 0
	lastStatus := ""

	for {
		switch msg := s.Controller.NextEvent()().(type) {
		case session.StreamUpdateMsg:
			s.TotalFrames++
			if msg.Note.Level == transcript.NoteError {
				fmt.Fprintf(os.Stderr, "%s %s\n", warningStyle.Render("[Warning]"), msg.Note.Text)
			}
			streaming := s.Controller.Transcript().Streaming()
			if streaming == nil {
				continue
			}
			if streamRaw {
				if len(streaming.Content) > printed {
					fmt.Print(streaming.Content[printed:])
					printed = len(streaming.Content)
				}
			} else if !s.Quiet && streaming.StatusText != "" && streaming.StatusText != lastStatus {
				lastStatus = streaming.StatusText
				fmt.Fprintf(os.Stderr, "%s %s\n", infoStyle.Render("[Working]"), lastStatus)
			}

		case session.StreamDoneMsg:
			s.finishRound(msg, streamRaw)
			return nil

		case session.StreamFailedMsg:
			if msg.Reloaded {
				fmt.Fprintln(os.Stderr, warningStyle.Render("[Reloaded] transcript restored from the platform"))
			}
			return msg.Err
		}
	}
}

// finishRound prints the completed response and its stats line.
func (s *ChatSession) finishRound(done session.StreamDoneMsg, streamedRaw bool) {
	reply := lastAssistantMessage(s.Controller)

	if !streamedRaw && reply != nil {
		fmt.Print(renderMarkdown(s.md, reply.Content))
	}
	if reply != nil {
		printPayload(reply)
	}

	fmt.Println()

	if done.Interrupted {
		s.Interrupted = true
		fmt.Println(warningStyle.Render("[Stopped] response incomplete; /resume to continue"))
	}

	if !s.Quiet {
		fmt.Fprintf(os.Stderr, "%s round %d | %s frames | %s\n",
			infoStyle.Render("[Stats]"),
			done.Rounds,
			formatCount(done.Frames),
			done.Elapsed.Round(time.Millisecond))
	}
	fmt.Println()
}

// lastAssistantMessage returns the newest assistant message, or nil.
func lastAssistantMessage(ctrl *session.Controller) *model.Message {
	t := ctrl.Transcript()
	for i := t.Len() - 1; i >= 0; i-- {
		if t.Messages[i].Role == model.RoleAssistant {
			return t.Messages[i]
		}
	}
	return nil
}

// printPayload prints structured results (diagnosis cards, signal
// configs, generated prompts) in plain text.
func printPayload(msg *model.Message) {
	payload := msg.Partial
	if msg.Final != nil {
		payload = *msg.Final
	}
	if payload.IsEmpty() {
		return
	}

	for _, card := range payload.Diagnoses {
		fmt.Printf("\n%s %s (%s)\n", headerStyle.Render("[Diagnosis]"), card.Title, card.Severity)
		if card.Summary != "" {
			fmt.Printf("  %s\n", card.Summary)
		}
		if card.Suggestion != "" {
			fmt.Printf("  %s %s\n", commandStyle.Render(">"), card.Suggestion)
		}
	}
	for _, sig := range payload.SignalConfigs {
		fmt.Printf("\n%s %s %s %s %s\n", headerStyle.Render("[Signal]"),
			strings.ToUpper(sig.Direction), sig.Symbol, sig.Timeframe, sig.Name)
		fmt.Printf("  entry %s  stop %s  target %s\n", sig.Entry, sig.StopLoss, sig.TakeProfit)
	}
	if p := payload.Prompt; p != nil {
		fmt.Printf("\n%s %s\n%s\n", headerStyle.Render("[Prompt]"), p.Title, p.Body)
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands. A false return means
// exit the REPL.
func handleSlashCommand(cmd string, chat *ChatSession) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		printHelp()
		return true, nil

	case "/assistant", "/mode", "/a":
		return handleAssistantCommand(chat, args)

	case "/conversations", "/list":
		return true, printConversations(chat)

	case "/switch":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /switch <id>")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return true, fmt.Errorf("conversation id must be a number")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := chat.Controller.SwitchConversation(ctx, id); err != nil {
			return true, err
		}
		fmt.Printf("%s opened conversation #%d\n", commandStyle.Render("[OK]"), id)
		return true, nil

	case "/new":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := chat.Controller.SwitchConversation(ctx, 0); err != nil {
			return true, err
		}
		fmt.Println(commandStyle.Render("[OK] started a new conversation"))
		return true, nil

	case "/resume", "/r":
		if err := chat.Controller.Resume(); err != nil {
			return true, err
		}
		return true, chat.resumeRound()

	case "/status", "/s":
		printStatus(chat)
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// resumeRound drains a round started by Resume rather than Send.
func (s *ChatSession) resumeRound() error {
	fmt.Println()
	streamRaw := s.md == nil
	printed := 0
	if streaming := s.Controller.Transcript().Streaming(); streaming != nil {
		// Re-print what survived the interruption so the delta stream
		// lines up.
		if streamRaw && streaming.Content != "" {
			fmt.Print(streaming.Content)
			printed = len(streaming.Content)
		}
	}

	for {
		switch msg := s.Controller.NextEvent()().(type) {
		case session.StreamUpdateMsg:
			s.TotalFrames++
			streaming := s.Controller.Transcript().Streaming()
			if streaming != nil && streamRaw && len(streaming.Content) > printed {
				fmt.Print(streaming.Content[printed:])
				printed = len(streaming.Content)
			}
		case session.StreamDoneMsg:
			s.finishRound(msg, streamRaw)
			return nil
		case session.StreamFailedMsg:
			return msg.Err
		}
	}
}

// handleAssistantCommand shows or switches the assistant mode.
func handleAssistantCommand(chat *ChatSession, args []string) (bool, error) {
	if len(args) == 0 {
		fmt.Printf("%s current assistant: %s\n",
			infoStyle.Render("[Assistant]"),
			commandStyle.Render(chat.Controller.Assistant()))
		return true, nil
	}
	mode := strings.ToLower(args[0])
	if !assistantModes[mode] {
		return true, fmt.Errorf("unknown assistant mode %q (chat, diagnose, signal, prompt)", mode)
	}
	chat.Controller.SetAssistant(mode)
	fmt.Printf("%s assistant set to %s\n", commandStyle.Render("[OK]"), mode)
	return true, nil
}

// printConversations lists the platform conversations.
func printConversations(chat *ChatSession) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	items, err := chat.Controller.Conversations(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println(infoStyle.Render("[No conversations yet]"))
		return nil
	}

	fmt.Println()
	for _, c := range items {
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("  %s %s  %s\n",
			commandStyle.Render(fmt.Sprintf("#%-5d", c.ID)),
			title,
			infoStyle.Render(c.UpdatedAt.Format("Jan 02 15:04")))
	}
	fmt.Println()
	return nil
}

// =============================================================================
// DISPLAY
// =============================================================================

func printWelcome(chat *ChatSession) {
	fmt.Println()
	fmt.Println(bannerStyle.Render("perpdeck chat"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 30)))
	fmt.Printf("%s %s\n",
		infoStyle.Render("Assistant:"),
		commandStyle.Render(chat.Controller.Assistant()))
	fmt.Printf("%s %s",
		infoStyle.Render("Exchange:"),
		commandStyle.Render(chat.Config.Exchange.Name))
	if chat.Config.Exchange.Testnet {
		fmt.Printf(" %s", warningStyle.Render("(testnet)"))
	}
	fmt.Println()
	fmt.Println()
	fmt.Println(infoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

func printHelp() {
	fmt.Println()
	fmt.Println(headerStyle.Render("Available Commands"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/assistant [mode]", "Show or switch assistant (chat, diagnose, signal, prompt)"},
		{"/conversations", "List conversations"},
		{"/switch <id>", "Open a conversation"},
		{"/new", "Start a new conversation"},
		{"/resume", "Resume an interrupted response"},
		{"/status, /s", "Show session statistics"},
		{"/quit, /q", "Exit chat"},
	}
	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-18s", c.cmd)),
			infoStyle.Render(c.desc))
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("Tip: Ctrl+C stops the current response, Ctrl+D exits"))
	fmt.Println()
}

func printStatus(chat *ChatSession) {
	elapsed := time.Since(chat.StartTime).Round(time.Second)

	fmt.Println()
	fmt.Println(headerStyle.Render("Session Status"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()
	fmt.Printf("  %s %s\n", infoStyle.Render("Assistant:"), commandStyle.Render(chat.Controller.Assistant()))
	if id := chat.Controller.ConversationID(); id != 0 {
		fmt.Printf("  %s #%d\n", infoStyle.Render("Conversation:"), id)
	} else {
		fmt.Printf("  %s (new)\n", infoStyle.Render("Conversation:"))
	}
	fmt.Printf("  %s %d\n", infoStyle.Render("Rounds:"), chat.Controller.Rounds())
	fmt.Printf("  %s %s\n", infoStyle.Render("Frames:"), formatCount(chat.TotalFrames))
	fmt.Printf("  %s %s\n", infoStyle.Render("Duration:"), elapsed.String())
	fmt.Println()
}

func printExitSummary(chat *ChatSession) {
	if chat.Controller.Rounds() == 0 {
		fmt.Println(infoStyle.Render("Goodbye!"))
		return
	}

	elapsed := time.Since(chat.StartTime).Round(time.Second)
	fmt.Println()
	fmt.Println(headerStyle.Render("Session Summary"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 15)))
	fmt.Printf("  %s %d\n", infoStyle.Render("Rounds:"), chat.Controller.Rounds())
	fmt.Printf("  %s %s\n", infoStyle.Render("Frames:"), formatCount(chat.TotalFrames))
	fmt.Printf("  %s %s\n", infoStyle.Render("Duration:"), elapsed.String())
	if chat.Interrupted {
		fmt.Println("  " + warningStyle.Render("Some responses were stopped before completing."))
	}
	fmt.Println()
	fmt.Println(infoStyle.Render("Goodbye!"))
}
