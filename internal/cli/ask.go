// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single-question command for the perpdeck CLI.
//
// USABILITY: Markdown rendering and history for better CLI experience
//
// Handles "perpdeck ask": sends one message, streams the response to
// stdout, and exits. On a TTY the completed response is rendered as
// markdown; piped output stays raw for scripting.

package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/perpdeck/perpdeck-tui/internal/session"
	"github.com/perpdeck/perpdeck-tui/internal/transcript"
)

// HandleAskCommand handles the "ask" command.
func HandleAskCommand(args Args) error {
	if args.Query == "" {
		return fmt.Errorf("usage: perpdeck ask \"question\"")
	}

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	_, ctrl, err := NewSession(cfg, args)
	if err != nil {
		return err
	}

	md := newMarkdownRenderer(args.Plain)
	streamRaw := md == nil

	if err := ctrl.Send(args.Query); err != nil {
		return err
	}

	printed := 0
	lastStatus := ""
	start := time.Now()

	for {
		switch msg := ctrl.NextEvent()().(type) {
		case session.StreamUpdateMsg:
			if msg.Note.Level == transcript.NoteError {
				fmt.Fprintf(os.Stderr, "%s %s\n", warningStyle.Render("[Warning]"), msg.Note.Text)
			}
			streaming := ctrl.Transcript().Streaming()
			if streaming == nil {
				continue
			}
			if streamRaw {
				if len(streaming.Content) > printed {
					fmt.Print(streaming.Content[printed:])
					printed = len(streaming.Content)
				}
			} else if !args.Quiet && streaming.StatusText != "" && streaming.StatusText != lastStatus {
				lastStatus = streaming.StatusText
				fmt.Fprintf(os.Stderr, "%s %s\n", infoStyle.Render("[Working]"), lastStatus)
			}

		case session.StreamDoneMsg:
			reply := lastAssistantMessage(ctrl)
			if !streamRaw && reply != nil {
				fmt.Print(renderMarkdown(md, reply.Content))
			}
			if reply != nil {
				printPayload(reply)
			}
			fmt.Println()
			if msg.Interrupted {
				fmt.Fprintln(os.Stderr, warningStyle.Render("[Stopped] response incomplete"))
			}
			if !args.Quiet {
				fmt.Fprintf(os.Stderr, "%s %s frames | %s\n",
					infoStyle.Render("[Stats]"),
					formatCount(msg.Frames),
					time.Since(start).Round(time.Millisecond))
			}
			return nil

		case session.StreamFailedMsg:
			return msg.Err
		}
	}
}
