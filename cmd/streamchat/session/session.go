// Package sessioncmder provides the session command for inspecting and
// rotating the chat session identity.
package sessioncmder

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/streamchat/pkg/chat"
	"github.com/papercomputeco/streamchat/pkg/client"
	"github.com/papercomputeco/streamchat/pkg/cliui"
	"github.com/papercomputeco/streamchat/pkg/config"
	"github.com/papercomputeco/streamchat/pkg/dotdir"
	"github.com/papercomputeco/streamchat/pkg/logger"
)

const sessionLongDesc string = `Show the chat session identity.

The identity scopes the chat service's conversation memory. It is stored in
the .streamchat/ directory and resumed by "streamchat chat".

Examples:
  streamchat session
  streamchat session reset`

const sessionShortDesc string = "Show the chat session identity"

const resetLongDesc string = `Start a new conversation.

Replaces the stored session identity with a fresh one and asks the chat
service to forget the previous conversation. Deletion is best effort; the
new identity is kept even if the service cannot be reached.

Examples:
  streamchat session reset
  streamchat session reset --target http://localhost:8080`

const resetShortDesc string = "Start a new conversation"

func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: sessionShortDesc,
		Long:  sessionLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runShow(cmd.OutOrStdout(), configDir)
		},
	}

	cmd.AddCommand(newResetCmd())
	return cmd
}

func runShow(w io.Writer, configDir string) error {
	state, err := dotdir.NewManager().LoadSession(configDir)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	if state == nil {
		fmt.Fprintf(w, "  %s No session yet. The next chat will start a new one.\n",
			cliui.Render(w, cliui.DimStyle, "●"))
		return nil
	}

	fmt.Fprintf(w, "\n  %s  %s\n", cliui.Render(w, cliui.KeyStyle, "Session:"), cliui.Render(w, cliui.HashStyle, state.SessionID))
	fmt.Fprintf(w, "  %s  %s\n\n", cliui.Render(w, cliui.KeyStyle, "Updated:"),
		cliui.Render(w, cliui.DimStyle, state.UpdatedAt.Local().Format(time.RFC3339)))
	return nil
}

var resetFlags = []string{
	config.FlagTarget,
	config.FlagTimeout,
}

type resetCommander struct {
	configDir string
	target    string
	timeout   uint
	debug     bool
}

func newResetCmd() *cobra.Command {
	cmder := &resetCommander{}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: resetShortDesc,
		Long:  resetLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.DefaultFlags, resetFlags)

			cfg := config.FromViper(v)
			cmder.target = cfg.Client.Target
			cmder.timeout = cfg.Client.TimeoutSeconds
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.DefaultFlags, config.FlagTarget, &cmder.target)
	config.AddUintFlag(cmd, config.DefaultFlags, config.FlagTimeout, &cmder.timeout)

	return cmd
}

func (c *resetCommander) run(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log := logger.Nop()
	if c.debug {
		log = logger.New(logger.WithDebug(true), logger.WithFormat(logger.FormatPretty), logger.WithWriter(w))
	}

	manager := dotdir.NewManager()
	state, err := manager.LoadSession(c.configDir)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	opts := []chat.Option{
		chat.WithSessionStore(chat.SessionStoreFunc(func(id string) error {
			return manager.SaveSession(id, c.configDir)
		})),
		chat.WithLogger(log),
	}

	// Without a stored identity there is no server memory to forget.
	if state != nil {
		opts = append(opts,
			chat.WithSessionID(state.SessionID),
			chat.WithTransport(client.New(c.target,
				client.WithTimeout(time.Duration(c.timeout)*time.Second),
				client.WithLogger(log),
			)),
		)
	}

	ctrl := chat.NewController(opts...)

	var next string
	err = cliui.Step(w, "Starting a new session", func() error {
		next = ctrl.Reset(ctx)
		ctrl.Wait()

		saved, err := manager.LoadSession(c.configDir)
		if err != nil {
			return err
		}
		if saved == nil || saved.SessionID != next {
			return fmt.Errorf("session %s was not saved", next)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if state != nil {
		fmt.Fprintf(w, "  %s  %s\n", cliui.Render(w, cliui.KeyStyle, "Previous:"), cliui.Render(w, cliui.DimStyle, state.SessionID))
	}
	fmt.Fprintf(w, "  %s  %s\n\n", cliui.Render(w, cliui.KeyStyle, "Session: "), cliui.Render(w, cliui.HashStyle, next))
	return nil
}
