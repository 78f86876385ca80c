// Package historycmder provides the history command for browsing archived
// chat exchanges.
package historycmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/streamchat/cmd/streamchat/backend"
	"github.com/papercomputeco/streamchat/pkg/chat"
	"github.com/papercomputeco/streamchat/pkg/cliui"
	"github.com/papercomputeco/streamchat/pkg/config"
	"github.com/papercomputeco/streamchat/pkg/dotdir"
	"github.com/papercomputeco/streamchat/pkg/storage"
)

const historyLongDesc string = `Show archived chat exchanges.

Without flags, lists every archived session with its exchange count and last
activity. With --session, prints the exchanges of that session in order;
replies are rendered as markdown when writing to a terminal.

Use --session current for the identity the chat command will resume.

Examples:
  streamchat history
  streamchat history --session current
  streamchat history --session chat-6f1c... --postgres postgres://localhost/streamchat`

const historyShortDesc string = "Show archived chat exchanges"

// previewWidth is the prompt preview width used in non-terminal output.
const previewWidth = 72

var historyFlags = []string{
	config.FlagSQLite,
	config.FlagPostgres,
}

type historyCommander struct {
	configDir   string
	sessionID   string
	sqlitePath  string
	postgresDSN string
}

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.DefaultFlags, historyFlags)

			cfg := config.FromViper(v)
			cmder.sqlitePath = cfg.Storage.SQLitePath
			cmder.postgresDSN = cfg.Storage.PostgresDSN
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.DefaultFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.DefaultFlags, config.FlagPostgres, &cmder.postgresDSN)
	cmd.Flags().StringVar(&cmder.sessionID, "session", "", `Session to show ("current" for the resumed session)`)

	return cmd
}

func (c *historyCommander) run(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	driver, err := backend.OpenDriver(ctx, config.StorageConfig{
		SQLitePath:  c.sqlitePath,
		PostgresDSN: c.postgresDSN,
	}, c.configDir, false)
	if err != nil {
		return err
	}
	defer driver.Close()

	sessionID, err := c.resolveSession()
	if err != nil {
		return err
	}

	if sessionID == "" {
		return listSessions(ctx, w, driver)
	}
	return showSession(ctx, w, driver, sessionID)
}

func (c *historyCommander) resolveSession() (string, error) {
	if c.sessionID != "current" {
		return c.sessionID, nil
	}

	state, err := dotdir.NewManager().LoadSession(c.configDir)
	if err != nil {
		return "", fmt.Errorf("loading session: %w", err)
	}
	if state == nil {
		return "", errors.New(`no current session; start one with "streamchat chat"`)
	}
	return state.SessionID, nil
}

func listSessions(ctx context.Context, w io.Writer, driver storage.Driver) error {
	sessions, err := driver.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Fprintf(w, "  %s No archived exchanges yet.\n", cliui.Render(w, cliui.DimStyle, "●"))
		return nil
	}

	fmt.Fprintln(w)
	for _, s := range sessions {
		fmt.Fprintf(w, "  %s  %s  %s\n",
			cliui.Render(w, cliui.HashStyle, s.SessionID),
			cliui.Render(w, cliui.NameStyle, strconv.Itoa(s.Exchanges)+" exchanges"),
			cliui.Render(w, cliui.DimStyle, s.LastActive.Local().Format("2006-01-02 15:04:05")),
		)
	}
	fmt.Fprintln(w)
	return nil
}

func showSession(ctx context.Context, w io.Writer, driver storage.Driver, sessionID string) error {
	exchanges, err := driver.List(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("listing exchanges: %w", err)
	}

	if len(exchanges) == 0 {
		fmt.Fprintf(w, "  %s No exchanges for session %s.\n", cliui.Render(w, cliui.DimStyle, "●"), sessionID)
		return nil
	}

	tty := cliui.IsTerminal(w)
	width := cliui.TerminalWidth(w, 80)

	fmt.Fprintf(w, "\n  %s  %s\n\n",
		cliui.Render(w, cliui.KeyStyle, "Session:"),
		cliui.Render(w, cliui.HashStyle, sessionID),
	)

	for i, ex := range exchanges {
		fmt.Fprintf(w, "  %s %s %s\n",
			cliui.Render(w, cliui.DimStyle, fmt.Sprintf("%d.", i+1)),
			cliui.Render(w, cliui.UserStyle, "you>"),
			ex.Prompt,
		)

		fmt.Fprintf(w, "     %s %s %s\n",
			dispositionMark(w, ex.Disposition),
			cliui.Render(w, cliui.AssistantStyle, "assistant>"),
			cliui.Render(w, cliui.DimStyle, fmt.Sprintf("(%s)", cliui.FormatDuration(ex.Duration()))),
		)

		reply := ex.Reply
		if tty && reply != "" {
			rendered, err := cliui.RenderMarkdown(reply, width-4)
			if err == nil {
				reply = rendered
			}
			fmt.Fprintln(w, reply)
		} else if reply != "" {
			fmt.Fprintf(w, "     %s\n", cliui.Preview(reply, previewWidth))
		}

		if ex.Error != "" {
			fmt.Fprintf(w, "     %s\n", cliui.Render(w, cliui.ErrorStyle, "Streaming failed: "+ex.Error))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func dispositionMark(w io.Writer, d chat.Disposition) string {
	switch d {
	case chat.DispositionCompleted:
		return cliui.Render(w, cliui.DimStyle, "✓")
	case chat.DispositionCancelled:
		return cliui.Render(w, cliui.DimStyle, "–")
	default:
		return cliui.Render(w, cliui.ErrorStyle, "✗")
	}
}
