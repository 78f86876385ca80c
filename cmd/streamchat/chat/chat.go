// Package chatcmder provides the chat command, an interactive line based
// client for a streaming chat service.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/streamchat/cmd/streamchat/backend"
	"github.com/papercomputeco/streamchat/pkg/chat"
	"github.com/papercomputeco/streamchat/pkg/client"
	"github.com/papercomputeco/streamchat/pkg/config"
	"github.com/papercomputeco/streamchat/pkg/dotdir"
	"github.com/papercomputeco/streamchat/pkg/logger"
	"github.com/papercomputeco/streamchat/pkg/recorder"
)

type chatCommander struct {
	configDir string
	debug     bool

	target         string
	systemPrompt   string
	timeout        uint
	sqlitePath     string
	postgresDSN    string
	eventsProvider string
	kafkaBrokers   []string
	kafkaTopic     string

	newSession bool
	ephemeral  bool
	capture    string
	logFile    string

	in  io.Reader
	out io.Writer

	logger *slog.Logger
}

const chatLongDesc string = `Start an interactive chat session with a streaming chat service.

Replies are printed token by token as the service streams them. The session
identity is kept in the .streamchat/ directory and reused on the next run so
the service can keep its conversation memory. Every concluded exchange is
archived (SQLite by default, PostgreSQL when a DSN is configured) and can be
published to Kafka.

While a reply is streaming, Ctrl+C stops it. When idle, Ctrl+C exits.

Commands:
  /reset           Start a new conversation with a fresh session identity
  /system [text]   Show or replace the system prompt
  /session         Show the current session identity
  /exit            Quit (Ctrl+D works too)

Examples:
  streamchat chat
  streamchat chat --target http://localhost:8080 --system "Answer tersely."
  streamchat chat --new --capture stream.log`

const chatShortDesc string = "Interactive streaming chat"

var chatFlags = []string{
	config.FlagTarget,
	config.FlagSystemPrompt,
	config.FlagTimeout,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagEventsProvider,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.DefaultFlags, chatFlags)

			cfg := config.FromViper(v)
			cmder.target = cfg.Client.Target
			cmder.systemPrompt = cfg.Client.SystemPrompt
			cmder.timeout = cfg.Client.TimeoutSeconds
			cmder.sqlitePath = cfg.Storage.SQLitePath
			cmder.postgresDSN = cfg.Storage.PostgresDSN
			cmder.eventsProvider = cfg.Events.Provider
			cmder.kafkaBrokers = cfg.Events.Brokers
			cmder.kafkaTopic = cfg.Events.Topic
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()

			interrupts := make(chan os.Signal, 1)
			signal.Notify(interrupts, os.Interrupt)
			defer signal.Stop(interrupts)

			return cmder.run(cmd.Context(), interrupts)
		},
	}

	config.AddStringFlag(cmd, config.DefaultFlags, config.FlagTarget, &cmder.target)
	config.AddStringFlag(cmd, config.DefaultFlags, config.FlagSystemPrompt, &cmder.systemPrompt)
	config.AddUintFlag(cmd, config.DefaultFlags, config.FlagTimeout, &cmder.timeout)
	config.AddStringFlag(cmd, config.DefaultFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.DefaultFlags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.DefaultFlags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringSliceFlag(cmd, config.DefaultFlags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.DefaultFlags, config.FlagKafkaTopic, &cmder.kafkaTopic)

	cmd.Flags().BoolVar(&cmder.newSession, "new", false, "Start with a fresh session identity")
	cmd.Flags().BoolVar(&cmder.ephemeral, "no-archive", false, "Keep exchanges in memory only")
	cmd.Flags().StringVar(&cmder.capture, "capture", "", "Append the raw event stream of every exchange to this file")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Write logs to this file")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, interrupts <-chan os.Signal) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	closeLog, err := c.setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	manager := dotdir.NewManager()

	sessionID := ""
	if !c.newSession {
		state, err := manager.LoadSession(c.configDir)
		if err != nil {
			return fmt.Errorf("loading session: %w", err)
		}
		if state != nil {
			sessionID = state.SessionID
		}
	}

	driver, err := backend.OpenDriver(ctx, config.StorageConfig{
		SQLitePath:  c.sqlitePath,
		PostgresDSN: c.postgresDSN,
	}, c.configDir, c.ephemeral)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := backend.OpenPublisher(config.EventsConfig{
		Provider: c.eventsProvider,
		Brokers:  c.kafkaBrokers,
		Topic:    c.kafkaTopic,
	})
	if err != nil {
		return err
	}
	defer publisher.Close()

	pool, err := recorder.NewPool(&recorder.Config{
		Driver:    driver,
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("starting recorder: %w", err)
	}
	defer pool.Close()

	opts := []chat.Option{
		chat.WithTransport(client.New(c.target,
			client.WithTimeout(time.Duration(c.timeout)*time.Second),
			client.WithLogger(c.logger),
		)),
		chat.WithSessionStore(chat.SessionStoreFunc(func(id string) error {
			return manager.SaveSession(id, c.configDir)
		})),
		chat.WithSessionID(sessionID),
		chat.WithSystemPrompt(c.systemPrompt),
		chat.WithLogger(c.logger),
	}

	if c.capture != "" {
		f, err := os.OpenFile(c.capture, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening capture file: %w", err)
		}
		defer f.Close()
		opts = append(opts, chat.WithCapture(f))
	}

	r := newRenderer(c.out)
	opts = append(opts, chat.WithUpdateHandler(func(u chat.Update) {
		r.handle(u)
		pool.Observe(u)
	}))

	ctrl := chat.NewController(opts...)
	defer ctrl.Wait()

	if err := manager.SaveSession(ctrl.SessionID(), c.configDir); err != nil {
		c.logger.Warn("failed to persist session id", "error", err)
	}

	c.logger.Info("chat started",
		"target", c.target,
		"session_id", ctrl.SessionID(),
		"resumed", sessionID != "",
	)

	fmt.Fprintln(c.out)
	if sessionID != "" {
		r.notice("Resuming session %s", ctrl.SessionID())
	} else {
		r.notice("New session %s", ctrl.SessionID())
	}
	r.greet(ctrl.Transcript().Snapshot())

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-interrupts:
				if !ok {
					return
				}
				if !ctrl.Cancel() {
					cancel()
					return
				}
			}
		}
	}()

	lines := readLines(ctx, c.in)
	for {
		r.prompt()

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(c.out)
			return nil
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := c.command(ctx, ctrl, r, input); quit {
				return nil
			}
			continue
		}

		if _, err := ctrl.Send(ctx, input); err != nil {
			if errors.Is(err, chat.ErrEmptyPrompt) {
				continue
			}
			return err
		}
	}
}

// command runs a slash command and reports whether the REPL should exit.
func (c *chatCommander) command(ctx context.Context, ctrl *chat.Controller, r *renderer, input string) bool {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/exit", "/quit":
		return true

	case "/reset":
		ctrl.Reset(ctx)

	case "/session":
		r.notice("Session %s", ctrl.SessionID())

	case "/system":
		if arg == "" {
			r.notice("System prompt: %s", ctrl.SystemPrompt())
			return false
		}
		ctrl.SetSystemPrompt(arg)
		r.notice("System prompt updated")

	default:
		r.notice("Unknown command %s. Try /reset, /system, /session or /exit.", name)
	}
	return false
}

// readLines delivers input lines until EOF or ctx is done.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// setupLogger writes JSON records to --log-file and pretty records to
// stderr with --debug. With neither, logs are discarded so they never
// interleave with the transcript.
func (c *chatCommander) setupLogger() (func(), error) {
	var (
		sinks  []*slog.Logger
		closer = func() {}
	)

	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		closer = func() { _ = f.Close() }
		sinks = append(sinks, logger.New(
			logger.WithWriter(f),
			logger.WithFormat(logger.FormatJSON),
			logger.WithDebug(c.debug),
		))
	}
	if c.debug {
		sinks = append(sinks, logger.New(
			logger.WithWriter(os.Stderr),
			logger.WithFormat(logger.FormatPretty),
			logger.WithDebug(true),
		))
	}

	if len(sinks) == 0 {
		c.logger = logger.Nop()
		return closer, nil
	}
	c.logger = logger.Multi(sinks...)
	return closer, nil
}
