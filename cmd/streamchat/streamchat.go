// Package streamchatcmder
package streamchatcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/streamchat/cmd/streamchat/chat"
	configcmder "github.com/papercomputeco/streamchat/cmd/streamchat/config"
	historycmder "github.com/papercomputeco/streamchat/cmd/streamchat/history"
	sessioncmder "github.com/papercomputeco/streamchat/cmd/streamchat/session"
	versioncmder "github.com/papercomputeco/streamchat/cmd/version"
)

const streamchatLongDesc string = `Streamchat is a terminal client for streaming chat services.

Talk to a service using:
  streamchat chat               Start an interactive chat
  streamchat history            Browse archived exchanges
  streamchat session reset      Start a new conversation`

const streamchatShortDesc string = "Streamchat - streaming chat client"

func NewStreamchatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "streamchat",
		Short:        streamchatShortDesc,
		Long:         streamchatLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .streamchat/ directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(sessioncmder.NewSessionCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
