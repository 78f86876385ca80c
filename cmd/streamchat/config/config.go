// Package configcmder provides the config command for managing persistent
// streamchat configuration stored in the .streamchat/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/streamchat/pkg/config"
)

const configLongDesc string = `Manage persistent streamchat configuration.

Configuration is stored as config.toml in the .streamchat/ directory and
provides default values for command flags. CLI flags and STREAMCHAT_*
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  client.target, client.system_prompt, client.timeout_seconds,
  storage.sqlite_path, storage.postgres_dsn,
  events.provider, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  streamchat config set <key> <value>    Set a configuration value
  streamchat config get <key>            Get a configuration value
  streamchat config list                 List all configuration values

Examples:
  streamchat config set client.target http://localhost:8080
  streamchat config set events.brokers broker-1:9092,broker-2:9092
  streamchat config get client.system_prompt
  streamchat config list`

const configShortDesc string = "Manage persistent streamchat configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
