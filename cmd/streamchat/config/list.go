package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/streamchat/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays all configuration keys and their current values from the
config.toml file stored in the .streamchat/ directory, with defaults
filled in.

Examples:
  streamchat config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir)
		},
	}

	return cmd
}

func runList(w io.Writer, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Fprintf(w, "Using config file: %s\n\n", cfger.GetTarget())

	values, err := cfger.ListConfigValues()
	if err != nil {
		return err
	}

	// Find the longest key name for alignment.
	maxLen := 0
	for _, kv := range values {
		maxLen = max(maxLen, len(kv.Key))
	}

	for _, kv := range values {
		if kv.Value == "" {
			fmt.Fprintf(w, "%-*s = <not set>\n", maxLen, kv.Key)
		} else {
			fmt.Fprintf(w, "%-*s = %q\n", maxLen, kv.Key, kv.Value)
		}
	}

	return nil
}
