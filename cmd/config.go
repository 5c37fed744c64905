package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging defaults, the config file,
MYF2FS_* environment variables and flags.`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := appCtx.Writer()

		switch appCtx.OutputFormat {
		case "json":
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			return encoder.Encode(appCtx.Config)
		case "yaml", "table":
			encoder := yaml.NewEncoder(out)
			defer encoder.Close()
			encoder.SetIndent(2)
			return encoder.Encode(appCtx.Config)
		default:
			return fmt.Errorf("unsupported output format: %s", appCtx.OutputFormat)
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
