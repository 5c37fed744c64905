package cmd

import (
	"github.com/spf13/cobra"

	"github.com/chenyuwen/myf2fs/pkg/app"
	"github.com/chenyuwen/myf2fs/pkg/app/inspect"
)

var superCmd = &cobra.Command{
	Use:   "super <image>",
	Short: "Show the validated superblock",
	Long: `Read both superblock copies, validate them and show the accepted one.

Examples:
  myf2fs super userdata.img
  myf2fs super /dev/sdb1 -o json`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd, &inspect.Request{
			Target: app.ImageTarget{Path: args[0]},
			Kind:   inspect.KindSuperblock,
		})
	},
}

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint <image>",
	Short: "Show the current checkpoint",
	Long: `Validate both checkpoint packs and show the one with the newer version,
including the active node and data log positions.

Examples:
  myf2fs checkpoint userdata.img`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd, &inspect.Request{
			Target: app.ImageTarget{Path: args[0]},
			Kind:   inspect.KindCheckpoint,
		})
	},
}

func init() {
	rootCmd.AddCommand(superCmd, checkpointCmd)
}
