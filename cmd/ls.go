package cmd

import (
	"github.com/spf13/cobra"

	"github.com/chenyuwen/myf2fs/pkg/app"
	"github.com/chenyuwen/myf2fs/pkg/app/inspect"
)

var (
	lsRecursive  bool
	lsMaxResults int
)

var lsCmd = &cobra.Command{
	Use:   "ls <image> [path]",
	Short: "List a directory",
	Long: `List the entries of a directory, inline or block-resident. The path
defaults to the root directory.

Examples:
  myf2fs ls userdata.img
  myf2fs ls userdata.img /data/app -r --limit 500`,

	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/"
		if len(args) == 2 {
			path = args[1]
		}
		return runInspect(cmd, &inspect.Request{
			Target:     app.ImageTarget{Path: args[0]},
			Kind:       inspect.KindList,
			Path:       path,
			Recursive:  lsRecursive,
			MaxResults: lsMaxResults,
		})
	},
}

var statCmd = &cobra.Command{
	Use:   "stat <image> <path>",
	Short: "Describe one path",

	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd, &inspect.Request{
			Target: app.ImageTarget{Path: args[0]},
			Kind:   inspect.KindStat,
			Path:   args[1],
		})
	},
}

func init() {
	rootCmd.AddCommand(lsCmd, statCmd)

	lsCmd.Flags().BoolVarP(&lsRecursive, "recursive", "r", false, "list subdirectories recursively")
	lsCmd.Flags().IntVar(&lsMaxResults, "limit", defaultMaxResults, "maximum entries")
}
