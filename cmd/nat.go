package cmd

import (
	"github.com/spf13/cobra"

	"github.com/chenyuwen/myf2fs/pkg/app"
	"github.com/chenyuwen/myf2fs/pkg/app/inspect"
)

var natNIDs []uint

var natCmd = &cobra.Command{
	Use:   "nat <image>",
	Short: "Show NAT state and resolve node ids",
	Long: `Show the NAT geometry, how many NAT blocks are current in their
alternate copy and the nat_bits summary. Each --nid is resolved to its NAT
entry and node block address.

Examples:
  myf2fs nat userdata.img
  myf2fs nat userdata.img --nid 3 --nid 42`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nids := make([]uint32, 0, len(natNIDs))
		for _, nid := range natNIDs {
			nids = append(nids, uint32(nid))
		}
		return runInspect(cmd, &inspect.Request{
			Target: app.ImageTarget{Path: args[0]},
			Kind:   inspect.KindNAT,
			NIDs:   nids,
		})
	},
}

func init() {
	rootCmd.AddCommand(natCmd)

	natCmd.Flags().UintSliceVar(&natNIDs, "nid", nil, "node id to resolve (repeatable)")
}
