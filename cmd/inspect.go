package cmd

import (
	"github.com/spf13/cobra"

	"github.com/chenyuwen/myf2fs/pkg/app/inspect"
)

// defaultMaxResults bounds ls output unless --limit says otherwise
const defaultMaxResults = 10000

// runInspect handles req through the application layer and prints the
// result in the configured format
func runInspect(cmd *cobra.Command, req *inspect.Request) error {
	req.Target.Offset = imageOffset
	if req.MaxResults == 0 {
		req.MaxResults = defaultMaxResults
	}

	response, err := inspect.Handle(appCtx, req)
	if err != nil {
		return err
	}

	if !appCtx.Quiet {
		if err := inspect.FormatOutput(appCtx.Writer(), response, appCtx.OutputFormat); err != nil {
			return err
		}
	}
	appCtx.Log(inspect.FormatSummary(response))

	if appCtx.Metrics != nil {
		return writeMetrics(cmd.ErrOrStderr(), appCtx.Metrics.Gatherer())
	}
	return nil
}
