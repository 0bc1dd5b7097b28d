package cli

import (
	"io"

	analyzer "github.com/replicatedhq/mustgather/pkg/analyze"
	"github.com/replicatedhq/mustgather/pkg/mustgather"
	"github.com/spf13/cobra"
)

func AnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Args:  cobra.ExactArgs(1),
		Short: "Report the problems found in a must-gather bundle",
		Long: `Parse a must-gather bundle and run every rule over it. Issues below the
severity threshold are dropped; the rest are printed most severe first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRun(cmd)
			if err != nil {
				return err
			}
			defer r.finish()

			stop := r.progress("Parsing bundle")
			result, err := mustgather.Parse(r.ctx, r.rc, args[0], r.parseOptions(nil))
			stop()
			if err != nil {
				return err
			}

			analysis, err := mustgather.Analyze(r.ctx, result, analyzer.Options{
				IncludeDegradedOnly: r.v.GetBool("degraded-only"),
				NodeName:            r.v.GetString("node"),
				Namespace:           r.v.GetString("namespace"),
				SeverityThreshold:   r.config.SeverityThreshold,
				StuckUpdatingAfter:  r.config.StuckUpdateAfter,
				MatchEmptySelector:  r.config.MatchEmptySelector,
			})
			if err != nil {
				return err
			}

			return write(cmd.OutOrStdout(), r.v.GetString("output"), analysis, func(w io.Writer) error {
				if err := writeAnalysis(w, analysis); err != nil {
					return err
				}
				writeWarnings(w, result.Warnings)
				return nil
			})
		},
	}

	cmd.Flags().String("namespace", "", "only report namespaced issues from this namespace")
	cmd.Flags().String("node", "", "only report issues about this node, its pools and its pods")
	cmd.Flags().Bool("degraded-only", false, "only report issues about degraded or failed components")

	return cmd
}
