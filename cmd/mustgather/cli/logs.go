package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/replicatedhq/mustgather/pkg/logscan"
	"github.com/replicatedhq/mustgather/pkg/mustgather"
	"github.com/spf13/cobra"
)

func LogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs [path]",
		Args:  cobra.ExactArgs(1),
		Short: "Print the ERROR lines of a pod's container logs",
		Long: `Scan the container logs of one pod in a must-gather bundle and print its
ERROR lines, sanitized, one page at a time. The pod name may be a glob
pattern or a unique prefix.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRun(cmd)
			if err != nil {
				return err
			}
			defer r.finish()

			q := logscan.Query{
				PodName:     r.v.GetString("pod"),
				Namespace:   r.v.GetString("namespace"),
				ClusterName: r.v.GetString("cluster"),
				StartIndex:  r.v.GetInt("start"),
				ChunkSize:   r.v.GetInt("chunk"),
			}
			stop := r.progress("Scanning logs")
			result, err := mustgather.ScanLogs(r.ctx, r.rc, args[0], q, mustgather.LogOptions{
				TempDir:      r.config.TempDir,
				MaxDepth:     r.config.LogMaxDepth,
				MaxLineBytes: r.config.LogMaxLineBytes,
			})
			stop()
			if err != nil {
				return err
			}

			return write(cmd.OutOrStdout(), r.v.GetString("output"), result, func(w io.Writer) error {
				writeLogLines(w, result)
				writeWarnings(w, result.Warnings)
				return nil
			})
		},
	}

	cmd.Flags().String("pod", "", "pod name, glob pattern or prefix")
	cmd.Flags().String("namespace", "", "namespace of the pod")
	cmd.Flags().String("cluster", "", "only keep lines mentioning this cluster name")
	cmd.Flags().Int("start", 0, "index of the first retained line to print")
	cmd.Flags().Int("chunk", 100, "number of lines to print, 0 for all")
	cmd.MarkFlagRequired("pod")
	cmd.MarkFlagRequired("namespace")

	return cmd
}

func writeLogLines(w io.Writer, result *logscan.Result) {
	if result == nil {
		return
	}
	dim := color.New(color.Faint)
	for _, line := range result.Lines {
		ts := line.RawTimestamp
		if ts == "" {
			ts = "-"
		}
		fmt.Fprintf(w, "%s %s %s\n", dim.Sprintf("%s:%d", line.Container, line.LineNumber), ts, line.Message)
	}
	if result.HasMore {
		fmt.Fprintln(w, dim.Sprint("... more lines available, use --start to page"))
	}
}
