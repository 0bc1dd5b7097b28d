package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/replicatedhq/mustgather/pkg/logscan"
	"github.com/replicatedhq/mustgather/pkg/mustgather"
	"github.com/replicatedhq/mustgather/pkg/types"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
)

func ParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse [path]",
		Args:  cobra.ExactArgs(1),
		Short: "Parse a must-gather bundle and print its records",
		Long: `Parse a must-gather directory or .tar.gz archive into typed records.
Files that cannot be read are skipped and reported as warnings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRun(cmd)
			if err != nil {
				return err
			}
			defer r.finish()

			queries, err := logQueries(r.v.GetStringSlice("logs"))
			if err != nil {
				return err
			}

			stop := r.progress("Parsing bundle")
			result, err := mustgather.Parse(r.ctx, r.rc, args[0], r.parseOptions(queries))
			stop()
			if err != nil {
				return err
			}

			return write(cmd.OutOrStdout(), r.v.GetString("output"), result, func(w io.Writer) error {
				return writeParseResult(w, result)
			})
		},
	}

	cmd.Flags().StringSlice("logs", nil, "namespace/pod whose ERROR log lines are scanned while parsing, may be repeated")

	return cmd
}

func (r *run) parseOptions(queries []logscan.Query) mustgather.ParseOptions {
	return mustgather.ParseOptions{
		TempDir:         r.config.TempDir,
		Timeout:         r.config.Timeout,
		LogQueries:      queries,
		LogMaxDepth:     r.config.LogMaxDepth,
		LogMaxLineBytes: r.config.LogMaxLineBytes,
	}
}

func logQueries(refs []string) ([]logscan.Query, error) {
	queries := []logscan.Query{}
	for _, ref := range refs {
		namespace, pod, ok := strings.Cut(ref, "/")
		if !ok || namespace == "" || pod == "" {
			return nil, types.NewInvalidInputError("", fmt.Sprintf("--logs %q is not namespace/pod", ref), nil)
		}
		queries = append(queries, logscan.Query{Namespace: namespace, PodName: pod})
	}
	return queries, nil
}

func writeParseResult(w io.Writer, result *mustgather.ParseResult) error {
	bold := color.New(color.Bold)

	info := result.ClusterInfo
	fmt.Fprintf(w, "%s %s\n", bold.Sprint("Parse"), result.ID)
	fmt.Fprintf(w, "Source: %s\n", result.Source)
	if info.Version != "" {
		fmt.Fprintf(w, "Cluster: version %s, channel %s, platform %s\n", info.Version, orNone(info.Channel), orNone(info.Platform))
	}
	fmt.Fprintf(w, "Assisted service: %t\n", result.AssistedServiceActive)

	fmt.Fprintf(w, "\n%s\n", bold.Sprint("Records"))
	kinds := maps.Keys(result.Stats.Records)
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(w, "  %-20s %d\n", kind, result.Stats.Records[kind])
	}
	fmt.Fprintf(w, "\nDocuments: %d, skipped: %d, missing directories: %d\n",
		result.Stats.Documents, result.Stats.Skipped, result.Stats.MissingDirectories)

	pods := maps.Keys(result.Logs)
	sort.Strings(pods)
	for _, pod := range pods {
		fmt.Fprintf(w, "\n%s\n", bold.Sprintf("Logs %s", pod))
		writeLogLines(w, result.Logs[pod])
	}

	writeWarnings(w, result.Warnings)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
