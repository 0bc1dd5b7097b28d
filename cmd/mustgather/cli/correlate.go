package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/replicatedhq/mustgather/pkg/mustgather"
	"github.com/spf13/cobra"
)

func CorrelateCmd() *cobra.Command {
	kinds := []string{}
	for _, k := range mustgather.LinkKinds() {
		kinds = append(kinds, string(k))
	}

	cmd := &cobra.Command{
		Use:   "correlate [path]",
		Args:  cobra.ExactArgs(1),
		Short: "List the records linked to one resource",
		Long: `Parse a must-gather bundle and list the records linked to the named
resource, for example the agents of a cluster or the nodes of a pool.`,
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

			linked, err := mustgather.Correlate(result, mustgather.LinkKind(r.v.GetString("link")), mustgather.LinkParams{
				Name:               r.v.GetString("name"),
				Namespace:          r.v.GetString("namespace"),
				MatchEmptySelector: r.config.MatchEmptySelector,
			})
			if err != nil {
				return err
			}

			return write(cmd.OutOrStdout(), r.v.GetString("output"), linked, func(w io.Writer) error {
				if len(linked) == 0 {
					fmt.Fprintln(w, "No linked records")
					return nil
				}
				for _, rec := range linked {
					fmt.Fprintf(w, "%s %s\n", rec.Kind(), rec.Key())
				}
				return nil
			})
		},
	}

	cmd.Flags().String("link", "", "link to follow: "+strings.Join(kinds, ", "))
	cmd.Flags().String("name", "", "name of the resource to start from")
	cmd.Flags().String("namespace", "", "namespace of the resource to start from")
	cmd.MarkFlagRequired("link")
	cmd.MarkFlagRequired("name")

	return cmd
}
