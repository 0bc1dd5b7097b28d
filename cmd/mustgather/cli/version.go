package cli

import (
	"fmt"
	"io"

	"github.com/replicatedhq/mustgather/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func VersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the current version and exit",
		Long:  `Print the current version and exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			build := version.GetBuild()
			return write(cmd.OutOrStdout(), viper.GetString("output"), build, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Replicated MustGather %s\n", build.Version)
				return err
			})
		},
	}
	return cmd
}
