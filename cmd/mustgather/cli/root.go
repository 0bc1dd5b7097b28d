package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/replicatedhq/mustgather/cmd/util"
	"github.com/replicatedhq/mustgather/internal/traces"
	"github.com/replicatedhq/mustgather/pkg/config"
	"github.com/replicatedhq/mustgather/pkg/constants"
	"github.com/replicatedhq/mustgather/pkg/logger"
	"github.com/replicatedhq/mustgather/pkg/mustgather"
	"github.com/replicatedhq/mustgather/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mustgather",
		Short: "Parse and analyze OpenShift must-gather bundles",
		Long: `Reads a must-gather directory or .tar.gz archive, links the resources it
contains and reports the problems it finds, ordered by severity.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.GetViper()
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			logger.SetupLogger(v)
			if v.GetBool("no-color") {
				color.NoColor = true
			}

			if err := util.StartProfiling(v); err != nil {
				klog.Errorf("Failed to start profiling: %v", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if err := util.StopProfiling(viper.GetViper()); err != nil {
				klog.Errorf("Failed to stop profiling: %v", err)
			}
		},
	}

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(ParseCmd())
	cmd.AddCommand(AnalyzeCmd())
	cmd.AddCommand(LogsCmd())
	cmd.AddCommand(CorrelateCmd())
	cmd.AddCommand(VersionCmd())

	flags := cmd.PersistentFlags()
	config.AddFlags(flags)
	flags.StringP("output", "o", outputText, "output format: text, json or yaml")
	flags.Bool("debug", false, "enable debug logging")
	flags.Bool("trace", false, "print a timing summary of parse passes and rules")
	flags.Bool("no-color", false, "disable coloured text output")

	logger.InitKlogFlags(flags)
	util.AddProfilingFlags(cmd)

	return cmd
}

func InitAndExecute() {
	if err := RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		var exitErr types.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitStatus())
		}
		os.Exit(1)
	}
}

func initConfig() {
	config.Init(viper.GetViper())
}

// run holds what every subcommand needs once flags are resolved.
type run struct {
	v      *viper.Viper
	config *config.Config
	rc     *mustgather.RunContext
	ctx    context.Context
	span   trace.Span
	closer func()
}

func newRun(cmd *cobra.Command) (*run, error) {
	v := viper.GetViper()
	c, err := config.Load(v)
	if err != nil {
		return nil, types.NewInvalidInputError(v.GetString(config.KeyConfig), "invalid configuration", err)
	}

	r := &run{
		v:      v,
		config: c,
		rc:     mustgather.NewRunContext(logger.NewLogger("mustgather"), c.Workers),
		closer: func() {},
	}

	if v.GetBool("trace") {
		closer, err := traces.ConfigureTracing("mustgather")
		if err != nil {
			// Do not fail the command if tracing fails
			klog.Errorf("Failed to initialize open tracing provider: %v", err)
		} else {
			r.closer = closer
		}
	}
	r.ctx, r.span = otel.Tracer(constants.LIB_TRACER_NAME).Start(cmd.Context(), constants.MUSTGATHER_ROOT_SPAN_NAME)
	return r, nil
}

// finish ends the root span and prints the trace summary when asked to.
func (r *run) finish() {
	r.span.End()
	if r.v.GetBool("trace") {
		fmt.Fprintf(os.Stderr, "\n%s", traces.GetExporterInstance().GetSummary())
	}
	r.closer()
}
