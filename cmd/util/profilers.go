package util

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cpuProfileFile *os.File
)

// StartProfiling starts CPU profiling when --cpuprofile is set in v.
func StartProfiling(v *viper.Viper) error {
	if v.GetString("cpuprofile") != "" {
		var err error
		cpuProfileFile, err = os.Create(v.GetString("cpuprofile"))
		if err != nil {
			return errors.Wrap(err, "could not create CPU profile")
		}
		if err := pprof.StartCPUProfile(cpuProfileFile); err != nil {
			cpuProfileFile.Close()
			cpuProfileFile = nil
			return errors.Wrap(err, "could not start CPU profile")
		}
	}
	return nil
}

// StopProfiling writes the heap profile named by --memprofile and stops CPU
// profiling if StartProfiling started it.
func StopProfiling(v *viper.Viper) error {
	if v.GetString("memprofile") != "" {
		f, err := os.Create(v.GetString("memprofile"))
		if err != nil {
			return errors.Wrap(err, "could not create memory profile")
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			return errors.Wrap(err, "could not write memory profile")
		}
	}

	if cpuProfileFile != nil {
		pprof.StopCPUProfile()
		err := cpuProfileFile.Close()
		cpuProfileFile = nil
		return err
	}
	return nil
}

// AddProfilingFlags adds the --cpuprofile and --memprofile flags to the given command.
func AddProfilingFlags(cmd *cobra.Command) {
	// Persistent flags to make available to subcommands
	cmd.PersistentFlags().String("cpuprofile", "", "File path to write cpu profiling data")
	cmd.PersistentFlags().String("memprofile", "", "File path to write memory profiling data")
}
