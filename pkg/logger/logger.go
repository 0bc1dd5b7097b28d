/*
Logging setup for the mustgather CLI.

Library packages never log through a global logger. They receive a logr.Logger
inside mustgather.RunContext, which the CLI builds with NewLogger.

Logging levels

0: run milestones such as "parsed bundle".

1: per pass information such as the number of documents a pass decoded or an
archive being extracted.

2: everything else, including every skipped file or document.

Do not log errors in functions that return an error. Instead, return the error and let the caller log it.
*/
package logger

import (
	"flag"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

var lock sync.Mutex

// InitKlogFlags adds klog's -v flag to flags.
func InitKlogFlags(flags *pflag.FlagSet) {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)

	klogFlags.VisitAll(func(f *flag.Flag) {
		if f.Name == "v" {
			flags.AddGoFlag(f)
		}
	})
}

// InitKlog sets klog's verbosity. Tests use it to print instrumented logs.
func InitKlog(verbosity int) {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)

	klogFlags.VisitAll(func(f *flag.Flag) {
		if f.Name == "v" {
			f.Value.Set(fmt.Sprintf("%d", verbosity))
		}
	})
}

// SetupLogger silences klog unless --debug or -v was given.
func SetupLogger(v *viper.Viper) {
	verbose := v.GetBool("debug") || v.IsSet("v")
	if v.GetBool("debug") && !v.IsSet("v") {
		InitKlog(2)
	}
	SetQuiet(!verbose)
}

// SetQuiet enables or disables klog logger.
func SetQuiet(quiet bool) {
	lock.Lock()
	defer lock.Unlock()

	if quiet {
		klog.SetLogger(logr.Discard())
	} else {
		klog.ClearLogger()
	}
}

// NewLogger returns the logr.Logger handed to library code.
func NewLogger(name string) logr.Logger {
	return klog.Background().WithName(name)
}
