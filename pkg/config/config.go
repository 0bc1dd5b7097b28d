// Package config layers flags, MUSTGATHER_* environment variables and an
// optional config file into the settings of one run.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	analyzer "github.com/replicatedhq/mustgather/pkg/analyze"
	"github.com/replicatedhq/mustgather/pkg/constants"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	KeyConfig             = "config"
	KeyWorkers            = "workers"
	KeyTimeout            = "timeout"
	KeyTempDir            = "temp-dir"
	KeySeverityThreshold  = "severity-threshold"
	KeyStuckUpdateAfter   = "stuck-update-after"
	KeyMatchEmptySelector = "match-empty-selector"
	KeyLogMaxDepth        = "log-max-depth"
	KeyLogMaxLineBytes    = "log-max-line-bytes"
)

type Config struct {
	Workers            int
	Timeout            time.Duration
	TempDir            string
	SeverityThreshold  analyzer.Severity
	StuckUpdateAfter   time.Duration
	MatchEmptySelector bool
	LogMaxDepth        int
	LogMaxLineBytes    int
}

// AddFlags registers the configuration flags. Defaults live in viper, so
// flags left unset fall back to the environment and the config file.
func AddFlags(flags *pflag.FlagSet) {
	flags.String(KeyConfig, "", "path to a config file (yaml, json or toml)")
	flags.Int(KeyWorkers, constants.DEFAULT_WORKERS, "number of concurrent file readers")
	flags.Duration(KeyTimeout, constants.DEFAULT_PARSE_TIMEOUT, "timeout for a whole run, 0 for none")
	flags.String(KeyTempDir, "", "parent directory for extracted archives")
	flags.String(KeySeverityThreshold, string(analyzer.SeverityWarning), "lowest severity reported: info, warning or critical")
	flags.Duration(KeyStuckUpdateAfter, constants.DEFAULT_STUCK_UPDATE_AFTER, "how long a machine config pool may be updating before it is reported")
	flags.Bool(KeyMatchEmptySelector, false, "machine config pools without a node selector select every node")
	flags.Int(KeyLogMaxDepth, constants.DEFAULT_LOG_MAX_DEPTH, "how deep below a pod directory logs are searched for")
	flags.Int(KeyLogMaxLineBytes, constants.DEFAULT_LOG_MAX_LINE_BYTES, "log lines longer than this are truncated")
}

// Init wires v to the environment and sets the defaults.
func Init(v *viper.Viper) {
	v.SetEnvPrefix(constants.ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyWorkers, constants.DEFAULT_WORKERS)
	v.SetDefault(KeyTimeout, constants.DEFAULT_PARSE_TIMEOUT)
	v.SetDefault(KeySeverityThreshold, string(analyzer.SeverityWarning))
	v.SetDefault(KeyStuckUpdateAfter, constants.DEFAULT_STUCK_UPDATE_AFTER)
	v.SetDefault(KeyMatchEmptySelector, false)
	v.SetDefault(KeyLogMaxDepth, constants.DEFAULT_LOG_MAX_DEPTH)
	v.SetDefault(KeyLogMaxLineBytes, constants.DEFAULT_LOG_MAX_LINE_BYTES)
}

// Load reads the config file named by the config key, if any, and returns
// the validated configuration.
func Load(v *viper.Viper) (*Config, error) {
	if file := v.GetString(KeyConfig); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", file)
		}
	}

	threshold, err := analyzer.ParseSeverity(v.GetString(KeySeverityThreshold))
	if err != nil {
		return nil, errors.Wrap(err, KeySeverityThreshold)
	}

	c := &Config{
		Workers:            v.GetInt(KeyWorkers),
		Timeout:            v.GetDuration(KeyTimeout),
		TempDir:            v.GetString(KeyTempDir),
		SeverityThreshold:  threshold,
		StuckUpdateAfter:   v.GetDuration(KeyStuckUpdateAfter),
		MatchEmptySelector: v.GetBool(KeyMatchEmptySelector),
		LogMaxDepth:        v.GetInt(KeyLogMaxDepth),
		LogMaxLineBytes:    v.GetInt(KeyLogMaxLineBytes),
	}

	switch {
	case c.Workers <= 0:
		return nil, errors.Errorf("%s must be positive, got %d", KeyWorkers, c.Workers)
	case c.Timeout < 0:
		return nil, errors.Errorf("%s must not be negative", KeyTimeout)
	case c.StuckUpdateAfter <= 0:
		return nil, errors.Errorf("%s must be positive", KeyStuckUpdateAfter)
	case c.LogMaxDepth <= 0:
		return nil, errors.Errorf("%s must be positive, got %d", KeyLogMaxDepth, c.LogMaxDepth)
	case c.LogMaxLineBytes <= 0:
		return nil, errors.Errorf("%s must be positive, got %d", KeyLogMaxLineBytes, c.LogMaxLineBytes)
	}
	return c, nil
}
