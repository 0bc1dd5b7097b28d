package logscan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/replicatedhq/mustgather/pkg/constants"
	"github.com/replicatedhq/mustgather/pkg/types"
)

const globMeta = "*?[{"

func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// findPodDir locates a pod directory below podsDir. An exact name wins, then
// a glob pattern, then a name prefix. When several directories match, the
// lexically first is used and an AmbiguousLayout warning is returned.
func findPodDir(podsDir, podName string) (string, []types.Warning, error) {
	exact := filepath.Join(podsDir, podName)
	if info, err := os.Stat(exact); err == nil && info.IsDir() {
		return exact, nil, nil
	}

	names, err := subdirs(podsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, nil
		}
		return "", nil, errors.Wrapf(err, "failed to list %s", podsDir)
	}

	var matches []string
	if strings.ContainsAny(podName, globMeta) {
		g, err := glob.Compile(podName)
		if err != nil {
			return "", nil, types.NewInvalidInputError(podName, "invalid pod name pattern", err)
		}
		for _, name := range names {
			if g.Match(name) {
				matches = append(matches, name)
			}
		}
	} else {
		for _, name := range names {
			if strings.HasPrefix(name, podName) {
				matches = append(matches, name)
			}
		}
	}

	if len(matches) == 0 {
		return "", nil, nil
	}
	dir := filepath.Join(podsDir, matches[0])
	if len(matches) == 1 {
		return dir, nil, nil
	}
	warning := types.NewWarning(types.AmbiguousLayout, podsDir, "%d pod directories match %q, using %s", len(matches), podName, matches[0])
	return dir, []types.Warning{warning}, nil
}

// findLogDirs searches breadth-first below podDir, at most maxDepth levels
// deep, and returns every logs directory found at the shallowest level that
// has any. Results are in lexical path order.
func findLogDirs(podDir string, maxDepth int) ([]string, error) {
	level := []string{podDir}
	for depth := 1; depth <= maxDepth && len(level) > 0; depth++ {
		found := []string{}
		next := []string{}
		for _, dir := range level {
			names, err := subdirs(dir)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to list %s", dir)
			}
			for _, name := range names {
				path := filepath.Join(dir, name)
				if name == constants.LOGS_DIR {
					found = append(found, path)
				} else {
					next = append(next, path)
				}
			}
		}
		if len(found) > 0 {
			sort.Strings(found)
			return found, nil
		}
		level = next
	}
	return []string{}, nil
}

// logFiles lists the regular files of a logs directory in lexical order.
func logFiles(logsDir string) ([]string, error) {
	entries, err := os.ReadDir(logsDir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", logsDir)
	}
	files := []string{}
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(logsDir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
