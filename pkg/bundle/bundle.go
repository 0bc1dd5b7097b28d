package bundle

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	"github.com/mholt/archiver/v3"
	"github.com/pkg/errors"
	"github.com/replicatedhq/mustgather/pkg/constants"
	"github.com/replicatedhq/mustgather/pkg/types"
)

// Root is a resolved must-gather bundle on the local filesystem.
type Root struct {
	// Path is the directory holding cluster-scoped-resources and/or namespaces.
	Path string
	// Source is the path the bundle was resolved from.
	Source string

	tmpDir     string
	log        logr.Logger
	once       sync.Once
	cleanupErr error
}

// Extracted reports whether the root lives in a temporary directory created
// by Resolve.
func (r *Root) Extracted() bool {
	return r.tmpDir != ""
}

// Cleanup removes the temporary extraction directory, if any. Only the first
// call does any work; later calls return the first call's result.
func (r *Root) Cleanup() error {
	r.once.Do(func() {
		if r.tmpDir == "" {
			return
		}
		r.log.V(2).Info("removing extracted bundle", "dir", r.tmpDir)
		if err := os.RemoveAll(r.tmpDir); err != nil {
			r.cleanupErr = errors.Wrapf(err, "failed to remove %s", r.tmpDir)
		}
	})
	return r.cleanupErr
}

type Options struct {
	// TempDir is the parent of extraction directories. Empty means os.TempDir().
	TempDir string
	// SearchDepth bounds how many directory levels below the input the bundle
	// root is looked for.
	SearchDepth int
	Log         logr.Logger
}

// IsArchive reports whether path names a gzipped tarball.
func IsArchive(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz")
}

// IsRoot reports whether dir directly contains a must-gather resource tree.
func IsRoot(dir string) bool {
	for _, name := range []string{constants.CLUSTER_SCOPED_DIR, constants.NAMESPACES_DIR} {
		if fi, err := os.Stat(filepath.Join(dir, name)); err == nil && fi.IsDir() {
			return true
		}
	}
	return false
}

// FindRoot searches dir and its subdirectories breadth-first, in lexical
// order, for the shallowest must-gather root no deeper than maxDepth levels.
func FindRoot(dir string, maxDepth int) (string, bool) {
	type entry struct {
		path  string
		depth int
	}
	queue := []entry{{path: dir}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if IsRoot(cur.path) {
			return cur.path, true
		}
		if cur.depth >= maxDepth {
			continue
		}
		children, err := os.ReadDir(cur.path)
		if err != nil {
			continue
		}
		for _, child := range children {
			if child.IsDir() {
				queue = append(queue, entry{path: filepath.Join(cur.path, child.Name()), depth: cur.depth + 1})
			}
		}
	}
	return "", false
}

// Resolve turns a directory or tar.gz archive into a bundle root. Archives are
// extracted into a fresh temporary directory which the caller must release
// with Root.Cleanup. Directories are used in place.
func Resolve(ctx context.Context, path string, opts Options) (*Root, error) {
	if opts.SearchDepth <= 0 {
		opts.SearchDepth = constants.DEFAULT_ROOT_SEARCH_DEPTH
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, types.NewInvalidInputError(path, "cannot stat path", err)
	}

	switch {
	case fi.IsDir():
		rootPath, ok := FindRoot(path, opts.SearchDepth)
		if !ok {
			return nil, types.NewInvalidInputError(path, "directory contains neither cluster-scoped-resources nor namespaces", nil)
		}
		opts.Log.V(1).Info("using bundle directory", "root", rootPath)
		return &Root{Path: rootPath, Source: path, log: opts.Log}, nil

	case fi.Mode().IsRegular() && IsArchive(path):
		return extract(ctx, path, opts)

	default:
		return nil, types.NewInvalidInputError(path, "expected a directory or a .tar.gz/.tgz archive", nil)
	}
}

func extract(ctx context.Context, archive string, opts Options) (*Root, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp(opts.TempDir, "must-gather-")
	if err != nil {
		return nil, types.NewExtractionError(archive, errors.Wrap(err, "failed to create tmp dir"))
	}

	tarGz := archiver.TarGz{
		Tar: &archiver.Tar{
			ImplicitTopLevelFolder: false,
			MkdirAll:               true,
		},
	}
	opts.Log.V(1).Info("extracting bundle", "archive", archive, "dir", tmpDir)
	if err := tarGz.Unarchive(archive, tmpDir); err != nil {
		return nil, types.NewExtractionError(archive, removeOnError(errors.Wrap(err, "failed to unarchive"), tmpDir))
	}

	if err := ctx.Err(); err != nil {
		return nil, removeOnError(err, tmpDir)
	}

	top := tmpDir
	if !IsRoot(tmpDir) {
		if sub, ok := firstSubdir(tmpDir); ok {
			top = sub
		}
	}
	rootPath, ok := FindRoot(top, opts.SearchDepth)
	if !ok {
		cause := removeOnError(errors.New("no cluster-scoped-resources or namespaces directory in archive"), tmpDir)
		return nil, types.NewInvalidInputError(archive, "archive is not a must-gather bundle", cause)
	}

	return &Root{Path: rootPath, Source: archive, tmpDir: tmpDir, log: opts.Log}, nil
}

// removeOnError deletes dir and folds any removal failure into cause.
func removeOnError(cause error, dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return multierror.Append(cause, errors.Wrapf(err, "failed to remove %s", dir))
	}
	return cause
}

func firstSubdir(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.IsDir() {
			return filepath.Join(dir, e.Name()), true
		}
	}
	return "", false
}
