package decode

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/replicatedhq/mustgather/pkg/constants"
	"github.com/replicatedhq/mustgather/pkg/types"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	utiljson "k8s.io/apimachinery/pkg/util/json"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"sigs.k8s.io/yaml"
)

// Target selects the documents a decode call returns.
type Target struct {
	Kind string
	// APIVersionPrefix must prefix the document's apiVersion, e.g.
	// "agent-install.openshift.io" or "v1".
	APIVersionPrefix string
}

func (t Target) matches(obj map[string]interface{}) bool {
	kind, _ := obj["kind"].(string)
	apiVersion, _ := obj["apiVersion"].(string)
	return kind == t.Kind && strings.HasPrefix(apiVersion, t.APIVersionPrefix)
}

// Document is one decoded object. The decoder knows nothing about record
// types; Object is the generic key/value form of the document.
type Document struct {
	Object map[string]interface{}
	// Source is the file the document was read from.
	Source string
	// Index is the position of the document within Source.
	Index int
	// Namespace is taken from a namespaces/<ns>/ segment of Source, if any.
	Namespace string
}

// Unstructured wraps the document for typed field access.
func (d Document) Unstructured() *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: d.Object}
}

type Result struct {
	Documents []Document
	Warnings  []types.Warning
	// Missing is set when the requested path does not exist.
	Missing bool
}

// Append concatenates other onto r.
func (r *Result) Append(other Result) {
	r.Documents = append(r.Documents, other.Documents...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Pool bounds concurrent file reads. *semaphore.Weighted satisfies it.
type Pool interface {
	Acquire(ctx context.Context, n int64) error
	Release(n int64)
}

type Decoder struct {
	pool    Pool
	workers int
	log     logr.Logger
}

// NewDecoder returns a decoder that reads through pool with at most workers
// goroutines per Decode call.
func NewDecoder(pool Pool, workers int, log logr.Logger) *Decoder {
	if workers <= 0 {
		workers = constants.DEFAULT_WORKERS
	}
	return &Decoder{pool: pool, workers: workers, log: log}
}

// IsManifest reports whether name has a YAML-like extension.
func IsManifest(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// Decode reads path, a manifest file or a directory of manifest files, and
// returns the documents matching target. Subdirectories are not descended
// into. A missing path yields an empty result with Missing set; unreadable
// files and malformed documents are skipped and reported as warnings.
func (d *Decoder) Decode(ctx context.Context, path string, target Target) (Result, error) {
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return Result{Missing: true}, nil
	}
	if err != nil {
		return Result{Warnings: []types.Warning{
			types.NewWarning(types.MalformedResource, path, "cannot stat: %v", err),
		}}, nil
	}
	if !fi.IsDir() {
		return d.decodeFiles(ctx, []string{path}, target)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return Result{Warnings: []types.Warning{
			types.NewWarning(types.MalformedResource, path, "cannot read directory: %v", err),
		}}, nil
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsManifest(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	sort.Strings(files)
	return d.decodeFiles(ctx, files, target)
}

func (d *Decoder) decodeFiles(ctx context.Context, files []string, target Target) (Result, error) {
	results := make([]Result, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := d.pool.Acquire(gctx, 1); err != nil {
				return err
			}
			defer d.pool.Release(1)

			results[i] = d.decodeFile(file, target)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, errors.Wrap(err, "decode interrupted")
	}

	var out Result
	for _, r := range results {
		out.Append(r)
	}
	return out, nil
}

func (d *Decoder) decodeFile(path string, target Target) Result {
	var result Result

	f, err := os.Open(path)
	if err != nil {
		d.log.V(2).Info("skipping unreadable file", "path", path, "error", err.Error())
		result.Warnings = append(result.Warnings, types.NewWarning(types.MalformedResource, path, "cannot open: %v", err))
		return result
	}
	defer f.Close()

	namespace := NamespaceFromPath(path)
	reader := utilyaml.NewYAMLReader(bufio.NewReader(f))
	for index := 0; ; index++ {
		raw, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			d.log.V(2).Info("stopped reading file", "path", path, "document", index, "error", err.Error())
			result.Warnings = append(result.Warnings, types.NewWarning(types.MalformedResource, path, "document %d: %v", index, err))
			break
		}

		objects, err := decodeDocument(raw)
		if err != nil {
			d.log.V(2).Info("skipping malformed document", "path", path, "document", index, "error", err.Error())
			result.Warnings = append(result.Warnings, types.NewWarning(types.MalformedResource, path, "document %d: %v", index, err))
			continue
		}
		for _, obj := range objects {
			if !target.matches(obj) {
				continue
			}
			result.Documents = append(result.Documents, Document{
				Object:    obj,
				Source:    path,
				Index:     index,
				Namespace: namespace,
			})
		}
	}
	return result
}

// decodeDocument converts one YAML or JSON document into generic objects.
// Lists are flattened into their items. Empty documents yield nothing.
func decodeDocument(raw []byte) ([]map[string]interface{}, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	data, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return nil, errors.Wrap(err, "invalid yaml")
	}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil
	}

	var obj map[string]interface{}
	if err := utiljson.Unmarshal(data, &obj); err != nil {
		return nil, errors.Wrap(err, "document is not an object")
	}

	items, isList := obj["items"].([]interface{})
	kind, _ := obj["kind"].(string)
	if !isList || !strings.HasSuffix(kind, "List") {
		return []map[string]interface{}{obj}, nil
	}

	itemKind := strings.TrimSuffix(kind, "List")
	apiVersion, _ := obj["apiVersion"].(string)
	out := make([]map[string]interface{}, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("list item %d is not an object", i)
		}
		if _, ok := m["kind"]; !ok && itemKind != "" {
			m["kind"] = itemKind
		}
		if _, ok := m["apiVersion"]; !ok && apiVersion != "" {
			m["apiVersion"] = apiVersion
		}
		out = append(out, m)
	}
	return out, nil
}

// NamespaceFromPath returns the directory following the last "namespaces"
// segment of a file path, or "" when there is none.
func NamespaceFromPath(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	for i := len(parts) - 3; i >= 0; i-- {
		if parts[i] == constants.NAMESPACES_DIR && parts[i+1] != "" {
			return parts[i+1]
		}
	}
	return ""
}
