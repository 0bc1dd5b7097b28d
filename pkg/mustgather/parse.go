package mustgather

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/replicatedhq/mustgather/pkg/bundle"
	"github.com/replicatedhq/mustgather/pkg/constants"
	"github.com/replicatedhq/mustgather/pkg/decode"
	"github.com/replicatedhq/mustgather/pkg/logscan"
	"github.com/replicatedhq/mustgather/pkg/records"
	"github.com/replicatedhq/mustgather/pkg/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/sets"
)

type ParseOptions struct {
	// TempDir is the parent of archive extraction directories.
	TempDir string
	// Timeout bounds the whole run. Zero means no limit.
	Timeout time.Duration
	// SearchDepth bounds the search for the bundle root below the input.
	SearchDepth int
	// LogQueries are scanned alongside the resource passes.
	LogQueries      []logscan.Query
	LogMaxDepth     int
	LogMaxLineBytes int
}

type ParseStats struct {
	// Documents counts decoded documents of the requested kinds.
	Documents int `json:"documents" yaml:"documents"`
	// Skipped counts files, documents and records dropped as malformed.
	Skipped int `json:"skipped" yaml:"skipped"`
	// MissingDirectories counts resource kinds absent from the bundle.
	MissingDirectories int            `json:"missingDirectories" yaml:"missingDirectories"`
	Records            map[string]int `json:"records" yaml:"records"`
}

type ParseResult struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`

	ClusterInfo           records.ClusterInfo `json:"clusterInfo" yaml:"clusterInfo"`
	AssistedServiceActive bool                `json:"assistedServiceActive" yaml:"assistedServiceActive"`

	Agents             []records.AgentRecord             `json:"agents" yaml:"agents"`
	ClusterInstalls    []records.ClusterInstallRecord    `json:"clusterInstalls" yaml:"clusterInstalls"`
	Nodes              []records.NodeRecord              `json:"nodes" yaml:"nodes"`
	MachineConfigPools []records.MachineConfigPoolRecord `json:"machineConfigPools" yaml:"machineConfigPools"`
	Pods               []records.PodRecord               `json:"pods" yaml:"pods"`
	Events             []records.EventRecord             `json:"events" yaml:"events"`
	ClusterOperators   []records.ClusterOperatorRecord   `json:"clusterOperators" yaml:"clusterOperators"`

	// Logs holds the results of ParseOptions.LogQueries keyed by namespace/pod.
	Logs map[string]*logscan.Result `json:"logs,omitempty" yaml:"logs,omitempty"`

	Warnings []types.Warning `json:"warnings" yaml:"warnings"`
	Stats    ParseStats      `json:"stats" yaml:"stats"`
}

// passResult is the private accumulator of one fan-out pass.
type passResult struct {
	warnings  []types.Warning
	documents int
	missing   int
}

func (p *passResult) add(res decode.Result) {
	p.warnings = append(p.warnings, res.Warnings...)
	p.documents += len(res.Documents)
}

// Parse resolves path to a bundle and builds every record kind from it.
// Extracted archives are removed before Parse returns.
func Parse(ctx context.Context, rc *RunContext, path string, opts ParseOptions) (_ *ParseResult, err error) {
	rc = orDefaultRunContext(rc)

	ctx, span := otel.Tracer(constants.LIB_TRACER_NAME).Start(ctx, "Parse")
	defer span.End()
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	for _, q := range opts.LogQueries {
		if err := q.Validate(); err != nil {
			return nil, err
		}
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	root, err := bundle.Resolve(ctx, path, bundle.Options{
		TempDir:     opts.TempDir,
		SearchDepth: opts.SearchDepth,
		Log:         rc.Log,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := root.Cleanup(); cerr != nil {
			rc.Log.Error(cerr, "failed to clean up extracted bundle")
		}
	}()

	rc.Log.V(1).Info("parsing bundle", "root", root.Path, "extracted", root.Extracted())

	p := &parser{
		root:    root.Path,
		decoder: decode.NewDecoder(rc.Pool, rc.Workers, rc.Log),
		rc:      rc,
	}
	result := &ParseResult{
		ID:                    uuid.NewString(),
		Source:                path,
		AssistedServiceActive: p.assistedServiceActive(),
		Stats:                 ParseStats{Records: map[string]int{}},
	}

	passes := []struct {
		name string
		run  func(ctx context.Context, out *passResult) error
	}{
		{"agents", func(ctx context.Context, out *passResult) error { return p.agents(ctx, result, out) }},
		{"clusterInstalls", func(ctx context.Context, out *passResult) error { return p.clusterInstalls(ctx, result, out) }},
		{"nodes", func(ctx context.Context, out *passResult) error { return p.nodes(ctx, result, out) }},
		{"machineConfigPools", func(ctx context.Context, out *passResult) error { return p.machineConfigPools(ctx, result, out) }},
		{"podsAndEvents", func(ctx context.Context, out *passResult) error { return p.podsAndEvents(ctx, result, out) }},
		{"clusterOperators", func(ctx context.Context, out *passResult) error { return p.clusterOperators(ctx, result, out) }},
	}
	outputs := make([]passResult, len(passes))
	logResults := make([]*logscan.Result, len(opts.LogQueries))

	g, gctx := errgroup.WithContext(ctx)
	for i := range passes {
		i := i
		g.Go(func() error {
			pctx, pspan := otel.Tracer(constants.LIB_TRACER_NAME).Start(gctx, passes[i].name)
			pspan.SetAttributes(attribute.String("type", constants.PARSE_PASS_SPAN_TYPE))
			defer pspan.End()
			if err := passes[i].run(pctx, &outputs[i]); err != nil {
				pspan.SetStatus(codes.Error, err.Error())
				return errors.Wrapf(err, "%s pass", passes[i].name)
			}
			pspan.SetAttributes(attribute.Int("documents", outputs[i].documents))
			return nil
		})
	}

	scanner := logscan.NewScanner(logscan.Options{
		MaxDepth:     opts.LogMaxDepth,
		MaxLineBytes: opts.LogMaxLineBytes,
		Log:          rc.Log,
	})
	for i := range opts.LogQueries {
		i := i
		g.Go(func() error {
			q := opts.LogQueries[i]
			if err := rc.Pool.Acquire(gctx, 1); err != nil {
				return err
			}
			defer rc.Pool.Release(1)

			lctx, lspan := otel.Tracer(constants.LIB_TRACER_NAME).Start(gctx, "logs "+q.Namespace+"/"+q.PodName)
			lspan.SetAttributes(attribute.String("type", constants.PARSE_PASS_SPAN_TYPE))
			defer lspan.End()
			res, err := scanner.Scan(lctx, root.Path, q)
			if err != nil {
				lspan.SetStatus(codes.Error, err.Error())
				return errors.Wrapf(err, "logs of %s/%s", q.Namespace, q.PodName)
			}
			logResults[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, out := range outputs {
		result.Warnings = append(result.Warnings, out.warnings...)
		result.Stats.Documents += out.documents
		result.Stats.MissingDirectories += out.missing
	}
	if len(opts.LogQueries) > 0 {
		result.Logs = map[string]*logscan.Result{}
		for i, q := range opts.LogQueries {
			result.Logs[q.Namespace+"/"+q.PodName] = logResults[i]
		}
	}
	for _, w := range result.Warnings {
		if w.Kind == types.MalformedResource {
			result.Stats.Skipped++
		}
	}
	if result.Warnings == nil {
		result.Warnings = []types.Warning{}
	}
	result.Stats.Records[records.KindAgent] = len(result.Agents)
	result.Stats.Records[records.KindAgentClusterInstall] = len(result.ClusterInstalls)
	result.Stats.Records[records.KindNode] = len(result.Nodes)
	result.Stats.Records[records.KindMachineConfigPool] = len(result.MachineConfigPools)
	result.Stats.Records[records.KindPod] = len(result.Pods)
	result.Stats.Records[records.KindEvent] = len(result.Events)
	result.Stats.Records[records.KindClusterOperator] = len(result.ClusterOperators)

	rc.Log.V(0).Info("parsed bundle", "id", result.ID, "documents", result.Stats.Documents, "skipped", result.Stats.Skipped)
	return result, nil
}

type parser struct {
	root    string
	decoder *decode.Decoder
	rc      *RunContext
}

func (p *parser) clusterScoped(group, resource string) []string {
	dir := filepath.Join(p.root, constants.CLUSTER_SCOPED_DIR, group)
	return []string{filepath.Join(dir, resource), filepath.Join(dir, resource+".yaml")}
}

// namespaces lists the namespace directories of the bundle in lexical order.
func (p *parser) namespaces() []string {
	entries, err := os.ReadDir(filepath.Join(p.root, constants.NAMESPACES_DIR))
	if err != nil {
		return nil
	}
	dirs := []string{}
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(p.root, constants.NAMESPACES_DIR, e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs
}

func (p *parser) namespaced(group, resource string) []string {
	paths := []string{}
	for _, ns := range p.namespaces() {
		paths = append(paths, filepath.Join(ns, group, resource), filepath.Join(ns, group, resource+".yaml"))
	}
	return paths
}

// podManifestDirs lists namespaces/<ns>/pods/<pod> directories, which hold
// one manifest per pod next to the container logs.
func (p *parser) podManifestDirs() []string {
	paths := []string{}
	for _, ns := range p.namespaces() {
		entries, err := os.ReadDir(filepath.Join(ns, constants.PODS_DIR))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				paths = append(paths, filepath.Join(ns, constants.PODS_DIR, e.Name()))
			}
		}
	}
	return paths
}

func (p *parser) assistedServiceActive() bool {
	for _, path := range p.clusterScoped("agent-install.openshift.io", "agentserviceconfigs") {
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}
	return false
}

// decodeAll decodes every path and records a MissingDirectory warning when
// none of them exist.
func (p *parser) decodeAll(ctx context.Context, target decode.Target, paths []string, out *passResult) ([]decode.Document, error) {
	docs := []decode.Document{}
	found := false
	for _, path := range paths {
		res, err := p.decoder.Decode(ctx, path, target)
		if err != nil {
			return nil, err
		}
		if res.Missing {
			continue
		}
		found = true
		out.add(res)
		docs = append(docs, res.Documents...)
	}
	if !found {
		out.missing++
		where := filepath.Join(p.root, constants.CLUSTER_SCOPED_DIR)
		if len(paths) > 0 {
			where = paths[0]
		}
		out.warnings = append(out.warnings, types.NewWarning(types.MissingDirectory, where, "no %s resources found", target.Kind))
		p.rc.Log.V(1).Info("resource kind missing from bundle", "kind", target.Kind)
	}
	return docs, nil
}

// build projects docs with fn. Documents fn rejects are reported as
// MalformedResource warnings and dropped.
func build[T any](docs []decode.Document, fn func(decode.Document) (*T, error), out *passResult) []T {
	built := make([]T, 0, len(docs))
	for _, doc := range docs {
		record, err := fn(doc)
		if err != nil {
			out.warnings = append(out.warnings, types.NewWarning(types.MalformedResource, doc.Source, "document %d: %v", doc.Index, err))
			continue
		}
		built = append(built, *record)
	}
	return built
}

// dedup keeps the first record for each key.
func dedup[T records.Record](in []T) []T {
	seen := sets.New[records.Key]()
	out := make([]T, 0, len(in))
	for _, r := range in {
		if seen.Has(r.Key()) {
			continue
		}
		seen.Insert(r.Key())
		out = append(out, r)
	}
	return out
}

func (p *parser) agents(ctx context.Context, result *ParseResult, out *passResult) error {
	docs, err := p.decodeAll(ctx, records.AgentTarget, p.namespaced("agent-install.openshift.io", "agents"), out)
	if err != nil {
		return err
	}
	agents := dedup(build(docs, records.BuildAgent, out))
	records.SortAgents(agents)
	result.Agents = agents
	return nil
}

func (p *parser) clusterInstalls(ctx context.Context, result *ParseResult, out *passResult) error {
	docs, err := p.decodeAll(ctx, records.AgentClusterInstallTarget, p.namespaced("extensions.hive.openshift.io", "agentclusterinstalls"), out)
	if err != nil {
		return err
	}
	installs := dedup(build(docs, records.BuildClusterInstall, out))
	records.SortClusterInstalls(installs)
	result.ClusterInstalls = installs
	return nil
}

func (p *parser) nodes(ctx context.Context, result *ParseResult, out *passResult) error {
	docs, err := p.decodeAll(ctx, records.NodeTarget, p.clusterScoped("core", "nodes"), out)
	if err != nil {
		return err
	}
	nodes := dedup(build(docs, records.BuildNode, out))
	records.SortNodes(nodes)
	result.Nodes = nodes
	return nil
}

func (p *parser) machineConfigPools(ctx context.Context, result *ParseResult, out *passResult) error {
	docs, err := p.decodeAll(ctx, records.MachineConfigPoolTarget, p.clusterScoped("machineconfiguration.openshift.io", "machineconfigpools"), out)
	if err != nil {
		return err
	}
	pools := dedup(build(docs, records.BuildMachineConfigPool, out))
	records.SortMachineConfigPools(pools)
	result.MachineConfigPools = pools
	return nil
}

// podsAndEvents reads pods from core/pods.yaml and from the per-pod
// manifests, and events from every namespace plus the cluster scope.
func (p *parser) podsAndEvents(ctx context.Context, result *ParseResult, out *passResult) error {
	podPaths := append(p.namespaced("core", "pods"), p.podManifestDirs()...)
	podDocs, err := p.decodeAll(ctx, records.PodTarget, podPaths, out)
	if err != nil {
		return err
	}
	pods := dedup(build(podDocs, records.BuildPod, out))
	records.SortPods(pods)
	result.Pods = pods

	eventPaths := append(p.namespaced("core", "events"), p.clusterScoped("core", "events")...)
	eventDocs, err := p.decodeAll(ctx, records.EventTarget, eventPaths, out)
	if err != nil {
		return err
	}
	events := dedup(build(eventDocs, records.BuildEvent, out))
	records.SortEvents(events)
	result.Events = events
	return nil
}

// clusterOperators also fills ClusterInfo; both come from config.openshift.io.
func (p *parser) clusterOperators(ctx context.Context, result *ParseResult, out *passResult) error {
	docs, err := p.decodeAll(ctx, records.ClusterOperatorTarget, p.clusterScoped("config.openshift.io", "clusteroperators"), out)
	if err != nil {
		return err
	}
	operators := dedup(build(docs, records.BuildClusterOperator, out))
	records.SortClusterOperators(operators)
	result.ClusterOperators = operators

	info := records.ClusterInfo{}
	versions, err := p.decodeAll(ctx, records.ClusterVersionTarget, p.clusterScoped("config.openshift.io", "clusterversions"), out)
	if err != nil {
		return err
	}
	if len(versions) > 0 {
		if err := info.ApplyClusterVersion(versions[0]); err != nil {
			out.warnings = append(out.warnings, types.NewWarning(types.MalformedResource, versions[0].Source, "%v", err))
		}
	}

	infras, err := p.decodeAll(ctx, records.InfrastructureTarget, p.clusterScoped("config.openshift.io", "infrastructures"), out)
	if err != nil {
		return err
	}
	if len(infras) > 0 {
		if err := info.ApplyInfrastructure(infras[0]); err != nil {
			out.warnings = append(out.warnings, types.NewWarning(types.MalformedResource, infras[0].Source, "%v", err))
		}
	}
	result.ClusterInfo = info
	return nil
}
