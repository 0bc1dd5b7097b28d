package analyzer

import (
	"context"
	"reflect"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/replicatedhq/mustgather/pkg/constants"
	"github.com/replicatedhq/mustgather/pkg/records"
	"github.com/replicatedhq/mustgather/pkg/redact"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Issue struct {
	Severity         Severity `json:"severity" yaml:"severity"`
	Category         Category `json:"category" yaml:"category"`
	Title            string   `json:"title" yaml:"title"`
	Description      string   `json:"description" yaml:"description"`
	AffectedEntities []string `json:"affectedEntities" yaml:"affectedEntities"`
	SuggestedActions []string `json:"suggestedActions" yaml:"suggestedActions"`

	// degraded marks issues raised for a component in a degraded or failed state.
	degraded bool
}

// Degraded reports whether the issue was raised for a degraded or failed component.
func (i Issue) Degraded() bool {
	return i.degraded
}

func newIssue(severity Severity, category Category, title, description string, affected []string, actions ...string) Issue {
	if affected == nil {
		affected = []string{}
	}
	if actions == nil {
		actions = []string{}
	}
	return Issue{
		Severity:         severity,
		Category:         category,
		Title:            title,
		Description:      redact.Sanitize(description),
		AffectedEntities: affected,
		SuggestedActions: actions,
	}
}

func (i Issue) markDegraded() Issue {
	i.degraded = true
	return i
}

// Input is the set of records the rules run over.
type Input struct {
	ClusterInfo        records.ClusterInfo
	Agents             []records.AgentRecord
	ClusterInstalls    []records.ClusterInstallRecord
	Nodes              []records.NodeRecord
	MachineConfigPools []records.MachineConfigPoolRecord
	Pods               []records.PodRecord
	Events             []records.EventRecord
	ClusterOperators   []records.ClusterOperatorRecord
}

type Options struct {
	// IncludeDegradedOnly keeps only issues about degraded or failed components.
	IncludeDegradedOnly bool
	// NodeName restricts node rules to the node, pool rules to pools selecting
	// it and pod rules to pods scheduled on it.
	NodeName string
	// Namespace restricts namespaced rules. Cluster-scoped rules ignore it.
	Namespace string
	// SeverityThreshold drops issues below it. Defaults to warning.
	SeverityThreshold Severity
	// StuckUpdatingAfter is how long a pool may report Updating before it is flagged.
	StuckUpdatingAfter time.Duration
	// MatchEmptySelector makes pools without selector terms select every node.
	MatchEmptySelector bool
	// Now is the clock used for age based rules.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.SeverityThreshold == "" {
		o.SeverityThreshold = SeverityWarning
	}
	if o.StuckUpdatingAfter <= 0 {
		o.StuckUpdatingAfter = constants.DEFAULT_STUCK_UPDATE_AFTER
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type Result struct {
	Issues     []Issue     `json:"issues" yaml:"issues"`
	PodReports []PodReport `json:"podReports" yaml:"podReports"`
	Summary    Summary     `json:"summary" yaml:"summary"`
}

type Analyzer interface {
	Title() string
	Analyze(in *Input, opts Options) ([]Issue, error)
}

func getAnalyzers(reports []PodReport) []Analyzer {
	return []Analyzer{
		&AnalyzeMachineConfigPools{},
		&AnalyzeNodes{},
		&AnalyzePods{reports: reports},
		&AnalyzeInstalls{},
		&AnalyzeClusterOperators{},
		&AnalyzeClusterVersion{},
	}
}

// Analyze runs every rule over in, then filters and summarizes the issues.
// Every rule runs even when another fails; rule errors are combined.
func Analyze(ctx context.Context, in *Input, opts Options) (*Result, error) {
	if in == nil {
		return nil, errors.New("nil analysis input")
	}
	opts = opts.withDefaults()
	if _, err := ParseSeverity(string(opts.SeverityThreshold)); err != nil {
		return nil, err
	}

	reports := PodReports(in, opts)
	issues := []Issue{}
	var errs *multierror.Error
	for _, a := range getAnalyzers(reports) {
		found, err := runAnalyzer(ctx, a, in, opts)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		issues = append(issues, found...)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	issues = FilterIssues(issues, opts)
	SortIssues(issues)

	return &Result{
		Issues:     issues,
		PodReports: reports,
		Summary:    Summarize(in, issues, reports, opts),
	}, nil
}

func runAnalyzer(ctx context.Context, a Analyzer, in *Input, opts Options) ([]Issue, error) {
	_, span := otel.Tracer(constants.LIB_TRACER_NAME).Start(ctx, a.Title())
	span.SetAttributes(attribute.String("type", reflect.TypeOf(a).String()))
	defer span.End()

	issues, err := a.Analyze(in, opts)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.Wrapf(err, "%s", a.Title())
	}
	span.SetAttributes(attribute.Int("issues", len(issues)))
	return issues, nil
}

// FilterIssues drops issues below the severity threshold and, when
// requested, issues about components that are not degraded.
func FilterIssues(issues []Issue, opts Options) []Issue {
	opts = opts.withDefaults()
	out := []Issue{}
	for _, issue := range issues {
		if !issue.Severity.AtLeast(opts.SeverityThreshold) {
			continue
		}
		if opts.IncludeDegradedOnly && !issue.degraded {
			continue
		}
		out = append(out, issue)
	}
	return out
}

// SortIssues orders issues by descending severity, then category and title.
func SortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Severity != b.Severity {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Title < b.Title
	})
}
