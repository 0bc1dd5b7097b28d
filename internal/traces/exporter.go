package traces

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/replicatedhq/mustgather/pkg/constants"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	_        trace.SpanExporter = (*Exporter)(nil)
	once     sync.Once
	exporter *Exporter
	printer  = message.NewPrinter(language.English)
)

// The span cache grows for the life of the process. That is fine for one-shot
// CLI commands, which are the only users of this exporter.

// GetExporterInstance creates a singleton exporter instance
func GetExporterInstance() *Exporter {
	once.Do(func() {
		exporter = &Exporter{
			allSpans: make([]trace.ReadOnlySpan, 0, 1024),
		}
	})
	return exporter
}

// Exporter is a trace.SpanExporter that keeps spans in memory so a timing
// summary can be printed at the end of a run.
type Exporter struct {
	spansMu  sync.Mutex
	allSpans []trace.ReadOnlySpan

	stoppedMu sync.RWMutex
	stopped   bool
}

// ExportSpans writes spans to an in-memory cache
// This function can/will be called on every span.End() at worst.
func (e *Exporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	e.stoppedMu.RLock()
	stopped := e.stopped
	e.stoppedMu.RUnlock()
	if stopped {
		return nil
	}

	if len(spans) == 0 {
		return nil
	}

	e.spansMu.Lock()
	defer e.spansMu.Unlock()

	e.allSpans = append(e.allSpans, spans...)

	return nil
}

func spanType(stub *tracetest.SpanStub) string {
	for _, attr := range stub.Attributes {
		if string(attr.Key) == "type" {
			return attr.Value.AsString()
		}
	}
	return ""
}

type timing struct {
	duration time.Duration
	failed   bool
}

// GetSummary returns the runtime summary of the execution
// so far. Call this function after your "root" span has ended
// and the program operations needing tracing have completed.
func (e *Exporter) GetSummary() string {
	e.spansMu.Lock()
	stubs := tracetest.SpanStubsFromReadOnlySpans(e.allSpans)
	e.spansMu.Unlock()

	if len(stubs) == 0 {
		return ""
	}

	passes := map[string]timing{}
	rules := map[string]timing{}
	totalDuration := time.Duration(0)

	for i := range stubs {
		stub := &stubs[i]

		t := timing{
			duration: stub.EndTime.Sub(stub.StartTime),
			failed:   stub.Status.Code == codes.Error,
		}
		typ := spanType(stub)
		switch {
		case stub.Name == constants.MUSTGATHER_ROOT_SPAN_NAME:
			totalDuration = t.duration
		case typ == constants.PARSE_PASS_SPAN_TYPE:
			passes[stub.Name] = t
		case strings.Contains(typ, "analyzer."):
			rules[stub.Name] = t
		}
	}

	sb := strings.Builder{}
	section("Parse passes summary", "No parse passes executed", passes, &sb)
	section("Rules summary", "No rules executed", rules, &sb)
	sb.WriteString(printer.Sprintf("\nDuration: %dms\n", totalDuration/time.Millisecond))

	return sb.String()
}

func section(title, empty string, summary map[string]timing, sb *strings.Builder) {
	sb.WriteString(printer.Sprintf("\n============ %s ============\n", title))
	if len(summary) == 0 {
		sb.WriteString(empty + "\n")
		return
	}
	sb.WriteString("Succeeded (S), Failed (F)\n")

	padding, keys := sortedKeysAndPadding(summary)
	for _, name := range keys {
		mark := "(S)"
		if summary[name].failed {
			mark = "(F)"
		}
		sb.WriteString(printer.Sprintf("%-*s : %dms\n", padding, name+" "+mark, summary[name].duration/time.Millisecond))
	}
}

// sortedKeysAndPadding orders names by descending duration, then by name.
func sortedKeysAndPadding(summary map[string]timing) (int, []string) {
	keys := make([]string, 0, len(summary))
	padding := 0
	for k := range summary {
		padding = max(padding, len(k)+4)
		keys = append(keys, k)
	}
	sort.Slice(keys, func(l, r int) bool {
		if summary[keys[l]].duration != summary[keys[r]].duration {
			return summary[keys[l]].duration > summary[keys[r]].duration
		}
		return keys[l] < keys[r]
	})
	return padding, keys
}

// Shutdown stops the exporter and drops the cached spans.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.stoppedMu.Lock()
	e.stopped = true
	e.stoppedMu.Unlock()

	e.Reset()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return nil
}

func (e *Exporter) Reset() {
	e.spansMu.Lock()
	e.allSpans = e.allSpans[:0]
	e.spansMu.Unlock()
}

// MarshalLog is the marshaling function used by the logging system to represent this exporter.
func (e *Exporter) MarshalLog() interface{} {
	return struct {
		Type string
	}{
		Type: "mustgather",
	}
}
