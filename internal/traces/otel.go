package traces

import (
	"context"

	"github.com/replicatedhq/mustgather/pkg/version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"k8s.io/klog/v2"
)

// ConfigureTracing installs a trace provider for CLI commands that records
// spans into the in-memory exporter. Programs embedding the library can
// register the same exporter on their own provider:
//
//	tp.RegisterSpanProcessor(
//		trace.NewSimpleSpanProcessor(
//			traces.GetExporterInstance(),
//		),
//	)
func ConfigureTracing(processName string) (func(), error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			resource.Default().SchemaURL(),
			semconv.ProcessCommandKey.String(processName),
			semconv.ProcessRuntimeVersionKey.String(version.Version()),
			attribute.String("environment", "cli"),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := trace.NewTracerProvider(
		trace.WithSampler(trace.AlwaysSample()),
		trace.WithSyncer(
			GetExporterInstance(),
		),
		trace.WithResource(r),
	)

	otel.SetTracerProvider(tp)

	return func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			klog.Errorf("Failed to shutdown trace provider: %v", err)
		}
	}, nil
}
