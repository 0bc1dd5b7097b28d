package mustgather

import (
	"context"

	"github.com/replicatedhq/mustgather/pkg/bundle"
	"github.com/replicatedhq/mustgather/pkg/constants"
	"github.com/replicatedhq/mustgather/pkg/logscan"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type LogOptions struct {
	TempDir      string
	SearchDepth  int
	MaxDepth     int
	MaxLineBytes int
}

// ScanLogs resolves path and returns one page of the pod's ERROR lines.
// Archives are extracted for the duration of the call only.
func ScanLogs(ctx context.Context, rc *RunContext, path string, q logscan.Query, opts LogOptions) (*logscan.Result, error) {
	rc = orDefaultRunContext(rc)
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer(constants.LIB_TRACER_NAME).Start(ctx, "ScanLogs")
	defer span.End()
	span.SetAttributes(attribute.String("pod", q.Namespace+"/"+q.PodName))

	root, err := bundle.Resolve(ctx, path, bundle.Options{
		TempDir:     opts.TempDir,
		SearchDepth: opts.SearchDepth,
		Log:         rc.Log,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer func() {
		if cerr := root.Cleanup(); cerr != nil {
			rc.Log.Error(cerr, "failed to clean up extracted bundle")
		}
	}()

	scanner := logscan.NewScanner(logscan.Options{
		MaxDepth:     opts.MaxDepth,
		MaxLineBytes: opts.MaxLineBytes,
		Log:          rc.Log,
	})
	res, err := scanner.Scan(ctx, root.Path, q)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("lines", len(res.Lines)))
	return res, nil
}
