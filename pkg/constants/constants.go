package constants

import "time"

const (
	// CLUSTER_SCOPED_DIR is the must-gather directory holding cluster-scoped resources.
	CLUSTER_SCOPED_DIR = "cluster-scoped-resources"
	// NAMESPACES_DIR is the must-gather directory holding one subdirectory per namespace.
	NAMESPACES_DIR = "namespaces"
	// PODS_DIR is the per-namespace directory holding pod manifests and container logs.
	PODS_DIR = "pods"
	// LOGS_DIR is the directory name container log streams are written under.
	LOGS_DIR = "logs"

	// LIB_TRACER_NAME is the otel tracer name used by library packages.
	LIB_TRACER_NAME = "github.com/replicatedhq/mustgather"
	// MUSTGATHER_ROOT_SPAN_NAME is the name of the span wrapping a whole CLI invocation.
	MUSTGATHER_ROOT_SPAN_NAME = "MustGather"
	// PARSE_PASS_SPAN_TYPE is the "type" attribute of parse fan-out pass spans.
	PARSE_PASS_SPAN_TYPE = "ParsePass"

	// DEFAULT_WORKERS is the default size of the per-run I/O worker pool.
	DEFAULT_WORKERS = 4
	// DEFAULT_PARSE_TIMEOUT wraps a whole parse run.
	DEFAULT_PARSE_TIMEOUT = 5 * time.Minute
	// DEFAULT_STUCK_UPDATE_AFTER is how long a pool may report Updating before it is flagged.
	DEFAULT_STUCK_UPDATE_AFTER = 30 * time.Minute
	// DEFAULT_LOG_MAX_DEPTH bounds the search for container log directories below a pod directory.
	DEFAULT_LOG_MAX_DEPTH = 4
	// DEFAULT_LOG_MAX_LINE_BYTES truncates pathological log lines.
	DEFAULT_LOG_MAX_LINE_BYTES = 1024 * 1024
	// DEFAULT_ROOT_SEARCH_DEPTH bounds how far below the input path the bundle root is looked for.
	DEFAULT_ROOT_SEARCH_DEPTH = 2

	// POD_RESTART_ISSUE_THRESHOLD is the pod-wide restart count above which a pod has an issue.
	POD_RESTART_ISSUE_THRESHOLD = 5
	// CONTAINER_RESTART_ISSUE_THRESHOLD is the per-container restart count above which a container has an issue.
	CONTAINER_RESTART_ISSUE_THRESHOLD = 10
	// OUTDATED_MACHINES_WARNING_GAP is the largest updated/total machine gap reported as a warning.
	OUTDATED_MACHINES_WARNING_GAP = 2

	// ENV_PREFIX is the prefix for environment overrides of configuration keys.
	ENV_PREFIX = "MUSTGATHER"
)
