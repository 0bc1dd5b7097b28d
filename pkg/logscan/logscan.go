// Package logscan reads container logs of a single pod from a must-gather
// root and returns sanitized ERROR lines, one page at a time.
package logscan

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/replicatedhq/mustgather/pkg/constants"
	"github.com/replicatedhq/mustgather/pkg/redact"
	"github.com/replicatedhq/mustgather/pkg/types"
)

// Query selects the pod to scan and the page of retained lines to return.
type Query struct {
	PodName   string `json:"podName" yaml:"podName"`
	Namespace string `json:"namespace" yaml:"namespace"`
	// ClusterName, when set, keeps only lines whose sanitized message contains it.
	ClusterName string `json:"clusterName,omitempty" yaml:"clusterName,omitempty"`
	StartIndex  int    `json:"startIndex" yaml:"startIndex"`
	// ChunkSize <= 0 returns every retained line from StartIndex on.
	ChunkSize int `json:"chunkSize" yaml:"chunkSize"`
}

func (q Query) Validate() error {
	if q.PodName == "" {
		return types.NewInvalidInputError("", "pod name is required", nil)
	}
	if q.Namespace == "" {
		return types.NewInvalidInputError("", "namespace is required", nil)
	}
	if q.StartIndex < 0 {
		return types.NewInvalidInputError("", "start index must not be negative", nil)
	}
	return nil
}

type LogLine struct {
	Timestamp    *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	RawTimestamp string     `json:"rawTimestamp,omitempty" yaml:"rawTimestamp,omitempty"`
	Level        string     `json:"level,omitempty" yaml:"level,omitempty"`
	Message      string     `json:"message" yaml:"message"`
	LineNumber   int        `json:"lineNumber" yaml:"lineNumber"`
	FilePath     string     `json:"filePath" yaml:"filePath"`
	Container    string     `json:"container" yaml:"container"`
	Truncated    bool       `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

type Result struct {
	Lines []LogLine `json:"lines" yaml:"lines"`
	// HasMore reports that retained lines exist beyond the returned page.
	HasMore  bool            `json:"hasMore" yaml:"hasMore"`
	PodDir   string          `json:"podDir,omitempty" yaml:"podDir,omitempty"`
	Warnings []types.Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type Options struct {
	MaxDepth     int
	MaxLineBytes int
	Log          logr.Logger
}

type Scanner struct {
	maxDepth     int
	maxLineBytes int
	sanitizer    *redact.Sanitizer
	log          logr.Logger
}

func NewScanner(opts Options) *Scanner {
	s := &Scanner{
		maxDepth:     opts.MaxDepth,
		maxLineBytes: opts.MaxLineBytes,
		sanitizer:    redact.NewSanitizer(),
		log:          opts.Log,
	}
	if s.maxDepth <= 0 {
		s.maxDepth = constants.DEFAULT_LOG_MAX_DEPTH
	}
	if s.maxLineBytes <= 0 {
		s.maxLineBytes = constants.DEFAULT_LOG_MAX_LINE_BYTES
	}
	return s
}

// Scan reads the pod's container logs below root. A pod or namespace that is
// not in the bundle yields an empty result with a MissingDirectory warning.
func (s *Scanner) Scan(ctx context.Context, root string, q Query) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	result := &Result{Lines: []LogLine{}}
	podsDir := filepath.Join(root, constants.NAMESPACES_DIR, q.Namespace, constants.PODS_DIR)
	podDir, warnings, err := findPodDir(podsDir, q.PodName)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(result.Warnings, warnings...)
	if podDir == "" {
		result.Warnings = append(result.Warnings, types.NewWarning(types.MissingDirectory, podsDir, "no directory for pod %s", q.PodName))
		return result, nil
	}
	result.PodDir = podDir

	logDirs, err := findLogDirs(podDir, s.maxDepth)
	if err != nil {
		return nil, err
	}
	if len(logDirs) == 0 {
		result.Warnings = append(result.Warnings, types.NewWarning(types.MissingDirectory, podDir, "no %s directory within %d levels", constants.LOGS_DIR, s.maxDepth))
		return result, nil
	}

	p := &pager{start: q.StartIndex, size: q.ChunkSize, result: result}
	for _, logDir := range logDirs {
		container := filepath.Base(filepath.Dir(logDir))
		files, err := logFiles(logDir)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			done, err := s.scanFile(file, container, q.ClusterName, p)
			if err != nil {
				result.Warnings = append(result.Warnings, types.NewWarning(types.MalformedResource, file, "%v", err))
				continue
			}
			if done {
				s.log.V(1).Info("log page filled", "pod", q.PodName, "lines", len(result.Lines))
				return result, nil
			}
		}
	}
	return result, nil
}

// pager slices the retained line sequence without holding lines outside the
// requested page.
type pager struct {
	start    int
	size     int
	retained int
	result   *Result
}

// add offers the next retained line and reports whether scanning can stop.
func (p *pager) add(line LogLine) bool {
	index := p.retained
	p.retained++
	if index < p.start {
		return false
	}
	if p.size > 0 && len(p.result.Lines) == p.size {
		p.result.HasMore = true
		return true
	}
	p.result.Lines = append(p.result.Lines, line)
	return false
}

func (s *Scanner) scanFile(path, container, clusterName string, p *pager) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, errors.Wrap(err, "failed to open log")
	}
	defer f.Close()

	reader := NewLineReader(f, s.maxLineBytes)
	lineNumber := 0
	for {
		raw, truncated, err := reader.ReadLine()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, errors.Wrapf(err, "failed to read line %d", lineNumber+1)
		}
		lineNumber++

		line, ok := s.parseLine(string(raw), clusterName)
		if !ok {
			continue
		}
		line.LineNumber = lineNumber
		line.FilePath = path
		line.Container = container
		line.Truncated = truncated
		if p.add(line) {
			return true, nil
		}
	}
}

// parseLine keeps ERROR lines whose sanitized message contains clusterName.
func (s *Scanner) parseLine(raw, clusterName string) (LogLine, bool) {
	level := parseLevel(raw)
	if level != LevelError {
		return LogLine{}, false
	}
	message := s.sanitizer.Sanitize(strings.TrimSpace(raw))
	if clusterName != "" && !strings.Contains(message, clusterName) {
		return LogLine{}, false
	}
	timestamp, rawTimestamp := parseTimestamp(raw)
	return LogLine{
		Timestamp:    timestamp,
		RawTimestamp: rawTimestamp,
		Level:        level,
		Message:      message,
	}, true
}
