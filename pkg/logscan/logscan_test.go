package logscan

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/replicatedhq/mustgather/internal/testutils"
	"github.com/replicatedhq/mustgather/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func containerLog(pod, container string) string {
	return filepath.Join("namespaces", "assisted-installer", "pods", pod, container, container, "logs", "current.log")
}

func errorLines(n int, cluster string) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "2024-06-01T10:00:%02dZ level=error msg=\"install step %d failed\" cluster=%s\n", i%60, i, cluster)
		fmt.Fprintf(&b, "2024-06-01T10:00:%02dZ level=info msg=\"retrying\"\n", i%60)
	}
	return b.String()
}

func TestScanPagination(t *testing.T) {
	root := t.TempDir()
	testutils.WriteTree(t, root, map[string]string{
		containerLog("assisted-service-7d9f", "assisted-service"): errorLines(40, "spoke"),
		containerLog("assisted-service-7d9f", "postgres"):         errorLines(20, "spoke"),
	})

	s := NewScanner(Options{})
	scan := func(start, size int) *Result {
		res, err := s.Scan(context.Background(), root, Query{PodName: "assisted-service-7d9f", Namespace: "assisted-installer", StartIndex: start, ChunkSize: size})
		require.NoError(t, err)
		return res
	}

	first := scan(0, 25)
	second := scan(25, 25)
	both := scan(0, 50)

	require.Len(t, first.Lines, 25)
	require.Len(t, second.Lines, 25)
	assert.Equal(t, both.Lines, append(append([]LogLine{}, first.Lines...), second.Lines...))
	assert.True(t, first.HasMore)
	assert.True(t, both.HasMore)

	all := scan(0, 0)
	assert.Len(t, all.Lines, 60)
	assert.False(t, all.HasMore)

	tail := scan(55, 25)
	assert.Len(t, tail.Lines, 5)
	assert.False(t, tail.HasMore)
	assert.Equal(t, "postgres", tail.Lines[0].Container)

	assert.Empty(t, scan(100, 25).Lines)
}

func TestScanLineFields(t *testing.T) {
	root := t.TempDir()
	testutils.WriteTree(t, root, map[string]string{
		containerLog("assisted-service-7d9f", "assisted-service"): strings.Join([]string{
			"2024-06-01T10:00:00.5Z INFO starting",
			"2024-06-01 10:00:01,250 ERROR failed to reach 10.0.0.12 for cluster spoke",
			"E0601 10:00:02.000000       1 controller.go:42] sync failed for spoke",
			"plain ERROR line without time, password=hunter2 spoke",
		}, "\n"),
	})

	s := NewScanner(Options{})
	res, err := s.Scan(context.Background(), root, Query{PodName: "assisted-service-7d9f", Namespace: "assisted-installer"})
	require.NoError(t, err)
	require.Len(t, res.Lines, 3)

	line := res.Lines[0]
	require.NotNil(t, line.Timestamp)
	assert.True(t, time.Date(2024, 6, 1, 10, 0, 1, 250000000, time.UTC).Equal(*line.Timestamp))
	assert.Equal(t, "2024-06-01 10:00:01,250", line.RawTimestamp)
	assert.Equal(t, LevelError, line.Level)
	assert.Equal(t, "2024-06-01 10:00:01,250 ERROR failed to reach [REDACTED_IPV4] for cluster spoke", line.Message)
	assert.Equal(t, 2, line.LineNumber)
	assert.Equal(t, "assisted-service", line.Container)
	assert.Equal(t, "current.log", filepath.Base(line.FilePath))

	assert.Equal(t, LevelError, res.Lines[1].Level)
	assert.Nil(t, res.Lines[1].Timestamp)

	assert.Nil(t, res.Lines[2].Timestamp)
	assert.Equal(t, "plain ERROR line without time, password=[REDACTED_PASSWORD] spoke", res.Lines[2].Message)
	assert.Equal(t, 4, res.Lines[2].LineNumber)
}

func TestScanClusterFilter(t *testing.T) {
	root := t.TempDir()
	testutils.WriteTree(t, root, map[string]string{
		containerLog("assisted-service-7d9f", "assisted-service"): errorLines(3, "spoke") + errorLines(2, "hub"),
	})

	s := NewScanner(Options{})
	res, err := s.Scan(context.Background(), root, Query{PodName: "assisted-service-7d9f", Namespace: "assisted-installer", ClusterName: "hub"})
	require.NoError(t, err)
	assert.Len(t, res.Lines, 2)
	for _, l := range res.Lines {
		assert.Contains(t, l.Message, "cluster=hub")
	}
}

func TestScanPodLookup(t *testing.T) {
	root := t.TempDir()
	testutils.WriteTree(t, root, map[string]string{
		containerLog("assisted-service-7d9f", "assisted-service"): "ERROR a\n",
		containerLog("assisted-image-service-0", "server"):        "ERROR b\n",
		containerLog("assisted-image-service-1", "server"):        "ERROR c\n",
	})

	tests := []struct {
		name        string
		pod         string
		wantMessage string
		wantWarning types.WarningKind
	}{
		{name: "exact", pod: "assisted-image-service-1", wantMessage: "ERROR c"},
		{name: "unique prefix", pod: "assisted-service", wantMessage: "ERROR a"},
		{name: "glob", pod: "assisted-*-7d9f", wantMessage: "ERROR a"},
		{name: "ambiguous prefix", pod: "assisted-image-service", wantMessage: "ERROR b", wantWarning: types.AmbiguousLayout},
		{name: "missing pod", pod: "console", wantWarning: types.MissingDirectory},
	}

	s := NewScanner(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Scan(context.Background(), root, Query{PodName: tt.pod, Namespace: "assisted-installer"})
			require.NoError(t, err)
			if tt.wantMessage != "" {
				require.Len(t, res.Lines, 1)
				assert.Equal(t, tt.wantMessage, res.Lines[0].Message)
			} else {
				assert.Empty(t, res.Lines)
			}
			if tt.wantWarning != "" {
				require.Len(t, res.Warnings, 1)
				assert.Equal(t, tt.wantWarning, res.Warnings[0].Kind)
			} else {
				assert.Empty(t, res.Warnings)
			}
		})
	}
}

func TestScanInvalidQuery(t *testing.T) {
	s := NewScanner(Options{})
	tests := []Query{
		{Namespace: "ns"},
		{PodName: "pod"},
		{PodName: "pod", Namespace: "ns", StartIndex: -1},
	}
	for _, q := range tests {
		_, err := s.Scan(context.Background(), t.TempDir(), q)
		var invalid *types.InvalidInputError
		assert.ErrorAs(t, err, &invalid)
	}
}

func TestFindLogDirs(t *testing.T) {
	root := t.TempDir()
	testutils.WriteTree(t, root, map[string]string{
		"pod/b/b/logs/current.log":      "x",
		"pod/a/a/logs/current.log":      "x",
		"pod/a/a/deeper/logs/other.log": "x",
		"pod/z/nested/x/y/logs/far.log": "x",
	})

	dirs, err := findLogDirs(filepath.Join(root, "pod"), 4)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "pod", "a", "a", "logs"),
		filepath.Join(root, "pod", "b", "b", "logs"),
	}, dirs)

	dirs, err = findLogDirs(filepath.Join(root, "pod"), 2)
	require.NoError(t, err)
	assert.Empty(t, dirs)
}

func TestLineReaderTruncates(t *testing.T) {
	input := strings.Repeat("x", 100) + "\nshort\r\nlast"
	lr := NewLineReader(strings.NewReader(input), 10)

	line, truncated, err := lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 10), string(line))
	assert.True(t, truncated)

	line, truncated, err = lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "short", string(line))
	assert.False(t, truncated)

	line, _, err = lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "last", string(line))

	_, _, err = lr.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"level=error msg=x", LevelError},
		{"Warning: something", LevelWarn},
		{"[WARN] something", LevelWarn},
		{"debug output", LevelDebug},
		{"W0601 10:00:00.000001       1 reflector.go:1] watch closed", LevelWarn},
		{"E0601 10:00:00.000001       1 reflector.go:1] failed", LevelError},
		{"errors happened", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.line))
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		line    string
		want    time.Time
		wantRaw string
	}{
		{"2024-06-01T10:00:00Z x", time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), "2024-06-01T10:00:00Z"},
		{"2024-06-01T12:00:00.123+02:00 x", time.Date(2024, 6, 1, 10, 0, 0, 123000000, time.UTC), "2024-06-01T12:00:00.123+02:00"},
		{"ts=2024-06-01T10:00:00+0000", time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), "2024-06-01T10:00:00+0000"},
		{"2024-06-01T10:00:00 no zone", time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), "2024-06-01T10:00:00"},
		{"at 2024-06-01 10:00:00", time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), "2024-06-01 10:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, raw := parseTimestamp(tt.line)
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %s", got)
			assert.Equal(t, tt.wantRaw, raw)
		})
	}

	got, raw := parseTimestamp("2024-13-45T10:00:00Z")
	assert.Nil(t, got)
	assert.Equal(t, "2024-13-45T10:00:00Z", raw)

	got, raw = parseTimestamp("no time here")
	assert.Nil(t, got)
	assert.Empty(t, raw)
}
