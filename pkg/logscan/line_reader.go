package logscan

import (
	"bufio"
	"io"
)

// LineReader reads newline-terminated lines, truncating any line longer than
// its limit. The rest of an over-long line is discarded so one giant line
// cannot exhaust memory.
type LineReader struct {
	reader *bufio.Reader
	limit  int
}

func NewLineReader(r io.Reader, limit int) *LineReader {
	return &LineReader{
		reader: bufio.NewReader(r),
		limit:  limit,
	}
}

// ReadLine returns the next line without its line ending and whether it was
// truncated. It returns (nil, false, io.EOF) once the input is exhausted; a
// final line without a trailing newline is returned with a nil error.
func (lr *LineReader) ReadLine() ([]byte, bool, error) {
	var line []byte
	truncated := false
	read := false

	for {
		chunk, isPrefix, err := lr.reader.ReadLine()
		if err == io.EOF {
			if read {
				return line, truncated, nil
			}
			return nil, false, io.EOF
		}
		if err != nil {
			return nil, false, err
		}
		read = true

		if room := lr.limit - len(line); lr.limit > 0 && len(chunk) > room {
			line = append(line, chunk[:room]...)
			truncated = true
		} else {
			line = append(line, chunk...)
		}

		if !isPrefix {
			if line == nil {
				line = []byte{}
			}
			return line, truncated, nil
		}
	}
}
