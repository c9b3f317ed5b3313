package notifier

import (
	"bufio"
	"os"
	"strings"

	hidserrors "github.com/hidswatch/hidswatch/pkg/errors"
)

// LogSink appends alert lines to a text file. The file is opened and closed
// for every line, so no handle outlives a single write.
type LogSink struct {
	path string
}

// NewLogSink creates a sink writing to path
func NewLogSink(path string) *LogSink {
	return &LogSink{path: path}
}

// Path returns the file the sink appends to
func (s *LogSink) Path() string {
	return s.path
}

// Append writes line plus a newline at the end of the file. The parent
// directory must already exist.
func (s *LogSink) Append(line string) (err error) {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return hidserrors.NewLogWriteError("failed to open alert log", err).WithContext("path", s.path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = hidserrors.NewLogWriteError("failed to close alert log", cerr).WithContext("path", s.path)
		}
	}()

	if _, err := f.WriteString(strings.TrimRight(line, "\n") + "\n"); err != nil {
		return hidserrors.NewLogWriteError("failed to append to alert log", err).WithContext("path", s.path)
	}
	return nil
}

// Tail returns up to n of the most recent lines, oldest first
func (s *LogSink) Tail(n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, n)
	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		ring[count%n] = scanner.Text()
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if count <= n {
		return ring[:count], nil
	}
	// Oldest line sits at the next write position
	head := count % n
	return append(ring[head:], ring[:head]...), nil
}
