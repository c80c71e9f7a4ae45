// Package tailer reads the last lines of a log file without loading
// unbounded amounts of it.
package tailer

import (
	"io"
	"os"
	"strings"
)

// maxWindow bounds how far back Tail reads, regardless of the requested line
// count.
const maxWindow = 256 * 1024

// Tail returns up to n trailing lines of the file at path. A missing file
// yields no lines and no error; logs are best-effort diagnostics.
func Tail(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	offset := int64(0)
	if fi.Size() > maxWindow {
		offset = fi.Size() - maxWindow
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if offset > 0 && len(lines) > 0 {
		// The first line is likely cut mid-way by the window start.
		lines = lines[1:]
	}
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
