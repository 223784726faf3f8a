package pipeline

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/childcare-cli/internal/model"
)

// Output is the append-only record stream. Every entry is one line, written
// with a single write and synced before Append returns.
type Output struct {
	path string
	f    *os.File
}

// CountEntries returns the number of newline-terminated lines in path. A
// missing file counts as zero.
func CountEntries(path string) (int, error) {
	n, _, err := scanLines(path)
	return n, err
}

// scanLines returns the complete line count and the byte offset just past
// the last newline.
func scanLines(path string) (int, int64, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, eris.Wrapf(err, "pipeline: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var (
		lines int
		end   int64
		off   int64
	)
	buf := make([]byte, 64*1024)
	for {
		n, err := f.Read(buf)
		for i := range n {
			if buf[i] == '\n' {
				lines++
				end = off + int64(i) + 1
			}
		}
		off += int64(n)
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, 0, eris.Wrapf(err, "pipeline: read %s", path)
		}
	}
	return lines, end, nil
}

// OpenOutput opens path for appending and returns the number of entries
// already committed. A trailing partial line left by a crash is cut off;
// complete lines are never modified.
func OpenOutput(path string) (*Output, int, error) {
	lines, end, err := scanLines(path)
	if err != nil {
		return nil, 0, err
	}

	if info, err := os.Stat(path); err == nil && info.Size() > end {
		zap.L().Warn("truncating partial trailing line",
			zap.String("path", path),
			zap.Int64("size", info.Size()),
			zap.Int64("keep", end),
		)
		if err := os.Truncate(path, end); err != nil {
			return nil, 0, eris.Wrapf(err, "pipeline: truncate %s", path)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "pipeline: open output %s", path)
	}
	return &Output{path: path, f: f}, lines, nil
}

// Append commits entry as one line.
func (o *Output) Append(entry model.StreamEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrapf(err, "pipeline: encode entry for %s", entry.SourceURL)
	}
	line = append(line, '\n')
	if _, err := o.f.Write(line); err != nil {
		return eris.Wrapf(err, "pipeline: write %s", o.path)
	}
	if err := o.f.Sync(); err != nil {
		return eris.Wrapf(err, "pipeline: sync %s", o.path)
	}
	return nil
}

// Path returns the stream's file path.
func (o *Output) Path() string { return o.path }

// Close closes the underlying file.
func (o *Output) Close() error {
	if err := o.f.Close(); err != nil {
		return eris.Wrapf(err, "pipeline: close %s", o.path)
	}
	return nil
}
