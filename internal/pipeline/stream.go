package pipeline

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/childcare-cli/internal/model"
)

const maxLineBytes = 32 * 1024 * 1024

// ScanStream calls fn for every decodable line of the stream at path, in
// order. Undecodable lines are logged and skipped. line is 1-based.
func ScanStream(path string, fn func(line int, entry model.StreamEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "pipeline: open stream %s", path)
	}
	defer f.Close() //nolint:errcheck

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 256*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var entry model.StreamEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			zap.L().Warn("skipping malformed stream line",
				zap.String("path", path),
				zap.Int("line", line),
				zap.Error(err),
			)
			continue
		}
		if err := fn(line, entry); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return eris.Wrapf(err, "pipeline: read stream %s", path)
	}
	return nil
}

// ReadStream loads every entry of the stream at path.
func ReadStream(path string) ([]model.StreamEntry, error) {
	var entries []model.StreamEntry
	err := ScanStream(path, func(_ int, e model.StreamEntry) error {
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

// Failures returns the source URLs of failure sentinels in path, in stream
// order and without duplicates.
func Failures(path string) ([]string, error) {
	seen := make(map[string]struct{})
	urls := []string{}
	err := ScanStream(path, func(_ int, e model.StreamEntry) error {
		if !e.IsFailed() {
			return nil
		}
		if _, dup := seen[e.SourceURL]; !dup {
			seen[e.SourceURL] = struct{}{}
			urls = append(urls, e.SourceURL)
		}
		return nil
	})
	return urls, err
}
