package merge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/childcare-cli/internal/fetcher"
	"github.com/sells-group/childcare-cli/internal/model"
)

// Format selects the merged output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks YAML for .yaml/.yml files and JSON otherwise.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// ParseFormat validates a user-supplied format name. Empty means detect
// from the path.
func ParseFormat(s, path string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "":
		return FormatFromPath(path), nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", eris.Errorf("merge: unknown format %q", s)
}

// Write encodes records and replaces path atomically.
func Write(path string, format Format, records []model.MergedRecord) error {
	if records == nil {
		records = []model.MergedRecord{}
	}

	var buf bytes.Buffer
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return eris.Wrap(err, "merge: encode yaml")
		}
		if err := enc.Close(); err != nil {
			return eris.Wrap(err, "merge: encode yaml")
		}
	default:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "    ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(records); err != nil {
			return eris.Wrap(err, "merge: encode json")
		}
	}
	return writeAtomic(path, buf.Bytes())
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return eris.Wrapf(err, "merge: create temp for %s", path)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "merge: write %s", tmp.Name())
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "merge: sync %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "merge: close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "merge: rename into %s", path)
	}
	return nil
}

// ReadMerged loads a merged JSON file, decoding one record at a time.
func ReadMerged(path string) ([]model.MergedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "merge: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	records := []model.MergedRecord{}
	err = fetcher.EachJSON(context.Background(), bufio.NewReader(f), func(rec model.MergedRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "merge: decode %s", path)
	}
	return records, nil
}
