package collect

import (
	"bufio"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// WriteLinks replaces the links file at path with urls, one per line.
func WriteLinks(path string, urls []string) error {
	var b strings.Builder
	for _, u := range urls {
		b.WriteString(u)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return eris.Wrapf(err, "collect: write links file %s", path)
	}
	return nil
}

// ReadLinks returns the trimmed, non-blank lines of the links file.
func ReadLinks(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "collect: open links file %s", path)
	}
	defer f.Close() //nolint:errcheck

	var urls []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			urls = append(urls, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "collect: read links file %s", path)
	}
	return urls, nil
}
