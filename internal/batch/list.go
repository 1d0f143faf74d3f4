package batch

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadList reads the ordered list of source paths from path: one per line,
// surrounding whitespace trimmed. Blank lines and lines starting with '#'
// are skipped. Order is preserved and duplicates are kept.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("batch: open list: %w", err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("batch: read list %s: %w", path, err)
	}
	return out, nil
}
