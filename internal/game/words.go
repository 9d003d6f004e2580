package game

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/cases"
)

//go:embed words.txt
var builtinWords string

// LoadWords returns the word list at path, or the built-in list when path
// is empty. Blank lines and lines starting with '#' are skipped, and words
// that only differ in letter case are kept once.
func LoadWords(path string) ([]string, error) {
	if path == "" {
		return parseWords(strings.NewReader(builtinWords))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()
	return parseWords(f)
}

func parseWords(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		out = append(out, w)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read word list: %w", err)
	}
	out = uniqueWords(out)
	if len(out) == 0 {
		return nil, ErrNoWords
	}
	return out, nil
}

// uniqueWords drops blank entries and case-folded duplicates, keeping the
// first spelling of each word in order.
func uniqueWords(words []string) []string {
	f := cases.Fold()
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		k := f.String(w)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, w)
	}
	return out
}
