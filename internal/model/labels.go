package model

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadLabels loads a newline-delimited label file.
func ReadLabels(path string) (Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigurationError{Asset: path, Err: err}
	}
	defer f.Close()

	vocab, err := ParseLabels(f)
	if err != nil {
		return nil, &ConfigurationError{Asset: path, Err: err}
	}
	return vocab, nil
}

// ParseLabels reads one label per line. Surrounding whitespace is trimmed and
// blank lines are skipped; duplicate labels are rejected.
func ParseLabels(r io.Reader) (Vocabulary, error) {
	var vocab Vocabulary
	seen := make(map[string]int)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		label := strings.TrimSpace(sc.Text())
		if label == "" {
			continue
		}
		if prev, ok := seen[label]; ok {
			return nil, fmt.Errorf("duplicate label %q on lines %d and %d", label, prev, line)
		}
		seen[label] = line
		vocab = append(vocab, label)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	if len(vocab) == 0 {
		return nil, errors.New("no labels found")
	}
	return vocab, nil
}
