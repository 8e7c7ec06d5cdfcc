package common

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

type EnvEntry struct {
	Key   string
	Value string
}

// ParseEnv reads dotenv-style KEY=VALUE lines. Blank lines, comments and
// lines without '=' are skipped; an optional "export " prefix and matching
// surrounding quotes are stripped.
func ParseEnv(r io.Reader) ([]EnvEntry, error) {
	var out []EnvEntry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		if key == "" || strings.ContainsAny(key, " \t") {
			continue
		}
		out = append(out, EnvEntry{Key: key, Value: unquote(strings.TrimSpace(value))})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// LoadEnvFile merges path into the process environment. Variables already
// set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open env file: %w", err)
	}
	defer f.Close()

	entries, err := ParseEnv(f)
	if err != nil {
		return fmt.Errorf("read env file: %w", err)
	}
	for _, e := range entries {
		if _, exists := os.LookupEnv(e.Key); exists {
			continue
		}
		if err := os.Setenv(e.Key, e.Value); err != nil {
			return fmt.Errorf("set %s: %w", e.Key, err)
		}
	}
	return nil
}
