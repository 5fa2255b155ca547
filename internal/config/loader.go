package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmpty is returned when the configuration document has no content.
var ErrEmpty = errors.New("config: empty document")

// varRef matches ${NAME} and ${NAME:-fallback}. A backslash escapes any
// character inside the fallback, including the closing brace.
var varRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// UnresolvedError lists variables that had neither an environment value
// nor a fallback.
type UnresolvedError struct {
	Names []string
}

func (e *UnresolvedError) Error() string {
	msgs := make([]string, len(e.Names))
	for i, n := range e.Names {
		msgs[i] = "unresolved variable: " + n
	}
	return strings.Join(msgs, "\n")
}

// Load reads the YAML file at path and hands it to Parse.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse expands variables in raw, decodes it strictly (unknown keys are
// errors) and applies defaults. Validation is left to Validate.
func Parse(raw []byte) (*Config, error) {
	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("parsing: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// expandEnv substitutes variable references line by line. Comment lines are
// copied untouched so a commented-out ${VAR} never fails the load.
func expandEnv(raw []byte) ([]byte, error) {
	var unresolved []string
	lines := bytes.SplitAfter(raw, []byte("\n"))
	out := make([]byte, 0, len(raw))

	for _, line := range lines {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("#")) {
			out = append(out, line...)
			continue
		}
		out = append(out, varRef.ReplaceAllFunc(line, func(ref []byte) []byte {
			m := varRef.FindSubmatch(ref)
			name := string(m[1])
			if v, ok := os.LookupEnv(name); ok {
				return []byte(v)
			}
			if m[2] != nil {
				return m[2]
			}
			if !slices.Contains(unresolved, name) {
				unresolved = append(unresolved, name)
			}
			return ref
		})...)
	}

	if len(unresolved) > 0 {
		slices.Sort(unresolved)
		return nil, &UnresolvedError{Names: unresolved}
	}
	return out, nil
}
