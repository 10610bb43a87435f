package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/exchange/errors"
)

// Render formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

const redacted = "********"

var secretKeys = map[string]bool{
	"storage_account_key": true,
	"apikey":              true,
	"sasl_password":       true,
	"password":            true,
	"token":               true,
}

// Render returns a config file as YAML or indented JSON with secrets masked.
func (l *Loader) Render(name, format string) ([]byte, error) {
	data, _, err := l.readFile(name)
	if err != nil {
		return nil, err
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	doc = redact(doc)

	switch strings.ToLower(format) {
	case "", FormatYAML:
		return yaml.Marshal(toYAMLValue(doc))
	case FormatJSON:
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q (use yaml or json)", errors.ErrInvalidData, format)
	}
}

func redact(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if s, ok := val.(string); ok && secretKeys[k] {
				if s != "" {
					t[k] = redacted
				}
				continue
			}
			t[k] = redact(val)
		}
		return t
	case []any:
		for i := range t {
			t[i] = redact(t[i])
		}
		return t
	default:
		return v
	}
}

// toYAMLValue turns json.Number into int64 or float64 so YAML prints
// numbers unquoted.
func toYAMLValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = toYAMLValue(val)
		}
		return t
	case []any:
		for i := range t {
			t[i] = toYAMLValue(t[i])
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

// FileStatus reports the validation state of one config file.
type FileStatus struct {
	Name    string
	Path    string
	Present bool
	Err     error
}

// ValidateAll checks every known config file that exists in the directory.
func (l *Loader) ValidateAll() []FileStatus {
	statuses := make([]FileStatus, 0, len(KnownFiles))
	for _, name := range KnownFiles {
		path, _ := l.Path(name)
		st := FileStatus{Name: name, Path: path, Present: true}
		if _, _, err := l.readFile(name); err != nil {
			if stderrors.Is(err, errors.ErrConfigNotFound) {
				st.Present = false
			} else {
				st.Err = err
			}
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// Init writes the starter template for every known file that does not exist
// yet, or for all of them when force is set. It returns the paths written.
func (l *Loader) Init(force bool) ([]string, error) {
	var written []string
	for _, name := range KnownFiles {
		path, err := l.Ensure(name, force)
		if err != nil {
			return written, err
		}
		if path != "" {
			written = append(written, path)
		}
	}
	return written, nil
}

// Ensure writes the template for name when the file is missing (or always
// when force is set). It returns the path when something was written.
func (l *Loader) Ensure(name string, force bool) (string, error) {
	path, err := l.Path(name)
	if err != nil {
		return "", err
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", nil
		} else if !stderrors.Is(err, fs.ErrNotExist) {
			return "", errors.WrapFatal(err, "Loader", "Ensure", "stat "+path)
		}
	}
	tmpl, err := Template(name)
	if err != nil {
		return "", err
	}
	if err := safeWriteFile(path, tmpl); err != nil {
		return "", errors.WrapFatal(err, "Loader", "Ensure", "write "+path)
	}
	return path, nil
}
