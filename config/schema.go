package config

import (
	"embed"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/exchange/errors"
)

//go:embed schemas/*.json
var schemaFS embed.FS

//go:embed templates/*.json
var templateFS embed.FS

// Schema returns the JSON Schema for a known config file.
func Schema(name string) ([]byte, error) {
	base, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	data, err := schemaFS.ReadFile("schemas/" + base + ".json")
	if err != nil {
		return nil, fmt.Errorf("%w: unknown config file %q", errors.ErrInvalidConfig, name)
	}
	return data, nil
}

// Template returns a starter document for a known config file.
func Template(name string) ([]byte, error) {
	base, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	data, err := templateFS.ReadFile("templates/" + base + ".json")
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return []byte("{}\n"), nil
		}
		return nil, err
	}
	return data, nil
}

// ValidateDocument checks data against the schema of a known config file.
// Files without a schema only need to be valid JSON.
func ValidateDocument(name string, data []byte) error {
	schema, err := Schema(name)
	if err != nil {
		if _, nameErr := normalizeName(name); nameErr != nil {
			return nameErr
		}
		if !json.Valid(data) {
			return fmt.Errorf("%w: not valid JSON", errors.ErrInvalidConfig)
		}
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(problems, "; "))
}
