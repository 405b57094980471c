// Package seed imports profiles from a YAML file at startup.
package seed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing of the seed file
type Loader struct {
	filePath string
	lookup   func(string) (string, bool)
}

// NewLoader creates a loader for filePath. ${VAR} references are expanded
// from the environment before parsing.
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
		lookup:   os.LookupEnv,
	}
}

// Load reads and parses the seed file. Unknown keys are rejected.
func (l *Loader) Load() (File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return l.parse(data)
}

func (l *Loader) parse(data []byte) (File, error) {
	data = []byte(os.Expand(string(data), func(key string) string {
		v, _ := l.lookup(key)
		return v
	}))

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return nil, fmt.Errorf("failed to parse seed yaml: %w", err)
	}
	return file, nil
}
