package definitions

import (
	"bytes"
	"errors"
	"io"
	"os"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"leadflow-hq/relay/pkg/rules"
	"leadflow-hq/relay/pkg/workflow"
)

// MaxFileSize is the largest definitions file Load accepts.
const MaxFileSize int64 = 10 << 20

// File is the on-disk shape of a definitions file.
type File struct {
	Rules     []*rules.Rule        `yaml:"rules"`
	Workflows []*workflow.Workflow `yaml:"workflows"`
}

// Load reads and parses a definitions file. Unknown keys are rejected.
func Load(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, &LoadError{FilePath: path, Message: "file not found", Cause: err}
		case os.IsPermission(err):
			return nil, &LoadError{FilePath: path, Message: "permission denied", Cause: err}
		}
		return nil, &LoadError{FilePath: path, Message: "failed to access file", Cause: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &LoadError{FilePath: path, Message: "not a regular file"}
	}
	if info.Size() > MaxFileSize {
		return nil, &LoadError{FilePath: path, Message: "file exceeds maximum size"}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to read file", Cause: err}
	}
	if !utf8.Valid(data) {
		return nil, &LoadError{FilePath: path, Message: "file contains invalid UTF-8 encoding"}
	}

	f, err := Parse(data)
	if err != nil {
		return nil, &ParseError{FilePath: path, Cause: err}
	}
	return f, nil
}

// Parse decodes definitions from YAML. An empty document yields an empty File.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &f, nil
}
