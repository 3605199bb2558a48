package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the persisted document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml", case-insensitively. An empty
// string means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want json or yaml)", s)
	}
}

// FormatForPath infers the format from a file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// PathForFormat returns path with its extension changed to match format, so
// Read infers the format the report was written in. A path whose extension
// already matches is returned unchanged.
func PathForFormat(path string, format Format) string {
	if FormatForPath(path) == format {
		return path
	}
	ext := ".json"
	if format == FormatYAML {
		ext = ".yaml"
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// PersistenceError is returned when a report cannot be saved. It is the only
// run-level failure; the in-memory report stays valid.
type PersistenceError struct {
	Path string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting report to %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistence reports whether err is or wraps a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// Encode serializes r in the given format.
func Encode(r *AggregateReport, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(r)
	case FormatJSON, "":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// Write saves r to path, creating missing parent directories. The file is
// written to a temporary sibling first and renamed into place so a failed
// write never leaves a truncated report behind. Failures are returned as
// *PersistenceError and are not retried.
func Write(path string, r *AggregateReport, format Format) error {
	data, err := Encode(r, format)
	if err != nil {
		return &PersistenceError{Path: path, Op: "encode", Err: err}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PersistenceError{Path: path, Op: "mkdir", Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &PersistenceError{Path: path, Op: "create", Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	// CreateTemp opens the file owner-only.
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return &PersistenceError{Path: path, Op: "chmod", Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return &PersistenceError{Path: path, Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &PersistenceError{Path: path, Op: "close", Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return &PersistenceError{Path: path, Op: "rename", Err: err}
	}
	return nil
}

// Read loads a report previously saved by Write. The format is inferred from
// the file extension.
func Read(path string) (*AggregateReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	return Decode(data, FormatForPath(path))
}

// Decode parses a serialized report.
func Decode(data []byte, format Format) (*AggregateReport, error) {
	var r AggregateReport
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &r)
	default:
		err = json.Unmarshal(data, &r)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &r, nil
}
