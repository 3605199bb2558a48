package subsystem

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is the on-disk form of a subsystem set.
type Profile struct {
	Subsystems []Definition `yaml:"subsystems"`
}

// Load reads a YAML profile from path. An empty path returns the built-in
// default profile.
func Load(path string) ([]Definition, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	defs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return defs, nil
}

// Parse decodes and validates a YAML profile. Unknown keys are rejected so
// that typos in formula or rule fields do not silently score as zero.
func Parse(data []byte) ([]Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Profile
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty profile")
		}
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	if err := ValidateAll(p.Subsystems); err != nil {
		return nil, err
	}
	return p.Subsystems, nil
}

// Marshal encodes definitions as a YAML profile, the inverse of Parse.
func Marshal(defs []Definition) ([]byte, error) {
	return yaml.Marshal(Profile{Subsystems: defs})
}
