package policy

import (
	"errors"
	"fmt"
	"io"
	"os"

	// Packages
	yaml "gopkg.in/yaml.v3"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// File is the on-disk layout of a policy file:
//
//	policies:
//	  - name: invoices
//	    match: extension
//	    allowed: [pdf, doc, docx]
//	    maxFileSize: 10MB
//	    maxFileCount: 30
type File struct {
	Policies []Policy `yaml:"policies"`
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// LoadFile reads policies from a YAML file. The built-in presets are
// returned too, unless the file redefines them.
func LoadFile(path string) (map[string]Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	policies, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return policies, nil
}

// Parse decodes policies from YAML and merges them over the presets.
func Parse(r io.Reader) (map[string]Policy, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	result := Presets()
	seen := make(map[string]bool, len(file.Policies))
	for _, p := range file.Policies {
		if err := p.Check(); err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("policy %q defined more than once", p.Name)
		}
		seen[p.Name] = true
		result[p.Name] = p
	}

	return result, nil
}
