// SPDX-License-Identifier: MPL-2.0

package gexmod

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"gex-cli/pkg/cueutil"
)

// ManifestFileName is the manifest file fetched for every module.
const ManifestFileName = "gex.json"

//go:embed manifest_schema.cue
var manifestSchema []byte

type (
	// Manifest is one module entry of a gex.json payload.
	Manifest struct {
		Name         string       `json:"name"`
		Main         string       `json:"main,omitempty"`
		Files        []string     `json:"files,omitempty"`
		Dependencies Dependencies `json:"dependencies,omitempty"`
	}

	// Dependency is one entry of a manifest's dependencies object.
	Dependency struct {
		Name    string `json:"-"`
		Repo    string `json:"repo,omitempty"`
		Version string `json:"version,omitempty"`
		Src     string `json:"src,omitempty"`
	}

	// Dependencies keeps the declaration order of the dependencies object.
	Dependencies []Dependency
)

// HasSource reports whether the dependency names a repository or a URL.
func (d Dependency) HasSource() bool {
	return strings.TrimSpace(d.Repo) != "" || strings.TrimSpace(d.Src) != ""
}

// UnmarshalJSON decodes a JSON object while preserving key order.
func (ds *Dependencies) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*ds = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("dependencies: expected object, got %v", tok)
	}

	var out Dependencies
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := keyTok.(string)

		var dep Dependency
		if err := dec.Decode(&dep); err != nil {
			return fmt.Errorf("dependencies.%s: %w", name, err)
		}
		dep.Name = name
		out = append(out, dep)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*ds = out
	return nil
}

// MarshalJSON encodes the dependencies as a JSON object in declaration order.
func (ds Dependencies) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range ds {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(d.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseManifest decodes a gex.json payload and selects the module entry.
//
// An object payload is returned as is. For an array payload the entry whose
// name equals name is selected, or the first entry when name is empty;
// no match yields ErrModuleNotFound.
func ParseManifest(data []byte, name string) (*Manifest, error) {
	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidManifest)
	}

	var raw json.RawMessage
	switch {
	case len(trimmed) > 0 && trimmed[0] == '{':
		raw = trimmed
	case len(trimmed) > 0 && trimmed[0] == '[':
		selected, err := selectEntry(trimmed, name)
		if err != nil {
			return nil, err
		}
		raw = selected
	default:
		return nil, fmt.Errorf("%w: expected an object or an array of objects", ErrInvalidManifest)
	}

	if _, err := cueutil.Validate(manifestSchema, raw, "#Manifest",
		cueutil.WithFilename(ManifestFileName), cueutil.WithMaxFileSize(cueutil.DefaultMaxFileSize)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return &m, nil
}

func selectEntry(data []byte, name string) (json.RawMessage, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	for _, entry := range entries {
		var head struct {
			Name string `json:"name"`
		}
		// Non-object entries are skipped.
		if err := json.Unmarshal(entry, &head); err != nil {
			continue
		}
		if name == "" || head.Name == name {
			return entry, nil
		}
	}

	if name == "" {
		return nil, fmt.Errorf("%w: manifest array is empty", ErrModuleNotFound)
	}
	return nil, fmt.Errorf("%w: no entry named %q", ErrModuleNotFound, name)
}

// SourceFiles returns the listed files followed by main, without duplicates.
func (m *Manifest) SourceFiles() []string {
	seen := make(map[string]struct{}, len(m.Files)+1)
	out := make([]string, 0, len(m.Files)+1)
	for _, f := range append(append([]string(nil), m.Files...), m.Main) {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Indent re-encodes a manifest payload with two-space indentation for the cache.
func Indent(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(data), "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
