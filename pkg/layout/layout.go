// Package layout loads schema declarations from YAML documents and
// registers them as Record schemas:
//
//	registry: sensors
//	schemas:
//	  - name: Address
//	    layout: "house_number=uint:7"
//	  - name: Person
//	    fields:
//	      - {name: age, format: "uint:10"}
//	      - {name: address, format: Address}
//	      - {name: alive, format: bool}
//	    creases:
//	      age: offset:18
//
// A schema gives either a layout string or a fields list. Creases are
// named by the vocabulary in ParseCrease.
package layout

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rawbytedev/bitfold"
)

var ErrInvalid = errors.New("layout: invalid document")

type Document struct {
	Registry string   `yaml:"registry"`
	Schemas  []Schema `yaml:"schemas"`
}

type Schema struct {
	Name    string            `yaml:"name"`
	Layout  string            `yaml:"layout,omitempty"`
	Fields  []Field           `yaml:"fields,omitempty"`
	Creases map[string]string `yaml:"creases,omitempty"`
}

type Field struct {
	Name   string `yaml:"name"`
	Format string `yaml:"format"`
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes one document. Unknown keys are rejected.
func Parse(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the document shape and crease names. Layout strings
// and atoms are checked when the schemas are registered.
func (d *Document) Validate() error {
	seen := make(map[string]bool, len(d.Schemas))
	for i, s := range d.Schemas {
		if s.Name == "" {
			return fmt.Errorf("%w: schema #%d has no name", ErrInvalid, i)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: schema %q declared twice", ErrInvalid, s.Name)
		}
		seen[s.Name] = true
		if (s.Layout == "") == (len(s.Fields) == 0) {
			return fmt.Errorf("%w: schema %q needs exactly one of layout or fields", ErrInvalid, s.Name)
		}
		for j, f := range s.Fields {
			if f.Name == "" || f.Format == "" {
				return fmt.Errorf("%w: schema %q field #%d needs name and format", ErrInvalid, s.Name, j)
			}
		}
		if _, err := s.creases(); err != nil {
			return fmt.Errorf("%w: schema %q: %w", ErrInvalid, s.Name, err)
		}
	}
	return nil
}

// LayoutString returns the layout in name=format form.
func (s Schema) LayoutString() string {
	if s.Layout != "" {
		return s.Layout
	}
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = f.Name + "=" + f.Format
	}
	return strings.Join(parts, ", ")
}

func (s Schema) creases() (bitfold.Creases, error) {
	if len(s.Creases) == 0 {
		return nil, nil
	}
	out := make(bitfold.Creases, len(s.Creases))
	for key, spec := range s.Creases {
		c, err := ParseCrease(spec)
		if err != nil {
			return nil, fmt.Errorf("crease %q: %w", key, err)
		}
		out[key] = c
	}
	return out, nil
}

// Apply registers every schema in document order. It stops at the
// first failure; schemas registered before it stay registered.
func (d *Document) Apply(r *bitfold.Registry) ([]*bitfold.Schema, error) {
	out := make([]*bitfold.Schema, 0, len(d.Schemas))
	for _, s := range d.Schemas {
		cs, err := s.creases()
		if err != nil {
			return out, fmt.Errorf("%w: schema %q: %w", ErrInvalid, s.Name, err)
		}
		compiled, err := r.RegisterRecord(s.Name, s.LayoutString(), cs)
		if err != nil {
			return out, err
		}
		out = append(out, compiled)
	}
	return out, nil
}

// NewRegistry creates a registry named after the document and applies
// it. An unnamed document gets the registry name "layout".
func (d *Document) NewRegistry(opts bitfold.Options) (*bitfold.Registry, error) {
	name := d.Registry
	if name == "" {
		name = "layout"
	}
	r := bitfold.NewRegistry(name, opts)
	if _, err := d.Apply(r); err != nil {
		return nil, err
	}
	return r, nil
}
