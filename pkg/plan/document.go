package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is a plan file: a tag table and an ordered list of steps.
//
//	tags: [src, friend]
//	steps:
//	  - edge_expand:
//	      v_tag: src
//	      alias: friend
//	      direction: out
//	      params:
//	        labels: [KNOWS]
//	  - prop_fill:
//	      tag: friend
//	      columns: [name]
type Document struct {
	Tags  []string `yaml:"tags,omitempty"`
	Steps []Step   `yaml:"steps"`
}

// Step holds exactly one plan node.
type Step struct {
	EdgeExpand *EdgeExpand `yaml:"edge_expand,omitempty"`
	PropFill   *PropFill   `yaml:"prop_fill,omitempty"`
}

// TagTable declares the document's tags in order.
func (d *Document) TagTable() *TagTable {
	return NewTagTable(d.Tags...)
}

// Validate checks the document's shape. Tag references and parameters are
// checked later, when operators are generated.
func (d *Document) Validate() error {
	if len(d.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidPlan)
	}
	seen := make(map[string]bool, len(d.Tags))
	for _, tag := range d.Tags {
		if tag == "" {
			return fmt.Errorf("%w: empty tag name", ErrInvalidPlan)
		}
		if seen[tag] {
			return fmt.Errorf("%w: duplicate tag %q", ErrInvalidPlan, tag)
		}
		seen[tag] = true
	}
	for i, s := range d.Steps {
		n := 0
		if s.EdgeExpand != nil {
			n++
		}
		if s.PropFill != nil {
			n++
		}
		if n != 1 {
			return fmt.Errorf("%w: step %d must hold exactly one node", ErrInvalidPlan, i)
		}
	}
	return nil
}

// Decode reads and validates a YAML plan. Unknown fields are rejected.
func Decode(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidPlan)
		}
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile reads a plan file.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return Decode(bytes.NewReader(data))
}
