// Package plan describes the declarative plan nodes nornicflow operators are
// generated from, and decodes them from YAML plan files.
//
// Plan nodes reference tags symbolically (by name or by numeric id) and carry
// raw, unvalidated values. Everything is resolved and validated when an
// operator is generated, so a malformed plan fails before any record flows.
package plan

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/nornicflow/pkg/record"
)

var (
	ErrUnknownTag       = errors.New("unknown tag")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidFilter    = errors.New("invalid filter")
	ErrInvalidPlan      = errors.New("invalid plan")
)

// NameOrID is a symbolic tag reference. Exactly one of Name or ID is set.
//
// In YAML it is written either as a string (a name) or as an integer (an id):
//
//	v_tag: person
//	alias: 3
type NameOrID struct {
	Name string
	ID   *int64
}

// Name returns a reference by name.
func Name(name string) *NameOrID { return &NameOrID{Name: name} }

// ID returns a reference by numeric id.
func ID(id int64) *NameOrID { return &NameOrID{ID: &id} }

func (n *NameOrID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: tag reference must be a scalar (line %d)", ErrInvalidPlan, node.Line)
	}
	if node.Tag == "!!int" {
		var id int64
		if err := node.Decode(&id); err != nil {
			return err
		}
		n.ID = &id
		return nil
	}
	n.Name = node.Value
	return nil
}

func (n NameOrID) MarshalYAML() (any, error) {
	if n.ID != nil {
		return *n.ID, nil
	}
	return n.Name, nil
}

func (n *NameOrID) String() string {
	if n == nil {
		return "<head>"
	}
	if n.ID != nil {
		return fmt.Sprintf("#%d", *n.ID)
	}
	return n.Name
}

// TagTable maps tag names to runtime tag ids.
type TagTable struct {
	byName map[string]record.KeyID
	next   record.KeyID
}

// NewTagTable declares names in order; the first gets id 0.
func NewTagTable(names ...string) *TagTable {
	t := &TagTable{byName: make(map[string]record.KeyID)}
	for _, n := range names {
		t.Declare(n)
	}
	return t
}

// Declare returns the id of name, assigning the next free id on first use.
func (t *TagTable) Declare(name string) record.KeyID {
	if id, ok := t.byName[name]; ok {
		return id
	}
	for t.isTaken(t.next) {
		t.next++
	}
	id := t.next
	t.byName[name] = id
	t.next++
	return id
}

// Bind pins name to id. Rebinding a name to a different id is an error.
func (t *TagTable) Bind(name string, id record.KeyID) error {
	if existing, ok := t.byName[name]; ok && existing != id {
		return fmt.Errorf("%w: %q already bound to %d", ErrInvalidPlan, name, existing)
	}
	t.byName[name] = id
	return nil
}

func (t *TagTable) isTaken(id record.KeyID) bool {
	for _, existing := range t.byName {
		if existing == id {
			return true
		}
	}
	return false
}

// Names returns the declared names ordered by id.
func (t *TagTable) Names() []string {
	names := make([]string, 0, len(t.byName))
	for n := range t.byName {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return t.byName[names[i]] < t.byName[names[j]] })
	return names
}

// Lookup returns the name bound to id, if any.
func (t *TagTable) Lookup(id record.KeyID) (string, bool) {
	for n, existing := range t.byName {
		if existing == id {
			return n, true
		}
	}
	return "", false
}

// Resolve turns a reference into a runtime tag. A nil reference resolves to
// nil, which addresses the record head. Numeric ids are taken as-is.
func (t *TagTable) Resolve(ref *NameOrID) (*record.KeyID, error) {
	if ref == nil {
		return nil, nil
	}
	if ref.ID != nil {
		if *ref.ID < 0 || *ref.ID > math.MaxInt32 {
			return nil, fmt.Errorf("%w: id %d out of range", ErrUnknownTag, *ref.ID)
		}
		return record.Tag(record.KeyID(*ref.ID)), nil
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %q (no tag table)", ErrUnknownTag, ref.Name)
	}
	id, ok := t.byName[ref.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, ref.Name)
	}
	return record.Tag(id), nil
}
