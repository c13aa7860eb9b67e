package graph

import (
	"fmt"
	"slices"
	"strings"
)

// QueryParams is the plan-derived configuration baked into a statement at
// preparation time. Backends clone it, so later changes by the caller have no
// effect on prepared statements.
type QueryParams struct {
	// Labels restricts explored edges by label. Empty means any label.
	Labels []string

	// Filter is evaluated against each explored element. Nil means no filter.
	Filter Predicate

	// Limit caps the number of results per Exec. Zero means unlimited.
	Limit int

	// Columns lists the properties to load into Details.
	Columns []string

	// AllColumns loads every property and overrides Columns.
	AllColumns bool
}

// HasFilter reports whether a predicate is set.
func (p *QueryParams) HasFilter() bool {
	return p != nil && p.Filter != nil
}

// Validate rejects parameter combinations no backend can serve.
func (p *QueryParams) Validate() error {
	if p == nil {
		return nil
	}
	if p.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidParams, p.Limit)
	}
	for _, l := range p.Labels {
		if l == "" {
			return fmt.Errorf("%w: empty label", ErrInvalidParams)
		}
	}
	return nil
}

// Clone returns a copy whose slices are not shared with p. Nil clones to an
// empty parameter set.
func (p *QueryParams) Clone() *QueryParams {
	if p == nil {
		return &QueryParams{}
	}
	return &QueryParams{
		Labels:     slices.Clone(p.Labels),
		Filter:     p.Filter,
		Limit:      p.Limit,
		Columns:    slices.Clone(p.Columns),
		AllColumns: p.AllColumns,
	}
}

// MatchesLabel reports whether label passes the Labels restriction.
func (p *QueryParams) MatchesLabel(label string) bool {
	if p == nil || len(p.Labels) == 0 {
		return true
	}
	return slices.Contains(p.Labels, label)
}

// MatchesFilter evaluates Filter against e.
func (p *QueryParams) MatchesFilter(e Element) (bool, error) {
	if !p.HasFilter() {
		return true, nil
	}
	return p.Filter.Eval(e)
}

// Project builds the Details to attach to an element with the given raw
// properties. Without a column request the payload stays deferred.
func (p *QueryParams) Project(props map[string]any) Details {
	if p == nil {
		return EmptyDetails()
	}
	if p.AllColumns {
		return NewDetails(props)
	}
	if len(p.Columns) == 0 {
		return EmptyDetails()
	}
	projected := make(map[string]any, len(p.Columns))
	for _, c := range p.Columns {
		if v, ok := props[c]; ok {
			projected[c] = v
		}
	}
	return Details{props: projected, loaded: true}
}

// Exhausted reports whether n results already reach the limit.
func (p *QueryParams) Exhausted(n int) bool {
	return p != nil && p.Limit > 0 && n >= p.Limit
}

func (p *QueryParams) String() string {
	if p == nil {
		return "{}"
	}
	var b strings.Builder
	b.WriteString("{")
	fmt.Fprintf(&b, "labels=%v", p.Labels)
	if p.Filter != nil {
		fmt.Fprintf(&b, " filter=%s", p.Filter)
	}
	if p.Limit > 0 {
		fmt.Fprintf(&b, " limit=%d", p.Limit)
	}
	if p.AllColumns {
		b.WriteString(" columns=*")
	} else if len(p.Columns) > 0 {
		fmt.Fprintf(&b, " columns=%v", p.Columns)
	}
	b.WriteString("}")
	return b.String()
}
