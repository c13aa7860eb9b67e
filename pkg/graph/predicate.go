package graph

import (
	"fmt"
	"reflect"
	"strings"
)

// Op is a comparison operator usable in a Compare predicate.
type Op string

const (
	OpEq     Op = "eq"
	OpNe     Op = "ne"
	OpLt     Op = "lt"
	OpLe     Op = "le"
	OpGt     Op = "gt"
	OpGe     Op = "ge"
	OpIn     Op = "in"
	OpExists Op = "exists"
)

// ParseOp accepts both the names above and their symbolic forms.
func ParseOp(s string) (Op, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eq", "=", "==":
		return OpEq, nil
	case "ne", "!=", "<>":
		return OpNe, nil
	case "lt", "<":
		return OpLt, nil
	case "le", "<=":
		return OpLe, nil
	case "gt", ">":
		return OpGt, nil
	case "ge", ">=":
		return OpGe, nil
	case "in", "within":
		return OpIn, nil
	case "exists", "has":
		return OpExists, nil
	}
	return "", fmt.Errorf("%w: unknown operator %q", ErrInvalidParams, s)
}

// Predicate filters graph elements.
type Predicate interface {
	Eval(e Element) (bool, error)
	String() string
}

// Compare tests one property against a constant. A missing property never
// matches, except under OpNe.
type Compare struct {
	Key   string
	Op    Op
	Value any
}

func (c Compare) Eval(e Element) (bool, error) {
	actual, ok := e.Property(c.Key)
	switch c.Op {
	case OpExists:
		return ok, nil
	case OpNe:
		return !ok || !valuesEqual(actual, c.Value), nil
	}
	if !ok {
		return false, nil
	}

	switch c.Op {
	case OpEq:
		return valuesEqual(actual, c.Value), nil
	case OpIn:
		list, isList := c.Value.([]any)
		if !isList {
			return false, fmt.Errorf("%w: %q expects a list", ErrInvalidParams, c.Op)
		}
		for _, item := range list {
			if valuesEqual(actual, item) {
				return true, nil
			}
		}
		return false, nil
	case OpLt, OpLe, OpGt, OpGe:
		cmp, comparable := compareValues(actual, c.Value)
		if !comparable {
			return false, nil
		}
		switch c.Op {
		case OpLt:
			return cmp < 0, nil
		case OpLe:
			return cmp <= 0, nil
		case OpGt:
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	}
	return false, fmt.Errorf("%w: unknown operator %q", ErrInvalidParams, c.Op)
}

func (c Compare) String() string {
	if c.Op == OpExists {
		return fmt.Sprintf("exists(%s)", c.Key)
	}
	return fmt.Sprintf("%s %s %v", c.Key, c.Op, c.Value)
}

// HasLabel matches elements whose label is one of Labels.
type HasLabel struct {
	Labels []string
}

func (h HasLabel) Eval(e Element) (bool, error) {
	label := e.ElementLabel()
	for _, l := range h.Labels {
		if l == label {
			return true, nil
		}
	}
	return false, nil
}

func (h HasLabel) String() string {
	return fmt.Sprintf("hasLabel(%s)", strings.Join(h.Labels, ","))
}

// And matches when every operand matches. An empty And matches everything.
type And []Predicate

func (a And) Eval(e Element) (bool, error) {
	for _, p := range a {
		ok, err := p.Eval(e)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (a And) String() string { return joinPredicates(" && ", a) }

// Or matches when any operand matches. An empty Or matches nothing.
type Or []Predicate

func (o Or) Eval(e Element) (bool, error) {
	for _, p := range o {
		ok, err := p.Eval(e)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (o Or) String() string { return joinPredicates(" || ", o) }

// Not negates its operand.
type Not struct {
	P Predicate
}

func (n Not) Eval(e Element) (bool, error) {
	ok, err := n.P.Eval(e)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (n Not) String() string { return "!(" + n.P.String() + ")" }

func joinPredicates(sep string, ps []Predicate) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// toFloat converts any Go numeric kind to float64.
func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders numbers with numbers and strings with strings.
func compareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}
