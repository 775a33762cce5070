// Package value implements the sum-typed Value model (C1): scalars, ordered
// lists, function-calls, and the association values used inside bodies.
// Grounded on the teacher's Go<->Starlark sum-type conversion in
// pkg/config/starlark_eval.go (toStarlarkValue/fromStarlarkValue), which
// already encodes the same scalar/list/call shape this model needs.
package value

import (
	"fmt"
	"sort"
)

// Kind tags the alternative a Value holds.
type Kind int

const (
	Scalar Kind = iota
	List
	FnCall
	Assoc
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case List:
		return "list"
	case FnCall:
		return "fncall"
	case Assoc:
		return "assoc"
	default:
		return "unknown"
	}
}

// Value is an immutable tagged union. Only the fields relevant to Kind are
// meaningful; callers must switch on Kind before reading.
type Value struct {
	kind  Kind
	str   string
	list  []Value
	fn    string
	args  []Value
	assoc map[string]Value
}

func NewScalar(s string) Value { return Value{kind: Scalar, str: s} }

func NewList(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: List, list: cp}
}

func NewFnCall(name string, args ...Value) Value {
	cp := make([]Value, len(args))
	copy(cp, args)
	return Value{kind: FnCall, fn: name, args: cp}
}

func NewAssoc(fields map[string]Value) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: Assoc, assoc: cp}
}

func (v Value) Kind() Kind { return v.kind }

// Scalar returns the scalar string and whether v is a scalar.
func (v Value) Scalar() (string, bool) {
	if v.kind != Scalar {
		return "", false
	}
	return v.str, true
}

// Items returns the list's elements (a copy is not made; callers must not
// mutate in place — Value is meant to be treated as immutable).
func (v Value) Items() ([]Value, bool) {
	if v.kind != List {
		return nil, false
	}
	return v.list, true
}

func (v Value) FnName() (string, []Value, bool) {
	if v.kind != FnCall {
		return "", nil, false
	}
	return v.fn, v.args, true
}

func (v Value) AssocFields() (map[string]Value, bool) {
	if v.kind != Assoc {
		return nil, false
	}
	return v.assoc, true
}

// Clone performs a deep copy, satisfying the invariant that a promise clone
// never aliases mutable structure with its source.
func (v Value) Clone() Value {
	switch v.kind {
	case List:
		out := make([]Value, len(v.list))
		for i, e := range v.list {
			out[i] = e.Clone()
		}
		return Value{kind: List, list: out}
	case FnCall:
		out := make([]Value, len(v.args))
		for i, e := range v.args {
			out[i] = e.Clone()
		}
		return Value{kind: FnCall, fn: v.fn, args: out}
	case Assoc:
		out := make(map[string]Value, len(v.assoc))
		for k, e := range v.assoc {
			out[k] = e.Clone()
		}
		return Value{kind: Assoc, assoc: out}
	default:
		return v
	}
}

// Equal performs structural equality; list order matters, assoc key order
// does not.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Scalar:
		return a.str == b.str
	case List:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case FnCall:
		if a.fn != b.fn || len(a.args) != len(b.args) {
			return false
		}
		for i := range a.args {
			if !Equal(a.args[i], b.args[i]) {
				return false
			}
		}
		return true
	case Assoc:
		if len(a.assoc) != len(b.assoc) {
			return false
		}
		for k, av := range a.assoc {
			bv, ok := b.assoc[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Iterator yields list elements lazily and repeatably: a new iterator may
// be opened on the same Value after a previous one has been exhausted, and
// mutation is impossible because Value is immutable once constructed.
type Iterator struct {
	items []Value
	pos   int
}

// Iterate opens a fresh iterator over a list Value. Calling Iterate on a
// non-list Value yields a single-element iterator over the Value itself,
// matching the "naked vs. flattened" duality used by the scope resolver.
func Iterate(v Value) *Iterator {
	if items, ok := v.Items(); ok {
		return &Iterator{items: items}
	}
	return &Iterator{items: []Value{v}}
}

func (it *Iterator) Next() (Value, bool) {
	if it.pos >= len(it.items) {
		return Value{}, false
	}
	v := it.items[it.pos]
	it.pos++
	return v, true
}

func (it *Iterator) Reset() { it.pos = 0 }

// sortedAssocKeys is used both by canonical JSON emission and by anything
// that needs deterministic traversal of an association's fields.
func sortedAssocKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v Value) String() string {
	switch v.kind {
	case Scalar:
		return v.str
	case List:
		return fmt.Sprintf("list(%d)", len(v.list))
	case FnCall:
		return fmt.Sprintf("%s(%d args)", v.fn, len(v.args))
	case Assoc:
		return fmt.Sprintf("assoc(%d)", len(v.assoc))
	}
	return "?"
}
