// Package ast holds the in-memory policy model (C3): bundles, bodies,
// subtype-typed promises and their constraint lists, arena-indexed per the
// Design Notes so promise clones never back-reference the AST directly.
// Grounded on the teacher's pkg/policy/types.go shape (typed definitions
// keyed by name) generalised from OPA policy objects to promise/bundle/
// body/constraint objects, and on pkg/engine/dag.go's duplicate-ID
// rejection style for the redefinition check.
package ast

import "fmt"

// Origin records source file and line for diagnostics.
type Origin struct {
	File string
	Line int
}

// RvalKind distinguishes a constraint's right-hand side shape.
type RvalKind int

const (
	RvalScalar RvalKind = iota
	RvalList
	RvalFnCall
	RvalBodyRef
)

// Constraint is the (lval, rval, classes) triple of §3. IsBodyRef marks
// constraints whose rval must resolve to a named Body rather than a
// literal value.
type Constraint struct {
	Lval        string
	RvalStr     string   // for RvalScalar/RvalFnCall (function name) reference text
	RvalList    []string // for RvalList, raw per-element text (pre-expansion)
	RvalKind    RvalKind
	BodyRef     string   // body name when RvalKind == RvalBodyRef
	BodyActuals []string // actual-argument text when RvalKind == RvalBodyRef
	IterateList bool     // list-valued parameter marked for expander fan-out
	Classes     string   // guarding class expression, empty = always active
	Origin      Origin
}

// Promise is (promiser, promisee?, classes, subtype, bundle, constraints,
// ref, origin). The per-pass deferred status lives on the expanded clone
// (expand.Clone.Deferred), not on the AST promise.
type Promise struct {
	Promiser    string
	Promisee    string
	HasPromisee bool
	Classes     string
	Subtype     string
	Bundle      string
	Constraints []Constraint
	Ref         string
	Origin      Origin
}

// Subtype is an ordered list of promises of one subtype tag within a
// bundle, in declaration order.
type Subtype struct {
	Name     string
	Promises []Promise
}

// FormalArg is a bundle/body parameter name.
type FormalArg struct {
	Name string
	Type string
}

// Bundle is (type, name, formal_args, subtypes).
type Bundle struct {
	Type       string
	Name       string
	FormalArgs []FormalArg
	Subtypes   []Subtype
	Origin     Origin
}

// Body is (type, name, formal_args, constraints).
type Body struct {
	Type       string
	Name       string
	FormalArgs []FormalArg
	Constraints []Constraint
	Origin      Origin
}

type defKey struct{ typ, name string }

// Policy is the arena: all bundles and bodies loaded from one or more
// policy files, indexed by (type, name) for O(1) lookup and re-checked for
// redefinition even though the parser is expected to enforce uniqueness
// (invariant (i)).
type Policy struct {
	bundles    map[defKey]*Bundle
	bodies     map[defKey]*Body
	bundleOrd  []defKey
	bodyOrd    []defKey
}

func NewPolicy() *Policy {
	return &Policy{
		bundles: make(map[defKey]*Bundle),
		bodies:  make(map[defKey]*Body),
	}
}

// AddBundle registers a bundle, rejecting a (type, name) collision with a
// redefinition error.
func (p *Policy) AddBundle(b *Bundle) error {
	k := defKey{b.Type, b.Name}
	if _, exists := p.bundles[k]; exists {
		return fmt.Errorf("redefinition: bundle %s:%s already defined", b.Type, b.Name)
	}
	p.bundles[k] = b
	p.bundleOrd = append(p.bundleOrd, k)
	return nil
}

// AddBody registers a body, rejecting a (type, name) collision.
func (p *Policy) AddBody(b *Body) error {
	k := defKey{b.Type, b.Name}
	if _, exists := p.bodies[k]; exists {
		return fmt.Errorf("redefinition: body %s:%s already defined", b.Type, b.Name)
	}
	p.bodies[k] = b
	p.bodyOrd = append(p.bodyOrd, k)
	return nil
}

// LookupBundle finds a bundle by (type, name).
func (p *Policy) LookupBundle(typ, name string) (*Bundle, bool) {
	b, ok := p.bundles[defKey{typ, name}]
	return b, ok
}

// LookupBody finds a body by (type, name).
func (p *Policy) LookupBody(typ, name string) (*Body, bool) {
	b, ok := p.bodies[defKey{typ, name}]
	return b, ok
}

// Bundles returns bundles in declaration order (read-only traversal).
func (p *Policy) Bundles() []*Bundle {
	out := make([]*Bundle, len(p.bundleOrd))
	for i, k := range p.bundleOrd {
		out[i] = p.bundles[k]
	}
	return out
}

// Bodies returns bodies in declaration order.
func (p *Policy) Bodies() []*Body {
	out := make([]*Body, len(p.bodyOrd))
	for i, k := range p.bodyOrd {
		out[i] = p.bodies[k]
	}
	return out
}

// BundlesOfType returns bundles of a given type, in declaration order.
func (p *Policy) BundlesOfType(typ string) []*Bundle {
	var out []*Bundle
	for _, k := range p.bundleOrd {
		if k.typ == typ {
			out = append(out, p.bundles[k])
		}
	}
	return out
}
