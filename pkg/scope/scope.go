// Package scope implements hierarchical named scopes and the
// $(name)/@(name) reference-expansion rules of C2, grounded on the
// teacher's starlark_eval.go binding/expansion patterns and the
// process-wide-vs-per-bundle scope lifecycle policy/engine.go follows for
// binding contexts.
package scope

import (
	"fmt"
	"regexp"
	"sync"
)

// DataType tags the declared type of a variable binding, independent of
// the underlying Value's own Kind (a scalar variable may still be declared
// "int" or "string" for downstream formal-type checking in the expander).
type DataType string

const (
	TypeString DataType = "string"
	TypeInt    DataType = "int"
	TypeReal   DataType = "real"
	TypeSlist  DataType = "slist"
	TypeIlist  DataType = "ilist"
	TypeRlist  DataType = "rlist"
)

// Binding pairs a Value-shaped payload (kept as an opaque interface to
// avoid an import cycle with pkg/value; callers supply value.Value) with
// its declared type.
type Binding struct {
	Val  interface{}
	Type DataType
}

// Scope is a named variable mapping. The zero value is not usable; use New.
type Scope struct {
	mu   sync.RWMutex
	name string
	vars map[string]Binding
}

func New(name string) *Scope {
	return &Scope{name: name, vars: make(map[string]Binding)}
}

func (s *Scope) Name() string { return s.name }

func (s *Scope) Set(varName string, b Binding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[varName] = b
}

func (s *Scope) Get(varName string) (Binding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.vars[varName]
	return b, ok
}

// Registry tracks the live scopes of a process: the permanent ones
// (control_<agent>, sys, mon, const, match) and the transient ones created
// on bundle entry and destroyed on exit. Invariant (iv): a scope name has
// at most one live instance at a time.
type Registry struct {
	mu     sync.Mutex
	scopes map[string]*Scope
}

func NewRegistry() *Registry {
	return &Registry{scopes: make(map[string]*Scope)}
}

// Enter creates a new scope under name, failing if one is already live —
// this is the enforcement point for invariant (iv).
func (r *Registry) Enter(name string) (*Scope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.scopes[name]; exists {
		return nil, fmt.Errorf("scope %q already has a live instance", name)
	}
	s := New(name)
	r.scopes[name] = s
	return s, nil
}

// Exit destroys a transient scope. Permanent scopes (sys, mon, const,
// match, control_*) are never passed to Exit by the evaluator.
func (r *Registry) Exit(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.scopes, name)
}

func (r *Registry) Lookup(name string) (*Scope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scopes[name]
	return s, ok
}

// Resolve performs a (scope_name, var_name) lookup across the registry.
func (r *Registry) Resolve(scopeName, varName string) (Binding, bool) {
	s, ok := r.Lookup(scopeName)
	if !ok {
		return Binding{}, false
	}
	return s.Get(varName)
}

var (
	scalarRef = regexp.MustCompile(`\$\(([A-Za-z0-9_.\[\]]+)\)`)
	listRef   = regexp.MustCompile(`@\(([A-Za-z0-9_.\[\]]+)\)`)
)

// maxExpansionPasses bounds the rewrite loop in Expand; after this many
// passes with references still present, expansion stops and unresolved
// text is left verbatim per §4.2.
const maxExpansionPasses = 10

// Resolver looks up a qualified or bare variable name ("bundle.var" or
// "var" against a default scope) and returns its scalar rendering plus
// whether it was found.
type Resolver func(ref string) (scalar string, isList bool, listScalars []string, found bool)

// Expand performs the bounded rewrite described in §4.2: repeatedly
// substitute $(name)/@(name) references until a pass introduces no new
// reference or the pass cap is hit. If the whole input string is a single
// naked @(name) reference, the caller should use ExpandNaked instead to
// preserve list structure; Expand always flattens to a scalar string.
func Expand(input string, resolve Resolver) (result string, unresolved bool) {
	cur := input
	for pass := 0; pass < maxExpansionPasses; pass++ {
		next, changed, hasUnresolved := expandOnce(cur, resolve)
		cur = next
		if !changed {
			return cur, hasUnresolved
		}
	}
	_, _, hasUnresolved := expandOnce(cur, resolve)
	return cur, hasUnresolved
}

// IsNakedListRef reports whether s is exactly a single @(name) reference
// with nothing else around it — per §4.2 such a reference preserves list
// structure rather than flattening.
func IsNakedListRef(s string) (name string, ok bool) {
	m := listRef.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	if m[0] != s {
		return "", false
	}
	return m[1], true
}

func expandOnce(s string, resolve Resolver) (result string, changed bool, unresolved bool) {
	out := scalarRef.ReplaceAllStringFunc(s, func(match string) string {
		name := scalarRef.FindStringSubmatch(match)[1]
		scalar, isList, listScalars, found := resolve(name)
		if !found {
			unresolved = true
			return match
		}
		changed = true
		if isList {
			return joinScalars(listScalars)
		}
		return scalar
	})
	out = listRef.ReplaceAllStringFunc(out, func(match string) string {
		name := listRef.FindStringSubmatch(match)[1]
		scalar, isList, listScalars, found := resolve(name)
		if !found {
			unresolved = true
			return match
		}
		changed = true
		if isList {
			return joinScalars(listScalars)
		}
		return scalar
	})
	return out, changed, unresolved
}

func joinScalars(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
