// Package expand implements the Expander (C4): clone a policy promise,
// bind body references, substitute variables, and fan out list-valued
// parameters marked for iteration. Grounded on the teacher's
// pkg/policy/engine.go apply/bind logic, generalised from OPA-style
// rule binding to the clone+substitute+iterate semantics of §4.4.
package expand

import (
	"fmt"
	"strings"

	"github.com/convergefm/converge/internal/errs"
	"github.com/convergefm/converge/pkg/ast"
	"github.com/convergefm/converge/pkg/scope"
)

// Clone is one expanded promise instance, carrying the per-pass scratch
// slot (Deferred) the evaluator consults when deciding whether to retry.
type Clone struct {
	Promiser    string
	Promisee    string
	HasPromisee bool
	Subtype     string
	Bundle      string
	Constraints []ast.Constraint
	Ref         string
	Origin      ast.Origin
	Deferred    bool
}

// Resolver adapts a scope.Registry (plus the expansion-local "this" and
// "body" scopes) into the scope.Resolver function shape Expand needs.
type Resolver struct {
	Registry    *scope.Registry
	LocalScopes []string // scopes to search in order: this, bundle-local, body, ...
}

func (r Resolver) resolve(ref string) (string, bool, []string, bool) {
	scopeName, varName := splitRef(ref, r.LocalScopes)
	b, ok := r.Registry.Resolve(scopeName, varName)
	if !ok && !strings.Contains(ref, ".") {
		for i := 1; i < len(r.LocalScopes) && !ok; i++ {
			b, ok = r.Registry.Resolve(r.LocalScopes[i], ref)
		}
	}
	if !ok {
		return "", false, nil, false
	}
	switch v := b.Val.(type) {
	case string:
		return v, false, nil, true
	case []string:
		return "", true, v, true
	default:
		return fmt.Sprintf("%v", v), false, nil, true
	}
}

// splitRef splits "bundle.var" into (bundle, var); a bare "var" is
// resolved against each of localScopes in order by the caller.
func splitRef(ref string, localScopes []string) (scopeName, varName string) {
	if i := strings.IndexByte(ref, '.'); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	if len(localScopes) > 0 {
		return localScopes[0], ref
	}
	return "", ref
}

// Expander expands AST promises against a loaded Policy (for body lookup).
type Expander struct {
	Policy *ast.Policy
}

func New(policy *ast.Policy) *Expander {
	return &Expander{Policy: policy}
}

// Expand implements §4.4 steps (a)-(e), returning zero or more clones. A
// binding-arity mismatch is a hard error; an unresolved reference after the
// resolver's bounded pass cap marks the clone Deferred rather than failing.
func (e *Expander) Expand(p ast.Promise, bodyType string, resolver Resolver, classCtx ClassEvaluator) ([]*Clone, error) {
	constraints, err := e.bindBodies(p.Constraints, bodyType, resolver)
	if err != nil {
		return nil, err
	}

	iterConstraint, iterValues, hasIter := findIterationConstraint(constraints)
	if !hasIter {
		clone, deferred, err := e.expandOne(p, constraints, resolver, classCtx, "")
		if err != nil {
			return nil, err
		}
		if clone == nil {
			return nil, nil
		}
		clone.Deferred = deferred
		return []*Clone{clone}, nil
	}

	var clones []*Clone
	for _, elem := range iterValues {
		boundConstraints := bindIterationVar(constraints, iterConstraint, elem)
		clone, deferred, err := e.expandOne(p, boundConstraints, resolver, classCtx, elem)
		if err != nil {
			return nil, err
		}
		if clone == nil {
			continue
		}
		clone.Deferred = deferred
		clones = append(clones, clone)
	}
	return clones, nil
}

// ClassEvaluator re-evaluates a class guard string against the live class
// context, used for step (d).
type ClassEvaluator interface {
	EvalGuard(expr string) (bool, error)
}

func (e *Expander) expandOne(p ast.Promise, constraints []ast.Constraint, resolver Resolver, classCtx ClassEvaluator, iterVal string) (*Clone, bool, error) {
	unresolvedAny := false
	expanded := make([]ast.Constraint, len(constraints))
	for i, c := range constraints {
		nc := c
		if c.RvalKind == ast.RvalScalar {
			text, unresolved := scope.Expand(c.RvalStr, resolver.resolve)
			nc.RvalStr = text
			if unresolved {
				unresolvedAny = true
			}
		}
		expanded[i] = nc
	}

	// Step (d): re-evaluate the promise's class expression after expansion.
	guardOk, err := classCtx.EvalGuard(p.Classes)
	if err != nil {
		return nil, false, err
	}
	if !guardOk {
		return nil, false, nil
	}

	promiser, unresolvedPromiser := scope.Expand(p.Promiser, resolver.resolve)
	if unresolvedPromiser {
		unresolvedAny = true
	}

	promisee := p.Promisee
	if p.HasPromisee {
		promisee, _ = scope.Expand(p.Promisee, resolver.resolve)
	}

	ref := computeRef(expanded, promiser)

	clone := &Clone{
		Promiser:    promiser,
		Promisee:    promisee,
		HasPromisee: p.HasPromisee,
		Subtype:     p.Subtype,
		Bundle:      p.Bundle,
		Constraints: expanded,
		Ref:         ref,
		Origin:      p.Origin,
	}
	return clone, unresolvedAny, nil
}

// bindBodies implements step (a): for each constraint whose rval resolves
// to a body reference, replace the constraint set with the body's
// constraints, substituting formals with actuals.
func (e *Expander) bindBodies(constraints []ast.Constraint, bodyType string, resolver Resolver) ([]ast.Constraint, error) {
	var out []ast.Constraint
	for _, c := range constraints {
		if c.RvalKind != ast.RvalBodyRef {
			out = append(out, c)
			continue
		}
		body, ok := e.Policy.LookupBody(bodyType, c.BodyRef)
		if !ok {
			return nil, errs.NewPolicyMalformed(fmt.Sprintf("unknown body %s:%s", bodyType, c.BodyRef), nil)
		}
		if len(body.FormalArgs) != len(c.BodyActuals) {
			return nil, errs.NewBindingArity(fmt.Sprintf(
				"body %s:%s expects %d args, got %d", bodyType, c.BodyRef, len(body.FormalArgs), len(c.BodyActuals)), nil)
		}
		subst := make(map[string]string, len(body.FormalArgs))
		for i, f := range body.FormalArgs {
			subst[f.Name] = c.BodyActuals[i]
		}
		for _, bc := range body.Constraints {
			nc := bc
			nc.RvalStr = substituteFormals(bc.RvalStr, subst)
			out = append(out, nc)
		}
	}
	return out, nil
}

func substituteFormals(s string, subst map[string]string) string {
	for formal, actual := range subst {
		s = strings.ReplaceAll(s, "$("+formal+")", actual)
	}
	return s
}

func findIterationConstraint(constraints []ast.Constraint) (ast.Constraint, []string, bool) {
	for _, c := range constraints {
		if c.IterateList && c.RvalKind == ast.RvalList {
			return c, c.RvalList, true
		}
	}
	return ast.Constraint{}, nil, false
}

func bindIterationVar(constraints []ast.Constraint, iterConstraint ast.Constraint, elem string) []ast.Constraint {
	out := make([]ast.Constraint, len(constraints))
	for i, c := range constraints {
		if c.Lval == iterConstraint.Lval {
			out[i] = ast.Constraint{Lval: c.Lval, RvalStr: elem, RvalKind: ast.RvalScalar, Classes: c.Classes, Origin: c.Origin}
			continue
		}
		out[i] = c
	}
	return out
}

// computeRef attaches the computed diagnostic reference string from the
// comment constraint, with $(this.promiser) replaced (step (e)).
func computeRef(constraints []ast.Constraint, promiser string) string {
	for _, c := range constraints {
		if c.Lval == "comment" {
			return strings.ReplaceAll(c.RvalStr, "$(this.promiser)", promiser)
		}
	}
	return ""
}
