package policyio

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"github.com/convergefm/converge/internal/errs"
	"github.com/convergefm/converge/pkg/ast"
)

// cueConstraint mirrors a CUE-authored constraint (lval, rval, guard).
// Rval is decoded loosely (string | []string) and reclassified into
// ast.RvalKind by Load, the same loose-decode-then-classify shape the
// teacher's CUEParser.Parse uses for ResourceConfig fields.
type cueConstraint struct {
	Lval    string   `json:"lval"`
	Rval    string   `json:"rval,omitempty"`
	RvalList []string `json:"rval_list,omitempty"`
	BodyRef string   `json:"body_ref,omitempty"`
	Iterate bool     `json:"iterate,omitempty"`
	Classes string   `json:"classes,omitempty"`
}

type cuePromise struct {
	Promiser    string          `json:"promiser"`
	Promisee    string          `json:"promisee,omitempty"`
	HasPromisee bool            `json:"has_promisee,omitempty"`
	Classes     string          `json:"classes,omitempty"`
	Constraints []cueConstraint `json:"constraints,omitempty"`
}

type cueSubtype struct {
	Name     string       `json:"name"`
	Promises []cuePromise `json:"promises,omitempty"`
}

type cueFormalArg struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type cueBundle struct {
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	FormalArgs []cueFormalArg `json:"formal_args,omitempty"`
	Subtypes   []cueSubtype   `json:"subtypes,omitempty"`
}

type cueBody struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	FormalArgs  []cueFormalArg  `json:"formal_args,omitempty"`
	Constraints []cueConstraint `json:"constraints,omitempty"`
}

type cueDocument struct {
	Bundles []cueBundle `json:"bundles,omitempty"`
	Bodies  []cueBody   `json:"bodies,omitempty"`
}

// CUELoader parses CUE policy sources into an ast.Policy, grounded on the
// teacher's CUEParser: same cuecontext.New()/load.Instances two-step, same
// "decode loosely, validate by re-checking at the destination" posture
// (here the destination check is ast.Policy.AddBundle/AddBody's
// redefinition guard rather than validator struct tags, since bundle/body
// identity is a (type,name) key, not a tagged struct field).
type CUELoader struct {
	ctx *cue.Context
}

func NewCUELoader() *CUELoader {
	return &CUELoader{ctx: cuecontext.New()}
}

// Load reads and type-checks the CUE packages rooted at dir, decodes the
// `bundles`/`bodies` top-level fields, and lowers them into a fresh
// ast.Policy.
func (l *CUELoader) Load(dir string) (*ast.Policy, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, errs.NewPolicyMalformed("no CUE instances found in "+dir, nil)
	}

	policy := ast.NewPolicy()
	for _, inst := range instances {
		if inst.Err != nil {
			return nil, errs.NewPolicyMalformed("loading "+dir, inst.Err)
		}
		val := l.ctx.BuildInstance(inst)
		if err := val.Err(); err != nil {
			return nil, errs.NewPolicyMalformed("building CUE instance", err)
		}
		var doc cueDocument
		if err := val.Decode(&doc); err != nil {
			return nil, errs.NewDecodeError("decoding CUE document", err)
		}
		if err := lower(policy, doc); err != nil {
			return nil, err
		}
	}
	return policy, nil
}

func lower(policy *ast.Policy, doc cueDocument) error {
	for _, cb := range doc.Bundles {
		b := &ast.Bundle{Type: cb.Type, Name: cb.Name}
		for _, fa := range cb.FormalArgs {
			b.FormalArgs = append(b.FormalArgs, ast.FormalArg{Name: fa.Name, Type: fa.Type})
		}
		for _, cs := range cb.Subtypes {
			st := ast.Subtype{Name: cs.Name}
			for _, cp := range cs.Promises {
				st.Promises = append(st.Promises, lowerPromise(cp, cb.Type, cb.Name))
			}
			b.Subtypes = append(b.Subtypes, st)
		}
		if err := policy.AddBundle(b); err != nil {
			return errs.NewPolicyMalformed(err.Error(), err)
		}
	}
	for _, cb := range doc.Bodies {
		body := &ast.Body{Type: cb.Type, Name: cb.Name}
		for _, fa := range cb.FormalArgs {
			body.FormalArgs = append(body.FormalArgs, ast.FormalArg{Name: fa.Name, Type: fa.Type})
		}
		for _, cc := range cb.Constraints {
			body.Constraints = append(body.Constraints, lowerConstraint(cc))
		}
		if err := policy.AddBody(body); err != nil {
			return errs.NewPolicyMalformed(err.Error(), err)
		}
	}
	return nil
}

func lowerPromise(cp cuePromise, _, bundleName string) ast.Promise {
	p := ast.Promise{
		Promiser:    cp.Promiser,
		Promisee:    cp.Promisee,
		HasPromisee: cp.HasPromisee,
		Classes:     cp.Classes,
		Bundle:      bundleName,
	}
	for _, cc := range cp.Constraints {
		p.Constraints = append(p.Constraints, lowerConstraint(cc))
	}
	return p
}

func lowerConstraint(cc cueConstraint) ast.Constraint {
	c := ast.Constraint{Lval: cc.Lval, Classes: cc.Classes, IterateList: cc.Iterate}
	switch {
	case cc.BodyRef != "":
		c.RvalKind = ast.RvalBodyRef
		c.BodyRef = cc.BodyRef
	case len(cc.RvalList) > 0:
		c.RvalKind = ast.RvalList
		c.RvalList = cc.RvalList
	default:
		c.RvalKind = ast.RvalScalar
		c.RvalStr = cc.Rval
	}
	return c
}
