package evaluator

import (
	"strings"

	"github.com/convergefm/converge/internal/errs"
	"github.com/convergefm/converge/pkg/ast"
)

// BundleSequenceFromControl reads the `bundlesequence` constraint out of
// the `body <agentType> control` body (§4.5's outer loop walks this
// control variable) and resolves each entry against the policy's agent
// bundles. An entry may carry parenthesised actual arguments
// ("configure(\"prod\")"); bare names take no actuals.
func BundleSequenceFromControl(policy *ast.Policy, agentType string) ([]BundleInvocation, error) {
	body, ok := policy.LookupBody(agentType, "control")
	if !ok {
		return nil, errs.NewPolicyMalformed("no body "+agentType+" control defining bundlesequence", nil)
	}

	var names []string
	for _, c := range body.Constraints {
		if c.Lval != "bundlesequence" {
			continue
		}
		if len(c.RvalList) > 0 {
			names = append(names, c.RvalList...)
		} else if c.RvalStr != "" {
			names = append(names, c.RvalStr)
		}
	}
	if len(names) == 0 {
		return nil, errs.NewPolicyMalformed("bundlesequence is empty in body "+agentType+" control", nil)
	}

	seq := make([]BundleInvocation, 0, len(names))
	for _, entry := range names {
		name, actuals := parseSequenceEntry(entry)
		if _, ok := policy.LookupBundle("agent", name); !ok {
			return nil, errs.NewPolicyMalformed("bundlesequence entry references unknown bundle agent:"+name, nil)
		}
		seq = append(seq, BundleInvocation{BundleType: "agent", Name: name, Actuals: actuals})
	}
	return seq, nil
}

// parseSequenceEntry splits "name(\"a\", \"b\")" into ("name", ["a","b"]);
// a bare "name" returns no actuals.
func parseSequenceEntry(entry string) (name string, actuals []string) {
	open := strings.IndexByte(entry, '(')
	if open < 0 {
		return entry, nil
	}
	name = entry[:open]
	inner := strings.TrimSuffix(entry[open+1:], ")")
	if strings.TrimSpace(inner) == "" {
		return name, nil
	}
	for _, part := range strings.Split(inner, ",") {
		actuals = append(actuals, strings.Trim(strings.TrimSpace(part), `"`))
	}
	return name, actuals
}
