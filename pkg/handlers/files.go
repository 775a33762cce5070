package handlers

import (
	"context"
	"regexp"

	"github.com/convergefm/converge/internal/errs"
	"github.com/convergefm/converge/pkg/editor"
	"github.com/convergefm/converge/pkg/evaluator"
	"github.com/convergefm/converge/pkg/expand"
)

// FileHandler adapts clones of the "files" subtype to the C9 edit-region
// engine: load the promiser as a filename, apply whichever of
// insert/delete/replace its constraints specify, and save transactionally
// only if something changed (idempotence is an editor.Context invariant,
// not something this handler re-checks).
type FileHandler struct {
	// DryRun suppresses Save, per spec.md's "in dry-run mode, effectors
	// are not invoked; outcomes are predicted from the plan".
	DryRun bool

	// Templates is the optional named edit-region recipe library (an
	// alternative authoring surface to inline constraints); nil disables
	// the "edit_template" constraint.
	Templates *editor.Library
}

func (h *FileHandler) Handle(ctx context.Context, c *expand.Clone) (evaluator.Outcome, []string, error) {
	ec, err := editor.Load(c.Promiser)
	if err != nil {
		return evaluator.NotKept, nil, err
	}

	selectStart, hasStart := constraintStr(c, "select_region_start")
	selectEnd, hasEnd := constraintStr(c, "select_region_end")
	deletePattern, hasDelete := constraintStr(c, "delete_line_matching")
	replacePair, hasReplace := constraintList(c, "replace_pattern")

	var insertLines []string
	if line, ok := constraintStr(c, "insert_line"); ok {
		insertLines = append(insertLines, line)
	}

	if name, ok := constraintStr(c, "edit_template"); ok {
		tpl, found := h.Templates.Lookup(name)
		if !found {
			return evaluator.NotKept, nil, errs.NewPolicyMalformed("unknown edit_template "+name, nil)
		}
		if !hasStart && !hasEnd && tpl.SelectRegionStart != "" && tpl.SelectRegionEnd != "" {
			selectStart, hasStart = tpl.SelectRegionStart, true
			selectEnd, hasEnd = tpl.SelectRegionEnd, true
		}
		insertLines = append(insertLines, tpl.InsertLines...)
		if len(tpl.ReplacePattern) == 2 && !hasReplace {
			replacePair, hasReplace = tpl.ReplacePattern, true
		}
	}

	region := editor.Region{Start: 0, End: len(ec.Lines)}
	if hasStart && hasEnd {
		start, err := compileAnchor(selectStart)
		if err != nil {
			return evaluator.NotKept, nil, err
		}
		end, err := compileAnchor(selectEnd)
		if err != nil {
			return evaluator.NotKept, nil, err
		}
		region = editor.SelectRegion(ec.Lines, start, end)
	}

	changed := false
	for _, line := range insertLines {
		anchor := regexp.MustCompile(regexp.QuoteMeta(line))
		if ec.InsertLine(region, anchor, editor.PosAfter, editor.SelLast, line) {
			changed = true
		}
	}
	if hasDelete {
		re, err := regexp.Compile(deletePattern)
		if err != nil {
			return evaluator.NotKept, nil, errs.NewPolicyMalformed("invalid delete_line_matching regex", err)
		}
		if ec.DeleteMatching(region, re, false) {
			changed = true
		}
	}
	if hasReplace && len(replacePair) == 2 {
		re, err := regexp.Compile(replacePair[0])
		if err != nil {
			return evaluator.NotKept, nil, errs.NewPolicyMalformed("invalid replace_pattern regex", err)
		}
		if ec.ReplaceMatching(region, re, replacePair[1]) {
			changed = true
		}
	}

	if !changed {
		return evaluator.Kept, nil, nil
	}
	if h.DryRun {
		return evaluator.Repaired, nil, nil
	}
	if _, err := ec.Save(); err != nil {
		return evaluator.NotKept, nil, errs.NewIOError("saving "+c.Promiser, err)
	}
	return evaluator.Repaired, nil, nil
}

func compileAnchor(pattern string) (editor.Anchor, error) {
	switch pattern {
	case "$start":
		return editor.Anchor{AtStart: true}, nil
	case "$end":
		return editor.Anchor{AtEnd: true}, nil
	default:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return editor.Anchor{}, errs.NewPolicyMalformed("invalid region anchor regex", err)
		}
		return editor.Anchor{Regex: re}, nil
	}
}
