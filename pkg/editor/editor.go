// Package editor implements the file-edit region engine (C9): anchor-based
// region selection and insertion/deletion/replacement positioning over an
// in-memory line buffer, plus the save-with-backup discipline. Grounded on
// the teacher's pkg/micro_runner/handlers/file.go (backup-then-write
// pattern, checksum-on-read) and original_source/src/files_edit.c for the
// exact temp-file-then-rename sequencing this package reimplements in Go.
package editor

import (
	"fmt"
	"os"
	"regexp"
)

// Context is the EditContext of §3: filename, the mutable line buffer,
// derived classes, an edit counter, and whether the file started empty.
type Context struct {
	Filename         string
	Lines            []string
	DerivedClasses   map[string]bool
	NumEdits         int
	StartedFromBlank bool
}

// Load reads filename into a fresh Context. A missing file is treated as
// starting blank (an empty buffer), matching the promise semantics of
// "create if absent, then edit".
func Load(filename string) (*Context, error) {
	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return &Context{Filename: filename, DerivedClasses: map[string]bool{}, StartedFromBlank: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("editor: read %s: %w", filename, err)
	}
	return &Context{
		Filename:       filename,
		Lines:          splitLines(string(data)),
		DerivedClasses: map[string]bool{},
	}, nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// Anchor is a region boundary: either a compiled regex matched against
// lines, or a sentinel meaning file-start/file-end.
type Anchor struct {
	Regex    *regexp.Regexp
	AtStart  bool
	AtEnd    bool
}

// Region is a half-open line-index span [Start, End).
type Region struct {
	Start, End int
}

// SelectRegion narrows to the half-open span from the first line after the
// start match to the first line matching the end anchor (§4.9).
func SelectRegion(lines []string, start, end Anchor) Region {
	s := 0
	if !start.AtStart && start.Regex != nil {
		for i, l := range lines {
			if start.Regex.MatchString(l) {
				s = i + 1
				break
			}
		}
	}
	e := len(lines)
	if !end.AtEnd && end.Regex != nil {
		for i := s; i < len(lines); i++ {
			if end.Regex.MatchString(lines[i]) {
				e = i
				break
			}
		}
	}
	if e < s {
		e = s
	}
	return Region{Start: s, End: e}
}

// Position selects before/after an anchor line within a region.
type Position string

const (
	PosBefore Position = "before"
	PosAfter  Position = "after"
)

// Selector picks which matching anchor line to use when more than one
// exists in the region.
type Selector string

const (
	SelFirst Selector = "first"
	SelLast  Selector = "last"
)

// InsertLine inserts newLine at the position/selector policy within region,
// skipping the insert (idempotent no-op, reporting kept) if a policy-
// equivalent line already exists adjacent to the chosen anchor point.
// anchorRegex selects the line to insert relative to; if nil, the region's
// own boundaries are used (first/last line of the region).
func (c *Context) InsertLine(region Region, anchorRegex *regexp.Regexp, pos Position, sel Selector, newLine string) (changed bool) {
	anchorIdx := findAnchorIndex(c.Lines, region, anchorRegex, sel)
	if anchorIdx < 0 {
		// No anchor found: fall back to appending at the region boundary.
		if pos == PosBefore {
			anchorIdx = region.Start
		} else {
			anchorIdx = region.End
		}
	} else if pos == PosAfter {
		anchorIdx++
	}

	if anchorIdx > 0 && anchorIdx-1 < len(c.Lines) && c.Lines[anchorIdx-1] == newLine {
		return false
	}
	if anchorIdx < len(c.Lines) && c.Lines[anchorIdx] == newLine {
		return false
	}

	c.Lines = insertAt(c.Lines, anchorIdx, newLine)
	c.NumEdits++
	return true
}

func findAnchorIndex(lines []string, region Region, anchorRegex *regexp.Regexp, sel Selector) int {
	if anchorRegex == nil {
		return -1
	}
	found := -1
	for i := region.Start; i < region.End && i < len(lines); i++ {
		if anchorRegex.MatchString(lines[i]) {
			found = i
			if sel == SelFirst {
				return found
			}
		}
	}
	return found
}

func insertAt(lines []string, idx int, line string) []string {
	if idx < 0 {
		idx = 0
	}
	if idx > len(lines) {
		idx = len(lines)
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:idx]...)
	out = append(out, line)
	out = append(out, lines[idx:]...)
	return out
}

// DeleteMatching removes lines within region matching pattern: the first
// match if all is false, every match if all is true.
func (c *Context) DeleteMatching(region Region, pattern *regexp.Regexp, all bool) (changed bool) {
	out := make([]string, 0, len(c.Lines))
	removed := false
	for i, l := range c.Lines {
		if i >= region.Start && i < region.End && pattern.MatchString(l) && (all || !removed) {
			removed = true
			c.NumEdits++
			continue
		}
		out = append(out, l)
	}
	if removed {
		c.Lines = out
	}
	return removed
}

// ReplaceMatching substitutes every match of pattern with template within
// region. Idempotence follows from regexp.ReplaceAll itself being a pure
// function of the current content: once no match remains (or the
// replacement is a fixed point), re-running changes nothing.
func (c *Context) ReplaceMatching(region Region, pattern *regexp.Regexp, template string) (changed bool) {
	for i := region.Start; i < region.End && i < len(c.Lines); i++ {
		if !pattern.MatchString(c.Lines[i]) {
			continue
		}
		replaced := pattern.ReplaceAllString(c.Lines[i], template)
		if replaced != c.Lines[i] {
			c.Lines[i] = replaced
			c.NumEdits++
			changed = true
		}
	}
	return changed
}
