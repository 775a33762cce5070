// Package packages implements the two-phase package planner/executor (C8):
// a plan phase that resolves promisers against an installed-package cache
// using the segmented version comparator, and a commit phase that drains
// per-manager buckets in a fixed order with configurable batching.
// Grounded on the teacher's pkg/micro_runner/handlers/package.go (apt/dnf/
// yum/zypper dispatch, detectPackageManager) for the effector boundary, and
// on original_source/src/verify_packages.c for the plan/commit ordering and
// comparator semantics this package reimplements in Go.
package packages

import (
	"strconv"
	"strings"
)

// Comparator is the configured comparison operator for a package promise.
type Comparator string

const (
	CmpEq   Comparator = "eq"
	CmpNe   Comparator = "ne"
	CmpLt   Comparator = "lt"
	CmpLe   Comparator = "le"
	CmpGt   Comparator = "gt"
	CmpGe   Comparator = "ge"
	CmpNone Comparator = "none"
)

// token is one element of a tokenised version: either a numeric run (all
// digits) or a separator/alpha run, compared as plain strings.
type token struct {
	numeric bool
	num     int64
	str     string
}

// tokenize splits a version string into alternating maximal digit runs and
// maximal non-digit runs (separators and letters together, e.g. "1.a2" is
// 1, ".a", 2), since "1.2.10" must compare the numeric run "10" against
// "9" as the integers 10 and 9, not lexicographically.
func tokenize(v string) []token {
	var tokens []token
	i := 0
	for i < len(v) {
		c := v[i]
		switch {
		case c >= '0' && c <= '9':
			j := i
			for j < len(v) && v[j] >= '0' && v[j] <= '9' {
				j++
			}
			n, _ := strconv.ParseInt(v[i:j], 10, 64)
			tokens = append(tokens, token{numeric: true, num: n, str: v[i:j]})
			i = j
		default:
			j := i
			for j < len(v) && !(v[j] >= '0' && v[j] <= '9') {
				j++
			}
			tokens = append(tokens, token{numeric: false, str: v[i:j]})
			i = j
		}
	}
	return tokens
}

// separatorSkeleton extracts the non-numeric runs in order, used to decide
// whether two versions are comparable.
func separatorSkeleton(tokens []token) []string {
	var skel []string
	for _, t := range tokens {
		if !t.numeric {
			skel = append(skel, t.str)
		}
	}
	return skel
}

// Comparable reports whether a and b's separator sequences match, per
// §4.8.2: "Two versions are comparable only if their separator sequences
// match".
func Comparable(a, b string) bool {
	ta, tb := tokenize(a), tokenize(b)
	sa, sb := separatorSkeleton(ta), separatorSkeleton(tb)
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// CompareVersions returns -1, 0, or 1 for a<b, a==b, a>b, using a
// left-to-right most-significant-first lexicographic numeric compare of
// the tokenised runs. Callers should check Comparable first if the
// separator-skeleton mismatch case needs distinct handling. When one token
// sequence is a prefix of the other, the longer version compares greater.
func CompareVersions(a, b string) int {
	ta, tb := tokenize(a), tokenize(b)
	n := len(ta)
	if len(tb) < n {
		n = len(tb)
	}
	for i := 0; i < n; i++ {
		c := compareToken(ta[i], tb[i])
		if c != 0 {
			return c
		}
	}
	switch {
	case len(ta) < len(tb):
		return -1
	case len(ta) > len(tb):
		return 1
	default:
		return 0
	}
}

func compareToken(a, b token) int {
	if a.numeric && b.numeric {
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a.str, b.str)
}

// Satisfies evaluates comparator against (current, desired) the way the
// plan phase does: current is the installed version, desired is the
// version named by the promise.
func Satisfies(cmp Comparator, current, desired string) bool {
	c := CompareVersions(current, desired)
	switch cmp {
	case CmpEq:
		return c == 0
	case CmpNe:
		return c != 0
	case CmpLt:
		return c < 0
	case CmpLe:
		return c <= 0
	case CmpGt:
		return c > 0
	case CmpGe:
		return c >= 0
	case CmpNone:
		return true
	default:
		return false
	}
}
