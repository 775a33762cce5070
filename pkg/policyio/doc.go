// Package policyio is the external collaborator that turns policy source
// files into a pkg/ast.Policy tree. spec.md §1 keeps the lexical parser out
// of the core's scope; policyio is converge's concrete front end: a
// CUE-typed loader (grounded on the teacher's pkg/config/cue_parser.go) and
// an fsnotify-based reload watcher (grounded on the teacher's dependency on
// github.com/fsnotify/fsnotify). Both lower into pkg/ast, never the other
// way around — the AST stays immutable once loaded (§5).
package policyio
