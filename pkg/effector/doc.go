// Package effector is the pluggable OS-level effector boundary spec.md §1
// keeps out of the core's scope: the concrete command that actually chmods
// a file, signals a process, or runs a package-manager shell command.
// shell.go is the direct-exec implementation (grounded on the teacher's
// pkg/micro_runner/handlers/exec.go), wasm.go is a sandboxed plugin host
// for third-party subtype handlers (grounded on pkg/providers/host/host.go),
// matching the Design Notes' "dynamic dispatch over subtypes ... a
// pluggable effector capability", and packagemgr.go adapts the shell
// effector to pkg/packages.Runner/InstalledLister via a per-manager
// command table.
package effector
