package effector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/convergefm/converge/pkg/packages"
)

// ManagerCommands names the shell command template for one package
// manager's list/add/update/patch/verify/delete operations, keyed by
// ManagerKey (e.g. "apt", "yum", "apk"). The rendered package identifiers
// are appended after the template's elements at call time.
type ManagerCommands struct {
	List   []string
	Add    []string
	Delete []string
	Update []string
	Patch  []string
	Verify []string
}

// PackageManagerRunner adapts the shell effector to packages.Runner and
// packages.InstalledLister, grounded on the teacher's
// pkg/micro_runner/handlers/package.go install/remove/upgrade dispatch
// (generalized here to whichever manager's command table is registered).
type PackageManagerRunner struct {
	Shell    *Shell
	Commands map[string]ManagerCommands
	Timeout  time.Duration
}

func NewPackageManagerRunner(shell *Shell, commands map[string]ManagerCommands) *PackageManagerRunner {
	return &PackageManagerRunner{Shell: shell, Commands: commands, Timeout: 2 * time.Minute}
}

func (r *PackageManagerRunner) commandFor(managerKey string, action packages.Action) ([]string, error) {
	mc, ok := r.Commands[managerKey]
	if !ok {
		return nil, fmt.Errorf("no command table registered for package manager %q", managerKey)
	}
	switch action {
	case packages.ActionAdd:
		return mc.Add, nil
	case packages.ActionDelete:
		return mc.Delete, nil
	case packages.ActionUpdate:
		return mc.Update, nil
	case packages.ActionPatch:
		return mc.Patch, nil
	case packages.ActionVerify:
		return mc.Verify, nil
	default:
		return nil, fmt.Errorf("unsupported package action %q", action)
	}
}

func (r *PackageManagerRunner) run(ctx context.Context, managerKey string, action packages.Action, renderedIDs []string) (string, error) {
	tmpl, err := r.commandFor(managerKey, action)
	if err != nil {
		return "", err
	}
	if len(tmpl) == 0 {
		return "", nil
	}
	args := append(append([]string{}, tmpl[1:]...), renderedIDs...)
	res, err := r.Shell.Run(ctx, tmpl[0], args, "", r.Timeout)
	if res == nil {
		return "", err
	}
	return res.Stdout + res.Stderr, err
}

func (r *PackageManagerRunner) RunBulk(ctx context.Context, managerKey string, action packages.Action, ids []packages.Identifier) (string, error) {
	rendered := make([]string, len(ids))
	for i, id := range ids {
		rendered[i] = id.Render()
	}
	return r.run(ctx, managerKey, action, rendered)
}

func (r *PackageManagerRunner) RunIndividual(ctx context.Context, managerKey string, action packages.Action, id packages.Identifier) (string, error) {
	return r.run(ctx, managerKey, action, []string{id.Render()})
}

// ListInstalled shells out to the manager's list command and parses
// "name version arch" per line (blank fields allowed), satisfying
// packages.InstalledLister.
func (r *PackageManagerRunner) ListInstalled(managerKey string) (map[string]packages.Identifier, error) {
	mc, ok := r.Commands[managerKey]
	if !ok || len(mc.List) == 0 {
		return map[string]packages.Identifier{}, nil
	}
	res, err := r.Shell.Run(context.Background(), mc.List[0], mc.List[1:], "", r.Timeout)
	if err != nil {
		return nil, err
	}
	out := make(map[string]packages.Identifier)
	for _, line := range strings.Split(res.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		id := packages.Identifier{Name: fields[0]}
		if len(fields) > 1 {
			id.Version = fields[1]
		}
		if len(fields) > 2 {
			id.Arch = fields[2]
		}
		out[id.Name] = id
	}
	return out, nil
}
