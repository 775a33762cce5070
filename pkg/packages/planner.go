package packages

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/convergefm/converge/internal/errs"
)

// InstalledLister enumerates the set of currently-installed packages for a
// manager (§4.8 plan phase step 1). The Planner calls it once per manager
// and caches the result for its own lifetime; the cache is not refreshed
// between passes or after a commit.
type InstalledLister interface {
	ListInstalled(managerKey string) (map[string]Identifier, error)
}

// Planner runs the plan phase of §4.8 against an InstalledLister, appending
// decided operations into per-manager Buckets.
type Planner struct {
	lister  InstalledLister
	cache   map[string]map[string]Identifier
	buckets map[string]*Bucket
}

func NewPlanner(lister InstalledLister) *Planner {
	return &Planner{
		lister:  lister,
		cache:   make(map[string]map[string]Identifier),
		buckets: make(map[string]*Bucket),
	}
}

// Buckets returns the per-manager buckets accumulated so far, for the
// commit phase to drain.
func (p *Planner) Buckets() []*Bucket {
	keys := make([]string, 0, len(p.buckets))
	for k := range p.buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Bucket, 0, len(keys))
	for _, k := range keys {
		out = append(out, p.buckets[k])
	}
	return out
}

func (p *Planner) bucketFor(managerKey string, batch BatchPolicy) *Bucket {
	b, ok := p.buckets[managerKey]
	if !ok {
		b = NewBucket(managerKey, batch)
		p.buckets[managerKey] = b
	}
	return b
}

func (p *Planner) installedFor(managerKey string) (map[string]Identifier, error) {
	if cached, ok := p.cache[managerKey]; ok {
		return cached, nil
	}
	installed, err := p.lister.ListInstalled(managerKey)
	if err != nil {
		return nil, errs.NewEffectorFailed("failed to enumerate installed packages", err)
	}
	p.cache[managerKey] = installed
	return installed, nil
}

// Plan resolves one package promise and appends the decided operation
// (if any) to the appropriate bucket. Returns the decided action (empty
// when no operation is needed, a no-op the caller reports as "kept").
func (p *Planner) Plan(pp PackagePromise) (Action, Identifier, error) {
	installed, err := p.installedFor(pp.ManagerKey)
	if err != nil {
		return "", Identifier{}, err
	}

	id, err := resolveIdentifier(pp)
	if err != nil {
		return "", Identifier{}, err
	}

	current, isInstalled := installed[id.Name]

	action, err := decideAction(pp, id, current, isInstalled)
	if err != nil {
		return "", Identifier{}, err
	}
	if action == "" {
		return "", id, nil
	}

	bucket := p.bucketFor(pp.ManagerKey, pp.BatchPolicy)
	bucket.Append(PlannedOp{
		ManagerKey: pp.ManagerKey,
		Action:     action,
		Identifier: id,
		Promiser:   pp.Promiser,
	})
	return action, id, nil
}

// resolveIdentifier resolves the promiser into (name, version, arch) either
// explicitly from the promise's constraints or by matching the promiser
// against the configured name/version/arch regex trio (§4.8 step 2).
func resolveIdentifier(pp PackagePromise) (Identifier, error) {
	if pp.ExplicitName != "" {
		return Identifier{Name: pp.ExplicitName, Version: pp.ExplicitVersion, Arch: pp.ExplicitArch}, nil
	}
	id := Identifier{Name: pp.Promiser}
	if pp.NameRegex != "" {
		re, err := regexp.Compile(pp.NameRegex)
		if err != nil {
			return Identifier{}, errs.NewPolicyMalformed("invalid package name regex", err)
		}
		if m := re.FindStringSubmatch(pp.Promiser); m != nil && len(m) > 1 {
			id.Name = m[1]
		}
	}
	if pp.VersionRegex != "" {
		re, err := regexp.Compile(pp.VersionRegex)
		if err != nil {
			return Identifier{}, errs.NewPolicyMalformed("invalid package version regex", err)
		}
		if m := re.FindStringSubmatch(pp.Promiser); m != nil && len(m) > 1 {
			id.Version = m[1]
		}
	}
	if pp.ArchRegex != "" {
		re, err := regexp.Compile(pp.ArchRegex)
		if err != nil {
			return Identifier{}, errs.NewPolicyMalformed("invalid package arch regex", err)
		}
		if m := re.FindStringSubmatch(pp.Promiser); m != nil && len(m) > 1 {
			id.Arch = m[1]
		}
	}
	return id, nil
}

// decideAction implements §4.8 step 3-4: compare against the cache using
// the configured comparator, then decide the action per package_policy.
// update with gt/ge and configured repository dirs triggers a repository
// scan (§4.8.3).
func decideAction(pp PackagePromise, id Identifier, current Identifier, isInstalled bool) (Action, error) {
	switch pp.Policy {
	case PolicyDelete:
		if isInstalled {
			return ActionDelete, nil
		}
		return "", nil
	case PolicyAdd:
		if isInstalled && satisfiedByComparator(pp, id, current) {
			return "", nil
		}
		return ActionAdd, nil
	case PolicyReinstall:
		return ActionAdd, nil
	case PolicyAddOrUpdate:
		if !isInstalled {
			return ActionAdd, nil
		}
		if satisfiedByComparator(pp, id, current) {
			return "", nil
		}
		return ActionUpdate, nil
	case PolicyUpdate:
		if !isInstalled {
			return "", nil
		}
		if satisfiedByComparator(pp, id, current) {
			return "", nil
		}
		if (pp.Comparator == CmpGt || pp.Comparator == CmpGe) && len(pp.RepositoryDirs) > 0 {
			best, found, err := ScanRepository(pp.RepositoryDirs, pp.RepositoryNamePattern, current.Version)
			if err != nil {
				return "", err
			}
			if !found {
				return "", errs.NewVerificationFailed("no repository candidate satisfies minimum version").WithPromiser(pp.Promiser)
			}
			id.Version = best
		}
		return ActionUpdate, nil
	case PolicyPatch:
		if isInstalled {
			return ActionPatch, nil
		}
		return "", nil
	case PolicyVerify:
		if !isInstalled || !satisfiedByComparator(pp, id, current) {
			return ActionVerify, nil
		}
		return "", nil
	default:
		return "", errs.NewPolicyMalformed(fmt.Sprintf("unknown package_policy %q", pp.Policy), nil)
	}
}

func satisfiedByComparator(pp PackagePromise, desired, current Identifier) bool {
	if pp.Comparator == CmpNone || pp.Comparator == "" {
		return true
	}
	if desired.Version == "" {
		return true
	}
	return Satisfies(pp.Comparator, current.Version, desired.Version)
}

// ScanRepository walks each configured directory (§4.8.3): for every
// regular file matching namePattern (with a version capture group), keep
// the largest version that is >= minVersion by the comparator. Returns
// found=false if no candidate qualifies.
func ScanRepository(dirs []string, namePattern, minVersion string) (best string, found bool, err error) {
	re, err := regexp.Compile(namePattern)
	if err != nil {
		return "", false, errs.NewPolicyMalformed("invalid repository name pattern", err)
	}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return "", false, errs.NewIOError(fmt.Sprintf("reading repository dir %s", dir), err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			m := re.FindStringSubmatch(e.Name())
			if m == nil || len(m) < 2 {
				continue
			}
			candidate := m[1]
			if minVersion != "" && CompareVersions(candidate, minVersion) < 0 {
				continue
			}
			if !found || CompareVersions(candidate, best) > 0 {
				best = candidate
				found = true
			}
		}
	}
	return best, found, nil
}
