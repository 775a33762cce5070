package packages

import "testing"

func TestVersionCompareNumericRuns(t *testing.T) {
	if CompareVersions("1.2.10", "1.2.9") <= 0 {
		t.Fatalf("expected 1.2.10 > 1.2.9")
	}
	if CompareVersions("1.2.9", "1.2.10") >= 0 {
		t.Fatalf("expected 1.2.9 < 1.2.10")
	}
	if CompareVersions("1.2.10", "1.2.10") != 0 {
		t.Fatalf("expected 1.2.10 == 1.2.10")
	}
}

func TestVersionComparatorTotality(t *testing.T) {
	pairs := [][2]string{{"1.0.0", "1.0.1"}, {"2.0", "1.9"}, {"1.0", "1.0"}, {"1.10", "1.9"}}
	for _, p := range pairs {
		lt := Satisfies(CmpLt, p[0], p[1])
		eq := Satisfies(CmpEq, p[0], p[1])
		gt := Satisfies(CmpGt, p[0], p[1])
		count := 0
		for _, b := range []bool{lt, eq, gt} {
			if b {
				count++
			}
		}
		if count != 1 {
			t.Fatalf("exactly one of <,=,> must hold for (%s,%s), got lt=%v eq=%v gt=%v", p[0], p[1], lt, eq, gt)
		}
	}
}

type fakeLister struct {
	installed map[string]Identifier
}

func (f *fakeLister) ListInstalled(managerKey string) (map[string]Identifier, error) {
	return f.installed, nil
}

func TestPlanOrdering(t *testing.T) {
	lister := &fakeLister{installed: map[string]Identifier{
		"pkg-a": {Name: "pkg-a", Version: "1.0"},
	}}
	p := NewPlanner(lister)

	if _, _, err := p.Plan(PackagePromise{ManagerKey: "apt", Promiser: "pkg-a", Policy: PolicyDelete}); err != nil {
		t.Fatalf("Plan(delete) error: %v", err)
	}
	if _, _, err := p.Plan(PackagePromise{ManagerKey: "apt", Promiser: "pkg-b", Policy: PolicyAdd}); err != nil {
		t.Fatalf("Plan(add) error: %v", err)
	}

	buckets := p.Buckets()
	if len(buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(buckets))
	}
	b := buckets[0]
	if len(b.ByAction[ActionDelete]) != 1 || b.ByAction[ActionDelete][0].Identifier.Name != "pkg-a" {
		t.Fatalf("expected delete(pkg-a) planned")
	}
	if len(b.ByAction[ActionAdd]) != 1 || b.ByAction[ActionAdd][0].Identifier.Name != "pkg-b" {
		t.Fatalf("expected add(pkg-b) planned")
	}

	// Commit-order check (S4): delete before add in CommitOrder.
	deleteIdx, addIdx := -1, -1
	for i, a := range CommitOrder {
		if a == ActionDelete {
			deleteIdx = i
		}
		if a == ActionAdd {
			addIdx = i
		}
	}
	if deleteIdx >= addIdx {
		t.Fatalf("CommitOrder must place delete before add")
	}
}
