package packages

import (
	"context"
	"errors"
	"testing"
)

type fakeRunner struct {
	bulkCalls       []Action
	individualCalls []Action
	failBulk        bool
}

func (f *fakeRunner) RunBulk(ctx context.Context, managerKey string, action Action, ids []Identifier) (string, error) {
	f.bulkCalls = append(f.bulkCalls, action)
	if f.failBulk {
		return "", errors.New("boom")
	}
	return "", nil
}

func (f *fakeRunner) RunIndividual(ctx context.Context, managerKey string, action Action, id Identifier) (string, error) {
	f.individualCalls = append(f.individualCalls, action)
	return "", nil
}

func TestCommitOrderDeleteBeforeAdd(t *testing.T) {
	b := NewBucket("apt", BatchIndividual)
	b.Append(PlannedOp{ManagerKey: "apt", Action: ActionAdd, Identifier: Identifier{Name: "pkg-b"}})
	b.Append(PlannedOp{ManagerKey: "apt", Action: ActionDelete, Identifier: Identifier{Name: "pkg-a"}})

	runner := &fakeRunner{}
	e := NewExecutor(runner)
	results := e.Commit(context.Background(), []*Bucket{b}, nil)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Op.Identifier.Name != "pkg-a" || results[0].Op.Action != ActionDelete {
		t.Fatalf("expected delete(pkg-a) first, got %+v", results[0].Op)
	}
	if results[1].Op.Identifier.Name != "pkg-b" || results[1].Op.Action != ActionAdd {
		t.Fatalf("expected add(pkg-b) second, got %+v", results[1].Op)
	}
}

func TestBulkFailureInterruptsAllMembers(t *testing.T) {
	b := NewBucket("apt", BatchBulk)
	b.Append(PlannedOp{ManagerKey: "apt", Action: ActionAdd, Identifier: Identifier{Name: "pkg-a"}})
	b.Append(PlannedOp{ManagerKey: "apt", Action: ActionAdd, Identifier: Identifier{Name: "pkg-b"}})

	runner := &fakeRunner{failBulk: true}
	e := NewExecutor(runner)
	results := e.Commit(context.Background(), []*Bucket{b}, nil)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Outcome != OutcomeInterrupted {
			t.Fatalf("expected interrupted outcome for %s, got %s", r.Op.Identifier.Name, r.Outcome)
		}
	}
}
