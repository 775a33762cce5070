package expand

import (
	"context"
	"testing"

	"github.com/convergefm/converge/pkg/value"
)

func TestScriptRegistryEvalFnCall(t *testing.T) {
	reg := NewScriptRegistry(0)
	reg.Register("double_each", `
items = [x for x in args[0]]
result = [v + v for v in items]
`)

	fn := value.NewFnCall("double_each", value.NewList(value.NewScalar("a"), value.NewScalar("b")))
	out, handled, err := reg.EvalFnCall(context.Background(), fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handled {
		t.Fatal("expected registered script to be handled")
	}
	items, ok := out.Items()
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2-element list result, got %#v", out)
	}
	if s, _ := items[0].Scalar(); s != "aa" {
		t.Errorf("expected \"aa\", got %q", s)
	}
}

func TestScriptRegistryUnregisteredNameNotHandled(t *testing.T) {
	reg := NewScriptRegistry(0)
	fn := value.NewFnCall("unknown_fn")
	_, handled, err := reg.EvalFnCall(context.Background(), fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handled {
		t.Fatal("expected unregistered fn name to be left unhandled")
	}
}
