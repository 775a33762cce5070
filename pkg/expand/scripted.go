// Scripted function-call evaluation: a C1 fncall Value whose name matches a
// registered Starlark script is dispatched to a sandboxed Starlark thread
// rather than left as an opaque function name. Grounded on the teacher's
// pkg/config/starlark_eval.go (toStarlarkValue/fromStarlarkValue conversion,
// the timeout-bounded goroutine/channel evaluation shape, and the
// range/enumerate/zip builtins reused here for C1's list-iteration
// semantics), reframed from policy-generation scripting to promise
// constraint-value scripting.
package expand

import (
	"context"
	"fmt"
	"time"

	"github.com/convergefm/converge/internal/errs"
	"github.com/convergefm/converge/pkg/value"
	"go.starlark.net/starlark"
)

// ScriptRegistry holds named Starlark snippets a policy author can
// reference from a function-call constraint rval, e.g. `data_expand(...)`.
type ScriptRegistry struct {
	scripts map[string]string
	timeout time.Duration
}

func NewScriptRegistry(timeout time.Duration) *ScriptRegistry {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ScriptRegistry{scripts: make(map[string]string), timeout: timeout}
}

func (r *ScriptRegistry) Register(name, script string) {
	r.scripts[name] = script
}

// EvalFnCall runs the named script (if registered) with the call's
// arguments bound as a Starlark list named "args", returning the script's
// module-level "result" binding converted back to a Value. An unregistered
// name is not an error: callers fall back to leaving the fncall opaque for
// reporting purposes.
func (r *ScriptRegistry) EvalFnCall(ctx context.Context, fn value.Value) (value.Value, bool, error) {
	name, args, ok := fn.FnName()
	if !ok {
		return value.Value{}, false, nil
	}
	script, ok := r.scripts[name]
	if !ok {
		return value.Value{}, false, nil
	}

	evalCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		v   value.Value
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := r.evalSync(name, script, args)
		done <- outcome{v, err}
	}()

	select {
	case <-evalCtx.Done():
		return value.Value{}, true, errs.NewEffectorTimedOut("starlark script " + name + " timed out")
	case o := <-done:
		return o.v, true, o.err
	}
}

func (r *ScriptRegistry) evalSync(name, script string, args []value.Value) (value.Value, error) {
	starArgs := make([]starlark.Value, len(args))
	for i, a := range args {
		starArgs[i] = toStarlark(a)
	}

	thread := &starlark.Thread{
		Name:  "converge-expand",
		Print: func(*starlark.Thread, string) {},
	}
	predeclared := starlark.StringDict{
		"args":      starlark.NewList(starArgs),
		"range":     starlark.NewBuiltin("range", starlarkRange),
		"enumerate": starlark.NewBuiltin("enumerate", starlarkEnumerate),
		"zip":       starlark.NewBuiltin("zip", starlarkZip),
	}

	globals, err := starlark.ExecFile(thread, name+".star", script, predeclared)
	if err != nil {
		return value.Value{}, errs.NewDecodeError("starlark script "+name+" failed", err)
	}
	result, ok := globals["result"]
	if !ok {
		return value.Value{}, errs.NewDecodeError("starlark script "+name+" did not set result", nil)
	}
	return fromStarlark(result), nil
}

func toStarlark(v value.Value) starlark.Value {
	switch v.Kind() {
	case value.Scalar:
		s, _ := v.Scalar()
		return starlark.String(s)
	case value.List:
		items, _ := v.Items()
		out := make([]starlark.Value, len(items))
		for i, it := range items {
			out[i] = toStarlark(it)
		}
		return starlark.NewList(out)
	default:
		return starlark.String(v.String())
	}
}

func fromStarlark(v starlark.Value) value.Value {
	switch x := v.(type) {
	case starlark.String:
		return value.NewScalar(string(x))
	case starlark.Int:
		return value.NewScalar(x.String())
	case *starlark.List:
		items := make([]value.Value, 0, x.Len())
		for i := 0; i < x.Len(); i++ {
			items = append(items, fromStarlark(x.Index(i)))
		}
		return value.NewList(items...)
	default:
		return value.NewScalar(fmt.Sprint(v))
	}
}

func starlarkRange(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var n int
	if err := starlark.UnpackArgs("range", args, kwargs, "n", &n); err != nil {
		return nil, err
	}
	out := make([]starlark.Value, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, starlark.MakeInt(i))
	}
	return starlark.NewList(out), nil
}

func starlarkEnumerate(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var iterable starlark.Iterable
	if err := starlark.UnpackArgs("enumerate", args, kwargs, "iterable", &iterable); err != nil {
		return nil, err
	}
	it := iterable.Iterate()
	defer it.Done()
	var out []starlark.Value
	var x starlark.Value
	i := 0
	for it.Next(&x) {
		out = append(out, starlark.Tuple{starlark.MakeInt(i), x})
		i++
	}
	return starlark.NewList(out), nil
}

func starlarkZip(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	iters := make([]starlark.Iterator, len(args))
	for i, a := range args {
		iterable, ok := a.(starlark.Iterable)
		if !ok {
			return nil, fmt.Errorf("zip: argument %d is not iterable", i)
		}
		iters[i] = iterable.Iterate()
		defer iters[i].Done()
	}
	var rows []starlark.Value
	for {
		row := make(starlark.Tuple, len(iters))
		for i, it := range iters {
			if !it.Next(&row[i]) {
				return starlark.NewList(rows), nil
			}
		}
		rows = append(rows, row)
	}
}
