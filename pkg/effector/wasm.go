package effector

import (
	"context"
	"fmt"
	"time"

	"github.com/convergefm/converge/internal/errs"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// WASMPlugin hosts a sandboxed third-party subtype handler compiled to
// WASM, grounded on the teacher's WASMHostProvider (wazero runtime +
// memory-limited config + WASI instantiation), generalised from OpenFroyo's
// resource-provider call shape to a single "handle one promiser string,
// return an outcome token" entry point, since third-party subtype handlers
// only need to report kept/repaired/not-kept/interrupted/warn (§7).
type WASMPlugin struct {
	runtime wazero.Runtime
	module  wazero.CompiledModule
	timeout time.Duration
}

// WASMPluginConfig bounds the sandbox's resource usage.
type WASMPluginConfig struct {
	Timeout          time.Duration
	MemoryLimitPages uint32 // 64KB each; default 256 (16MB)
}

// LoadWASMPlugin compiles module bytes under the given resource limits.
func LoadWASMPlugin(ctx context.Context, wasmModule []byte, cfg WASMPluginConfig) (*WASMPlugin, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MemoryLimitPages == 0 {
		cfg.MemoryLimitPages = 256
	}

	runtimeCfg := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(cfg.MemoryLimitPages).
		WithCloseOnContextDone(true)
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, errs.NewEffectorFailed("instantiate WASI", err)
	}

	compiled, err := runtime.CompileModule(ctx, wasmModule)
	if err != nil {
		runtime.Close(ctx)
		return nil, errs.NewEffectorFailed("compile WASM plugin", err)
	}

	return &WASMPlugin{runtime: runtime, module: compiled, timeout: cfg.Timeout}, nil
}

// Handle instantiates a fresh module instance per invocation (plugin state
// never survives across promises, matching the invariant that a promise
// clone owns its own evaluation frame) and calls its exported
// "handle_promise" function with the byte length of promiser as its sole
// argument, expecting an i32 outcome code back. The promiser text itself
// is not passed to the module.
func (p *WASMPlugin) Handle(ctx context.Context, promiser string) (outcomeCode int32, err error) {
	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	instCfg := wazero.NewModuleConfig().WithStdout(nil).WithStderr(nil)
	mod, err := p.runtime.InstantiateModule(runCtx, p.module, instCfg)
	if err != nil {
		return 0, errs.NewEffectorFailed("instantiate WASM plugin module", err)
	}
	defer mod.Close(runCtx)

	fn := mod.ExportedFunction("handle_promise")
	if fn == nil {
		return 0, errs.NewEffectorFailed(fmt.Sprintf("plugin missing handle_promise export"), nil)
	}

	// Only len(promiser) crosses the boundary; nothing is written into the
	// module's linear memory.
	results, err := fn.Call(runCtx, uint64(len(promiser)))
	if err != nil {
		if runCtx.Err() != nil {
			return 0, errs.NewEffectorTimedOut("wasm plugin timed out")
		}
		return 0, errs.NewEffectorFailed("wasm plugin call failed", err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return int32(results[0]), nil
}

// Close releases the runtime and compiled module.
func (p *WASMPlugin) Close(ctx context.Context) error {
	return p.runtime.Close(ctx)
}
