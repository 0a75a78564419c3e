package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// hostModule is the namespace under which host functions are registered for
// the embedded engine's guest module.
const hostModule = "fusion_v1"

// engineMemoryPages caps guest linear memory at 64KB pages. 4096 = 256MB,
// enough for the small quantized models the embedded tier targets.
const engineMemoryPages = 4096

// LoadProgress reports embedded-engine initialization through a side channel
// separate from stream events. Fraction is in [0,1].
type LoadProgress func(stage string, fraction float64)

// EmbeddedBackend runs a completion model compiled to WebAssembly inside the
// process. The engine is a single process-wide resource: it is loaded lazily
// on first use and reused by every later request. The loader itself prevents
// duplicate initialization; concurrent first calls block until the one load
// finishes.
type EmbeddedBackend struct {
	modulePath string
	progress   LoadProgress
	logger     *slog.Logger

	mu      sync.Mutex
	ready   bool
	loading bool
	waiters []chan error

	runtime  wazero.Runtime
	module   api.Module
	generate api.Function

	// genMu serializes generate calls; the guest is single-threaded and emit
	// targets the current call's event channel.
	genMu sync.Mutex
	emit  func(text string)
}

// NewEmbeddedBackend creates a backend that will load the WASM completion
// module at modulePath on first use. progress may be nil.
func NewEmbeddedBackend(modulePath string, progress LoadProgress, logger *slog.Logger) *EmbeddedBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddedBackend{
		modulePath: modulePath,
		progress:   progress,
		logger:     logger.With("backend", "embedded"),
	}
}

func (b *EmbeddedBackend) Name() string { return "Embedded" }

// ensureLoaded initializes the engine exactly once. A failed load is not
// sticky: the next call retries.
func (b *EmbeddedBackend) ensureLoaded(ctx context.Context) error {
	b.mu.Lock()
	if b.ready {
		b.mu.Unlock()
		return nil
	}
	if b.loading {
		// Another caller is loading; wait for its outcome instead of starting
		// a second initialization.
		wait := make(chan error, 1)
		b.waiters = append(b.waiters, wait)
		b.mu.Unlock()
		select {
		case err := <-wait:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.loading = true
	b.mu.Unlock()

	err := b.load(ctx)

	b.mu.Lock()
	b.loading = false
	b.ready = err == nil
	waiters := b.waiters
	b.waiters = nil
	b.mu.Unlock()

	for _, wait := range waiters {
		wait <- err
	}
	return err
}

func (b *EmbeddedBackend) load(ctx context.Context) error {
	report := func(stage string, fraction float64) {
		if b.progress != nil {
			b.progress(stage, fraction)
		}
	}

	report("read", 0)
	wasmBytes, err := os.ReadFile(b.modulePath)
	if err != nil {
		return &EngineInitError{Err: fmt.Errorf("read %s: %w", b.modulePath, err)}
	}

	report("compile", 0.25)
	rtCfg := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithMemoryLimitPages(engineMemoryPages)
	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		rt.Close(ctx)
		return &EngineInitError{Err: fmt.Errorf("compile module: %w", err)}
	}

	report("instantiate", 0.6)
	if err := b.registerHostFunctions(ctx, rt); err != nil {
		rt.Close(ctx)
		return &EngineInitError{Err: err}
	}

	modCfg := wazero.NewModuleConfig().
		WithName("engine").
		WithStartFunctions() // init is called explicitly below
	mod, err := rt.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		rt.Close(ctx)
		return &EngineInitError{Err: fmt.Errorf("instantiate module: %w", err)}
	}

	generateFn := mod.ExportedFunction("generate")
	if generateFn == nil {
		rt.Close(ctx)
		return &EngineInitError{Err: fmt.Errorf("module %s does not export generate", b.modulePath)}
	}

	if initFn := mod.ExportedFunction("init"); initFn != nil {
		if _, err := initFn.Call(ctx); err != nil {
			rt.Close(ctx)
			return &EngineInitError{Err: fmt.Errorf("engine init: %w", err)}
		}
	}

	b.runtime = rt
	b.module = mod
	b.generate = generateFn

	report("ready", 1)
	b.logger.Info("embedded engine loaded", "path", b.modulePath)
	return nil
}

// registerHostFunctions registers the fusion_v1 host module: a token sink the
// guest calls once per generated chunk, and a log bridge.
func (b *EmbeddedBackend) registerHostFunctions(ctx context.Context, rt wazero.Runtime) error {
	builder := rt.NewHostModuleBuilder(hostModule)

	// emit_token(ptr, len): one completion chunk.
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			ptr := uint32(stack[0])
			size := uint32(stack[1])
			text, err := readGuestString(mod, ptr, size)
			if err != nil {
				b.logger.Error("emit_token: read failed", "error", err)
				return
			}
			if b.emit != nil {
				b.emit(text)
			}
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil).
		Export("emit_token")

	// log(level, ptr, len)
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			level := int32(stack[0])
			msg, err := readGuestString(mod, uint32(stack[1]), uint32(stack[2]))
			if err != nil {
				b.logger.Error("wasm log: read failed", "error", err)
				return
			}
			switch {
			case level <= 0:
				b.logger.Debug(msg)
			case level == 1:
				b.logger.Info(msg)
			case level == 2:
				b.logger.Warn(msg)
			default:
				b.logger.Error(msg)
			}
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, nil).
		Export("log")

	if _, err := builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("instantiate host module: %w", err)
	}
	return nil
}

// completionCall is the JSON request handed to the guest's generate export.
type completionCall struct {
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Stream runs one completion against the embedded engine. Each non-empty
// chunk the guest emits becomes a ContentDelta; natural exhaustion of the
// call emits Done. The embedded engine has no reasoning channel.
func (b *EmbeddedBackend) Stream(ctx context.Context, req Request) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		if err := b.ensureLoaded(ctx); err != nil {
			return err
		}

		b.genMu.Lock()
		defer b.genMu.Unlock()

		payload, err := json.Marshal(completionCall{
			Messages:    req.Messages,
			Temperature: req.Params.Temperature,
			MaxTokens:   req.Params.MaxTokens,
		})
		if err != nil {
			return fmt.Errorf("encode completion call: %w", err)
		}

		ptr, size, err := writeGuestBytes(ctx, b.module, payload)
		if err != nil {
			return fmt.Errorf("write completion call: %w", err)
		}

		b.emit = func(text string) {
			if text == "" {
				return
			}
			select {
			case events <- Event{Type: EventContentDelta, Text: text}:
			case <-ctx.Done():
			}
		}
		defer func() { b.emit = nil }()

		if _, err := b.generate.Call(ctx, uint64(ptr), uint64(size)); err != nil {
			return fmt.Errorf("embedded inference failed: %w", err)
		}

		events <- Event{Type: EventDone}
		return nil
	}), nil
}

// Close releases the engine runtime.
func (b *EmbeddedBackend) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.runtime == nil {
		return nil
	}
	err := b.runtime.Close(ctx)
	b.runtime = nil
	b.module = nil
	b.generate = nil
	b.ready = false
	return err
}

// readGuestString reads a UTF-8 string from guest linear memory.
func readGuestString(mod api.Module, ptr, size uint32) (string, error) {
	if size == 0 {
		return "", nil
	}
	buf, ok := mod.Memory().Read(ptr, size)
	if !ok {
		return "", fmt.Errorf("memory read out of bounds at ptr=%d len=%d", ptr, size)
	}
	return string(buf), nil
}

// writeGuestBytes copies data into guest memory via the module's exported
// malloc. Returns the pointer and length.
func writeGuestBytes(ctx context.Context, mod api.Module, data []byte) (uint32, uint32, error) {
	size := uint32(len(data))
	if size == 0 {
		return 0, 0, nil
	}
	malloc := mod.ExportedFunction("malloc")
	if malloc == nil {
		return 0, 0, fmt.Errorf("guest module does not export malloc")
	}
	results, err := malloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, 0, fmt.Errorf("malloc(%d): %w", size, err)
	}
	if len(results) == 0 || uint32(results[0]) == 0 {
		return 0, 0, fmt.Errorf("malloc(%d) returned null", size)
	}
	ptr := uint32(results[0])
	if !mod.Memory().Write(ptr, data) {
		return 0, 0, fmt.Errorf("memory write out of bounds at ptr=%d len=%d", ptr, size)
	}
	return ptr, size, nil
}
