// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package inference

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/tomtom215/macroguard/internal/logging"
	"github.com/tomtom215/macroguard/internal/metrics"
)

// WasmConfig configures an in-process WebAssembly model.
//
// The module ABI is intentionally small and import-free:
//
//   - export "memory"
//   - export "infer" (ptr i32, len i32) -> i64: reads len bytes of
//     little-endian float32 input at ptr and returns (outPtr<<32 | outLen)
//     pointing at little-endian float32 logits
//   - optional export "alloc" (size i32) -> i32: where the host should
//     write the input; without it the input goes at offset 0
type WasmConfig struct {
	// Path to the .wasm file. Ignored when Module is set.
	Path string
	// Module holds raw module bytes.
	Module []byte
	// Name and Version are reported in ModelInfo.
	Name    string
	Version string
	// InputShape is reported in ModelInfo.
	InputShape []int64
}

// WasmBackend runs a model compiled to WebAssembly with wazero. Calls are
// serialized because a module instance is single-threaded.
type WasmBackend struct {
	cfg WasmConfig

	mu       sync.Mutex
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	mod      api.Module

	// ready is read without mu so status queries never wait on a Run.
	ready atomic.Bool
}

// NewWasmBackend creates an unloaded backend.
func NewWasmBackend(cfg WasmConfig) *WasmBackend {
	metrics.SetBackendReady("wasm", false)
	return &WasmBackend{cfg: cfg}
}

// Load compiles and instantiates the module and checks its exports.
func (b *WasmBackend) Load(ctx context.Context) error {
	bin := b.cfg.Module
	if len(bin) == 0 {
		if b.cfg.Path == "" {
			return errors.New("wasm backend: no module configured")
		}
		data, err := os.ReadFile(b.cfg.Path)
		if err != nil {
			return fmt.Errorf("read wasm module: %w", err)
		}
		bin = data
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Closing on context done lets a timed-out call abort; the instance is
	// then rebuilt on the next Run.
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	compiled, err := rt.CompileModule(ctx, bin)
	if err != nil {
		_ = rt.Close(ctx)
		return fmt.Errorf("compile wasm module: %w", err)
	}
	if _, ok := compiled.ExportedFunctions()["infer"]; !ok {
		_ = rt.Close(ctx)
		return errors.New("wasm module does not export infer")
	}
	if _, ok := compiled.ExportedMemories()["memory"]; !ok {
		_ = rt.Close(ctx)
		return errors.New("wasm module does not export memory")
	}

	b.runtime = rt
	b.compiled = compiled
	if err := b.instantiateLocked(ctx); err != nil {
		_ = rt.Close(ctx)
		b.runtime, b.compiled = nil, nil
		return err
	}
	b.ready.Store(true)
	metrics.SetBackendReady("wasm", true)
	logging.Info().Str("model", b.cfg.Name).Str("version", b.cfg.Version).Msg("WASM inference backend ready")
	return nil
}

func (b *WasmBackend) instantiateLocked(ctx context.Context) error {
	if b.mod != nil {
		_ = b.mod.Close(ctx)
		b.mod = nil
	}
	mod, err := b.runtime.InstantiateModule(ctx, b.compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return fmt.Errorf("instantiate wasm module: %w", err)
	}
	b.mod = mod
	return nil
}

// Ready implements Backend.
func (b *WasmBackend) Ready() bool {
	return b.ready.Load()
}

// Info implements Backend.
func (b *WasmBackend) Info() ModelInfo {
	return ModelInfo{
		Name:       b.cfg.Name,
		Version:    b.cfg.Version,
		Backend:    "wasm",
		InputShape: b.cfg.InputShape,
		Classes:    2,
	}
}

// Run implements Backend.
func (b *WasmBackend) Run(ctx context.Context, input Tensor) ([]float32, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready.Load() {
		return nil, ErrNotLoaded
	}
	if b.mod == nil {
		if err := b.instantiateLocked(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	logits, err := b.call(ctx, input.Data)
	metrics.RecordInference("wasm", time.Since(start), err)
	if err != nil && ctx.Err() != nil {
		// The runtime closed the instance when ctx ended; rebuild on next Run.
		_ = b.mod.Close(context.WithoutCancel(ctx))
		b.mod = nil
	}
	return logits, err
}

func (b *WasmBackend) call(ctx context.Context, data []float32) ([]float32, error) {
	mem := b.mod.Memory()
	if mem == nil {
		return nil, errors.New("wasm module has no memory")
	}

	payload := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(payload[4*i:], math.Float32bits(v))
	}

	ptr := uint32(0)
	if alloc := b.mod.ExportedFunction("alloc"); alloc != nil {
		res, err := alloc.Call(ctx, uint64(len(payload)))
		if err != nil {
			return nil, fmt.Errorf("wasm alloc: %w", err)
		}
		if len(res) == 0 {
			return nil, errors.New("wasm alloc returned no pointer")
		}
		ptr = uint32(res[0])
	}
	if !mem.Write(ptr, payload) {
		return nil, fmt.Errorf("wasm input of %d bytes does not fit memory", len(payload))
	}

	res, err := b.mod.ExportedFunction("infer").Call(ctx, uint64(ptr), uint64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("wasm infer: %w", err)
	}
	if len(res) == 0 {
		return nil, errors.New("wasm infer returned no result")
	}

	outPtr := uint32(res[0] >> 32)
	outLen := uint32(res[0] & 0xffffffff)
	if outLen%4 != 0 {
		return nil, fmt.Errorf("wasm infer returned %d bytes, not a float32 array", outLen)
	}
	raw, ok := mem.Read(outPtr, outLen)
	if !ok {
		return nil, errors.New("wasm infer result out of range")
	}
	logits := make([]float32, outLen/4)
	for i := range logits {
		logits[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return logits, nil
}

// Close implements Backend.
func (b *WasmBackend) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ready.Store(false)
	metrics.SetBackendReady("wasm", false)
	if b.runtime == nil {
		return nil
	}
	err := b.runtime.Close(ctx)
	b.runtime, b.compiled, b.mod = nil, nil, nil
	return err
}
