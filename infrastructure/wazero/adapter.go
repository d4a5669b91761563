package wazero

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/reglet-interop/domain/entities"
	"github.com/reglet-dev/reglet-interop/domain/errors"
	interoplog "github.com/reglet-dev/reglet-interop/log"
)

// DefaultMaxRequestSize is the default limit for a request read from guest memory (1 MiB).
const DefaultMaxRequestSize = 1 << 20

// Boundary is the host side of the call protocol.
type Boundary interface {
	// HandleCall runs a synchronous call and describes its outcome.
	HandleCall(ctx context.Context, req entities.CallRequest) entities.CallResponse

	// HandleBeginCall starts an asynchronous call.
	HandleBeginCall(ctx context.Context, req entities.CallRequest)

	// ReleaseHandle releases a tracked object.
	ReleaseHandle(h entities.Handle) error
}

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// Logger receives boundary diagnostics and forwarded guest logs.
	Logger *slog.Logger

	// ModuleName is the host module name (default: "interop_host").
	ModuleName string

	// CustomHandlers allows adding additional wazero-specific handlers that
	// don't fit the standard request/response pattern.
	CustomHandlers []CustomHandler

	// MaxRequestSize limits the size of incoming requests from guest memory.
	// Default is 1MB.
	MaxRequestSize uint32
}

// CustomHandler represents a custom wazero handler that doesn't use the standard
// packed i64 request/response pattern.
type CustomHandler struct {
	// Handler is the wazero GoModuleFunc implementation.
	Handler api.GoModuleFunc

	// Name is the exported function name.
	Name string

	// ParamTypes are the WASM parameter types.
	ParamTypes []api.ValueType

	// ResultTypes are the WASM result types.
	ResultTypes []api.ValueType
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithModuleName sets the host module name (default: "interop_host").
func WithModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) {
		c.ModuleName = name
	}
}

// WithMaxRequestSize sets the maximum request size from guest memory.
func WithMaxRequestSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		c.MaxRequestSize = size
	}
}

// WithCustomHandler adds a custom wazero handler.
func WithCustomHandler(h CustomHandler) AdapterOption {
	return func(c *AdapterConfig) {
		c.CustomHandlers = append(c.CustomHandlers, h)
	}
}

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(c *AdapterConfig) {
		c.Logger = logger
	}
}

// defaultAdapterConfig returns the default adapter configuration.
func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		ModuleName:     "interop_host",
		MaxRequestSize: DefaultMaxRequestSize,
	}
}

// host binds a Boundary to one host module.
type host struct {
	boundary Boundary
	logger   *slog.Logger
	cfg      AdapterConfig
}

// RegisterWithRuntime instantiates the host module that exposes boundary to guests.
//
// Example:
//
//	rt, _ := interop.New(interop.WithCapabilities(...))
//	err := wazero.RegisterWithRuntime(ctx, runtime, rt,
//	    wazero.WithModuleName("interop_host"),
//	)
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, boundary Boundary, opts ...AdapterOption) error {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &host{boundary: boundary, logger: cfg.Logger, cfg: cfg}

	i64 := []api.ValueType{api.ValueTypeI64}
	i32 := []api.ValueType{api.ValueTypeI32}

	builder := runtime.NewHostModuleBuilder(cfg.ModuleName)
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.invoke), i64, i64).
		Export("invoke")
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.beginInvoke), i64, nil).
		Export("begin_invoke")
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.releaseHandle), i64, i32).
		Export("release_handle")
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.logMessage), i64, nil).
		Export("log_message")

	// Register any custom handlers
	for _, ch := range cfg.CustomHandlers {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(ch.Handler, ch.ParamTypes, ch.ResultTypes).
			Export(ch.Name)
	}

	// Instantiate the host module
	_, err := builder.Instantiate(ctx)
	return err
}

func (h *host) invoke(ctx context.Context, mod api.Module, stack []uint64) {
	payload, err := h.readRequest(ctx, mod, stack[0], "invoke")
	if err != nil {
		stack[0] = h.writeCallResponse(ctx, mod, entities.CallResponse{
			Error: entities.NewErrorDetail("internal", err.Error()),
		})
		return
	}

	var req entities.CallRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		stack[0] = h.writeCallResponse(ctx, mod, entities.CallResponse{
			Error: entities.NewErrorDetail("internal", fmt.Sprintf("malformed call request: %v", err)),
		})
		return
	}

	resp := h.boundary.HandleCall(ctx, req)
	stack[0] = h.writeCallResponse(ctx, mod, resp)
}

func (h *host) beginInvoke(ctx context.Context, mod api.Module, stack []uint64) {
	payload, err := h.readRequest(ctx, mod, stack[0], "begin_invoke")
	if err != nil {
		return
	}

	var req entities.CallRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.logger.ErrorContext(ctx, "wazero: malformed asynchronous call request dropped",
			"module", callerName(ctx, mod), "error", err)
		return
	}
	h.boundary.HandleBeginCall(ctx, req)
}

func (h *host) releaseHandle(ctx context.Context, mod api.Module, stack []uint64) {
	handle := entities.Handle(stack[0])
	if err := h.boundary.ReleaseHandle(handle); err != nil {
		h.logger.DebugContext(ctx, "wazero: release of stale handle",
			"module", callerName(ctx, mod), "handle", uint64(handle), "error", err)
		stack[0] = api.EncodeI32(1)
		return
	}
	stack[0] = api.EncodeI32(0)
}

func (h *host) logMessage(ctx context.Context, mod api.Module, stack []uint64) {
	payload, err := h.readRequest(ctx, mod, stack[0], "log_message")
	if err != nil {
		return
	}
	if err := interoplog.Forward(ctx, h.logger, payload, slog.String("module", callerName(ctx, mod))); err != nil {
		h.logger.ErrorContext(ctx, "wazero: failed to forward guest log message", "error", err)
	}
}

// readRequest copies a packed ptr+len request out of guest memory.
func (h *host) readRequest(ctx context.Context, mod api.Module, packed uint64, name string) ([]byte, error) {
	ptr, length := unpackPtrLen(packed)

	if length > h.cfg.MaxRequestSize {
		err := fmt.Errorf("request size %d exceeds maximum %d bytes", length, h.cfg.MaxRequestSize)
		h.logger.ErrorContext(ctx, "wazero: "+err.Error(), "function", name)
		return nil, err
	}

	mem := mod.Memory()
	if mem == nil {
		err := fmt.Errorf("calling module has no memory")
		h.logger.ErrorContext(ctx, "wazero: "+err.Error(), "function", name)
		return nil, err
	}
	data, ok := mem.Read(ptr, length)
	if !ok {
		err := fmt.Errorf("failed to read request from guest memory")
		h.logger.ErrorContext(ctx, "wazero: "+err.Error(), "function", name)
		return nil, err
	}
	// Read returns a view of guest memory; copy before the guest reuses it.
	return append([]byte(nil), data...), nil
}

func (h *host) writeCallResponse(ctx context.Context, mod api.Module, resp entities.CallResponse) uint64 {
	data, err := json.Marshal(resp)
	if err != nil {
		h.logger.ErrorContext(ctx, "wazero: failed to encode call response", "error", err)
		data, _ = json.Marshal(entities.CallResponse{Error: errors.ToErrorDetail(err)})
	}
	return writeResponse(ctx, h.logger, mod, data)
}

// writeResponse allocates memory in the guest and writes the response bytes.
// Returns packed ptr+len or 0 on failure.
func writeResponse(ctx context.Context, logger *slog.Logger, mod api.Module, data []byte) uint64 {
	// Call the guest's allocate function
	allocateFn := mod.ExportedFunction("allocate")
	if allocateFn == nil {
		logger.ErrorContext(ctx, "wazero: guest module missing 'allocate' export")
		return 0
	}

	results, err := allocateFn.Call(ctx, uint64(len(data)))
	if err != nil {
		logger.ErrorContext(ctx, "wazero: failed to call guest allocate", "error", err)
		return 0
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit

	mem := mod.Memory()
	if mem == nil || !mem.Write(ptr, data) {
		logger.ErrorContext(ctx, "wazero: failed to write response to guest memory")
		return 0
	}

	return packPtrLen(ptr, uint32(len(data))) //nolint:gosec // G115: Data length is bounded by config
}

// packPtrLen packs a pointer and length into a single i64.
// Upper 32 bits: pointer, lower 32 bits: length.
func packPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

// unpackPtrLen unpacks a pointer and length from a packed i64.
func unpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> 32)           //nolint:gosec // G115: Packed format stores 32-bit values
	length = uint32(packed & 0xFFFFFFFF) //nolint:gosec // G115: Packed format stores 32-bit values
	return ptr, length
}
