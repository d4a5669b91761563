package interop

import (
	"context"

	"github.com/reglet-dev/reglet-interop/domain/entities"
	"github.com/reglet-dev/reglet-interop/domain/errors"
)

// HandleCall runs a wire-level call request synchronously. Failures are
// reported in the response rather than returned.
func (rt *Runtime) HandleCall(ctx context.Context, req entities.CallRequest) entities.CallResponse {
	out, err := rt.Invoke(ctx, req.Component, req.Identifier, req.Handle, req.Args)
	if err != nil {
		return entities.CallResponse{Error: errors.ToErrorDetail(err)}
	}
	if out == nil {
		return entities.CallResponse{Void: true}
	}
	return entities.CallResponse{Result: out}
}

// HandleBeginCall starts a wire-level call request asynchronously.
func (rt *Runtime) HandleBeginCall(ctx context.Context, req entities.CallRequest) {
	rt.BeginInvoke(ctx, req.Token, req.Component, req.Identifier, req.Handle, req.Args)
}
