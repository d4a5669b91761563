package interop

import (
	"github.com/reglet-dev/reglet-interop/domain/entities"
	"github.com/reglet-dev/reglet-interop/registry"
)

// builtinComponent exposes the entries the calling side uses to talk back to
// the runtime:
//
//	Dispatcher.EndInvoke(callID int64, succeeded bool, result)  settles a call begun with BeginRemoteCall
//	Dispatcher.ReleaseObject(handle)                            stops tracking an object
func (rt *Runtime) builtinComponent() *registry.Component {
	return registry.NewComponent(rt.cfg.BuiltinComponent,
		registry.Type("Dispatcher",
			registry.Func("EndInvoke", rt.endInvoke),
			registry.Func("ReleaseObject", rt.releaseObject),
		),
	)
}

func (rt *Runtime) endInvoke(callID int64, succeeded bool, result entities.DeferredResult) error {
	return rt.pending.Complete(callID, succeeded, result)
}

func (rt *Runtime) releaseObject(handle entities.Handle) error {
	return rt.store.Release(handle)
}
