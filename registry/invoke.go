package registry

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/reglet-dev/reglet-interop/domain/entities"
	"github.com/reglet-dev/reglet-interop/domain/errors"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// funcShape is the invokable view of a Go function or method.
// A leading context.Context parameter and a trailing error result are not
// part of the entry's declared signature.
type funcShape struct {
	returns  entities.TypeDescriptor
	params   []entities.TypeDescriptor
	hasCtx   bool
	hasErr   bool
	hasValue bool
}

// shapeOf inspects fnType, skipping the first skip parameters (the receiver
// for method expressions).
func shapeOf(fnType reflect.Type, skip int) (funcShape, error) {
	var s funcShape
	if fnType == nil || fnType.Kind() != reflect.Func {
		return s, fmt.Errorf("%v is not a function", fnType)
	}
	if fnType.IsVariadic() {
		return s, fmt.Errorf("variadic functions cannot be invoked")
	}

	i := skip
	if fnType.NumIn() > i && fnType.In(i) == contextType {
		s.hasCtx = true
		i++
	}
	for ; i < fnType.NumIn(); i++ {
		s.params = append(s.params, entities.TypeFrom(fnType.In(i)))
	}

	switch fnType.NumOut() {
	case 0:
	case 1:
		if fnType.Out(0) == errorType {
			s.hasErr = true
		} else {
			s.hasValue = true
			s.returns = entities.TypeFrom(fnType.Out(0))
		}
	case 2:
		if fnType.Out(1) != errorType {
			return s, fmt.Errorf("second result must be error, got %s", fnType.Out(1))
		}
		s.hasValue = true
		s.hasErr = true
		s.returns = entities.TypeFrom(fnType.Out(0))
	default:
		return s, fmt.Errorf("at most two results are supported, got %d", fnType.NumOut())
	}
	return s, nil
}

// reflectInvoker calls fn with the converted arguments. receiver is nil for
// static functions.
func reflectInvoker(fn reflect.Value, shape funcShape, receiver reflect.Type) entities.InvokeFunc {
	return func(ctx context.Context, target any, args []any) (result any, err error) {
		if len(args) != len(shape.params) {
			return nil, fmt.Errorf("expected %d arguments, got %d", len(shape.params), len(args))
		}

		in := make([]reflect.Value, 0, len(args)+2)
		if receiver != nil {
			rv := reflect.ValueOf(target)
			if !rv.IsValid() || !rv.Type().AssignableTo(receiver) {
				return nil, fmt.Errorf("target %T is not a %s", target, receiver)
			}
			in = append(in, rv)
		}
		if shape.hasCtx {
			if ctx == nil {
				ctx = context.Background()
			}
			in = append(in, reflect.ValueOf(ctx))
		}
		for i, arg := range args {
			pt := shape.params[i].Type
			if arg == nil {
				in = append(in, reflect.Zero(pt))
				continue
			}
			av := reflect.ValueOf(arg)
			if !av.Type().AssignableTo(pt) {
				return nil, fmt.Errorf("argument %d: %T is not assignable to %s", i, arg, pt)
			}
			in = append(in, av)
		}

		defer func() {
			if r := recover(); r != nil {
				result = nil
				err = &errors.TargetInvocationError{Err: &errors.PanicError{Value: r, Stack: debug.Stack()}}
			}
		}()

		out := fn.Call(in)
		if shape.hasErr {
			if errV := out[len(out)-1]; !errV.IsNil() {
				return nil, &errors.TargetInvocationError{Err: errV.Interface().(error)}
			}
		}
		if shape.hasValue {
			return out[0].Interface(), nil
		}
		return nil, nil
	}
}

// guardHandler gives hand-written entries the same failure wrapping as
// reflected ones.
func guardHandler(fn entities.InvokeFunc) entities.InvokeFunc {
	return func(ctx context.Context, target any, args []any) (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				result = nil
				err = &errors.TargetInvocationError{Err: &errors.PanicError{Value: r, Stack: debug.Stack()}}
			}
		}()
		result, err = fn(ctx, target, args)
		if err != nil {
			return nil, &errors.TargetInvocationError{Err: err}
		}
		return result, nil
	}
}

func (s Signature) isOpen() bool {
	if len(s.TypeParams) > 0 || s.Returns.IsOpen() {
		return true
	}
	for _, p := range s.Params {
		if p.IsOpen() {
			return true
		}
	}
	return false
}
