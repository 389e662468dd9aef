package tcprest

import (
	"fmt"
	"reflect"
)

// businessMarker is how a resource method signals that an error is part of
// the application's API contract rather than an
// unexpected server failure. Go has no exception base class to subclass,
// so the marker is a thin wrapper a resource method returns instead of a
// bare error: `return 0, tcprest.AsBusinessError(ErrInvalidAge)`.
type businessMarker struct{ error }

// AsBusinessError wraps err so the invoker classifies it as a business
// exception (status 1) instead of a server error (status 2).
func AsBusinessError(err error) error {
	if err == nil {
		return nil
	}
	return businessMarker{err}
}

func isBusinessError(err error) (error, bool) {
	if bm, ok := err.(businessMarker); ok {
		return bm.error, true
	}
	return nil, false
}

var errorInterfaceType = reflect.TypeOf((*error)(nil)).Elem()

// InvocationOutcome is the terminal classification of one invoke attempt:
// per request, PARSED → INVOKING → exactly one of SUCCEEDED, FAILED_BUSINESS,
// FAILED_SERVER, FAILED_PROTOCOL.
type InvocationOutcome struct {
	Value reflect.Value // zero Value for void methods or on failure
	Err   *RemoteError  // nil on success
}

// Invoke acquires the call target (the context's shared instance, or a
// freshly constructed one) and performs the reflective call, classifying
// the outcome. Invoke is stateless and safe for concurrent
// use by multiple goroutines.
func Invoke(ctx InvocationContext) (outcome InvocationOutcome) {
	receiver, err := acquireInstance(ctx)
	if err != nil {
		outcome.Err = err
		return
	}

	defer recoverInvocationPanic(simpleTypeName(ctx.Class), &outcome.Err)

	in := make([]reflect.Value, 0, len(ctx.Params)+1)
	in = append(in, receiver)
	in = append(in, ctx.Params...)

	results := ctx.Method.Method.Func.Call(in)

	return classifyResults(ctx, results)
}

func acquireInstance(ctx InvocationContext) (reflect.Value, *RemoteError) {
	if ctx.HasInstance {
		return ctx.Instance, nil
	}
	if ctx.Class.Kind() != reflect.Struct {
		return reflect.Value{}, ProtocolErrorf("class %s is not instantiable (not a struct)", canonicalTypeName(ctx.Class))
	}
	return reflect.New(ctx.Class), nil
}

// classifyResults inspects a method's return values for a trailing error
// result and sorts the outcome into success, business exception, or server
// error.
func classifyResults(ctx InvocationContext, results []reflect.Value) (outcome InvocationOutcome) {
	if len(results) == 0 {
		return
	}
	if len(results) > 2 {
		outcome.Err = ProtocolErrorf("method %s returns an unsupported result shape", fmt.Sprintf("%s.%s", canonicalTypeName(ctx.Class), ctx.Method.Method.Name))
		return
	}
	last := results[len(results)-1]
	if last.Type().Implements(errorInterfaceType) {
		if errValueNonNil(last) {
			callErr := last.Interface().(error)
			// exception type names cross the wire in simple (unqualified) form.
			if cause, isBusiness := isBusinessError(callErr); isBusiness {
				outcome.Err = BusinessErrorFrom(simpleTypeName(reflect.TypeOf(cause)), cause)
			} else {
				outcome.Err = ServerErrorFrom(simpleTypeName(reflect.TypeOf(callErr)), callErr)
			}
			return
		}
		// declared error was nil: the value, if any, precedes it.
		if len(results) == 2 {
			outcome.Value = results[0]
		}
		return
	}
	outcome.Value = results[0]
	return
}

// errValueNonNil reports whether an error-typed result actually carries an
// error. A concrete (non-nilable) error type is always non-nil.
func errValueNonNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return !v.IsNil()
	default:
		return true
	}
}
