package tcprest

import "reflect"

// InvocationContext is the product of parsing a request: a
// resolved class, an optional shared instance, a resolved method, and a
// parameter vector whose length equals the method's arity and whose values
// are already mapped to the method's declared parameter types.
type InvocationContext struct {
	Class           reflect.Type
	Instance        reflect.Value // zero Value when the invoker must construct one
	HasInstance     bool
	Method          resolvedMethod
	Params          []reflect.Value
	ProtocolVersion string // "V1" or "V2", for logging/diagnostics only
}
