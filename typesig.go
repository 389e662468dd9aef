package tcprest

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru"
)

// Char and Short give resource methods a way to declare JVM-style "char"
// and "short" parameters distinctly from "int"/"int32", so the descriptor
// codec can tell them apart the way the wire grammar expects.
type Char rune
type Short int16

const (
	descInt     = "I"
	descLong    = "J"
	descDouble  = "D"
	descFloat   = "F"
	descByte    = "B"
	descChar    = "C"
	descShort   = "S"
	descBoolean = "Z"
	descVoid    = "V"
)

var charType = reflect.TypeOf(Char(0))
var shortType = reflect.TypeOf(Short(0))

// typeDescriptor renders the JVM-style descriptor for a single reflected
// type: primitives get their one-letter code, arrays
// get a "[" per dimension, everything else is "L<dotted-name-slashed>;".
func typeDescriptor(t reflect.Type) string {
	// a pointer is the nullable ("boxed") form of its base type and shares
	// its descriptor.
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch {
	case t == charType:
		return descChar
	case t == shortType:
		return descShort
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int32:
		return descInt
	case reflect.Int64:
		return descLong
	case reflect.Float64:
		return descDouble
	case reflect.Float32:
		return descFloat
	case reflect.Uint8:
		return descByte
	case reflect.Bool:
		return descBoolean
	case reflect.String:
		// strings travel under the wire protocol's own name for the string
		// class, so descriptors agree across implementations regardless of
		// what the host language calls the type.
		return "Ljava/lang/String;"
	case reflect.Slice, reflect.Array:
		return "[" + typeDescriptor(t.Elem())
	default:
		return "L" + strings.ReplaceAll(canonicalTypeName(t), ".", "/") + ";"
	}
}

// methodDescriptor is deterministic from a method's reflected parameter
// types: "(" + concatenation of parameter descriptors + ")".
func methodDescriptor(paramTypes []reflect.Type) string {
	var b strings.Builder
	b.WriteByte('(')
	for _, t := range paramTypes {
		b.WriteString(typeDescriptor(t))
	}
	b.WriteByte(')')
	return b.String()
}

// canonicalTypeName returns a stable dotted name for t, used as the mapper
// registry key, the resource registry key, and inside "L...;" descriptors.
// Import-path separators become dots so the result is a valid dotted class
// name under the wire grammar (class names must never contain '/').
func canonicalTypeName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return strings.ReplaceAll(t.PkgPath(), "/", ".") + "." + t.Name()
}

// simpleTypeName is the bare type name without package qualification, the
// form exception type names take on the wire.
func simpleTypeName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// exportedName upcases the first rune. Wire method names arrive in the
// protocol's lowerCamel convention; the Go methods implementing them are
// necessarily exported, so resolution retries with the exported spelling
// when the literal name has no match.
func exportedName(name string) string {
	r := []rune(name)
	if len(r) == 0 || unicode.IsUpper(r[0]) {
		return name
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// resolvedMethod pairs a reflect.Method with its parameter types so the
// invoker doesn't need to recompute them.
type resolvedMethod struct {
	Method     reflect.Method
	ParamTypes []reflect.Type
}

var methodCache *lru.Cache

func init() {
	c, err := lru.New(1024)
	if err != nil {
		panic(err) // only fails for a non-positive size, which is a programmer error
	}
	methodCache = c
}

// findMethodV2 resolves a method by name and full descriptor (V2 overload
// resolution): the descriptor disambiguates overloads, so
// the match is guaranteed unique when one exists.
func findMethodV2(class reflect.Type, name, descriptor string) (resolvedMethod, error) {
	cacheKey := canonicalTypeName(class) + "#" + name + descriptor
	if v, ok := methodCache.Get(cacheKey); ok {
		return v.(resolvedMethod), nil
	}
	for _, candidate := range []string{name, exportedName(name)} {
		for i := 0; i < class.NumMethod(); i++ {
			m := class.Method(i)
			if m.Name != candidate {
				continue
			}
			paramTypes := methodParamTypes(class, m)
			if methodDescriptor(paramTypes) == descriptor {
				rm := resolvedMethod{Method: m, ParamTypes: paramTypes}
				methodCache.Add(cacheKey, rm)
				return rm, nil
			}
		}
	}
	return resolvedMethod{}, ProtocolErrorf("no method %s%s on %s", name, descriptor, canonicalTypeName(class))
}

// findMethodV1 resolves by name only, returning reflection's first match.
// V1 has no overload support; this is a latent bug for overloaded services,
// preserved intentionally for wire compatibility.
func findMethodV1(class reflect.Type, name string) (resolvedMethod, error) {
	cacheKey := canonicalTypeName(class) + "#v1#" + name
	if v, ok := methodCache.Get(cacheKey); ok {
		return v.(resolvedMethod), nil
	}
	for _, candidate := range []string{name, exportedName(name)} {
		for i := 0; i < class.NumMethod(); i++ {
			m := class.Method(i)
			if m.Name != candidate {
				continue
			}
			rm := resolvedMethod{Method: m, ParamTypes: methodParamTypes(class, m)}
			methodCache.Add(cacheKey, rm)
			return rm, nil
		}
	}
	return resolvedMethod{}, ProtocolErrorf("no method named %s on %s", name, canonicalTypeName(class))
}

// methodParamTypes strips the receiver from m.Type's input list: reflect's
// Method.Type always carries the receiver as argument 0 for a method
// obtained via Type.Method (as opposed to Value.Method).
func methodParamTypes(class reflect.Type, m reflect.Method) []reflect.Type {
	n := m.Type.NumIn()
	params := make([]reflect.Type, 0, n-1)
	for i := 1; i < n; i++ {
		params = append(params, m.Type.In(i))
	}
	return params
}

func parseDescriptorArity(descriptor string) (int, error) {
	if len(descriptor) < 2 || descriptor[0] != '(' {
		return 0, ProtocolErrorf("malformed descriptor %q", descriptor)
	}
	body := descriptor[1:]
	closeIdx := strings.IndexByte(body, ')')
	if closeIdx < 0 {
		return 0, ProtocolErrorf("malformed descriptor %q", descriptor)
	}
	body = body[:closeIdx]
	count := 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case 'I', 'J', 'D', 'F', 'B', 'C', 'S', 'Z':
			count++
		case '[':
			continue
		case 'L':
			end := strings.IndexByte(body[i:], ';')
			if end < 0 {
				return 0, ProtocolErrorf("malformed descriptor %q", descriptor)
			}
			i += end
			count++
		default:
			return 0, ProtocolErrorf("malformed descriptor %q: unknown type code %q", descriptor, body[i])
		}
	}
	return count, nil
}

func formatMeta(className, methodName, descriptor string) string {
	if descriptor == "" {
		return fmt.Sprintf("%s/%s", className, methodName)
	}
	return fmt.Sprintf("%s/%s%s", className, methodName, descriptor)
}
