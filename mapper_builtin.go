package tcprest

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

func registerBuiltinMappers(r *MapperRegistry) {
	prims := []reflect.Type{
		reflect.TypeOf(int(0)), reflect.TypeOf(int32(0)), reflect.TypeOf(int64(0)),
		reflect.TypeOf(float64(0)), reflect.TypeOf(float32(0)),
		reflect.TypeOf(byte(0)), reflect.TypeOf(bool(false)), reflect.TypeOf(""),
		charType, shortType,
	}
	for _, t := range prims {
		m := fastTextMapperFor(t)
		r.Register(canonicalTypeName(t), m)
		// boxed/pointer form: same wire text, nullable.
		r.Register(canonicalTypeName(reflect.PtrTo(t)), m)
	}
	// wire-protocol spellings of the string type.
	r.Register("String", scalarTextMapper{})
	r.Register("java.lang.String", scalarTextMapper{})
	// abstract collection names resolve to the opaque auto-serializer.
	for _, name := range []string{"List", "Set", "Queue", "Map", "Collection", "Deque"} {
		r.Register(name, r.autoSerializer())
	}
	r.Register("null", nullMapper{})
	r.Register("exception", exceptionMapper{})
}

// isFastTextType reports whether t takes the direct text fast path:
// string, numeric/bool primitives and their pointer ("wrapper") forms, or
// a slice of those.
func isFastTextType(t reflect.Type) bool {
	u := t
	for u.Kind() == reflect.Ptr {
		u = u.Elem()
	}
	if u == charType || u == shortType {
		return true
	}
	switch u.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64, reflect.Float64, reflect.Float32,
		reflect.Uint8, reflect.Bool, reflect.String:
		return true
	case reflect.Slice:
		if u.Elem().Kind() == reflect.Uint8 {
			return false // []byte is opaque, not a primitive array
		}
		return isFastTextType(u.Elem())
	default:
		return false
	}
}

func fastTextMapperFor(t reflect.Type) Mapper {
	u := t
	for u.Kind() == reflect.Ptr {
		u = u.Elem()
	}
	if u.Kind() == reflect.Slice {
		return arrayTextMapper{elem: fastTextMapperFor(u.Elem())}
	}
	return scalarTextMapper{}
}

// scalarTextMapper implements the primitive/wrapper text forms:
// decimal strings for numerics, "true"/"false" for bool, identity
// for string, a single character (or "" for NUL) for Char.
type scalarTextMapper struct{}

func (scalarTextMapper) Encode(v reflect.Value) (string, error) {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nullMarkerV2, nil
		}
		v = v.Elem()
	}
	switch {
	case v.Type() == charType:
		c := rune(v.Int())
		if c == 0 {
			return "", nil
		}
		return string(c), nil
	case v.Type() == shortType:
		return strconv.FormatInt(v.Int(), 10), nil
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), nil
	case reflect.Float64, reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64), nil
	case reflect.Uint8:
		return strconv.FormatUint(v.Uint(), 10), nil
	case reflect.Bool:
		if v.Bool() {
			return "true", nil
		}
		return "false", nil
	case reflect.String:
		return v.String(), nil
	default:
		return "", ProtocolErrorf("scalarTextMapper cannot encode kind %s", v.Kind())
	}
}

func (scalarTextMapper) Decode(text string, t reflect.Type) (reflect.Value, error) {
	ptr := t.Kind() == reflect.Ptr
	target := t
	if ptr {
		target = t.Elem()
	}
	val, err := decodeScalar(text, target)
	if err != nil {
		return reflect.Value{}, err
	}
	if ptr {
		p := reflect.New(target)
		p.Elem().Set(val)
		return p, nil
	}
	return val, nil
}

func decodeScalar(text string, target reflect.Type) (reflect.Value, error) {
	switch {
	case target == charType:
		if text == "" {
			return reflect.ValueOf(Char(0)), nil
		}
		r := []rune(text)
		return reflect.ValueOf(Char(r[0])), nil
	case target == shortType:
		n, err := strconv.ParseInt(text, 10, 16)
		if err != nil {
			return reflect.Value{}, ProtocolErrorf("bad short %q: %v", text, err)
		}
		return reflect.ValueOf(Short(n)).Convert(target), nil
	}
	switch target.Kind() {
	case reflect.Int, reflect.Int32:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return reflect.Value{}, ProtocolErrorf("bad int %q: %v", text, err)
		}
		return reflect.ValueOf(n).Convert(target), nil
	case reflect.Int64:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return reflect.Value{}, ProtocolErrorf("bad long %q: %v", text, err)
		}
		return reflect.ValueOf(n).Convert(target), nil
	case reflect.Float64, reflect.Float32:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return reflect.Value{}, ProtocolErrorf("bad float %q: %v", text, err)
		}
		return reflect.ValueOf(f).Convert(target), nil
	case reflect.Uint8:
		n, err := strconv.ParseUint(text, 10, 8)
		if err != nil {
			return reflect.Value{}, ProtocolErrorf("bad byte %q: %v", text, err)
		}
		return reflect.ValueOf(n).Convert(target), nil
	case reflect.Bool:
		switch text {
		case "true":
			return reflect.ValueOf(true), nil
		case "false":
			return reflect.ValueOf(false), nil
		default:
			return reflect.Value{}, ProtocolErrorf("bad boolean %q", text)
		}
	case reflect.String:
		return reflect.ValueOf(text), nil
	default:
		return reflect.Value{}, ProtocolErrorf("decodeScalar cannot decode kind %s", target.Kind())
	}
}

// arrayTextMapper encodes a slice of primitives/String as a comma-joined
// text blob (itself carried as one base64 ELEM by the V2 array grammar).
type arrayTextMapper struct{ elem Mapper }

const arrayTextSep = ","

func (m arrayTextMapper) Encode(v reflect.Value) (string, error) {
	if isNilValue(v) {
		return nullMarkerV2, nil
	}
	parts := make([]string, v.Len())
	for i := 0; i < v.Len(); i++ {
		s, err := m.elem.Encode(v.Index(i))
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, arrayTextSep), nil
}

func (m arrayTextMapper) Decode(text string, t reflect.Type) (reflect.Value, error) {
	if text == "" {
		return reflect.MakeSlice(t, 0, 0), nil
	}
	parts := strings.Split(text, arrayTextSep)
	out := reflect.MakeSlice(t, len(parts), len(parts))
	for i, p := range parts {
		v, err := m.elem.Decode(p, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(v)
	}
	return out, nil
}

// nullMapper renders/recognizes the null marker. Used when the value being
// encoded is nil, regardless of its declared static type.
type nullMapper struct{}

func (nullMapper) Encode(reflect.Value) (string, error) { return nullMarkerV2, nil }
func (nullMapper) Decode(_ string, t reflect.Type) (reflect.Value, error) {
	return reflect.Zero(t), nil
}

// fallbackTextMapper is the last-resort decode path: best-effort textual
// conversion for a type nothing else matched.
type fallbackTextMapper struct{}

func (fallbackTextMapper) Encode(v reflect.Value) (string, error) {
	if !v.IsValid() {
		return nullMarkerV2, nil
	}
	return fmt.Sprintf("%v", v.Interface()), nil
}

func (fallbackTextMapper) Decode(text string, t reflect.Type) (reflect.Value, error) {
	return decodeScalar(text, t)
}

// exceptionMapper implements "ExceptionType: message" concatenation. On
// decode, when the original type can't be resolved locally (which in Go is
// always true across a process boundary) it reconstructs a *RemoteError
// carrying the original type name.
type exceptionMapper struct{}

func (exceptionMapper) Encode(v reflect.Value) (string, error) {
	if re, ok := v.Interface().(*RemoteError); ok {
		return re.RemoteType + ": " + re.Message, nil
	}
	if err, ok := v.Interface().(error); ok {
		return canonicalTypeName(v.Type()) + ": " + err.Error(), nil
	}
	return "", ProtocolErrorf("exceptionMapper can only encode errors")
}

func (exceptionMapper) Decode(text string, _ reflect.Type) (reflect.Value, error) {
	typeName, msg := splitExceptionText(text)
	re := newRemoteError(KindServer, typeName, "%s", msg)
	return reflect.ValueOf(re), nil
}

func splitExceptionText(text string) (typeName, message string) {
	idx := strings.Index(text, ": ")
	if idx < 0 {
		return "", text
	}
	return text[:idx], text[idx+2:]
}
