package tcprest

import (
	"reflect"
	"testing"
)

func TestScalarTextMapperRoundTrip(t *testing.T) {
	cases := []interface{}{
		int(42), int64(9999999999), float64(3.5), byte(7), true, false, "hello",
	}
	for _, v := range cases {
		rv := reflect.ValueOf(v)
		m := fastTextMapperFor(rv.Type())
		text, err := m.Encode(rv)
		if err != nil {
			t.Fatalf("encode %v: %v", v, err)
		}
		decoded, err := m.Decode(text, rv.Type())
		if err != nil {
			t.Fatalf("decode %q: %v", text, err)
		}
		if decoded.Interface() != v {
			t.Errorf("round trip mismatch: got %v, want %v", decoded.Interface(), v)
		}
	}
}

func TestCharMapperEmptyStringIsNUL(t *testing.T) {
	m := scalarTextMapper{}
	v, err := m.Decode("", charType)
	if err != nil {
		t.Fatal(err)
	}
	if v.Interface().(Char) != Char(0) {
		t.Errorf("expected NUL, got %v", v.Interface())
	}
}

func TestArrayTextMapperRoundTrip(t *testing.T) {
	ints := []int{1, 2, 3}
	rv := reflect.ValueOf(ints)
	m := fastTextMapperFor(rv.Type())
	text, err := m.Encode(rv)
	if err != nil {
		t.Fatal(err)
	}
	if text != "1,2,3" {
		t.Errorf("got %q", text)
	}
	decoded, err := m.Decode(text, rv.Type())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(decoded.Interface(), ints) {
		t.Errorf("got %v, want %v", decoded.Interface(), ints)
	}
}

func TestExceptionMapperRoundTrip(t *testing.T) {
	re := BusinessErrorFrom("demo.ValidationException", errString("Age must be non-negative"))
	text, err := exceptionMapper{}.Encode(reflect.ValueOf(re))
	if err != nil {
		t.Fatal(err)
	}
	want := "demo.ValidationException: Age must be non-negative"
	if text != want {
		t.Errorf("got %q, want %q", text, want)
	}
	v, err := exceptionMapper{}.Decode(text, nil)
	if err != nil {
		t.Fatal(err)
	}
	decoded := v.Interface().(*RemoteError)
	if decoded.RemoteType != "demo.ValidationException" || decoded.Message != "Age must be non-negative" {
		t.Errorf("got %+v", decoded)
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func TestMapperRegistryEncodeDecodeNil(t *testing.T) {
	r := NewMapperRegistry()
	var s *string
	m, err := r.ResolveForEncode(reflect.ValueOf(s))
	if err != nil {
		t.Fatal(err)
	}
	text, err := m.Encode(reflect.ValueOf(s))
	if err != nil {
		t.Fatal(err)
	}
	if text != nullMarkerV2 {
		t.Errorf("got %q", text)
	}
}

type opaquePayload struct {
	Name  string
	Count int
}

func TestAutoSerializerRoundTripRequiresAllowList(t *testing.T) {
	r := NewMapperRegistry()
	in := opaquePayload{Name: "widget", Count: 3}
	rv := reflect.ValueOf(in)

	m, err := r.ResolveForEncode(rv)
	if err != nil {
		t.Fatal(err)
	}
	text, err := m.Encode(rv)
	if err != nil {
		t.Fatal(err)
	}

	// not allow-listed yet: decoding must fail closed.
	dec := r.ResolveForDecode(reflect.TypeOf(in))
	if _, err := dec.Decode(text, reflect.TypeOf(in)); err == nil {
		t.Fatal("expected non-allow-listed opaque type to be rejected")
	} else if AsRemoteError(err).Kind != KindSecurity {
		t.Errorf("got kind %v", AsRemoteError(err).Kind)
	}

	RegisterOpaqueType(opaquePayload{})
	v, err := dec.Decode(text, reflect.TypeOf(in))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v.Interface(), in) {
		t.Errorf("got %+v, want %+v", v.Interface(), in)
	}
}

func TestAutoSerializerAlwaysDeniedTypes(t *testing.T) {
	for name := range alwaysDeniedOpaqueTypes {
		if isOpaqueTypeAllowed(name) {
			t.Errorf("expected %q to stay denied", name)
		}
	}
}

func TestResolveForEncodeMissingMapper(t *testing.T) {
	r := NewMapperRegistry()
	type unmappable chan int
	c := make(unmappable)
	_, err := r.ResolveForEncode(reflect.ValueOf(c))
	if err == nil {
		t.Fatal("expected MapperMissingErrorf")
	}
	re := AsRemoteError(err)
	if re.Kind != KindMapperMissing {
		t.Errorf("got kind %v", re.Kind)
	}
}
