package tcprest

import (
	"reflect"
	"testing"
)

type overloadDemo struct{}

func (overloadDemo) Add(a, b int) int          { return a + b }
func (overloadDemo) AddStrings(a, b string) string { return a + b }

func TestMethodDescriptorMatchesOverloads(t *testing.T) {
	class := reflect.PtrTo(reflect.TypeOf(overloadDemo{}))
	intDescriptor := methodDescriptor([]reflect.Type{reflect.TypeOf(0), reflect.TypeOf(0)})
	if intDescriptor != "(II)" {
		t.Fatalf("got %q", intDescriptor)
	}
	m, err := findMethodV2(class, "Add", intDescriptor)
	if err != nil {
		t.Fatal(err)
	}
	if m.Method.Name != "Add" {
		t.Errorf("resolved wrong method: %s", m.Method.Name)
	}
}

func TestFindMethodV2NoMatchingDescriptorIsProtocolError(t *testing.T) {
	class := reflect.PtrTo(reflect.TypeOf(overloadDemo{}))
	_, err := findMethodV2(class, "Add", "(I)")
	if err == nil {
		t.Fatal("expected error for arity mismatch against descriptor")
	}
	if AsRemoteError(err).Kind != KindProtocol {
		t.Errorf("got kind %v", AsRemoteError(err).Kind)
	}
}

func TestFindMethodV1PicksFirstNameMatch(t *testing.T) {
	class := reflect.PtrTo(reflect.TypeOf(overloadDemo{}))
	m, err := findMethodV1(class, "Add")
	if err != nil {
		t.Fatal(err)
	}
	if m.Method.Name != "Add" {
		t.Errorf("got %s", m.Method.Name)
	}
}

func TestTypeDescriptorPrimitivesAndArrays(t *testing.T) {
	cases := map[reflect.Type]string{
		reflect.TypeOf(int(0)):     "I",
		reflect.TypeOf(int64(0)):   "J",
		reflect.TypeOf(float64(0)): "D",
		reflect.TypeOf(float32(0)): "F",
		reflect.TypeOf(byte(0)):    "B",
		reflect.TypeOf(true):       "Z",
		reflect.TypeOf([]int{}):    "[I",
	}
	for typ, want := range cases {
		if got := typeDescriptor(typ); got != want {
			t.Errorf("typeDescriptor(%v) = %q, want %q", typ, got, want)
		}
	}
	if got := typeDescriptor(charType); got != "C" {
		t.Errorf("typeDescriptor(Char) = %q, want C", got)
	}
	if got := typeDescriptor(shortType); got != "S" {
		t.Errorf("typeDescriptor(Short) = %q, want S", got)
	}
}

func TestParseDescriptorArity(t *testing.T) {
	n, err := parseDescriptorArity("(II)")
	if err != nil || n != 2 {
		t.Fatalf("got n=%d err=%v", n, err)
	}
	n, err = parseDescriptorArity("()")
	if err != nil || n != 0 {
		t.Fatalf("got n=%d err=%v", n, err)
	}
	n, err = parseDescriptorArity("(Ljava/lang/String;I)")
	if err != nil || n != 2 {
		t.Fatalf("got n=%d err=%v", n, err)
	}
}
