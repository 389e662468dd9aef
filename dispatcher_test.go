package tcprest

import (
	"reflect"
	"testing"
)

type demoResource struct{}

func (demoResource) Add(a, b int) int { return a + b }

func (demoResource) Echo(s string) string { return s }

func (demoResource) ValidateAge(age int) (int, error) {
	if age < 0 {
		return 0, AsBusinessError(demoBusinessErr("Age must be non-negative"))
	}
	return age, nil
}

type demoBusinessErr string

func (e demoBusinessErr) Error() string { return string(e) }

func newDemoDispatcher() *Dispatcher {
	registry := NewResourceRegistry(false)
	if err := registry.AddResource(demoResource{}); err != nil {
		panic(err)
	}
	return NewDispatcher(registry)
}

func demoClassName() string {
	return canonicalTypeName(reflect.TypeOf(demoResource{}))
}

func TestDispatcherV2AddRoundTrip(t *testing.T) {
	d := newDemoDispatcher()
	intType := reflect.TypeOf(int(0))
	req, err := EncodeV2Request(demoClassName(), "Add",
		[]reflect.Type{intType, intType},
		[]reflect.Value{reflect.ValueOf(5), reflect.ValueOf(3)},
		d.Mappers, d.Compression, d.Security)
	if err != nil {
		t.Fatal(err)
	}
	result := d.HandleLine(req)
	if result.CloseAfter {
		t.Fatal("unexpected close")
	}
	v, err := DecodeV2Response(result.Reply, intType, d.Mappers, d.Compression, d.Security)
	if err != nil {
		t.Fatal(err)
	}
	if v.Interface().(int) != 8 {
		t.Errorf("got %v, want 8", v.Interface())
	}
}

func TestDispatcherV2EchoEmptyString(t *testing.T) {
	d := newDemoDispatcher()
	strType := reflect.TypeOf("")
	req, err := EncodeV2Request(demoClassName(), "Echo",
		[]reflect.Type{strType}, []reflect.Value{reflect.ValueOf("")},
		d.Mappers, d.Compression, d.Security)
	if err != nil {
		t.Fatal(err)
	}
	result := d.HandleLine(req)
	v, err := DecodeV2Response(result.Reply, strType, d.Mappers, d.Compression, d.Security)
	if err != nil {
		t.Fatal(err)
	}
	if v.Interface().(string) != "" {
		t.Errorf("got %q", v.Interface())
	}
}

func TestDispatcherV2BusinessException(t *testing.T) {
	d := newDemoDispatcher()
	intType := reflect.TypeOf(int(0))
	req, err := EncodeV2Request(demoClassName(), "ValidateAge",
		[]reflect.Type{intType}, []reflect.Value{reflect.ValueOf(-1)},
		d.Mappers, d.Compression, d.Security)
	if err != nil {
		t.Fatal(err)
	}
	result := d.HandleLine(req)
	_, err = DecodeV2Response(result.Reply, intType, d.Mappers, d.Compression, d.Security)
	if err == nil {
		t.Fatal("expected business exception")
	}
	re := AsRemoteError(err)
	if re.Kind != KindBusiness {
		t.Errorf("got kind %v", re.Kind)
	}
	if re.Message != "Age must be non-negative" {
		t.Errorf("got message %q", re.Message)
	}
}

func TestDispatcherArityMismatchIsProtocolError(t *testing.T) {
	d := newDemoDispatcher()
	intType := reflect.TypeOf(int(0))
	req, err := EncodeV2Request(demoClassName(), "Add",
		[]reflect.Type{intType, intType},
		[]reflect.Value{reflect.ValueOf(5), reflect.ValueOf(3)},
		d.Mappers, d.Compression, d.Security)
	if err != nil {
		t.Fatal(err)
	}
	// Corrupt the array to carry only one element against a 2-arity descriptor.
	corrupted := req
	if idx := indexOfArrayStart(corrupted); idx >= 0 {
		corrupted = corrupted[:idx] + "[NQ==]"
	}
	result := d.HandleLine(corrupted)
	_, err = DecodeV2Response(result.Reply, intType, d.Mappers, d.Compression, d.Security)
	if err == nil {
		t.Fatal("expected protocol error")
	}
	if AsRemoteError(err).Kind != KindProtocol {
		t.Errorf("got kind %v", AsRemoteError(err).Kind)
	}
}

func indexOfArrayStart(frame string) int {
	for i := 0; i < len(frame); i++ {
		if frame[i] == '[' {
			return i
		}
	}
	return -1
}

func TestDispatcherV1RoundTrip(t *testing.T) {
	d := newDemoDispatcher()
	intType := reflect.TypeOf(int(0))
	req, err := EncodeV1Request(demoClassName(), "Add",
		[]reflect.Value{reflect.ValueOf(5), reflect.ValueOf(3)}, d.Mappers)
	if err != nil {
		t.Fatal(err)
	}
	result := d.HandleLine(req)
	if result.CloseAfter {
		t.Fatal("unexpected close")
	}
	v, err := DecodeV1Response(result.Reply, intType, d.Mappers, d.Compression)
	if err != nil {
		t.Fatal(err)
	}
	if v.Interface().(int) != 8 {
		t.Errorf("got %v, want 8", v.Interface())
	}
}

func TestPeekVersion(t *testing.T) {
	cases := map[string]detectedVersion{
		"V2|0|{{abc}}|[]": versionV2,
		"0|bWV0YQ==|":     versionV1,
		"HelloWorldResource/helloWorld()": versionV1Legacy,
	}
	for line, want := range cases {
		if got := peekVersion(line); got != want {
			t.Errorf("peekVersion(%q) = %v, want %v", line, got, want)
		}
	}
}
