package tcprest

import (
	"reflect"
	"testing"
)

func TestParseV1RequestStandardRoundTrip(t *testing.T) {
	registry := NewResourceRegistry(false)
	if err := registry.AddResource(demoResource{}); err != nil {
		t.Fatal(err)
	}
	mappers := NewMapperRegistry()
	frame, err := EncodeV1Request(demoClassName(), "Add",
		[]reflect.Value{reflect.ValueOf(5), reflect.ValueOf(3)}, mappers)
	if err != nil {
		t.Fatal(err)
	}
	ctx, err := ParseV1Request(frame, registry, mappers, SecurityConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if ctx.Method.Method.Name != "Add" {
		t.Errorf("got method %s", ctx.Method.Method.Name)
	}
	if len(ctx.Params) != 2 {
		t.Fatalf("got %d params", len(ctx.Params))
	}
	if ctx.Params[0].Interface().(int) != 5 || ctx.Params[1].Interface().(int) != 3 {
		t.Errorf("got params %v", ctx.Params)
	}
	if ctx.ProtocolVersion != "V1" {
		t.Errorf("got protocol version %q", ctx.ProtocolVersion)
	}
}

func TestParseV1RequestLegacyBareForm(t *testing.T) {
	registry := NewResourceRegistry(false)
	if err := registry.AddResource(demoResource{}); err != nil {
		t.Fatal(err)
	}
	mappers := NewMapperRegistry()
	frame := demoClassName() + "/Echo()"
	_, err := ParseV1Request(frame, registry, mappers, SecurityConfig{})
	if err == nil {
		t.Fatal("expected arity mismatch since Echo takes a string argument")
	}
}

func TestParseV1RequestArityMismatch(t *testing.T) {
	registry := NewResourceRegistry(false)
	if err := registry.AddResource(demoResource{}); err != nil {
		t.Fatal(err)
	}
	mappers := NewMapperRegistry()
	frame, err := EncodeV1Request(demoClassName(), "Add",
		[]reflect.Value{reflect.ValueOf(5)}, mappers)
	if err != nil {
		t.Fatal(err)
	}
	_, err = ParseV1Request(frame, registry, mappers, SecurityConfig{})
	if err == nil {
		t.Fatal("expected arity mismatch error")
	}
	if AsRemoteError(err).Kind != KindProtocol {
		t.Errorf("got kind %v", AsRemoteError(err).Kind)
	}
}

func TestParseV1RequestMalformedMetaIsProtocolError(t *testing.T) {
	registry := NewResourceRegistry(false)
	mappers := NewMapperRegistry()
	_, err := ParseV1Request("0|"+stdB64Encode([]byte("no-slash-here"))+"|", registry, mappers, SecurityConfig{})
	if err == nil {
		t.Fatal("expected protocol error for missing class/method separator")
	}
	if AsRemoteError(err).Kind != KindProtocol {
		t.Errorf("got kind %v", AsRemoteError(err).Kind)
	}
}

func TestParseV1RequestUnknownClassIsError(t *testing.T) {
	registry := NewResourceRegistry(false)
	mappers := NewMapperRegistry()
	frame, err := EncodeV1Request("NoSuchResource", "DoIt", nil, mappers)
	if err != nil {
		t.Fatal(err)
	}
	_, err = ParseV1Request(frame, registry, mappers, SecurityConfig{})
	if err == nil {
		t.Fatal("expected error for unresolved class")
	}
}
