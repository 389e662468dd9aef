package tcprest

import (
	"reflect"
	"testing"
)

func TestEncodeV2ResponseNullValueUsesLiteralToken(t *testing.T) {
	outcome := InvocationOutcome{Value: reflect.ValueOf((*string)(nil))}
	mappers := NewMapperRegistry()
	reply, err := EncodeV2Response(outcome, mappers, CompressionConfig{}, SecurityConfig{})
	if err != nil {
		t.Fatal(err)
	}
	want := "V2|0|0|null"
	if reply != want {
		t.Fatalf("got %q, want %q", reply, want)
	}
}

func TestEncodeV2ResponseVoidUsesLiteralToken(t *testing.T) {
	outcome := InvocationOutcome{} // zero Value: a void method's return
	mappers := NewMapperRegistry()
	reply, err := EncodeV2Response(outcome, mappers, CompressionConfig{}, SecurityConfig{})
	if err != nil {
		t.Fatal(err)
	}
	want := "V2|0|0|null"
	if reply != want {
		t.Fatalf("got %q, want %q", reply, want)
	}
}

func TestDecodeV2ResponseNullLiteralRoundTrips(t *testing.T) {
	mappers := NewMapperRegistry()
	strType := reflect.TypeOf("")
	v, err := DecodeV2Response("V2|0|0|null", strType, mappers, CompressionConfig{}, SecurityConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if v.Interface().(string) != "" {
		t.Errorf("got %q, want zero value", v.Interface())
	}
}

func TestDecodeV2ResponseNullLiteralVoidCall(t *testing.T) {
	mappers := NewMapperRegistry()
	if _, err := DecodeV2Response("V2|0|0|null", nil, mappers, CompressionConfig{}, SecurityConfig{}); err != nil {
		t.Fatal(err)
	}
}

func TestEncodeV2ResponseNonNullStillWrapsBody(t *testing.T) {
	outcome := InvocationOutcome{Value: reflect.ValueOf(8)}
	mappers := NewMapperRegistry()
	reply, err := EncodeV2Response(outcome, mappers, CompressionConfig{}, SecurityConfig{})
	if err != nil {
		t.Fatal(err)
	}
	want := "V2|0|0|{{OA}}"
	if reply != want {
		t.Fatalf("got %q, want %q", reply, want)
	}
}

func TestEncodeV1ResponseNullUsesV1Marker(t *testing.T) {
	outcome := InvocationOutcome{Value: reflect.ValueOf((*string)(nil))}
	mappers := NewMapperRegistry()
	line, closeAfter, err := EncodeV1Response(outcome, mappers, CompressionConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if closeAfter {
		t.Fatal("unexpected close on success")
	}
	want := "0|NULL"
	if line != want {
		t.Fatalf("got %q, want %q", line, want)
	}
	v, err := DecodeV1Response(line, reflect.TypeOf(""), mappers, CompressionConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if v.Interface().(string) != "" {
		t.Errorf("got %q, want zero value", v.Interface())
	}
}
