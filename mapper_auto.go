package tcprest

import (
	"bytes"
	"encoding/base64"
	"encoding/gob"
	"reflect"
	"sync"
)

// alwaysDeniedOpaqueTypes is this engine's rendition of the deserialization deny-list
// (ProcessBuilder, Runtime, javax.management., ...) translated to the
// closest Go analogs: types that could let a deserialized payload reach a
// process-control or unsafe-memory surface. These are rejected even if a
// caller mistakenly registers them with RegisterOpaqueType.
var alwaysDeniedOpaqueTypes = map[string]bool{
	"os.exec.Cmd":    true,
	"os.Process":     true,
	"reflect.Value":  true,
	"unsafe.Pointer": true,
	"plugin.Plugin":  true,
}

var (
	opaqueMu      sync.RWMutex
	opaqueAllowed = map[string]bool{}
)

// RegisterOpaqueType allow-lists typ for opaque auto-serialization and
// registers its concrete Go type with encoding/gob. Go has no deny-list
// equivalent to police arbitrary byte streams the way the JVM's
// ObjectInputStream needs to, so the closed allow-list here is strictly
// stronger than the policy it replaces.
func RegisterOpaqueType(sample interface{}) {
	t := reflect.TypeOf(sample)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	name := canonicalTypeName(t)
	opaqueMu.Lock()
	opaqueAllowed[name] = true
	opaqueMu.Unlock()
	gob.Register(sample)
}

func isOpaqueTypeAllowed(name string) bool {
	if alwaysDeniedOpaqueTypes[name] {
		return false
	}
	opaqueMu.RLock()
	defer opaqueMu.RUnlock()
	return opaqueAllowed[name]
}

// autoSerializerMapper is the generic mapper used for opaque,
// serialization-capable types when no specific mapper is registered. Wire
// form: gob-encoded bytes, base64'd.
type autoSerializerMapper struct{ registry *MapperRegistry }

func (m autoSerializerMapper) Encode(v reflect.Value) (string, error) {
	if isNilValue(v) {
		return nullMarkerV2, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v.Interface()); err != nil {
		return "", ServerErrorFrom("", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (m autoSerializerMapper) Decode(text string, t reflect.Type) (reflect.Value, error) {
	if text == nullMarkerV2 || text == "" {
		return reflect.Zero(t), nil
	}
	name := canonicalTypeName(t)
	if !isOpaqueTypeAllowed(name) {
		return reflect.Value{}, SecurityErrorf("opaque type %q is not allow-listed for deserialization", name)
	}
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return reflect.Value{}, ProtocolErrorf("bad opaque payload: %v", err)
	}
	ptr := reflect.New(t)
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(ptr.Interface()); err != nil {
		return reflect.Value{}, ServerErrorFrom(name, err)
	}
	return ptr.Elem(), nil
}
