package tcprest

import (
	"encoding/base64"
	"reflect"
	"strings"
)

const v1Prefix = "0|"
const v1ParamSep = ":::"

// ParseV1Request turns a V1 frame (post-trailer-stripping) into an
// InvocationContext. V1 has no overload support: method
// resolution picks reflection's first name match, a documented, preserved
// bug. secCfg supplies the class whitelist, enforced between the
// class-name and method-name validity checks.
func ParseV1Request(frame string, registry *ResourceRegistry, mappers *MapperRegistry, secCfg SecurityConfig) (InvocationContext, error) {
	if strings.HasPrefix(frame, v1Prefix) {
		return parseV1Standard(frame[len(v1Prefix):], registry, mappers, secCfg)
	}
	return parseV1Legacy(frame, registry, mappers, secCfg)
}

func parseV1Standard(content string, registry *ResourceRegistry, mappers *MapperRegistry, secCfg SecurityConfig) (InvocationContext, error) {
	parts := strings.SplitN(content, "|", 3)
	if len(parts) < 2 {
		return InvocationContext{}, ProtocolErrorf("malformed V1 request: expected meta|params")
	}
	metaBytes, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return InvocationContext{}, ProtocolErrorf("malformed V1 metadata base64: %v", err)
	}
	className, methodName, err := parseV1Meta(string(metaBytes))
	if err != nil {
		return InvocationContext{}, err
	}

	paramTexts, err := decodeV1Params(parts[1])
	if err != nil {
		return InvocationContext{}, err
	}

	return resolveV1Invocation(className, methodName, paramTexts, registry, mappers, secCfg)
}

// parseV1Legacy handles the bare "Class/method(...)" backward-compat form
//, treated as a zero-argument call.
func parseV1Legacy(frame string, registry *ResourceRegistry, mappers *MapperRegistry, secCfg SecurityConfig) (InvocationContext, error) {
	className, methodName, err := parseV1Meta(frame)
	if err != nil {
		return InvocationContext{}, err
	}
	return resolveV1Invocation(className, methodName, nil, registry, mappers, secCfg)
}

func parseV1Meta(meta string) (className, methodName string, err error) {
	slash := strings.LastIndexByte(meta, '/')
	if slash < 0 {
		return "", "", ProtocolErrorf("malformed V1 metadata %q", meta)
	}
	className = meta[:slash]
	methodName = meta[slash+1:]
	if paren := strings.IndexByte(methodName, '('); paren >= 0 {
		methodName = methodName[:paren]
	}
	return
}

// decodeV1Params decodes PARAMS_B64 into the ordered list of raw parameter
// texts: the outer base64 blob is a ":::"-separated sequence of
// "{{base64-payload}}" tokens.
func decodeV1Params(paramsB64 string) ([]string, error) {
	if paramsB64 == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(paramsB64)
	if err != nil {
		return nil, ProtocolErrorf("malformed V1 params base64: %v", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	tokens := strings.Split(string(raw), v1ParamSep)
	texts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		inner, err := unwrapBraces(tok)
		if err != nil {
			return nil, err
		}
		payload, err := base64.StdEncoding.DecodeString(inner)
		if err != nil {
			return nil, ProtocolErrorf("malformed V1 param payload base64: %v", err)
		}
		texts = append(texts, string(payload))
	}
	return texts, nil
}

func resolveV1Invocation(className, methodName string, paramTexts []string, registry *ResourceRegistry, mappers *MapperRegistry, secCfg SecurityConfig) (InvocationContext, error) {
	if !isValidClassName(className) {
		return InvocationContext{}, SecurityErrorf("invalid class name %q", className)
	}
	if !secCfg.classAllowed(className) {
		return InvocationContext{}, SecurityErrorf("class %q is not whitelisted", className)
	}
	if !isValidMethodName(methodName) {
		return InvocationContext{}, SecurityErrorf("invalid method name %q", methodName)
	}

	class, instance, hasInstance, err := registry.Resolve(className)
	if err != nil {
		return InvocationContext{}, err
	}
	lookupType := class
	if hasInstance {
		lookupType = instance.Type()
	} else {
		lookupType = reflect.PtrTo(class)
	}
	method, err := findMethodV1(lookupType, methodName)
	if err != nil {
		return InvocationContext{}, err
	}
	if len(paramTexts) != len(method.ParamTypes) {
		return InvocationContext{}, ProtocolErrorf("arity mismatch: %d params supplied, method takes %d", len(paramTexts), len(method.ParamTypes))
	}

	params := make([]reflect.Value, len(paramTexts))
	for i, text := range paramTexts {
		t := method.ParamTypes[i]
		if text == nullMarkerV1 {
			params[i] = reflect.Zero(t)
			continue
		}
		v, err := mappers.ResolveForDecode(t).Decode(text, t)
		if err != nil {
			return InvocationContext{}, err
		}
		params[i] = v
	}

	return InvocationContext{
		Class:           class,
		Instance:        instance,
		HasInstance:     hasInstance,
		Method:          method,
		Params:          params,
		ProtocolVersion: "V1",
	}, nil
}
