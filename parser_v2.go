package tcprest

import (
	"reflect"
	"strings"
)

const v2Prefix = "V2|"

// parseV2Envelope strips the "V2|" prefix and the compression envelope,
// returning the plaintext "{{META_B64}}|ARRAY" (request) or
// "STATUS|{{body}}" (response) payload.
func parseV2Envelope(frame string, cfg CompressionConfig) (string, error) {
	if !strings.HasPrefix(frame, v2Prefix) {
		return "", ProtocolErrorf("not a V2 frame")
	}
	plaintext, err := decodeEnvelope(frame[len(v2Prefix):], cfg)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func unwrapBraces(s string) (string, error) {
	if !strings.HasPrefix(s, "{{") || !strings.HasSuffix(s, "}}") || len(s) < 4 {
		return "", ProtocolErrorf("expected {{...}} token, got %q", s)
	}
	return s[2 : len(s)-2], nil
}

// ParseV2Request turns V2 frame content (post-trailer-stripping,
// pre-envelope) into an InvocationContext. secCfg supplies the
// class whitelist, enforced between the class-name and method-name checks.
func ParseV2Request(frame string, registry *ResourceRegistry, mappers *MapperRegistry, cfg CompressionConfig, secCfg SecurityConfig) (InvocationContext, error) {
	plaintext, err := parseV2Envelope(frame, cfg)
	if err != nil {
		return InvocationContext{}, err
	}

	idx := strings.IndexByte(plaintext, '|')
	if idx < 0 {
		return InvocationContext{}, ProtocolErrorf("malformed V2 request: missing meta/array separator")
	}
	metaWrapped, arrayStr := plaintext[:idx], plaintext[idx+1:]

	metaToken, err := unwrapBraces(metaWrapped)
	if err != nil {
		return InvocationContext{}, err
	}
	metaText, err := elemTokenToText(metaToken)
	if err != nil {
		return InvocationContext{}, err
	}
	className, methodName, descriptor, err := parseMeta(metaText)
	if err != nil {
		return InvocationContext{}, err
	}

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
	method, err := findMethodV2(lookupType, methodName, descriptor)
	if err != nil {
		return InvocationContext{}, err
	}

	arity, err := parseDescriptorArity(descriptor)
	if err != nil {
		return InvocationContext{}, err
	}
	elems, err := parseArrayElems(arrayStr, arity)
	if err != nil {
		return InvocationContext{}, err
	}
	if len(elems) != len(method.ParamTypes) {
		return InvocationContext{}, ProtocolErrorf("arity mismatch: %d params supplied, method takes %d", len(elems), len(method.ParamTypes))
	}

	params := make([]reflect.Value, len(elems))
	for i, elem := range elems {
		v, err := decodeElem(elem, method.ParamTypes[i], mappers)
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
		ProtocolVersion: "V2",
	}, nil
}

// parseMeta splits "<class>/<method><descriptor>" (descriptor optional,
// defaulting to "()" i.e. zero-arity when absent, as V1 metadata does).
// Class names never contain '/', so the first '/' is the separator; any
// later one belongs to an "L...;" type inside the descriptor.
func parseMeta(meta string) (className, methodName, descriptor string, err error) {
	slash := strings.IndexByte(meta, '/')
	if slash < 0 {
		return "", "", "", ProtocolErrorf("malformed metadata %q", meta)
	}
	className = meta[:slash]
	rest := meta[slash+1:]
	paren := strings.IndexByte(rest, '(')
	if paren < 0 {
		methodName = strings.TrimSuffix(rest, "()")
		descriptor = "()"
		return
	}
	methodName = rest[:paren]
	descriptor = rest[paren:]
	return
}

// parseArrayElems splits "[e1,e2,...]" into its ELEM tokens, resolving the
// "[]" empty-array-vs-one-empty-param ambiguity: "[]" means
// zero params when arity is zero, one empty-string param when arity is
// exactly one, and is a protocol error for any other arity.
func parseArrayElems(arrayStr string, arity int) ([]string, error) {
	if !strings.HasPrefix(arrayStr, "[") || !strings.HasSuffix(arrayStr, "]") {
		return nil, ProtocolErrorf("malformed parameter array %q", arrayStr)
	}
	inner := arrayStr[1 : len(arrayStr)-1]
	if inner == "" {
		switch arity {
		case 0:
			return []string{}, nil
		case 1:
			return []string{""}, nil
		default:
			return nil, ProtocolErrorf("empty parameter array but method arity is %d", arity)
		}
	}
	parts := strings.Split(inner, ",")
	if len(parts) != arity {
		return nil, ProtocolErrorf("parameter count %d does not match method arity %d", len(parts), arity)
	}
	return parts, nil
}

// decodeElem turns one ELEM token into a reflect.Value of type t, via the
// mapper registry's decode-time resolution policy.
func decodeElem(elem string, t reflect.Type, mappers *MapperRegistry) (reflect.Value, error) {
	if elem == nullMarkerV2 {
		return reflect.Zero(t), nil
	}
	mapper := mappers.ResolveForDecode(t)
	if elem == "" {
		return mapper.Decode("", t)
	}
	text, err := elemTokenToText(elem)
	if err != nil {
		return reflect.Value{}, err
	}
	return mapper.Decode(text, t)
}

// elemTokenToText decodes one base64 token leniently: URL-safe unpadded is
// the canonical form this engine emits, but tokens from other encoders may
// arrive padded or in the standard alphabet. Shared by ELEM, META, and
// response-body decoding.
func elemTokenToText(token string) (string, error) {
	raw, err := componentDecode(urlSafeToStdPadded(token))
	if err != nil {
		raw2, err2 := stdB64Decode(token)
		if err2 != nil {
			return "", ProtocolErrorf("malformed base64 token %q: %v", token, err)
		}
		return string(raw2), nil
	}
	return string(raw), nil
}

func encodeElem(text string) string {
	return componentEncode([]byte(text))
}
