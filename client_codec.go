package tcprest

import (
	"encoding/base64"
	"reflect"
	"strings"
)

// EncodeV2Request builds a complete V2 request frame for className/methodName
// taking paramValues (already typed reflect.Values matching paramTypes),
// including any CHK/SIG trailers secCfg requires. This is the client-side
// counterpart used by Client and by the demo CLI client.
func EncodeV2Request(className, methodName string, paramTypes []reflect.Type, paramValues []reflect.Value, mappers *MapperRegistry, compCfg CompressionConfig, secCfg SecurityConfig) (string, error) {
	descriptor := methodDescriptor(paramTypes)
	meta := formatMeta(className, methodName, descriptor)
	metaToken := "{{" + componentEncode([]byte(meta)) + "}}"

	elems := make([]string, len(paramValues))
	for i, v := range paramValues {
		elem, err := encodeV2Elem(v, mappers)
		if err != nil {
			return "", err
		}
		elems[i] = elem
	}
	array := "[" + strings.Join(elems, ",") + "]"

	plaintext := metaToken + "|" + array
	envelope, err := encodeEnvelope([]byte(plaintext), compCfg)
	if err != nil {
		return "", err
	}
	content := []byte(v2Prefix + envelope)

	chk := checksum(content, secCfg)
	signed := signedPayload(content, chk)
	sig, err := signature(signed, secCfg)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Write(content)
	if chk != "" {
		b.WriteByte('|')
		b.WriteString(chk)
	}
	if sig != "" {
		b.WriteByte('|')
		b.WriteString(sig)
	}
	return b.String(), nil
}

func encodeV2Elem(v reflect.Value, mappers *MapperRegistry) (string, error) {
	if !v.IsValid() || isNilValue(v) {
		return nullMarkerV2, nil
	}
	mapper, err := mappers.ResolveForEncode(v)
	if err != nil {
		return "", err
	}
	text, err := mapper.Encode(v)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", nil
	}
	return encodeElem(text), nil
}

// EncodeV1Request builds a legacy V1 request frame: meta and
// the ":::"-joined "{{base64}}" parameter tokens are both standard-base64,
// matching the server's decodeV1Params.
func EncodeV1Request(className, methodName string, paramValues []reflect.Value, mappers *MapperRegistry) (string, error) {
	meta := className + "/" + methodName
	metaB64 := stdB64Encode([]byte(meta))

	tokens := make([]string, len(paramValues))
	for i, v := range paramValues {
		text, err := encodeV1Param(v, mappers)
		if err != nil {
			return "", err
		}
		tokens[i] = "{{" + stdB64Encode([]byte(text)) + "}}"
	}
	paramsB64 := stdB64Encode([]byte(strings.Join(tokens, v1ParamSep)))

	return v1Prefix + metaB64 + "|" + paramsB64, nil
}

func encodeV1Param(v reflect.Value, mappers *MapperRegistry) (string, error) {
	if !v.IsValid() || isNilValue(v) {
		return nullMarkerV1, nil
	}
	mapper, err := mappers.ResolveForEncode(v)
	if err != nil {
		return "", err
	}
	return mapper.Encode(v)
}

func stdB64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
