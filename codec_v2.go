package tcprest

import (
	"reflect"
	"strconv"
	"strings"
)

// v2NullBodyToken is the bare, unwrapped token a V2 success response body
// is written as when the return value is null or the method is void.
// Unlike every other body it is never wrapped in "{{...}}" nor
// base64-encoded.
const v2NullBodyToken = "null"

// EncodeV2Response renders an InvocationOutcome as a complete V2 wire frame,
// including any CHK/SIG trailers cfg's SecurityConfig requires.
func EncodeV2Response(outcome InvocationOutcome, mappers *MapperRegistry, compCfg CompressionConfig, secCfg SecurityConfig) (string, error) {
	status, bodyText, isNull, err := v2ResponseBody(outcome, mappers)
	if err != nil {
		return "", err
	}

	var plaintext string
	if isNull {
		plaintext = strconv.Itoa(int(status)) + "|" + v2NullBodyToken
	} else {
		plaintext = strconv.Itoa(int(status)) + "|{{" + componentEncode([]byte(bodyText)) + "}}"
	}
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

// v2ResponseBody classifies outcome into a status, its body text, and
// whether that body is the bare null literal rather than an encoded value.
func v2ResponseBody(outcome InvocationOutcome, mappers *MapperRegistry) (status StatusCode, bodyText string, isNull bool, err error) {
	if outcome.Err != nil {
		text, encErr := exceptionMapper{}.Encode(reflect.ValueOf(outcome.Err))
		if encErr != nil {
			return 0, "", false, encErr
		}
		return outcome.Err.StatusCode(), text, false, nil
	}
	if !outcome.Value.IsValid() || isNilValue(outcome.Value) {
		return StatusSuccess, "", true, nil
	}
	mapper, err := mappers.ResolveForEncode(outcome.Value)
	if err != nil {
		return 0, "", false, err
	}
	text, err := mapper.Encode(outcome.Value)
	if err != nil {
		return 0, "", false, err
	}
	return StatusSuccess, text, false, nil
}

// DecodeV2Response is the client-side inverse of EncodeV2Response: it
// verifies trailers, unwraps the envelope, and returns either the decoded
// return value (resultType nil for void calls) or a *RemoteError describing
// the remote failure.
func DecodeV2Response(frame string, resultType reflect.Type, mappers *MapperRegistry, compCfg CompressionConfig, secCfg SecurityConfig) (reflect.Value, error) {
	content, chkSegment, sigSegment := splitTrailing(frame)

	if !verifyChecksum([]byte(content), chkSegment, secCfg) {
		return reflect.Value{}, SecurityErrorf("checksum mismatch")
	}
	if err := verifySignatureSegment(signedPayload([]byte(content), chkSegment), sigSegment, secCfg); err != nil {
		return reflect.Value{}, err
	}

	plaintext, err := parseV2Envelope(content, compCfg)
	if err != nil {
		return reflect.Value{}, err
	}

	idx := strings.IndexByte(plaintext, '|')
	if idx < 0 {
		return reflect.Value{}, ProtocolErrorf("malformed V2 response: missing status/body separator")
	}
	statusText, bodyWrapped := plaintext[:idx], plaintext[idx+1:]
	statusNum, err := strconv.Atoi(statusText)
	if err != nil {
		return reflect.Value{}, ProtocolErrorf("malformed V2 response status %q", statusText)
	}
	status := StatusCode(statusNum)

	if status == StatusSuccess && bodyWrapped == v2NullBodyToken {
		if resultType == nil {
			return reflect.Value{}, nil
		}
		return reflect.Zero(resultType), nil
	}

	bodyToken, err := unwrapBraces(bodyWrapped)
	if err != nil {
		return reflect.Value{}, err
	}
	bodyText, err := elemTokenToText(bodyToken)
	if err != nil {
		return reflect.Value{}, err
	}

	if status != StatusSuccess {
		v, decErr := exceptionMapper{}.Decode(bodyText, nil)
		if decErr != nil {
			return reflect.Value{}, decErr
		}
		re := v.Interface().(*RemoteError)
		switch status {
		case StatusBusinessException:
			re.Kind = KindBusiness
		case StatusProtocolError:
			re.Kind = KindProtocol
		default:
			re.Kind = KindServer
		}
		return reflect.Value{}, re
	}

	if resultType == nil {
		return reflect.Value{}, nil
	}
	return mappers.ResolveForDecode(resultType).Decode(bodyText, resultType)
}
