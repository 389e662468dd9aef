package tcprest

import "reflect"

// EncodeV1Response renders a V1 reply line. V1 has no structured exception
// envelope: on success it is just the
// compression-enveloped, mapped return value text; on failure the server
// writes a best-effort diagnostic line and the dispatcher closes the
// connection rather than attempting a further exchange.
func EncodeV1Response(outcome InvocationOutcome, mappers *MapperRegistry, compCfg CompressionConfig) (line string, closeAfter bool, err error) {
	if outcome.Err != nil {
		return "ERROR: " + outcome.Err.Error(), true, nil
	}
	var text string
	if !outcome.Value.IsValid() || isNilValue(outcome.Value) {
		// V1 spells null "NULL" on the wire, not V2's "~"
		// marker that mappers.ResolveForEncode's nullMapper produces.
		text = nullMarkerV1
	} else {
		mapper, mapErr := mappers.ResolveForEncode(outcome.Value)
		if mapErr != nil {
			return "ERROR: " + mapErr.Error(), true, nil
		}
		text, err = mapper.Encode(outcome.Value)
		if err != nil {
			return "ERROR: " + err.Error(), true, nil
		}
	}
	envelope, err := encodeEnvelope([]byte(text), compCfg)
	if err != nil {
		return "", false, err
	}
	return envelope, false, nil
}

// DecodeV1Response is the client-side inverse. Per the documented V1
// decoding caveat, the compression envelope must be stripped
// before the value text reaches the mapper; doing it in the opposite order
// is the historical bug this engine does not reproduce.
func DecodeV1Response(line string, resultType reflect.Type, mappers *MapperRegistry, compCfg CompressionConfig) (reflect.Value, error) {
	payload, err := decodeEnvelope(line, compCfg)
	if err != nil {
		return reflect.Value{}, err
	}
	text := string(payload)
	if resultType == nil {
		return reflect.Value{}, nil
	}
	if text == nullMarkerV1 {
		return reflect.Zero(resultType), nil
	}
	return mappers.ResolveForDecode(resultType).Decode(text, resultType)
}
