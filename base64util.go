package tcprest

import (
	"encoding/base64"
	"strings"
)

// urlSafeToStdPadded normalizes a URL-safe base64 token (with or without
// padding) to the form base64.RawURLEncoding understands, i.e. unpadded.
func urlSafeToStdPadded(token string) string {
	return strings.TrimRight(token, "=")
}

// stdB64Decode accepts a standard (possibly '+'/'/'-using, padded) base64
// token, for lenient interop with encoders that didn't use the URL-safe
// alphabet this engine prefers.
func stdB64Decode(token string) ([]byte, error) {
	if m := len(token) % 4; m != 0 {
		token += strings.Repeat("=", 4-m)
	}
	return base64.StdEncoding.DecodeString(token)
}
