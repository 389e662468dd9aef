package tcprest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"hash/crc32"
	"regexp"
	"strconv"
	"strings"
)

// ChecksumKind selects the checksum algorithm a SecurityConfig applies to
// every frame.
type ChecksumKind int

const (
	ChecksumNone ChecksumKind = iota
	ChecksumCRC32
	ChecksumHMACSHA256
)

// SecurityConfig is immutable once installed on a server or client.
type SecurityConfig struct {
	Checksum             ChecksumKind
	HMACKey              []byte
	Signing              *SigningConfig
	Whitelist            map[string]bool // nil disables whitelisting
	// MaxDecompressedBytes is carried with the security settings but is not
	// read by the envelope decoder; the decompression limit it applies comes
	// from CompressionConfig.MaxDecompressedBytes alone.
	MaxDecompressedBytes int
}

// SigningConfig names a registered Signer scheme plus the key material it
// signs outgoing frames with and verifies incoming frames against.
type SigningConfig struct {
	Scheme     string
	PrivateKey interface{}
	PublicKey  interface{}
}

func (c SecurityConfig) signingEnabled() bool {
	return c.Signing != nil && c.Signing.Scheme != ""
}

func (c SecurityConfig) checksumEnabled() bool {
	return c.Checksum != ChecksumNone
}

// classAllowed applies the optional class whitelist: a nil whitelist admits
// every class, a non-nil one admits exactly its members.
func (c SecurityConfig) classAllowed(name string) bool {
	if c.Whitelist == nil {
		return true
	}
	return c.Whitelist[name]
}

// componentEncode produces a URL-safe, unpadded base64 token: it never
// contains '|', '/', '+', or '='.
func componentEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// componentDecode is the inverse of componentEncode. Any malformed token
// fails with a SecurityError rather than a generic decode error, since a
// bad token here is presumptively an attempted protocol violation.
func componentDecode(token string) ([]byte, error) {
	if token == "" {
		return nil, SecurityErrorf("empty component token")
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, SecurityErrorf("malformed base64 component: %v", err)
	}
	return data, nil
}

// checksum computes the CHK trailer for payload under cfg, or "" when
// checksumming is disabled.
func checksum(payload []byte, cfg SecurityConfig) string {
	switch cfg.Checksum {
	case ChecksumCRC32:
		// unpadded lowercase hex of the 32-bit value, not a zero-padded
		// 8-char field: CRC(0x0000beef) travels as "beef".
		sum := crc32.ChecksumIEEE(payload)
		return "CHK:" + strconv.FormatUint(uint64(sum), 16)
	case ChecksumHMACSHA256:
		mac := hmac.New(sha256.New, cfg.HMACKey)
		mac.Write(payload)
		return "CHK:" + hex.EncodeToString(mac.Sum(nil))
	default:
		return ""
	}
}

// verifyChecksum reports whether segment (the raw "CHK:<hex>" string, or ""
// if absent) matches the checksum freshly computed over payload.
func verifyChecksum(payload []byte, segment string, cfg SecurityConfig) bool {
	if !cfg.checksumEnabled() {
		return segment == ""
	}
	want := checksum(payload, cfg)
	return hmac.Equal([]byte(want), []byte(segment))
}

// verifyChecksumLenient is the dispatcher-side policy: when the
// server requires a checksum, verification is mandatory; when it doesn't,
// a checksum the client volunteered is still verified rather than ignored.
// Only CRC32 is keyless, so that is the algorithm an unsolicited segment is
// checked against.
func verifyChecksumLenient(payload []byte, segment string, cfg SecurityConfig) bool {
	if cfg.checksumEnabled() || segment == "" {
		return verifyChecksum(payload, segment, cfg)
	}
	return verifyChecksum(payload, segment, SecurityConfig{Checksum: ChecksumCRC32})
}

// signedPayload is the byte sequence a signature actually covers: the
// frame content plus the CHK segment, if present.
func signedPayload(content []byte, chkSegment string) []byte {
	if chkSegment == "" {
		return content
	}
	out := make([]byte, 0, len(content)+1+len(chkSegment))
	out = append(out, content...)
	out = append(out, '|')
	out = append(out, chkSegment...)
	return out
}

// signature produces the SIG trailer for signed, or "" when signing is
// disabled. SIG always covers content+CHK and is always the last segment.
func signature(signed []byte, cfg SecurityConfig) (string, error) {
	if !cfg.signingEnabled() {
		return "", nil
	}
	signer, err := lookupSigner(cfg.Signing.Scheme)
	if err != nil {
		return "", SecurityErrorf("%v", err)
	}
	sig, err := signer.Sign(signed, cfg.Signing.PrivateKey)
	if err != nil {
		return "", SecurityErrorf("signing failed: %v", err)
	}
	return "SIG:" + cfg.Signing.Scheme + ":" + base64.StdEncoding.EncodeToString(sig), nil
}

// verifySignatureSegment fails with a SecurityError if signing is enabled
// and the segment is missing, names an unregistered scheme, or fails
// cryptographic verification. It accepts silently when signing is disabled
// and no segment is present.
func verifySignatureSegment(signed []byte, segment string, cfg SecurityConfig) error {
	if !cfg.signingEnabled() {
		if segment != "" {
			return SecurityErrorf("signature present but signing is not configured")
		}
		return nil
	}
	if segment == "" {
		return SecurityErrorf("missing required signature")
	}
	scheme, sigB64, ok := splitSignatureSegment(segment)
	if !ok {
		return SecurityErrorf("malformed signature segment %q", segment)
	}
	if scheme != cfg.Signing.Scheme {
		return SecurityErrorf("unexpected signature scheme %q", scheme)
	}
	signer, err := lookupSigner(scheme)
	if err != nil {
		return SecurityErrorf("%v", err)
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return SecurityErrorf("malformed signature base64: %v", err)
	}
	ok, err = signer.Verify(signed, sig, cfg.Signing.PublicKey)
	if err != nil {
		return SecurityErrorf("signature verification error: %v", err)
	}
	if !ok {
		return SecurityErrorf("signature verification failed")
	}
	return nil
}

func splitSignatureSegment(segment string) (scheme, sigB64 string, ok bool) {
	if !strings.HasPrefix(segment, "SIG:") {
		return "", "", false
	}
	rest := segment[len("SIG:"):]
	idx := strings.IndexByte(rest, ':')
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// splitTrailing recognises at most one trailing CHK and one SIG segment, in
// that order, and returns the remaining content plus each raw segment
// string ("" if absent). It never misidentifies content as a trailer:
// CHK/SIG are only stripped from the end of the frame.
func splitTrailing(frame string) (content, chkSegment, sigSegment string) {
	content = frame
	if idx := lastPipeSegmentIndex(content, "SIG:"); idx >= 0 {
		sigSegment = content[idx+1:]
		content = content[:idx]
	}
	if idx := lastPipeSegmentIndex(content, "CHK:"); idx >= 0 {
		chkSegment = content[idx+1:]
		content = content[:idx]
	}
	return
}

// lastPipeSegmentIndex returns the index of the '|' preceding a trailing
// "prefix..." segment at the very end of s, or -1 if s doesn't end with a
// pipe-delimited segment carrying that prefix.
func lastPipeSegmentIndex(s, prefix string) int {
	idx := strings.LastIndexByte(s, '|')
	if idx < 0 {
		return -1
	}
	if strings.HasPrefix(s[idx+1:], prefix) {
		return idx
	}
	return -1
}

var classNameRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)
var methodNameRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// isValidClassName restricts to dot-separated identifiers and rejects
// path-traversal or markup-shaped injection attempts even when the text
// arrived via base64.
func isValidClassName(name string) bool {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, "/<>") {
		return false
	}
	return classNameRe.MatchString(name)
}

func isValidMethodName(name string) bool {
	if name == "" {
		return false
	}
	return methodNameRe.MatchString(name)
}
