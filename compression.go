package tcprest

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"io"
)

// CompressionConfig controls the gzip envelope.
type CompressionConfig struct {
	Enabled        bool
	ThresholdBytes int
	// Level is the gzip level, 0..9. Nil selects the gzip default; an
	// explicit 0 means stored (uncompressed) gzip framing, a distinct
	// configuration from leaving the field unset. See GzipLevel.
	Level                *int
	MaxDecompressedBytes int // 0 disables the limit
}

// GzipLevel is a convenience for building a CompressionConfig literal with
// an explicit compression level.
func GzipLevel(level int) *int { return &level }

const (
	envelopeRaw     = "0|"
	envelopeGzipped = "1|"

	// compressionEffectivenessGate: skip compression unless the gzipped
	// form is smaller than this fraction of the input.
	compressionEffectivenessGate = 0.90
)

// encodeEnvelope applies cfg's compression policy to payload and returns
// the prefixed wire form.
func encodeEnvelope(payload []byte, cfg CompressionConfig) (string, error) {
	if !cfg.Enabled || len(payload) < cfg.ThresholdBytes {
		return envelopeRaw + string(payload), nil
	}
	var buf bytes.Buffer
	level := gzip.DefaultCompression
	if cfg.Level != nil {
		level = *cfg.Level
	}
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return "", ServerErrorFrom("", err)
	}
	if _, err := w.Write(payload); err != nil {
		return "", ServerErrorFrom("", err)
	}
	if err := w.Close(); err != nil {
		return "", ServerErrorFrom("", err)
	}
	if float64(buf.Len()) >= compressionEffectivenessGate*float64(len(payload)) {
		return envelopeRaw + string(payload), nil
	}
	return envelopeGzipped + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decodeEnvelope inverts encodeEnvelope. An unrecognized prefix is treated
// as legacy raw payload for backward compatibility.
func decodeEnvelope(wire string, cfg CompressionConfig) ([]byte, error) {
	switch {
	case len(wire) >= 2 && wire[:2] == envelopeGzipped:
		compressed, err := base64.StdEncoding.DecodeString(wire[2:])
		if err != nil {
			return nil, ProtocolErrorf("bad gzip envelope base64: %v", err)
		}
		r, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, ProtocolErrorf("bad gzip stream: %v", err)
		}
		defer r.Close()
		if cfg.MaxDecompressedBytes > 0 {
			limited := io.LimitReader(r, int64(cfg.MaxDecompressedBytes)+1)
			data, err := io.ReadAll(limited)
			if err != nil {
				return nil, ServerErrorFrom("", err)
			}
			if len(data) > cfg.MaxDecompressedBytes {
				return nil, SecurityErrorf("DECOMPRESSED_SIZE_EXCEEDED")
			}
			return data, nil
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, ServerErrorFrom("", err)
		}
		return data, nil
	case len(wire) >= 2 && wire[:2] == envelopeRaw:
		return []byte(wire[2:]), nil
	default:
		// legacy: no recognized prefix, treat the whole thing as raw.
		return []byte(wire), nil
	}
}
