package tcprest

import (
	"strings"

	uuid "github.com/satori/go.uuid"
)

// ProtocolMode restricts which frame versions a Server accepts.
type ProtocolMode int

const (
	ProtocolAuto ProtocolMode = iota
	ProtocolV1Only
	ProtocolV2Only
)

// detectedVersion is the result of peeking a line's prefix before any
// security or parsing work happens.
type detectedVersion int

const (
	versionV2 detectedVersion = iota
	versionV1
	versionV1Legacy
)

// peekVersion classifies a raw line: "V2|" is V2; "0|" or a
// bare decimal compression flag is V1; anything else is treated as legacy
// no-compression V1 (a bare "Class/method(...)" call).
func peekVersion(line string) detectedVersion {
	switch {
	case strings.HasPrefix(line, v2Prefix):
		return versionV2
	case strings.HasPrefix(line, v1Prefix):
		return versionV1
	case len(line) > 0 && (line[0] == '0' || line[0] == '1') && strings.IndexByte(line, '|') == 1:
		return versionV1
	default:
		return versionV1Legacy
	}
}

// Dispatcher owns one server's registries and configuration, and turns one
// inbound line into one outbound reply line. It is stateless
// beyond its configuration and is safe for concurrent use by multiple
// connection-handling goroutines.
type Dispatcher struct {
	Registry    *ResourceRegistry
	Mappers     *MapperRegistry
	Compression CompressionConfig
	Security    SecurityConfig
	Mode        ProtocolMode
}

// NewDispatcher builds a Dispatcher with a fresh mapper registry and the
// given resource registry; compression and security default to disabled.
func NewDispatcher(registry *ResourceRegistry) *Dispatcher {
	return &Dispatcher{
		Registry: registry,
		Mappers:  NewMapperRegistry(),
	}
}

// DispatchResult is what HandleLine produces: the reply text to write (may
// be empty, meaning write nothing) and whether the caller should close the
// connection afterward.
type DispatchResult struct {
	Reply      string
	CloseAfter bool
}

// HandleLine is the dispatcher's single entry point: strip CRLF, peek the
// version, enforce protocol mode, parse, invoke, encode. Any
// panic surfaced from this package's own bugs is deliberately not recovered
// here; invoker.Invoke already isolates resource-method panics.
func (d *Dispatcher) HandleLine(line string) DispatchResult {
	line = strings.TrimRight(line, "\r\n")
	correlationID := uuid.NewV4().String()

	version := peekVersion(line)
	if !d.modeAllows(version) {
		return d.rejectedByMode(version, correlationID)
	}

	switch version {
	case versionV2:
		return d.handleV2(line, correlationID)
	default:
		return d.handleV1(line, correlationID)
	}
}

func (d *Dispatcher) modeAllows(version detectedVersion) bool {
	switch d.Mode {
	case ProtocolV1Only:
		return version != versionV2
	case ProtocolV2Only:
		return version == versionV2
	default:
		return true
	}
}

func (d *Dispatcher) rejectedByMode(version detectedVersion, correlationID string) DispatchResult {
	err := ProtocolErrorf("protocol version not permitted by server configuration")
	log.Warning("[" + correlationID + "] " + err.Error())
	if d.Mode == ProtocolV1Only {
		return DispatchResult{Reply: "ERROR: " + err.Error(), CloseAfter: true}
	}
	reply, encErr := EncodeV2Response(InvocationOutcome{Err: err}, d.Mappers, d.Compression, d.Security)
	if encErr != nil {
		return DispatchResult{Reply: "", CloseAfter: true}
	}
	return DispatchResult{Reply: reply, CloseAfter: false}
}

func (d *Dispatcher) handleV2(line, correlationID string) DispatchResult {
	content, chkSegment, sigSegment := splitTrailing(line)
	if !verifyChecksumLenient([]byte(content), chkSegment, d.Security) {
		err := SecurityErrorf("checksum mismatch")
		logSecurityFailure(correlationID, err)
		return d.replyV2Error(err, correlationID)
	}
	if err := verifySignatureSegment(signedPayload([]byte(content), chkSegment), sigSegment, d.Security); err != nil {
		logSecurityFailure(correlationID, err)
		return d.replyV2Error(err, correlationID)
	}

	ctx, err := ParseV2Request(content, d.Registry, d.Mappers, d.Compression, d.Security)
	if err != nil {
		if AsRemoteError(err).Kind == KindSecurity {
			logSecurityFailure(correlationID, err)
		} else {
			log.Info("[" + correlationID + "] parse failed: " + err.Error())
		}
		return d.replyV2Error(err, correlationID)
	}

	outcome := Invoke(ctx)
	if outcome.Err != nil {
		log.Debug("[" + correlationID + "] invocation failed: " + outcome.Err.Error())
	}
	return d.replyV2(outcome, correlationID)
}

func (d *Dispatcher) replyV2(outcome InvocationOutcome, correlationID string) DispatchResult {
	reply, err := EncodeV2Response(outcome, d.Mappers, d.Compression, d.Security)
	if err != nil {
		log.Error("[" + correlationID + "] failed to encode response: " + err.Error())
		return DispatchResult{Reply: "", CloseAfter: true}
	}
	return DispatchResult{Reply: reply, CloseAfter: false}
}

func (d *Dispatcher) replyV2Error(err error, correlationID string) DispatchResult {
	return d.replyV2(InvocationOutcome{Err: AsRemoteError(err)}, correlationID)
}

// logSecurityFailure logs a SECURITY-kind failure alongside a short,
// non-secret base62 audit token so an operator can grep for the token
// across logs that may span multiple processes, without the full request
// line (which may itself be the thing under suspicion) in view.
func logSecurityFailure(correlationID string, err error) {
	token, tokErr := shortAuditToken()
	if tokErr != nil {
		token = "-"
	}
	log.Warning("[" + correlationID + "] audit=" + token + " " + err.Error())
}

func (d *Dispatcher) handleV1(line, correlationID string) DispatchResult {
	content, chkSegment, sigSegment := splitTrailing(line)
	if !verifyChecksumLenient([]byte(content), chkSegment, d.Security) {
		err := SecurityErrorf("checksum mismatch")
		logSecurityFailure(correlationID, err)
		return DispatchResult{Reply: "ERROR: " + err.Error(), CloseAfter: true}
	}
	if err := verifySignatureSegment(signedPayload([]byte(content), chkSegment), sigSegment, d.Security); err != nil {
		logSecurityFailure(correlationID, err)
		return DispatchResult{Reply: "ERROR: " + err.Error(), CloseAfter: true}
	}

	ctx, err := ParseV1Request(content, d.Registry, d.Mappers, d.Security)
	if err != nil {
		// V1 parser/validator failures close the connection after logging
		//: no structured status exists on this path.
		if AsRemoteError(err).Kind == KindSecurity {
			logSecurityFailure(correlationID, err)
		} else {
			log.Info("[" + correlationID + "] V1 parse failed: " + err.Error())
		}
		return DispatchResult{Reply: "ERROR: " + err.Error(), CloseAfter: true}
	}

	outcome := Invoke(ctx)
	if outcome.Err != nil {
		log.Debug("[" + correlationID + "] V1 invocation failed: " + outcome.Err.Error())
	}
	reply, closeAfter, err := EncodeV1Response(outcome, d.Mappers, d.Compression)
	if err != nil {
		log.Error("[" + correlationID + "] failed to encode V1 response: " + err.Error())
		return DispatchResult{Reply: "", CloseAfter: true}
	}
	return DispatchResult{Reply: reply, CloseAfter: closeAfter}
}
