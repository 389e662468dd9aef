package tcprest

import (
	stdlog "log"
	"log/syslog"
	"os"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("tcprest")

var stderrFormat = logging.MustStringFormatter(
	`%{color}tcprest ▶ %{time:15:04:05.000} %{level:.6s} ▶ %{message}%{color:reset}`,
)

var syslogFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.6s} ▶ %{message}`,
)

var logLevelNames = map[string]logging.Level{
	"CRITICAL": logging.CRITICAL,
	"ERROR":    logging.ERROR,
	"WARNING":  logging.WARNING,
	"NOTICE":   logging.NOTICE,
	"INFO":     logging.INFO,
	"DEBUG":    logging.DEBUG,
}

// SetupLogging installs the engine's leveled logging backend: stderr by
// default, syslog when requested and available (the long-running daemon
// case). The active level comes from TCPREST_LOG_LEVEL when it names a
// known level, else defaultLevel.
func SetupLogging(prefix string, defaultLevel logging.Level, trySyslog bool) *logging.Logger {
	var backend logging.Backend = logging.NewLogBackend(os.Stderr, prefix, 0)
	format := stderrFormat
	if trySyslog {
		if sb, ok := newSyslogBackend(prefix); ok {
			backend, format = sb, syslogFormat
		}
	}
	logging.SetFormatter(format)

	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(resolveLogLevel(os.Getenv("TCPREST_LOG_LEVEL"), defaultLevel), "")
	logging.SetBackend(leveled)
	return log
}

// newSyslogBackend reports ok=false when no syslog daemon is reachable, in
// which case the caller keeps the stderr backend. Panic output from the
// stdlib logger is redirected to syslog too, so a crashing daemon still
// leaves a trace.
func newSyslogBackend(prefix string) (logging.Backend, bool) {
	sb, err := logging.NewSyslogBackendPriority(prefix, syslog.LOG_NOTICE)
	if err != nil {
		return nil, false
	}
	stdlog.SetOutput(sb.Writer)
	return sb, true
}

func resolveLogLevel(name string, fallback logging.Level) logging.Level {
	if lvl, ok := logLevelNames[name]; ok {
		return lvl
	}
	return fallback
}
