package observe

import (
	"encoding/json"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
)

const (
	_sentryMaxErrorDepth        = 9
	_sentryFlushTimeout         = 5 * time.Second
	_sentryServerRequestTimeout = 5 * time.Second
	_logTimeLayout              = "2006-01-02T15-04-05.000"
)

// SentryHook is an io.Writer meant to sit next to the log output. It reads the JSON
// log lines and forwards error, panic and fatal entries to Sentry as events.
type SentryHook struct {
	appEnv  string
	appName string
	capture func(*sentry.Event)
}

// NewSentryHook initializes the Sentry client for dsn.
func NewSentryHook(appEnv, appName, dsn string, debug bool) (*SentryHook, error) {
	if dsn == "" {
		return nil, errors.New("sentry: empty DSN")
	}

	transport := sentry.NewHTTPTransport()
	transport.Timeout = _sentryServerRequestTimeout
	err := sentry.Init(sentry.ClientOptions{
		AttachStacktrace: true,
		Debug:            debug,
		Dsn:              dsn,
		Environment:      appEnv,
		MaxErrorDepth:    _sentryMaxErrorDepth,
		ServerName:       appName,
		Transport:        transport,
	})
	if err != nil {
		return nil, errors.Wrap(err, "sentry init")
	}

	return &SentryHook{
		appEnv:  appEnv,
		appName: appName,
		capture: func(e *sentry.Event) { sentry.CaptureEvent(e) },
	}, nil
}

// Flush waits for buffered events to be delivered.
func (h *SentryHook) Flush() bool {
	return sentry.Flush(_sentryFlushTimeout)
}

func (*SentryHook) mapLevel(zl zapcore.Level) sentry.Level {
	switch zl {
	case zapcore.InfoLevel:
		return sentry.LevelInfo
	case zapcore.WarnLevel:
		return sentry.LevelWarning
	case zapcore.ErrorLevel:
		return sentry.LevelError
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return sentry.LevelFatal
	default:
		return sentry.LevelDebug
	}
}

type logLine struct {
	Level      string `json:"level"`
	Message    string `json:"msg"`
	Error      string `json:"error"`
	CallerFile string `json:"caller_file"`
	CallerLine int    `json:"caller_line"`
	CallerFunc string `json:"caller_func"`
	Stack      string `json:"stack"`
	Timestamp  string `json:"timestamp"`
}

// Write never fails so a Sentry problem cannot break regular logging.
func (h *SentryHook) Write(p []byte) (int, error) {
	var line logLine
	if err := json.Unmarshal(p, &line); err != nil {
		return len(p), nil
	}

	level, err := zapcore.ParseLevel(line.Level)
	if err != nil || line.Message == "" || level < zapcore.ErrorLevel {
		return len(p), nil
	}

	h.capture(h.toEvent(level, line))
	return len(p), nil
}

func (h *SentryHook) toEvent(level zapcore.Level, line logLine) *sentry.Event {
	event := sentry.NewEvent()
	event.Environment = h.appEnv
	event.Level = h.mapLevel(level)
	event.Message = line.Message
	if ts, err := time.Parse(_logTimeLayout, line.Timestamp); err == nil {
		event.Timestamp = ts
	}
	event.Extra["AppName"] = h.appName
	event.Extra["Error"] = line.Error
	event.Extra["CallerFile"] = line.CallerFile
	event.Extra["CallerLine"] = line.CallerLine
	event.Extra["CallerFunc"] = line.CallerFunc
	event.Extra["Stack"] = line.Stack
	event.Exception = append(event.Exception, sentry.Exception{
		Type:  line.Message,
		Value: line.Error,
	})
	return event
}
