package resources

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/rs/zerolog"
	otelog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
)

// ZerologHook copies every zerolog record into an OTel logger, fields
// included. Records keep going to the zerolog writer as well.
type ZerologHook struct {
	logger otelog.Logger
	attrs  []otelog.KeyValue
}

// NewZerologHook bridges into the global logger provider.
func NewZerologHook(serviceName string, serviceVersion string) *ZerologHook {
	return NewZerologHookWith(global.GetLoggerProvider().Logger(serviceName), serviceName, serviceVersion)
}

func NewZerologHookWith(logger otelog.Logger, serviceName string, serviceVersion string) *ZerologHook {
	return &ZerologHook{
		logger: logger,
		attrs: []otelog.KeyValue{
			otelog.String("service.name", serviceName),
			otelog.String("service.version", serviceVersion),
		},
	}
}

func (h *ZerologHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level == zerolog.Disabled || !e.Enabled() {
		return
	}

	b, ok := h.getBuffer(e)
	if !ok {
		return
	}

	var m map[string]any

	err := json.Unmarshal(b, &m)
	if err != nil {
		return
	}

	var rec otelog.Record

	sev, sevText := h.zerologLevelToOTel(level)

	rec.SetTimestamp(h.extractTimestamp(m))
	rec.SetObservedTimestamp(time.Now())
	rec.SetSeverity(sev)
	rec.SetSeverityText(sevText)
	rec.SetBody(otelog.StringValue(msg))

	delete(m, zerolog.TimestampFieldName)
	delete(m, zerolog.LevelFieldName)

	rec.AddAttributes(h.attrs...)
	rec.AddAttributes(h.mapToAttrs(m)...)

	h.logger.Emit(e.GetCtx(), rec)
}

func (h *ZerologHook) zerologLevelToOTel(level zerolog.Level) (otelog.Severity, string) {
	switch level {
	case zerolog.TraceLevel:
		return otelog.SeverityTrace, "TRACE"
	case zerolog.DebugLevel:
		return otelog.SeverityDebug, "DEBUG"
	case zerolog.InfoLevel:
		return otelog.SeverityInfo, "INFO"
	case zerolog.WarnLevel:
		return otelog.SeverityWarn, "WARN"
	case zerolog.ErrorLevel:
		return otelog.SeverityError, "ERROR"
	case zerolog.FatalLevel:
		return otelog.SeverityFatal, "FATAL"
	case zerolog.PanicLevel:
		return otelog.SeverityFatal4, "FATAL"
	default:
		return otelog.SeverityInfo, "INFO"
	}
}

// getBuffer reads the fields written so far. zerolog keeps them unexported,
// and the closing brace is only added after hooks run.
func (h *ZerologHook) getBuffer(e *zerolog.Event) ([]byte, bool) {
	if e == nil {
		return nil, false
	}

	v := reflect.ValueOf(e)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return nil, false
	}

	f := v.Elem().FieldByName("buf")
	if !f.IsValid() || f.Kind() != reflect.Slice || f.Type().Elem().Kind() != reflect.Uint8 {
		return nil, false
	}

	b := append([]byte(nil), f.Bytes()...)
	if len(b) == 0 {
		return nil, false
	}

	if b[len(b)-1] != '}' {
		b = append(b, '}')
	}

	return b, true
}

func (h *ZerologHook) mapToAttrs(m map[string]any) []otelog.KeyValue {
	kvs := make([]otelog.KeyValue, 0, len(m))
	for k, v := range m {
		switch x := v.(type) {
		case string:
			kvs = append(kvs, otelog.String(k, x))
		case bool:
			kvs = append(kvs, otelog.Bool(k, x))
		case float64:
			if x == float64(int64(x)) {
				kvs = append(kvs, otelog.Int64(k, int64(x)))
			} else {
				kvs = append(kvs, otelog.Float64(k, x))
			}
		case nil:
			kvs = append(kvs, otelog.KeyValue{Key: k})
		default:
			data, err := json.Marshal(x)
			if err != nil {
				kvs = append(kvs, otelog.String(k, fmt.Sprintf("%v", x)))
				continue
			}

			kvs = append(kvs, otelog.String(k, string(data)))
		}
	}

	return kvs
}

func (h *ZerologHook) extractTimestamp(m map[string]any) time.Time {
	s, ok := m[zerolog.TimestampFieldName].(string)
	if !ok {
		return time.Now()
	}

	ts, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return ts
	}

	return time.Now()
}
