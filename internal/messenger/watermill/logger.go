package watermill

import (
	"sort"

	wm "github.com/ThreeDotsLabs/watermill"

	"msgmon/internal/logger"
)

type loggerAdapter struct {
	base logger.Logger
}

// NewLoggerAdapter lets watermill routers and pub/subs log through log.
// Trace lines are logged at debug level.
func NewLoggerAdapter(log logger.Logger) wm.LoggerAdapter {
	if log == nil {
		log = logger.NopLogger()
	}
	return &loggerAdapter{base: log}
}

func (a *loggerAdapter) Error(msg string, err error, fields wm.LogFields) {
	a.base.Errorw(msg, append(keysAndValues(fields), "error", err)...)
}

func (a *loggerAdapter) Info(msg string, fields wm.LogFields) {
	a.base.Infow(msg, keysAndValues(fields)...)
}

func (a *loggerAdapter) Debug(msg string, fields wm.LogFields) {
	a.base.Debugw(msg, keysAndValues(fields)...)
}

func (a *loggerAdapter) Trace(msg string, fields wm.LogFields) {
	a.base.Debugw(msg, keysAndValues(fields)...)
}

func (a *loggerAdapter) With(fields wm.LogFields) wm.LoggerAdapter {
	return &loggerAdapter{base: a.base.With(keysAndValues(fields)...)}
}

// keysAndValues flattens fields sorted by key.
func keysAndValues(fields wm.LogFields) []interface{} {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		out = append(out, k, fields[k])
	}
	return out
}
