package eventbus

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/logging"
)

// loggerAdapter routes watermill's logs into the service logger.
type loggerAdapter struct {
	logger *logging.Logger
}

func newLoggerAdapter(logger *logging.Logger) watermill.LoggerAdapter {
	if logger == nil {
		logger = logging.Default()
	}
	return loggerAdapter{logger: logger}
}

func (a loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Error(msg, append(flatten(fields), "error", err)...)
}

func (a loggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Info(msg, flatten(fields)...)
}

func (a loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, flatten(fields)...)
}

// Trace is folded into debug; the router is chatty at this level.
func (a loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, flatten(fields)...)
}

func (a loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return loggerAdapter{logger: a.logger.With(flatten(fields)...)}
}

func flatten(fields watermill.LogFields) []any {
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}
