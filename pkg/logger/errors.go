package logger

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level. oops errors contribute their code and context
// as structured attributes; plain errors are logged as a string.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs = append(attrs, slog.String("error", oopsErr.Error()))
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, slog.Any("code", code))
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, slog.Any("context", ctx))
		}
		logger.Error(msg, attrs...)
		return
	}
	logger.Error(msg, append(attrs, slog.Any("error", err))...)
}
