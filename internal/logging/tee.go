package logging

import (
	"io"
	"log/slog"
)

// Tee returns a logger that writes every record to logger and, as JSON at
// the given level, to w.
func Tee(logger *slog.Logger, w io.Writer, level string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(level))
	return slog.New(newTeeHandler(logger.Handler(), newJSONHandler(w, levelVar, false)))
}
