package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var level = new(slog.LevelVar)

// Setup installs the JSON stdout logger as the slog default. name is a
// level name such as "debug" or "warn"; anything unknown means info.
func Setup(name string) {
	SetLevel(name)
	slog.SetDefault(slog.New(StdoutHandler(os.Stdout)))
}

func SetLevel(name string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		l = slog.LevelInfo
	}
	level.Set(l)
}

// StdoutHandler writes JSON at the level chosen by SetLevel.
func StdoutHandler(w io.Writer) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}
