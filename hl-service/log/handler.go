package log

import (
	"fmt"
	"io"
	"log/slog"
	"reflect"

	elog "github.com/ethereum/go-ethereum/log"
)

const timeFormatMs = "2006-01-02T15:04:05.000-0700"

// JSONHandler writes records at or above level as JSON lines.
func JSONHandler(wr io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(wr, handlerOptions(level, false))
}

// LogfmtHandler writes records at or above level as logfmt lines.
func LogfmtHandler(wr io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(wr, handlerOptions(level, true))
}

// Both formats use the t and lvl keys, so logpipe.ParseGoStructuredLogs reads them back.
func handlerOptions(level slog.Level, logfmt bool) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) == 0 {
				attr = renameBuiltin(attr, logfmt)
			}
			return stringify(attr)
		},
	}
}

func renameBuiltin(attr slog.Attr, logfmt bool) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		if attr.Value.Kind() != slog.KindTime {
			return attr
		}
		if logfmt {
			return slog.String("t", attr.Value.Time().Format(timeFormatMs))
		}
		return slog.Attr{Key: "t", Value: attr.Value}
	case slog.LevelKey:
		if l, ok := attr.Value.Any().(slog.Level); ok {
			return slog.String("lvl", elog.LevelString(l))
		}
	}
	return attr
}

// stringify renders enum-like values by name instead of by their underlying number.
func stringify(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindAny {
		return attr
	}
	s, ok := attr.Value.Any().(fmt.Stringer)
	if !ok {
		return attr
	}
	if rv := reflect.ValueOf(s); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return slog.String(attr.Key, "<nil>")
	}
	return slog.String(attr.Key, s.String())
}
