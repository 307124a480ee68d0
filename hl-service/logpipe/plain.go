package logpipe

import (
	"log/slog"
)

// PlainLogEntry is an unstructured output line, e.g. from cargo or a CLI printing JSON results.
type PlainLogEntry struct {
	Message string
	Level   slog.Level
	Fields  map[string]any
}

// PlainLogParser returns a parser that logs every line verbatim at the given level.
func PlainLogParser(level slog.Level) LogParser {
	return func(line []byte) LogEntry {
		return PlainLogEntry{Message: string(line), Level: level}
	}
}

func (e PlainLogEntry) LogLevel() slog.Level {
	return e.Level
}

func (e PlainLogEntry) LogMessage() string {
	return e.Message
}

func (e PlainLogEntry) LogFields() []any {
	return fieldAttrs(e.Fields)
}

func (e PlainLogEntry) FieldValue(key string) any {
	return e.Fields[key]
}
