package logpipe

import (
	"bytes"
	"encoding/json"
	"log/slog"

	"github.com/ethereum/go-ethereum/log"

	hllog "github.com/hyperlane-xyz/hyperlane-localnet/hl-service/log"
)

type rawGoJSONLog map[string]any

// StructuredGoLogEntry covers both geth-style ("lvl"/"msg") and zerolog-style ("level"/"message")
// JSON lines. The cosmos chain CLI logs with zerolog when started with --log_format json.
type StructuredGoLogEntry struct {
	Message string
	Level   slog.Level
	Fields  map[string]any
}

func ParseGoStructuredLogs(line []byte) LogEntry {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber() // to preserve number formatting
	var e rawGoJSONLog
	if err := dec.Decode(&e); err != nil {
		return invalidJSON(line)
	}
	lvlStr := popString(e, "lvl", "level")
	lvl, err := hllog.LevelFromString(lvlStr)
	if err != nil {
		lvl = log.LevelInfo
	}
	msg := popString(e, "msg", "message")
	delete(e, "t")
	delete(e, "time")

	return StructuredGoLogEntry{
		Message: msg,
		Level:   lvl,
		Fields:  e,
	}
}

func popString(e rawGoJSONLog, keys ...string) string {
	for _, k := range keys {
		if v, ok := e[k].(string); ok {
			delete(e, k)
			return v
		}
	}
	return ""
}

func (e StructuredGoLogEntry) LogLevel() slog.Level {
	return e.Level
}

func (e StructuredGoLogEntry) LogMessage() string {
	return e.Message
}

func (e StructuredGoLogEntry) LogFields() []any {
	return fieldAttrs(e.Fields)
}

func (e StructuredGoLogEntry) FieldValue(key string) any {
	return e.Fields[key]
}
