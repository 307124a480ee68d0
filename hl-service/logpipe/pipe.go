package logpipe

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/ethereum/go-ethereum/log"

	hllog "github.com/hyperlane-xyz/hyperlane-localnet/hl-service/log"
)

// maxLineSize bounds a single log line; chain CLIs print large JSON tx receipts on one line.
const maxLineSize = 4 * 1024 * 1024

type rawRustJSONLog struct {
	//"timestamp" ignored
	Level  string         `json:"level"`
	Fields map[string]any `json:"fields"`
	Target string         `json:"target"`
}

// StructuredRustLogEntry is a line emitted by a tracing-subscriber JSON formatter,
// which is what the relayer and validator agents write.
type StructuredRustLogEntry struct {
	Message string
	Level   slog.Level
	Target  string
	Fields  map[string]any
}

func ParseRustStructuredLogs(line []byte) LogEntry {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber() // to preserve number formatting
	var e rawRustJSONLog
	if err := dec.Decode(&e); err != nil {
		return invalidJSON(line)
	}
	lvl, err := hllog.LevelFromString(e.Level)
	if err != nil {
		lvl = log.LevelInfo
	}
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	msg, _ := e.Fields["message"].(string)
	delete(e.Fields, "message")

	return StructuredRustLogEntry{
		Message: msg,
		Level:   lvl,
		Target:  e.Target,
		Fields:  e.Fields,
	}
}

func (e StructuredRustLogEntry) LogLevel() slog.Level {
	return e.Level
}

func (e StructuredRustLogEntry) LogMessage() string {
	return e.Message
}

func (e StructuredRustLogEntry) LogFields() []any {
	attrs := fieldAttrs(e.Fields)
	if e.Target != "" {
		attrs = append(attrs, slog.String("target", e.Target))
	}
	return attrs
}

func (e StructuredRustLogEntry) FieldValue(key string) any {
	return e.Fields[key]
}

type LogEntry interface {
	LogLevel() slog.Level
	LogMessage() string
	LogFields() []any
	FieldValue(key string) any
}

type LogProcessor func(line []byte)

type LogParser func(line []byte) LogEntry

// ToLogger returns a function that writes parsed entries into the logger.
func ToLogger(logger log.Logger) func(e LogEntry) {
	return func(e LogEntry) {
		msg := e.LogMessage()
		attrs := e.LogFields()
		lvl := e.LogLevel()

		if lvl >= log.LevelCrit {
			// a crit from a child must not os.Exit the harness
			lvl = log.LevelError
			attrs = append(attrs, slog.String("innerLevel", "CRIT"))
		}
		logger.Log(lvl, msg, attrs...)
	}
}

// Processor chains a parser into the given entry consumers.
func Processor(parse LogParser, onEntry ...func(e LogEntry)) LogProcessor {
	return func(line []byte) {
		e := parse(line)
		for _, fn := range onEntry {
			fn(e)
		}
	}
}

// PipeLogs reads lines from r (e.g. a sub-process stdout) and hands each non-empty line to onLog.
// It processes until the stream ends, and closes the reader.
// The first read error is returned; EOF is not an error.
func PipeLogs(r io.ReadCloser, onLog LogProcessor) (outErr error) {
	defer func() {
		outErr = errors.Join(outErr, r.Close())
	}()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		lineBytes := scanner.Bytes()
		if len(lineBytes) == 0 {
			continue
		}
		onLog(lineBytes)
	}

	return scanner.Err()
}

func invalidJSON(line []byte) LogEntry {
	return PlainLogEntry{
		Message: "Invalid JSON",
		Level:   slog.LevelWarn,
		Fields:  map[string]any{"line": string(line)},
	}
}

func fieldAttrs(fields map[string]any) []any {
	attrs := make([]any, 0, len(fields))
	for k, v := range fields {
		if x, ok := v.(json.Number); ok {
			v = x.String()
		}
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}
