package testlog

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// CapturedAttributes forms a chain of inherited attributes, to traverse on captured log records.
type CapturedAttributes struct {
	Parent     *CapturedAttributes
	Attributes []slog.Attr
}

// Attrs calls f on each Attr in the [CapturedAttributes].
// Iteration stops if f returns false.
func (r *CapturedAttributes) Attrs(f func(slog.Attr) bool) {
	for _, a := range r.Attributes {
		if !f(a) {
			return
		}
	}
	if r.Parent != nil {
		r.Parent.Attrs(f)
	}
}

// CapturedRecord is a wrapper around a regular log-record,
// to preserve the inherited attributes context, without mutating the record.
type CapturedRecord struct {
	Parent *CapturedAttributes
	*slog.Record
}

// Attrs calls f on each Attr in the [CapturedRecord].
// Iteration stops if f returns false.
func (r *CapturedRecord) Attrs(f func(slog.Attr) bool) {
	searching := true
	r.Record.Attrs(func(a slog.Attr) bool {
		searching = f(a)
		return searching
	})
	if !searching {
		return
	}
	if r.Parent != nil {
		r.Parent.Attrs(f)
	}
}

func (r *CapturedRecord) AttrValue(name string) (v any) {
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == name {
			v = a.Value.Any()
			return false
		}
		return true
	})
	return
}

type capturedLogs struct {
	mu      sync.Mutex
	records []*CapturedRecord
}

// CapturingHandler captures all log records and forwards them to a delegate.
// Sub-process pipes log from their own goroutines, so the record list is guarded.
type CapturingHandler struct {
	handler slog.Handler
	logs    *capturedLogs // shared among derived CapturingHandlers
	attrs   *CapturedAttributes
}

var _ slog.Handler = (*CapturingHandler)(nil)

func CaptureLogger(t Testing, level slog.Level) (log.Logger, *CapturingHandler) {
	h := &CapturingHandler{handler: newHandler(t, level), logs: new(capturedLogs)}
	return log.NewLogger(h), h
}

func (c *CapturingHandler) Handle(ctx context.Context, r slog.Record) error {
	c.logs.mu.Lock()
	c.logs.records = append(c.logs.records, &CapturedRecord{Parent: c.attrs, Record: &r})
	c.logs.mu.Unlock()
	return c.handler.Handle(ctx, r)
}

func (c *CapturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CapturingHandler{
		handler: c.handler.WithAttrs(attrs),
		logs:    c.logs,
		attrs:   &CapturedAttributes{Parent: c.attrs, Attributes: attrs},
	}
}

func (c *CapturingHandler) WithGroup(name string) slog.Handler {
	return &CapturingHandler{
		handler: c.handler.WithGroup(name),
		logs:    c.logs,
	}
}

func (c *CapturingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return c.handler.Enabled(ctx, level)
}

func (c *CapturingHandler) Clear() {
	c.logs.mu.Lock()
	defer c.logs.mu.Unlock()
	c.logs.records = c.logs.records[:0]
}

type LogFilter func(record *CapturedRecord) bool

func NewLevelFilter(level slog.Level) LogFilter {
	return func(r *CapturedRecord) bool {
		return r.Record.Level == level
	}
}

func NewAttributesFilter(key, value string) LogFilter {
	return func(r *CapturedRecord) bool {
		found := false
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == key && a.Value.String() == value {
				found = true
				return false
			}
			return true
		})
		return found
	}
}

func NewAttributesContainsFilter(key, value string) LogFilter {
	return func(r *CapturedRecord) bool {
		found := false
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == key && strings.Contains(a.Value.String(), value) {
				found = true
				return false
			}
			return true
		})
		return found
	}
}

func NewMessageFilter(message string) LogFilter {
	return func(r *CapturedRecord) bool {
		return r.Record.Message == message
	}
}

func NewMessageContainsFilter(message string) LogFilter {
	return func(r *CapturedRecord) bool {
		return strings.Contains(r.Record.Message, message)
	}
}

func (c *CapturingHandler) FindLog(filters ...LogFilter) *CapturedRecord {
	logs := c.FindLogs(filters...)
	if len(logs) == 0 {
		return nil
	}
	return logs[0]
}

func (c *CapturingHandler) FindLogs(filters ...LogFilter) []*CapturedRecord {
	c.logs.mu.Lock()
	defer c.logs.mu.Unlock()
	var out []*CapturedRecord
	for _, record := range c.logs.records {
		match := true
		for _, filter := range filters {
			if !filter(record) {
				match = false
				break
			}
		}
		if match {
			out = append(out, record)
		}
	}
	return out
}
