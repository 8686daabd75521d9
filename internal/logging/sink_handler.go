package logging

import (
	"context"
	"log/slog"
	"strings"
)

// Sink is an external log collector that buffers entries and flushes them on
// its own schedule.
type Sink interface {
	Log(level, component, message string, metadata map[string]any)
	Flush() error
}

type sinkHandler struct {
	sink   Sink
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewSinkHandler adapts a Sink to slog. The component attribute is passed as
// the sink's component argument; every other attribute lands in metadata.
func NewSinkHandler(sink Sink, level slog.Leveler) slog.Handler {
	if sink == nil {
		return NoopHandler{}
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return &sinkHandler{sink: sink, level: level}
}

func (h *sinkHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *sinkHandler) Handle(_ context.Context, record slog.Record) error {
	kvs := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	flattenAttrs(&kvs, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, h.groups, attr)
		return true
	})

	component := ""
	metadata := make(map[string]any, len(kvs))
	for _, entry := range kvs {
		if entry.key == FieldComponent && component == "" {
			component = attrString(entry.value)
			continue
		}
		metadata[entry.key] = entry.value.Any()
	}
	h.sink.Log(strings.ToLower(levelLabel(record.Level)), component, record.Message, metadata)
	return nil
}

func (h *sinkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sinkHandler{
		sink:   h.sink,
		level:  h.level,
		attrs:  append(append([]slog.Attr(nil), h.attrs...), attrs...),
		groups: h.groups,
	}
}

func (h *sinkHandler) WithGroup(name string) slog.Handler {
	return &sinkHandler{
		sink:   h.sink,
		level:  h.level,
		attrs:  h.attrs,
		groups: append(append([]string(nil), h.groups...), name),
	}
}
