package eventcounter

import (
	"context"

	"cdr.dev/slog/v3"

	"github.com/st-keller/event-counter/schema"
)

// Operation names accepted by Invoke. OperationClear is kept as an alias of
// OperationReset for consoles that still call it.
const (
	OperationReset = "reset"
	OperationClear = "clear"
)

const (
	componentType        = "eventcounter.Tracker"
	componentDescription = "Occurrences of tracked events, one attribute per event key."
	attributeDescription = "Event count"
)

var operations = []schema.Operation{{
	Name:        OperationReset,
	Description: "Removes every event count.",
	Returns:     "void",
}}

func (t *Tracker) buildDescriptor(ctx context.Context) (*schema.Descriptor, error) {
	if t.buildHook != nil {
		t.buildHook(ctx)
	}
	attrs := schema.Counters(t.counts.Keys(), attributeDescription)
	return schema.New(componentType, componentDescription, attrs, operations), nil
}

// ListAttributes returns the current descriptor: one read-only int64 attribute
// per observed key plus the reset operation. It may briefly lag behind the
// counts. A failed rebuild is logged and answered with an attribute-less
// descriptor rather than an error.
func (t *Tracker) ListAttributes(ctx context.Context) *schema.Descriptor {
	desc, err := t.schema.Read(ctx)
	if err != nil {
		t.log.Warn(ctx, "rebuild descriptor", slog.Error(err))
		return schema.New(componentType, componentDescription, nil, operations)
	}
	return desc
}

// Descriptor implements registry.Component.
func (t *Tracker) Descriptor(ctx context.Context) (*schema.Descriptor, error) {
	return t.ListAttributes(ctx), nil
}

// GetAttribute returns the live int64 count for name, bypassing the descriptor.
func (t *Tracker) GetAttribute(name string) (any, bool) {
	count, ok := t.counts.Get(name)
	if !ok {
		return nil, false
	}
	return count, true
}

// GetAttributes reads several attributes; unknown names are omitted.
func (t *Tracker) GetAttributes(names ...string) map[string]any {
	out := make(map[string]any, len(names))
	for _, name := range names {
		if v, ok := t.GetAttribute(name); ok {
			out[name] = v
		}
	}
	return out
}

// SetAttribute ignores the write. Every attribute is advertised as read-only
// and counts only change through NotifyEvent and reset.
func (*Tracker) SetAttribute(string, any) error {
	return nil
}

// Invoke runs reset when called with no arguments. Any other operation, or
// reset with arguments, is ignored.
func (t *Tracker) Invoke(ctx context.Context, op string, args ...any) (any, error) {
	switch op {
	case OperationReset, OperationClear:
		if len(args) != 0 {
			return nil, nil
		}
		t.Reset()
		t.log.Debug(ctx, "event counts reset")
	}
	return nil, nil
}
