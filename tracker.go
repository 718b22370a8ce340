package eventcounter

import (
	"context"
	"sync"

	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/st-keller/event-counter/counter"
	"github.com/st-keller/event-counter/guard"
	"github.com/st-keller/event-counter/registry"
	"github.com/st-keller/event-counter/schema"
)

// DefaultName is the registration name used by the command line tools.
const DefaultName = "events:type=EventCounter"

var (
	ErrInvalidConfig      = xerrors.New("invalid config")
	ErrAlreadyInitialized = xerrors.New("tracker already initialized")
)

// Config holds tracker configuration (NO DEFAULTS - all required!).
type Config struct {
	Name     string             // Registration name (e.g., DefaultName)
	Registry *registry.Registry // Host introspection server
	Logger   slog.Logger
}

// Validate checks if all required config fields are present.
func (c Config) Validate() error {
	if c.Name == "" {
		return xerrors.Errorf("%w: Name required", ErrInvalidConfig)
	}
	if c.Registry == nil {
		return xerrors.Errorf("%w: Registry required", ErrInvalidConfig)
	}
	return nil
}

// Notifier is the ingestion entry point handed to event detectors.
type Notifier interface {
	NotifyEvent(ctx context.Context, key string)
}

// Tracker counts events and serves them as a registry.Component.
type Tracker struct {
	name   string
	reg    *registry.Registry
	log    slog.Logger
	counts *counter.Counter
	schema *schema.Cache

	// buildHook runs inside every descriptor rebuild; tests use it to raise
	// events from within bookkeeping.
	buildHook func(ctx context.Context)

	mu          sync.Mutex
	initialized bool
	registered  bool
}

var (
	_ registry.Component = (*Tracker)(nil)
	_ Notifier           = (*Tracker)(nil)
)

// New creates a tracker. It is not visible to the registry until Init.
func New(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Tracker{
		name:   cfg.Name,
		reg:    cfg.Registry,
		log:    cfg.Logger.Named("tracker"),
		counts: counter.New(),
	}
	t.schema = schema.NewCache(t.buildDescriptor)
	return t, nil
}

// Init registers the tracker with the registry. It may succeed at most once;
// a second call or a name collision is returned as an error.
func (t *Tracker) Init(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.initialized {
		return xerrors.Errorf("%w: %s", ErrAlreadyInitialized, t.name)
	}

	_, err := guard.Run(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.reg.Register(ctx, t.name, t)
	})
	if err != nil {
		return xerrors.Errorf("register %s: %w", t.name, err)
	}

	t.initialized = true
	t.registered = true
	t.log.Info(ctx, "event tracker registered", slog.F("name", t.name))
	return nil
}

// Close unregisters the tracker. Counting keeps working for holders of the
// Tracker, but it can no longer be resolved from the registry.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.registered {
		return nil
	}
	t.registered = false
	if err := t.reg.Unregister(context.Background(), t.name); err != nil {
		return xerrors.Errorf("unregister %s: %w", t.name, err)
	}
	return nil
}

// Name returns the registration name.
func (t *Tracker) Name() string {
	return t.name
}

// NotifyEvent counts one occurrence of key. Events raised with a context
// derived inside the tracker's own bookkeeping are dropped, as are empty keys.
// It never panics and never reports failure to the caller.
func (t *Tracker) NotifyEvent(ctx context.Context, key string) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Debug(context.Background(), "event dropped",
				slog.F("key", key),
				slog.F("panic", r),
			)
		}
	}()

	if key == "" || guard.Active(ctx) {
		return
	}
	if t.counts.Increment(key) {
		t.schema.Invalidate()
	}
}

// Notify is NotifyEvent for callers without a context. Without a context the
// tracker cannot tell its own bookkeeping apart from other callers, so events
// raised through Notify are never suppressed; code that may run inside a
// descriptor rebuild must use NotifyEvent with the context it was given.
func (t *Tracker) Notify(key string) {
	t.NotifyEvent(context.Background(), key)
}

// NotifyError counts err under the name of its concrete type and returns err
// unchanged, so it can wrap return statements. A nil error is not counted.
func (t *Tracker) NotifyError(ctx context.Context, err error) error {
	if err != nil {
		t.NotifyEvent(ctx, KeyOf(err))
	}
	return err
}

// Snapshot copies the current counts.
func (t *Tracker) Snapshot() map[string]int64 {
	return t.counts.Snapshot()
}

// Reset clears every count.
func (t *Tracker) Reset() {
	t.counts.Reset()
	t.schema.Invalidate()
}

// Lookup resolves the ingestion entry point registered under name.
func Lookup(reg *registry.Registry, name string) (Notifier, bool) {
	if reg == nil {
		return nil, false
	}
	c, ok := reg.Lookup(name)
	if !ok {
		return nil, false
	}
	n, ok := c.(Notifier)
	return n, ok
}
