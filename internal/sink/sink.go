// Package sink writes exported tables to their destination formats.
package sink

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/chunkmine/chunkmine-go/pkg/chunkmine"
)

// Sink receives exported tables.
type Sink interface {
	// Write renders one table. A sink may receive several tables, one per
	// document index.
	Write(ctx context.Context, t *chunkmine.Table) error

	// Close flushes buffered output and releases resources.
	Close() error
}

// Config selects and configures a sink.
type Config struct {
	// Kind is a registered sink name such as "csv" or "sqlite".
	Kind string

	// Out receives the output of stream sinks (csv, jsonl, pretty).
	Out io.Writer

	// DSN is the database the sqlite sink writes to.
	DSN string

	// Pattern is recorded alongside stored runs.
	Pattern string
}

// Factory builds a Sink from its configuration.
type Factory func(ctx context.Context, cfg Config) (Sink, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a sink available under kind.
//
// Panics if kind is empty, f is nil, or kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("sink: Register called with empty kind")
	}
	if f == nil {
		panic("sink: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("sink: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New builds the sink registered under cfg.Kind.
func New(ctx context.Context, cfg Config) (Sink, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("sink: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unknown output format %q (valid: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds returns the registered sink names, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Valid reports whether kind is registered.
func Valid(kind string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := factories[kind]
	return ok
}

// FormatValue renders a cell as text. Missing cells are empty and times
// use RFC 3339 with nanoseconds.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func needWriter(cfg Config) error {
	if cfg.Out == nil {
		return fmt.Errorf("sink %s: no output writer", cfg.Kind)
	}
	return nil
}
