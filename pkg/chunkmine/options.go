package chunkmine

import (
	"fmt"
	"log/slog"

	"golang.org/x/text/encoding"

	"github.com/chunkmine/chunkmine-go/internal/source"
)

// ProgressFunc is called after every match attempt with the number of
// lines consumed so far and the total number of lines in the document.
// total is 0 while following a stream whose length is unknown.
type ProgressFunc func(consumed, total int)

// RecordFunc is called with every record right after it is stored.
type RecordFunc func(index string, rec *Record)

// Option configures a Miner or document loading using the functional
// options pattern.
type Option func(*config)

type config struct {
	logger        *slog.Logger
	progress      ProgressFunc
	onRecord      RecordFunc
	stopOnFailure bool
	encoding      string
	maxLineBytes  int
	store         *Store
	poll          bool

	enc encoding.Encoding // resolved from encoding by validate
}

func defaultConfig() *config {
	return &config{
		maxLineBytes: source.DefaultMaxLineBytes,
	}
}

func applyOptions(opts []Option) (*config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks option values and resolves the charset decoder.
func (c *config) validate() error {
	if c.maxLineBytes <= 0 {
		return fmt.Errorf("max line bytes must be positive, got %d", c.maxLineBytes)
	}
	enc, err := source.Encoding(c.encoding)
	if err != nil {
		return err
	}
	c.enc = enc
	if c.logger == nil {
		c.logger = discardLogger
	}
	return nil
}

// WithLogger sets a logger for mining diagnostics.
// If logger is nil, logging is disabled (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithProgress registers a progress hook.
func WithProgress(fn ProgressFunc) Option {
	return func(c *config) {
		c.progress = fn
	}
}

// WithOnRecord registers a hook that sees each record as soon as it is
// mined. The hook runs on the mining goroutine while the Miner is locked;
// it may export or evict the record's bucket through Store, but must not
// start another mining call.
func WithOnRecord(fn RecordFunc) Option {
	return func(c *config) {
		c.onRecord = fn
	}
}

// WithStopOnFailure aborts mining on the first match failure instead of
// recording it and resuming after it.
// Default: false.
func WithStopOnFailure(stop bool) Option {
	return func(c *config) {
		c.stopOnFailure = stop
	}
}

// WithEncoding sets the charset of input documents, e.g. "latin1" or
// "shift_jis". Default: UTF-8. Invalid bytes are replaced with U+FFFD.
func WithEncoding(label string) Option {
	return func(c *config) {
		c.encoding = label
	}
}

// WithMaxLineBytes bounds the length of a single input line.
// Default: 1MB.
func WithMaxLineBytes(n int) Option {
	return func(c *config) {
		c.maxLineBytes = n
	}
}

// WithStore makes the Miner accumulate records into s instead of a
// private store.
func WithStore(s *Store) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithPolling makes FollowFile detect file changes by polling instead of
// file system notifications. Useful on network mounts.
func WithPolling(poll bool) Option {
	return func(c *config) {
		c.poll = poll
	}
}
