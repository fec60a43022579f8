package chunkmine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/chunkmine/chunkmine-go/pkg/chunkmine/pattern"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Miner runs a Pattern over documents and accumulates the records in a
// Store, one bucket per document index.
//
// Mining calls on one Miner are serialized. The Pattern itself is shared
// read-only, so several Miners may use the same Pattern concurrently.
type Miner struct {
	pattern *pattern.Pattern
	store   *Store
	cfg     *config
	log     *slog.Logger

	mu sync.Mutex // serializes mining calls

	idxMu sync.Mutex
	mined map[string]bool // active indices, cleared by eviction
}

// NewMiner returns a Miner for p.
func NewMiner(p *pattern.Pattern, opts ...Option) (*Miner, error) {
	if p == nil {
		return nil, errors.New("pattern is nil")
	}
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	store := cfg.store
	if store == nil {
		store = NewStore()
	}
	return &Miner{
		pattern: p.WithLogger(cfg.logger),
		store:   store,
		cfg:     cfg,
		log:     cfg.logger,
		mined:   make(map[string]bool),
	}, nil
}

// Pattern returns the pattern the miner runs.
func (m *Miner) Pattern() *pattern.Pattern { return m.pattern }

// Store returns the store records accumulate in.
func (m *Miner) Store() *Store { return m.store }

// Len returns the live record count of the store.
func (m *Miner) Len() int { return m.store.Len() }

// Mine runs the pattern over doc from its first line and appends every
// record to the bucket of index.
//
// Match failures are recorded in the report and mining resumes after them,
// unless WithStopOnFailure is set, in which case the failure is returned.
// A document that ends mid-record returns an error wrapping a
// *pattern.MalformedDocumentError; records mined before it stay in the
// bucket.
func (m *Miner) Mine(ctx context.Context, index string, doc *Document) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activate(index)

	lines := doc.linesOrNil()
	rep := &Report{Index: index, Pattern: m.pattern.ID(), Lines: len(lines)}
	started := time.Now()
	defer func() { rep.Elapsed = time.Since(started) }()

	m.log.Debug("mining started", "index", index, "lines", len(lines))
	_, err := m.run(ctx, index, lines, 0, true, rep)
	if err != nil {
		return rep, err
	}
	m.log.Debug("mining finished", "index", index, "records", rep.Records, "failures", len(rep.Failures))
	return rep, nil
}

// MineFiles loads paths as one document and mines it into index.
func (m *Miner) MineFiles(ctx context.Context, index string, paths ...string) (*Report, error) {
	doc, err := LoadDocument(paths, m.documentOptions()...)
	if err != nil {
		return nil, err
	}
	return m.Mine(ctx, index, doc)
}

// MineReader reads r as one document and mines it into index.
func (m *Miner) MineReader(ctx context.Context, index string, r io.Reader) (*Report, error) {
	doc, err := ReadDocument(r, 1, m.documentOptions()...)
	if err != nil {
		return nil, err
	}
	return m.Mine(ctx, index, doc)
}

// MineAndExport mines paths into index and exports the bucket.
func (m *Miner) MineAndExport(ctx context.Context, index string, evict bool, paths ...string) (*Table, *Report, error) {
	rep, err := m.MineFiles(ctx, index, paths...)
	if err != nil {
		return nil, rep, err
	}
	t, err := m.Export(index, evict)
	return t, rep, err
}

// Export converts the bucket of index into a Table. With evict the bucket
// is removed from the store and the index deactivated, so a later Export
// of it returns ErrUnknownDocument. An active index that produced no
// records returns ErrNoRecords (and is deactivated too when evict is set).
func (m *Miner) Export(index string, evict bool) (*Table, error) {
	t, err := m.store.Export(index, evict)
	if errors.Is(err, ErrUnknownDocument) {
		if m.active(index) {
			if evict {
				m.deactivate(index)
			}
			return nil, fmt.Errorf("%w: %q", ErrNoRecords, index)
		}
		return nil, err
	}
	if err == nil && evict {
		m.deactivate(index)
		m.log.Debug("bucket evicted", "index", index, "records", t.Len(), "live", m.store.Len())
	}
	return t, err
}

func (m *Miner) activate(index string) {
	m.idxMu.Lock()
	m.mined[index] = true
	m.idxMu.Unlock()
}

func (m *Miner) deactivate(index string) {
	m.idxMu.Lock()
	delete(m.mined, index)
	m.idxMu.Unlock()
}

func (m *Miner) active(index string) bool {
	m.idxMu.Lock()
	defer m.idxMu.Unlock()
	return m.mined[index]
}

func (m *Miner) documentOptions() []Option {
	return []Option{
		WithEncoding(m.cfg.encoding),
		WithMaxLineBytes(m.cfg.maxLineBytes),
		WithLogger(m.cfg.logger),
	}
}

// run drives Match (or MatchPrefix when final is false) from pos until the
// lines are used up. It returns the cursor at which a later call should
// resume; in prefix mode that is the start of a pending record.
func (m *Miner) run(ctx context.Context, index string, lines []Line, pos int, final bool, rep *Report) (int, error) {
	total := len(lines)
	if !final {
		total = 0
	}
	for pos < len(lines) {
		var (
			res pattern.Result
			err error
		)
		if final {
			res, err = m.pattern.Match(ctx, lines, pos)
		} else {
			res, err = m.pattern.MatchPrefix(ctx, lines, pos)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return pos, err
			}
			return pos, &MineError{Index: index, Line: lines[pos].Num, Err: err}
		}

		switch res.Status {
		case pattern.StatusComplete:
			m.store.Append(index, res.Record)
			rep.Records++
			if m.cfg.onRecord != nil {
				m.cfg.onRecord(index, res.Record)
			}
		case pattern.StatusFailed:
			rep.Failures = append(rep.Failures, res.Failure)
			m.log.Warn("record attempt failed",
				"index", index, "line", res.Failure.Line, "chunk", res.Failure.Chunk, "start", res.Failure.Start)
			if m.cfg.stopOnFailure {
				return res.Next, &MineError{Index: index, Line: res.Failure.Line, Err: res.Failure}
			}
		case pattern.StatusIncomplete:
			return res.Next, nil
		}

		if res.Next > pos {
			rep.Consumed += res.Next - pos
		}
		pos = res.Next
		if m.cfg.progress != nil {
			m.cfg.progress(rep.Consumed, total)
		}
	}
	return pos, nil
}

func (d *Document) linesOrNil() []Line {
	if d == nil {
		return nil
	}
	return d.Lines
}
