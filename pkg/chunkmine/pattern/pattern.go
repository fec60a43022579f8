package pattern

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LevelTrace is the slog level used for per-line state machine tracing.
// It sits below slog.LevelDebug.
const LevelTrace = slog.Level(-8)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Status is the outcome of a single Match call.
type Status int

const (
	// StatusExhausted means the input ended before any line started a record.
	StatusExhausted Status = iota
	// StatusComplete means a record was produced.
	StatusComplete
	// StatusFailed means a required chunk failed after the record had begun.
	StatusFailed
	// StatusIncomplete is returned by MatchPrefix when the input ends
	// mid-record and more lines may still arrive.
	StatusIncomplete
)

func (s Status) String() string {
	switch s {
	case StatusExhausted:
		return "exhausted"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	case StatusIncomplete:
		return "incomplete"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is returned by Match and MatchPrefix.
type Result struct {
	Status Status

	// Record is set when Status is StatusComplete.
	Record *Record

	// Failure is set when Status is StatusFailed.
	Failure *MatchFailure

	// Next is the index into the line slice at which the following attempt
	// should start. After a record it is the index after the record's last
	// line; after a failure it is the failing line, or the line after the
	// record start when the failure happened on the start line. For
	// StatusIncomplete it is the index of the record's first line.
	Next int
}

// Pattern is an ordered sequence of chunks describing one record, plus a
// post-clean pipeline. A Pattern is immutable after construction; all match
// progress lives in per-call state, so one Pattern may be shared by
// concurrent goroutines.
type Pattern struct {
	id     string
	desc   string
	chunks []*Chunk
	post   []namedPostOp
	fields FieldSet
	log    *slog.Logger
}

type namedPostOp struct {
	spec OpSpec
	fn   PostOp
}

// NewPattern builds a Pattern from its definition. Any unknown operation,
// reference to an undeclared field, or invalid regex is reported as a
// *ConfigError.
func NewPattern(def Definition) (*Pattern, error) {
	if len(def.Chunks) == 0 {
		return nil, &ConfigError{Pattern: def.ID, Chunk: -1, Field: "chunks", Message: "at least one chunk is required"}
	}

	p := &Pattern{
		id:     def.ID,
		desc:   def.Description,
		chunks: make([]*Chunk, 0, len(def.Chunks)),
		fields: newFieldSet(),
		log:    discardLogger,
	}

	for i, cd := range def.Chunks {
		c, err := NewChunk(cd)
		if err != nil {
			var ce *ConfigError
			if errors.As(err, &ce) {
				ce.Pattern = def.ID
				ce.Chunk = i
			}
			return nil, err
		}
		for _, f := range c.fields {
			if p.fields.plain[f] || p.fields.repeated[f] {
				return nil, &ConfigError{Pattern: def.ID, Chunk: i, Field: "fields",
					Message: fmt.Sprintf("field %q is already declared by another chunk", f)}
			}
			if c.repeats {
				p.fields.repeated[f] = true
			} else {
				p.fields.plain[f] = true
			}
		}
		p.chunks = append(p.chunks, c)
	}

	for f := range p.fields.plain {
		for base := range p.fields.repeated {
			if isOccurrenceOf(f, base) {
				return nil, &ConfigError{Pattern: def.ID, Chunk: -1, Field: "fields",
					Message: fmt.Sprintf("field %q collides with occurrences of repeating field %q", f, base)}
			}
		}
	}

	for i, spec := range def.PostClean {
		factory, ok := lookupPostOp(spec.Op)
		if !ok {
			return nil, &ConfigError{Pattern: def.ID, Chunk: -1, Field: fmt.Sprintf("post_clean[%d]", i),
				Message: fmt.Sprintf("unknown post-clean operation %q", spec.Op)}
		}
		fn, err := factory(spec, p.fields)
		if err != nil {
			return nil, &ConfigError{Pattern: def.ID, Chunk: -1, Field: fmt.Sprintf("post_clean[%d]", i),
				Message: fmt.Sprintf("%s: %v", spec.Op, err), Cause: err}
		}
		p.post = append(p.post, namedPostOp{spec: spec, fn: fn})
	}

	return p, nil
}

func isOccurrenceOf(name, base string) bool {
	suffix, ok := strings.CutPrefix(name, base+"_")
	if !ok || suffix == "" {
		return false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// WithLogger returns a copy of p that traces matching to logger.
// A nil logger disables logging.
func (p *Pattern) WithLogger(logger *slog.Logger) *Pattern {
	c := *p
	if logger == nil {
		logger = discardLogger
	}
	c.log = logger.With("pattern", p.id)
	return &c
}

// ID returns the pattern identifier.
func (p *Pattern) ID() string { return p.id }

// Description returns the pattern description.
func (p *Pattern) Description() string { return p.desc }

// Chunks returns the pattern's chunks in order.
func (p *Pattern) Chunks() []*Chunk {
	out := make([]*Chunk, len(p.chunks))
	copy(out, p.chunks)
	return out
}

// Fields returns the set of fields declared by the pattern's chunks.
func (p *Pattern) Fields() FieldSet { return p.fields }

// Match runs the chunk state machine over lines starting at index pos and
// returns the first record found, a match failure, or StatusExhausted.
//
// When the input ends while a record is in progress and chunks remain, a
// *MalformedDocumentError is returned, whether or not those chunks are
// optional.
// Cancellation of ctx is checked at every line boundary.
func (p *Pattern) Match(ctx context.Context, lines []Line, pos int) (Result, error) {
	return p.match(ctx, lines, pos, true)
}

// MatchPrefix is like Match but treats lines as a prefix of a longer
// stream: when the input ends mid-record it returns StatusIncomplete
// instead of reporting a malformed document.
func (p *Pattern) MatchPrefix(ctx context.Context, lines []Line, pos int) (Result, error) {
	return p.match(ctx, lines, pos, false)
}

// matchState is the per-invocation progress of the state machine.
type matchState struct {
	begun    bool
	chunk    int // index of the head chunk
	occ      int // occurrences of the head chunk when it repeats
	startIdx int
	lastIdx  int
	rec      *Record
}

func (p *Pattern) match(ctx context.Context, lines []Line, pos int, final bool) (Result, error) {
	if pos < 0 {
		pos = 0
	}
	st := &matchState{rec: NewRecord()}
	trace := p.log.Enabled(ctx, LevelTrace)

	for i := pos; i < len(lines); i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		ln := lines[i]
		text := ln.Text
		if trace {
			p.log.Log(ctx, LevelTrace, "line", "num", ln.Num, "text", text, "chunk", st.chunk, "begun", st.begun)
		}

		for text != "" && st.chunk < len(p.chunks) {
			c := p.chunks[st.chunk]
			values, rest, ok, err := c.Match(text)
			if err != nil {
				var ce *CleanError
				if errors.As(err, &ce) {
					ce.Line = ln.Num
				}
				return Result{}, err
			}

			if ok {
				if !st.begun {
					st.begun = true
					st.startIdx = i
					st.rec.Start = ln.Num
				}
				st.lastIdx = i
				p.merge(st, c, values)
				if trace {
					p.log.Log(ctx, LevelTrace, "chunk matched", "num", ln.Num, "chunk", st.chunk, "occurrence", st.occ, "rest", rest)
				}
				if c.repeats {
					st.occ++
				} else {
					st.chunk++
					st.occ = 0
				}
				text = rest
				continue
			}

			if !st.begun {
				// The line does not start a record.
				break
			}

			switch {
			case c.repeats && st.occ > 0:
				if trace {
					p.log.Log(ctx, LevelTrace, "repeating chunk ended", "num", ln.Num, "chunk", st.chunk, "occurrences", st.occ)
				}
				st.chunk++
				st.occ = 0
			case c.optional:
				if trace {
					p.log.Log(ctx, LevelTrace, "optional chunk skipped", "num", ln.Num, "chunk", st.chunk)
				}
				st.chunk++
				st.occ = 0
			default:
				f := &MatchFailure{
					Start: st.rec.Start,
					Line:  ln.Num,
					Chunk: st.chunk,
					Desc:  c.String(),
					Text:  text,
				}
				next := i
				if next <= st.startIdx {
					next = st.startIdx + 1
				}
				p.log.Debug("match failed", "line", ln.Num, "chunk", st.chunk, "start", st.rec.Start)
				return Result{Status: StatusFailed, Failure: f, Next: next}, nil
			}
		}

		if st.chunk == len(p.chunks) {
			return p.complete(ctx, lines, st)
		}
	}

	if !st.begun {
		return Result{Status: StatusExhausted, Next: len(lines)}, nil
	}
	if !final {
		return Result{Status: StatusIncomplete, Next: st.startIdx}, nil
	}
	// Chunks remain when the input ends, even if they are optional or a
	// repeating run already matched.
	return Result{}, &MalformedDocumentError{
		Start:   st.rec.Start,
		Line:    lines[len(lines)-1].Num,
		Pending: st.chunk,
	}
}

func (p *Pattern) merge(st *matchState, c *Chunk, values []any) {
	for i, f := range c.fields {
		if c.repeats {
			st.rec.Set(OccurrenceName(f, st.occ), values[i])
		} else {
			st.rec.Set(f, values[i])
		}
	}
}

func (p *Pattern) complete(ctx context.Context, lines []Line, st *matchState) (Result, error) {
	rec := st.rec
	rec.End = lines[st.lastIdx].Num
	for _, op := range p.post {
		if err := op.fn(rec); err != nil {
			var ce *CleanError
			if errors.As(err, &ce) && ce.Line == 0 {
				ce.Line = rec.Start
			}
			return Result{}, fmt.Errorf("post-clean %s: %w", op.spec.Op, err)
		}
	}
	p.log.Log(ctx, LevelTrace, "record complete", "start", rec.Start, "end", rec.End, "fields", rec.Len())
	return Result{Status: StatusComplete, Record: rec, Next: st.lastIdx + 1}, nil
}

func (p *Pattern) String() string {
	return fmt.Sprintf("<pattern %q chunks=%d>", p.id, len(p.chunks))
}
