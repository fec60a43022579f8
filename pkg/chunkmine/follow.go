package chunkmine

import (
	"context"
	"errors"
	"time"

	"github.com/chunkmine/chunkmine-go/internal/follow"
	"github.com/chunkmine/chunkmine-go/internal/source"
)

// Follow mines lines as they arrive on a channel. Records are appended to
// the bucket of index as soon as they complete. When the channel closes,
// a pending partial record is a *pattern.MalformedDocumentError, as in
// Mine.
//
// Follow returns ctx.Err() when ctx is cancelled; records mined until then
// stay in the bucket.
func (m *Miner) Follow(ctx context.Context, index string, lines <-chan Line) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activate(index)

	rep := &Report{Index: index, Pattern: m.pattern.ID()}
	started := time.Now()
	defer func() { rep.Elapsed = time.Since(started) }()

	var buf []Line
	pos := 0
	for {
		select {
		case <-ctx.Done():
			return rep, ctx.Err()
		case ln, ok := <-lines:
			if !ok {
				if err := ctx.Err(); err != nil {
					return rep, err
				}
				_, err := m.run(ctx, index, buf, pos, true, rep)
				return rep, err
			}
			rep.Lines++
			buf = append(buf, ln)

			next, err := m.run(ctx, index, buf, pos, false, rep)
			if err != nil {
				return rep, err
			}
			// Drop lines no pending record refers to.
			buf = append(buf[:0], buf[next:]...)
			pos = 0
		}
	}
}

// FollowFile tails the file at path, numbering lines from 1, and mines them
// with Follow until ctx is cancelled. With fromStart the existing content
// is mined first; otherwise only lines appended after the call are.
func (m *Miner) FollowFile(ctx context.Context, index, path string, fromStart bool) (*Report, error) {
	cfg := follow.DefaultConfig()
	cfg.FromStart = fromStart
	cfg.Poll = m.cfg.poll
	cfg.MaxLineBytes = m.cfg.maxLineBytes
	cfg.Logger = m.log

	f, err := follow.New(ctx, path, cfg)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer func() { _ = f.Stop() }()

	lines := make(chan Line)
	errCh := make(chan error, 1)
	// lines is closed only when the tail itself ends, so cancellation
	// never looks like the end of the stream.
	go func() {
		num := 0
		errs := f.Errors()
		for {
			select {
			case <-ctx.Done():
				return
			case text, ok := <-f.Lines():
				if !ok {
					close(lines)
					return
				}
				num++
				select {
				case lines <- Line{Num: num, Text: source.DecodeLine(m.cfg.enc, text)}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				m.log.Warn("follow error", "path", path, "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	rep, err := m.Follow(ctx, index, lines)
	if errors.Is(err, context.Canceled) {
		select {
		case ferr := <-errCh:
			return rep, errors.Join(err, ferr)
		default:
		}
	}
	return rep, err
}
