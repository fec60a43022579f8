// Package follow streams the lines of a growing file.
package follow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/nxadm/tail"

	"github.com/chunkmine/chunkmine-go/internal/source"
)

// Config configures a Follower.
type Config struct {
	// FromStart reads the existing content before following. Otherwise
	// reading starts at the current end of the file.
	FromStart bool

	// Poll uses stat polling instead of file system notifications.
	Poll bool

	// ReOpen reopens the file when it is rotated or recreated.
	ReOpen bool

	// MaxLineBytes splits longer lines. 0 means no limit.
	MaxLineBytes int

	Logger *slog.Logger
}

// DefaultConfig returns the configuration used by the CLI.
func DefaultConfig() Config {
	return Config{ReOpen: true}
}

// Follower delivers the lines of one file on a channel until stopped.
type Follower struct {
	t      *tail.Tail
	lines  chan string
	errs   chan error
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// New starts following path. The file must exist and be a regular file.
// The follower stops when ctx is cancelled or Stop is called.
func New(ctx context.Context, path string, cfg Config) (*Follower, error) {
	f, _, err := source.OpenRegular(path)
	if err != nil {
		return nil, err
	}
	f.Close()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	tc := tail.Config{
		Follow:      true,
		ReOpen:      cfg.ReOpen,
		Poll:        cfg.Poll,
		MustExist:   true,
		MaxLineSize: cfg.MaxLineBytes,
		Logger:      slog.NewLogLogger(logger.Handler(), slog.LevelDebug),
	}
	if !cfg.FromStart {
		tc.Location = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}

	t, err := tail.TailFile(path, tc)
	if err != nil {
		return nil, fmt.Errorf("tail: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	fl := &Follower{
		t:      t,
		lines:  make(chan string),
		errs:   make(chan error, 16),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go fl.run(ctx)
	return fl, nil
}

// Lines returns the channel of line texts, without line terminators.
// It is closed when the follower stops.
func (f *Follower) Lines() <-chan string { return f.lines }

// Errors returns non-fatal read errors. It is closed when the follower stops.
func (f *Follower) Errors() <-chan error { return f.errs }

// Stop stops following and waits for the reader goroutine to exit.
// Safe to call multiple times.
func (f *Follower) Stop() error {
	var err error
	f.once.Do(func() {
		f.cancel()
		<-f.done
		err = f.t.Stop()
		f.t.Cleanup()
	})
	return err
}

func (f *Follower) run(ctx context.Context) {
	defer close(f.done)
	defer close(f.lines)
	defer close(f.errs)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-f.t.Lines:
			if !ok {
				if err := f.t.Wait(); err != nil && !errors.Is(err, tail.ErrStop) {
					f.sendError(err)
				}
				return
			}
			if line.Err != nil {
				f.sendError(line.Err)
				continue
			}
			select {
			case f.lines <- strings.TrimSuffix(line.Text, "\r"):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (f *Follower) sendError(err error) {
	select {
	case f.errs <- err:
	default:
	}
}
