package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/chunkmine/chunkmine-go/internal/sink"
)

// outputFlags selects where mined tables go.
type outputFlags struct {
	Format string
	Output string
	DBPath string
}

func (f outputFlags) withDefaults() outputFlags {
	if f.Format == "" {
		f.Format = cfg.Format
	}
	if f.DBPath == "" {
		f.DBPath = cfg.DBPath
	}
	return f
}

// openSink opens the configured sink. Stream formats write to the output
// file, or stdout when none is given. The returned close function closes
// both the sink and the file.
func openSink(ctx context.Context, f outputFlags, patternID string, stdout io.Writer) (sink.Sink, func() error, error) {
	if !sink.Valid(f.Format) {
		return nil, nil, fmt.Errorf("invalid format %q (valid: %v)", f.Format, sink.Kinds())
	}

	sc := sink.Config{Kind: f.Format, Out: stdout, DSN: f.DBPath, Pattern: patternID}
	var file *os.File
	if f.Output != "" && f.Format != "sqlite" {
		var err error
		file, err = os.Create(f.Output)
		if err != nil {
			return nil, nil, fmt.Errorf("create output: %w", err)
		}
		sc.Out = file
	}

	s, err := sink.New(ctx, sc)
	if err != nil {
		if file != nil {
			_ = file.Close()
		}
		return nil, nil, err
	}

	closeFn := func() error {
		err := s.Close()
		if file != nil {
			if cerr := file.Close(); err == nil {
				err = cerr
			}
		}
		return err
	}
	return s, closeFn, nil
}
