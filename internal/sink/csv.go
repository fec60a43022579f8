package sink

import (
	"context"
	"encoding/csv"
	"slices"

	"github.com/chunkmine/chunkmine-go/pkg/chunkmine"
)

func init() {
	Register("csv", newCSV)
}

// csvSink writes a header row followed by one row per record. The header
// is repeated only when a later table has different columns.
type csvSink struct {
	w      *csv.Writer
	header []string
}

func newCSV(_ context.Context, cfg Config) (Sink, error) {
	if err := needWriter(cfg); err != nil {
		return nil, err
	}
	return &csvSink{w: csv.NewWriter(cfg.Out)}, nil
}

func (s *csvSink) Write(ctx context.Context, t *chunkmine.Table) error {
	if !slices.Equal(s.header, t.Columns) {
		if err := s.w.Write(t.Columns); err != nil {
			return err
		}
		s.header = slices.Clone(t.Columns)
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i, v := range row {
			rec[i] = FormatValue(v)
		}
		if err := s.w.Write(rec); err != nil {
			return err
		}
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *csvSink) Close() error {
	s.w.Flush()
	return s.w.Error()
}
