package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/chunkmine/chunkmine-go/pkg/chunkmine"
)

func init() {
	Register("jsonl", newJSONL)
}

// jsonlSink writes one JSON object per record, keys in column order.
// Missing cells are omitted.
type jsonlSink struct {
	out io.Writer
}

func newJSONL(_ context.Context, cfg Config) (Sink, error) {
	if err := needWriter(cfg); err != nil {
		return nil, err
	}
	return &jsonlSink{out: cfg.Out}, nil
}

func (s *jsonlSink) Write(ctx context.Context, t *chunkmine.Table) error {
	var buf bytes.Buffer
	for _, row := range t.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		buf.Reset()
		if err := encodeObject(&buf, t.Columns, row); err != nil {
			return err
		}
		buf.WriteByte('\n')
		if _, err := s.out.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func (s *jsonlSink) Close() error { return nil }

// encodeObject writes columns and values as a JSON object, preserving
// column order and skipping nil values.
func encodeObject(buf *bytes.Buffer, columns []string, values []any) error {
	buf.WriteByte('{')
	first := true
	for i, v := range values {
		if v == nil {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(columns[i])
		if err != nil {
			return err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return nil
}
