package sink

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chunkmine/chunkmine-go/pkg/chunkmine"
)

func init() {
	Register("pretty", newPretty)
}

// prettySink writes one line per record:
//
//	[start-end] key=value key=value
//
// Fields follow column order and missing cells are left out.
type prettySink struct {
	out io.Writer
}

func newPretty(_ context.Context, cfg Config) (Sink, error) {
	if err := needWriter(cfg); err != nil {
		return nil, err
	}
	return &prettySink{out: cfg.Out}, nil
}

func (s *prettySink) Write(ctx context.Context, t *chunkmine.Table) error {
	for _, row := range t.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(s.out, formatRow(t.Columns, row)); err != nil {
			return err
		}
	}
	return nil
}

func (s *prettySink) Close() error { return nil }

func formatRow(columns []string, row []any) string {
	var sb strings.Builder
	start, end := FormatValue(row[0]), FormatValue(row[1])
	if start == end {
		fmt.Fprintf(&sb, "[%s]", start)
	} else {
		fmt.Fprintf(&sb, "[%s-%s]", start, end)
	}
	for i := 2; i < len(row); i++ {
		if row[i] == nil {
			continue
		}
		sb.WriteByte(' ')
		sb.WriteString(quoteIfNeeded(columns[i]))
		sb.WriteByte('=')
		sb.WriteString(quoteIfNeeded(FormatValue(row[i])))
	}
	return sb.String()
}

// quoteIfNeeded quotes a value if it contains special characters or control characters.
// Returns the value unchanged if no quoting is needed.
func quoteIfNeeded(v string) string {
	if v == "" {
		return `""`
	}

	needsQuote := false
	for _, c := range v {
		// space, equals, quote, backslash, or any control character
		if c == ' ' || c == '=' || c == '"' || c == '\\' || c < 0x20 || c == 0x7F {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return v
	}

	var sb strings.Builder
	sb.WriteByte('"')
	for _, c := range v {
		switch {
		case c == '\\':
			sb.WriteString(`\\`)
		case c == '"':
			sb.WriteString(`\"`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20 || c == 0x7F:
			fmt.Fprintf(&sb, `\x%02x`, c)
		default:
			sb.WriteRune(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
