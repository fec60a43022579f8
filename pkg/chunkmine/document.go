package chunkmine

import (
	"io"
	"strconv"
	"strings"

	"github.com/chunkmine/chunkmine-go/internal/source"
	"github.com/chunkmine/chunkmine-go/pkg/chunkmine/pattern"
)

// Line is one numbered line of a document.
type Line = pattern.Line

// Span locates one input of a Document by line number.
type Span struct {
	Name  string
	First int
	Last  int // First-1 for an empty input
}

// Document is an ordered sequence of numbered lines. Numbering is 1-based
// and continues across inputs: the first line of the second file follows
// the last line of the first.
type Document struct {
	Lines []Line
	Spans []Span
}

// NewDocument builds a document from in-memory text. Each argument is one
// input; it is split on newlines.
func NewDocument(texts ...string) *Document {
	d := &Document{}
	for i, text := range texts {
		first := d.next()
		for _, s := range strings.Split(text, "\n") {
			d.Lines = append(d.Lines, Line{Num: d.next(), Text: strings.TrimSuffix(s, "\r")})
		}
		d.Spans = append(d.Spans, Span{Name: "text" + strconv.Itoa(i), First: first, Last: d.next() - 1})
	}
	return d
}

// ReadDocument reads r into a document whose first line is numbered
// firstLine (1 when firstLine < 1). WithEncoding and WithMaxLineBytes
// apply; other options are ignored.
func ReadDocument(r io.Reader, firstLine int, opts ...Option) (*Document, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	if firstLine < 1 {
		firstLine = 1
	}
	d := &Document{}
	if err := d.read("reader", r, firstLine, cfg); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadDocument reads one or more files into a single document with
// continuous numbering. Only regular files are accepted.
func LoadDocument(paths []string, opts ...Option) (*Document, error) {
	if len(paths) == 0 {
		return nil, ErrNoInput
	}
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	d := &Document{}
	for _, path := range paths {
		if err := d.load(path, cfg); err != nil {
			return nil, err
		}
		last := d.Spans[len(d.Spans)-1]
		cfg.logger.Debug("loaded input", "path", path, "first", last.First, "last", last.Last)
	}
	return d, nil
}

func (d *Document) load(path string, cfg *config) error {
	f, _, err := source.OpenRegular(path)
	if err != nil {
		return &LoadError{Path: path, Err: err}
	}
	defer f.Close()
	if err := d.read(path, f, d.next(), cfg); err != nil {
		return &LoadError{Path: path, Err: err}
	}
	return nil
}

func (d *Document) read(name string, r io.Reader, first int, cfg *config) error {
	num := first
	err := source.Scan(r, cfg.enc, cfg.maxLineBytes, func(text string) error {
		d.Lines = append(d.Lines, Line{Num: num, Text: text})
		num++
		return nil
	})
	if err != nil {
		return err
	}
	d.Spans = append(d.Spans, Span{Name: name, First: first, Last: num - 1})
	return nil
}

// next returns the number the following line gets.
func (d *Document) next() int {
	if len(d.Lines) == 0 {
		return 1
	}
	return d.Lines[len(d.Lines)-1].Num + 1
}

// Len returns the number of lines.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Lines)
}

// SpanOf returns the input a line number belongs to.
func (d *Document) SpanOf(num int) (Span, bool) {
	for _, s := range d.Spans {
		if num >= s.First && num <= s.Last {
			return s, true
		}
	}
	return Span{}, false
}
