// Package source opens input documents and splits them into decoded lines.
package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultMaxLineBytes bounds a single line read by Scan.
const DefaultMaxLineBytes = 1024 * 1024

// ErrNotRegularFile is returned when attempting to open a file that is not a regular file.
// This includes symlinks, FIFOs, devices, sockets, and directories.
var ErrNotRegularFile = errors.New("not a regular file")

// ErrLineTooLong is returned by Scan when a line exceeds the configured limit.
var ErrLineTooLong = errors.New("line too long")

// OpenRegular opens a file and verifies it is a regular file.
//
// The path is checked with os.Lstat before opening, so symlinks are
// rejected, and the opened descriptor is checked again to catch a file
// swapped between the two calls. The caller must close the returned file.
func OpenRegular(path string) (*os.File, os.FileInfo, error) {
	linkInfo, err := os.Lstat(path)
	if err != nil {
		return nil, nil, err
	}
	if !linkInfo.Mode().IsRegular() {
		return nil, nil, ErrNotRegularFile
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, ErrNotRegularFile
	}
	return f, info, nil
}

// Encoding resolves a charset label such as "utf-8", "latin1",
// "windows-1252" or "shift_jis". An empty label selects UTF-8 with an
// optional byte order mark.
//
// Decoders returned for UTF-8 replace invalid byte sequences with U+FFFD.
func Encoding(label string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", label, err)
	}
	return enc, nil
}

// Scan decodes r with enc and calls fn with the text of every line, line
// terminators stripped. A nil enc means UTF-8. maxLineBytes <= 0 selects
// DefaultMaxLineBytes.
func Scan(r io.Reader, enc encoding.Encoding, maxLineBytes int, fn func(text string) error) error {
	if enc == nil {
		enc = unicode.UTF8BOM
	}
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}

	initial := 64 * 1024
	if maxLineBytes < initial {
		initial = maxLineBytes
	}
	sc := bufio.NewScanner(transform.NewReader(r, enc.NewDecoder()))
	sc.Buffer(make([]byte, 0, initial), maxLineBytes)
	for sc.Scan() {
		if err := fn(sc.Text()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("%w (max %d bytes)", ErrLineTooLong, maxLineBytes)
		}
		return err
	}
	return nil
}

// DecodeLine decodes a single raw line with enc and strips a trailing
// carriage return. A nil enc means UTF-8.
func DecodeLine(enc encoding.Encoding, raw string) string {
	if enc == nil {
		enc = unicode.UTF8
	}
	s, err := enc.NewDecoder().String(raw)
	if err != nil {
		s = strings.ToValidUTF8(raw, "�")
	}
	return strings.TrimSuffix(s, "\r")
}
