package pattern

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// sanitizePathError removes the path from os.PathError so error messages
// don't expose file system paths.
func sanitizePathError(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("%s: %w", pathErr.Op, pathErr.Err)
	}
	return err
}

const (
	// MaxPatternFileSize is the maximum allowed size for a pattern file (1MB).
	MaxPatternFileSize = 1 * 1024 * 1024

	// MaxPatternLength is the maximum allowed length of a single chunk regex.
	// Keeps chunk expressions reviewable and bounds compile cost.
	MaxPatternLength = 1024

	// MaxPatternCount is the maximum number of patterns in a file.
	MaxPatternCount = 1000

	// MaxChunkCount is the maximum number of chunks in one pattern.
	MaxChunkCount = 256

	// SupportedVersion is the currently supported definition file version.
	SupportedVersion = 1
)

// Format selects the encoding of a pattern file.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// FormatFromPath picks the format from the file extension. Anything other
// than .toml is read as YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Load reads and validates a pattern file. The format is chosen from the
// file extension (.toml for TOML, YAML otherwise).
//
// Non-regular files (FIFO, device, socket) are rejected, and the read is
// bounded by MaxPatternFileSize.
func Load(path string) (*PatternFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pattern file: %w", sanitizePathError(err))
	}
	defer f.Close()

	// Stat the descriptor, not the path, to avoid TOCTOU.
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat pattern file: %w", sanitizePathError(err))
	}
	if !info.Mode().IsRegular() {
		return nil, errors.New("pattern file must be a regular file (not FIFO, device, or special file)")
	}
	if info.Size() == 0 {
		return nil, errors.New("pattern file is empty")
	}
	if info.Size() > MaxPatternFileSize {
		return nil, fmt.Errorf("pattern file too large: %d bytes (max %d)", info.Size(), MaxPatternFileSize)
	}

	data, err := io.ReadAll(io.LimitReader(f, MaxPatternFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file: %w", sanitizePathError(err))
	}

	return LoadFormat(data, FormatFromPath(path))
}

// LoadBytes parses and validates a YAML pattern file.
func LoadBytes(data []byte) (*PatternFile, error) {
	return LoadFormat(data, FormatYAML)
}

// LoadFormat parses and validates a pattern file in the given format.
func LoadFormat(data []byte, format Format) (*PatternFile, error) {
	if len(data) == 0 {
		return nil, errors.New("pattern file is empty")
	}
	if len(data) > MaxPatternFileSize {
		return nil, fmt.Errorf("pattern file too large: %d bytes (max %d)", len(data), MaxPatternFileSize)
	}

	var pf PatternFile
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &pf); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := pf.Validate(); err != nil {
		return nil, err
	}
	return &pf, nil
}

// Validate performs schema-level validation:
//   - supported version number
//   - at least one pattern, and no more than MaxPatternCount
//   - required fields (id, chunks, chunk regex, op names)
//   - unique pattern ids
//   - regex length limits
//
// Regex compilation and operation lookup happen in NewPattern.
func (pf *PatternFile) Validate() error {
	if pf.Version != SupportedVersion {
		return &ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (only version %d is supported)", pf.Version, SupportedVersion),
		}
	}
	if len(pf.Patterns) == 0 {
		return &ValidationError{Field: "patterns", Message: "at least one pattern is required"}
	}
	if len(pf.Patterns) > MaxPatternCount {
		return &ValidationError{
			Field:   "patterns",
			Message: fmt.Sprintf("too many patterns (%d), maximum allowed is %d", len(pf.Patterns), MaxPatternCount),
		}
	}

	seenIDs := make(map[string]int, len(pf.Patterns))
	for i, p := range pf.Patterns {
		if p.ID == "" {
			return &ValidationError{Field: fmt.Sprintf("patterns[%d].id", i), Message: "id is required"}
		}
		if prev, exists := seenIDs[p.ID]; exists {
			return &ValidationError{
				Field:   fmt.Sprintf("patterns[%d].id", i),
				Message: fmt.Sprintf("duplicate id %q (previously defined at patterns[%d])", p.ID, prev),
			}
		}
		seenIDs[p.ID] = i

		if len(p.Chunks) == 0 {
			return &ValidationError{Field: fmt.Sprintf("patterns[%d].chunks", i), Message: "at least one chunk is required"}
		}
		if len(p.Chunks) > MaxChunkCount {
			return &ValidationError{
				Field:   fmt.Sprintf("patterns[%d].chunks", i),
				Message: fmt.Sprintf("too many chunks (%d), maximum allowed is %d", len(p.Chunks), MaxChunkCount),
			}
		}
		for j, c := range p.Chunks {
			field := fmt.Sprintf("patterns[%d].chunks[%d]", i, j)
			if c.Regex == "" {
				return &ValidationError{Field: field + ".regex", Message: "regex is required"}
			}
			if len(c.Regex) > MaxPatternLength {
				return &ValidationError{
					Field:   field + ".regex",
					Message: fmt.Sprintf("pattern too long: %d bytes (max %d)", len(c.Regex), MaxPatternLength),
				}
			}
			for name, op := range c.Clean {
				if op.Op == "" {
					return &ValidationError{Field: field + ".clean." + name, Message: "op is required"}
				}
			}
		}
		for j, op := range p.PostClean {
			if op.Op == "" {
				return &ValidationError{Field: fmt.Sprintf("patterns[%d].post_clean[%d]", i, j), Message: "op is required"}
			}
		}
	}
	return nil
}

// Compile builds every pattern in the file, keyed by id.
func (pf *PatternFile) Compile() (map[string]*Pattern, error) {
	if pf == nil {
		return nil, errors.New("pattern file is nil")
	}
	out := make(map[string]*Pattern, len(pf.Patterns))
	for _, d := range pf.Patterns {
		p, err := NewPattern(d)
		if err != nil {
			return nil, err
		}
		out[d.ID] = p
	}
	return out, nil
}

// Select builds the pattern with the given id. An empty id selects the only
// pattern of a single-pattern file.
func (pf *PatternFile) Select(id string) (*Pattern, error) {
	if pf == nil {
		return nil, errors.New("pattern file is nil")
	}
	if id == "" {
		if len(pf.Patterns) != 1 {
			return nil, fmt.Errorf("pattern file defines %d patterns; choose one by id", len(pf.Patterns))
		}
		return NewPattern(pf.Patterns[0])
	}
	d, ok := pf.Find(id)
	if !ok {
		return nil, fmt.Errorf("pattern %q not found", id)
	}
	return NewPattern(d)
}

// NewPatternFromFile loads a pattern file and builds the pattern with the
// given id in one step.
func NewPatternFromFile(path, id string) (*Pattern, error) {
	pf, err := Load(path)
	if err != nil {
		return nil, err
	}
	return pf.Select(id)
}
