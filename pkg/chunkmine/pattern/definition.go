// Package pattern provides the chunked pattern-matching engine used to mine
// records out of multi-line text. A Pattern is an ordered sequence of chunks;
// each chunk is an anchored regular expression with declared fields, a
// repeat flag, an optional flag and per-field cleaners. Pattern definitions
// can be written in Go or loaded from YAML/TOML files.
package pattern

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// PatternFile represents the structure of a pattern definition file.
//
// Example YAML file:
//
//	version: 1
//	patterns:
//	  - id: detector
//	    chunks:
//	      - regex: '(?P<date>\d{4}-\d{2}-\d{2})\s+(?P<time>\d+:\d+:\d+,\d+)'
//	        fields: [date, time]
//	        clean:
//	          date: convert_date
//	          time: convert_time
//	      - regex: '\s+(?P<level>[A-Z]+):\s+(?P<message>.*)'
//	        fields: [level, message]
//	    post_clean:
//	      - op: merge_date_and_time
type PatternFile struct {
	// Version is the definition file format version. Only version 1 is supported.
	Version int `yaml:"version" toml:"version"`

	// Patterns is the list of record templates in the file.
	Patterns []Definition `yaml:"patterns" toml:"patterns"`
}

// Definition describes one record template.
type Definition struct {
	// ID identifies the pattern; unique within a file.
	ID string `yaml:"id" toml:"id"`

	// Description is free text shown by the CLI.
	Description string `yaml:"description,omitempty" toml:"description,omitempty"`

	// Chunks is the record grammar. Order is significant.
	Chunks []ChunkDef `yaml:"chunks" toml:"chunks"`

	// PostClean lists record-level operations run in order after all chunks match.
	PostClean []OpSpec `yaml:"post_clean,omitempty" toml:"post_clean,omitempty"`
}

// ChunkDef describes a single chunk.
type ChunkDef struct {
	// Regex is matched anchored at the start of the remaining line text.
	Regex string `yaml:"regex" toml:"regex"`

	// Fields lists the named capture groups of Regex. Every named group must
	// be declared and every declared field must be a named group.
	Fields []string `yaml:"fields" toml:"fields"`

	Repeats  bool `yaml:"repeats,omitempty" toml:"repeats,omitempty"`
	Optional bool `yaml:"optional,omitempty" toml:"optional,omitempty"`

	// Clean maps a field name to the cleaner applied to its captured value.
	Clean map[string]OpSpec `yaml:"clean,omitempty" toml:"clean,omitempty"`
}

// OpSpec names a registered operation and its parameters.
//
// In YAML an operation without parameters may be written as a plain string:
//
//	clean:
//	  date: convert_date
//	  time: {op: convert_time, params: {layout: "15:04:05.000"}}
type OpSpec struct {
	Op     string            `yaml:"op" toml:"op"`
	Params map[string]string `yaml:"params,omitempty" toml:"params,omitempty"`
}

// UnmarshalYAML accepts either a scalar operation name or a mapping.
func (o *OpSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		o.Op = node.Value
		o.Params = nil
		return nil
	}
	type plain OpSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*o = OpSpec(p)
	return nil
}

// Param returns the named parameter or def when it is unset.
func (o OpSpec) Param(name, def string) string {
	if v, ok := o.Params[name]; ok && v != "" {
		return v
	}
	return def
}

func (o OpSpec) String() string {
	if len(o.Params) == 0 {
		return o.Op
	}
	keys := make([]string, 0, len(o.Params))
	for k := range o.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, o.Params[k]))
	}
	return o.Op + "(" + strings.Join(parts, ",") + ")"
}

// Find returns the definition with the given id.
func (pf *PatternFile) Find(id string) (Definition, bool) {
	for _, d := range pf.Patterns {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}
