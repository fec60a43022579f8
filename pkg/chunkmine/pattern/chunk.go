package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Chunk is the atomic line-matching unit of a Pattern.
//
// A Chunk is immutable once built and safe for concurrent use.
type Chunk struct {
	source   string
	re       *regexp.Regexp
	fields   []string
	index    []int // capture group index per field
	repeats  bool
	optional bool
	cleaners map[string]namedCleaner
}

type namedCleaner struct {
	op string
	fn FieldCleaner
}

// NewChunk compiles a chunk definition. The regex is anchored at the start
// of the text it is matched against. Errors are *ConfigError values with
// Chunk set to -1; NewPattern fills in the position.
func NewChunk(def ChunkDef) (*Chunk, error) {
	cfgErr := func(field, msg string, cause error) error {
		return &ConfigError{Chunk: -1, Field: field, Message: msg, Cause: cause}
	}

	if def.Regex == "" {
		return nil, cfgErr("regex", "regex is required", nil)
	}
	if len(def.Regex) > MaxPatternLength {
		return nil, cfgErr("regex", fmt.Sprintf("pattern too long: %d bytes (max %d)", len(def.Regex), MaxPatternLength), nil)
	}
	re, err := regexp.Compile(`\A(?:` + def.Regex + `)`)
	if err != nil {
		return nil, cfgErr("regex", fmt.Sprintf("invalid regular expression: %v", err), err)
	}
	if re.MatchString("") {
		return nil, cfgErr("regex", "regex matches empty text", nil)
	}

	groups := make(map[string]int)
	for i, name := range re.SubexpNames() {
		if name == "" {
			continue
		}
		if _, dup := groups[name]; dup {
			return nil, cfgErr("regex", fmt.Sprintf("duplicate capture group %q", name), nil)
		}
		groups[name] = i
	}

	c := &Chunk{
		source:   def.Regex,
		re:       re,
		repeats:  def.Repeats,
		optional: def.Optional,
		fields:   make([]string, 0, len(def.Fields)),
		index:    make([]int, 0, len(def.Fields)),
		cleaners: make(map[string]namedCleaner, len(def.Clean)),
	}

	declared := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		if declared[f] {
			return nil, cfgErr("fields", fmt.Sprintf("field %q declared twice", f), nil)
		}
		i, ok := groups[f]
		if !ok {
			return nil, cfgErr("fields", fmt.Sprintf("field %q has no capture group (?P<%s>...)", f, f), nil)
		}
		declared[f] = true
		c.fields = append(c.fields, f)
		c.index = append(c.index, i)
	}
	for name := range groups {
		if !declared[name] {
			return nil, cfgErr("fields", fmt.Sprintf("capture group %q is not declared", name), nil)
		}
	}

	for field, spec := range def.Clean {
		if !declared[field] {
			return nil, cfgErr("clean", fmt.Sprintf("cleaner %s references undeclared field %q", spec.Op, field), nil)
		}
		factory, ok := lookupFieldCleaner(spec.Op)
		if !ok {
			return nil, cfgErr("clean", fmt.Sprintf("unknown field cleaner %q", spec.Op), nil)
		}
		fn, err := factory(spec.Params)
		if err != nil {
			return nil, cfgErr("clean", fmt.Sprintf("field cleaner %s: %v", spec, err), err)
		}
		c.cleaners[field] = namedCleaner{op: spec.Op, fn: fn}
	}

	return c, nil
}

// Fields returns the declared field names in declaration order.
func (c *Chunk) Fields() []string {
	out := make([]string, len(c.fields))
	copy(out, c.fields)
	return out
}

// Repeats reports whether the chunk may match on consecutive lines.
func (c *Chunk) Repeats() bool { return c.repeats }

// Optional reports whether the chunk may be skipped once a record has begun.
func (c *Chunk) Optional() bool { return c.optional }

// Match tries the chunk against the start of text. On success it returns
// the cleaned field values and the unconsumed suffix of text; ok is false
// when the chunk does not match. err is non-nil only when a cleaner fails.
func (c *Chunk) Match(text string) (values []any, rest string, ok bool, err error) {
	loc := c.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, text, false, nil
	}
	values = make([]any, len(c.fields))
	for i, f := range c.fields {
		g := c.index[i]
		var raw string
		if loc[2*g] >= 0 {
			raw = text[loc[2*g]:loc[2*g+1]]
		}
		cl, has := c.cleaners[f]
		if !has {
			values[i] = raw
			continue
		}
		v, cerr := cl.fn(raw)
		if cerr != nil {
			return nil, text, false, &CleanError{Field: f, Op: cl.op, Cause: cerr}
		}
		values[i] = v
	}
	return values, text[loc[1]:], true, nil
}

func (c *Chunk) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<chunk %q", c.source)
	if c.optional {
		b.WriteString(" optional")
	}
	if c.repeats {
		b.WriteString(" repeats")
	}
	b.WriteString(">")
	return b.String()
}
