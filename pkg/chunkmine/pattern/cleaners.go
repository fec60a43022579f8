package pattern

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Default layouts used by the date and time cleaners. Fractional seconds
// after the seconds field (".500" or ",500") are accepted by time.Parse
// without being spelled out in the layout.
const (
	DefaultDateLayout     = "2006-01-02"
	DefaultTimeLayout     = "15:04:05"
	DefaultDateTimeLayout = "2006-01-02 15:04:05"
)

// FieldCleaner transforms one captured value into its record-ready form.
type FieldCleaner func(value string) (any, error)

// FieldCleanerFactory builds a FieldCleaner from its parameters.
type FieldCleanerFactory func(params map[string]string) (FieldCleaner, error)

// PostOp is a record-level operation run after all chunks matched.
type PostOp func(rec *Record) error

// PostOpFactory builds a PostOp. fields holds the fields declared by the
// pattern's chunks so the factory can reject references to undeclared ones.
type PostOpFactory func(spec OpSpec, fields FieldSet) (PostOp, error)

// FieldSet is the set of fields a pattern declares, split by whether the
// declaring chunk repeats.
type FieldSet struct {
	plain    map[string]bool
	repeated map[string]bool
}

func newFieldSet() FieldSet {
	return FieldSet{plain: map[string]bool{}, repeated: map[string]bool{}}
}

// Has reports whether a non-repeating chunk declares name.
func (s FieldSet) Has(name string) bool { return s.plain[name] }

// HasRepeated reports whether a repeating chunk declares name.
func (s FieldSet) HasRepeated(name string) bool { return s.repeated[name] }

var (
	registryMu    sync.RWMutex
	fieldCleaners = map[string]FieldCleanerFactory{
		"convert_date":     timeCleaner(DefaultDateLayout),
		"convert_time":     timeCleaner(DefaultTimeLayout),
		"convert_datetime": timeCleaner(DefaultDateTimeLayout),
		"to_int":           func(map[string]string) (FieldCleaner, error) { return toInt, nil },
		"trim_space":       func(map[string]string) (FieldCleaner, error) { return trimSpace, nil },
	}
	postOps = map[string]PostOpFactory{
		"merge_date_and_time": newMergeDateAndTime,
		"rename_field":        newRenameField,
		"drop_fields":         newDropFields,
		"join_repeated":       newJoinRepeated,
	}
)

// RegisterFieldCleaner registers a field cleaner under name.
//
// Panics if name is empty, f is nil, or name is already registered.
func RegisterFieldCleaner(name string, f FieldCleanerFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if name == "" || f == nil {
		panic("pattern: RegisterFieldCleaner with empty name or nil factory")
	}
	if _, dup := fieldCleaners[name]; dup {
		panic("pattern: field cleaner registered twice: " + name)
	}
	fieldCleaners[name] = f
}

// RegisterPostOp registers a post-clean operation under name.
//
// Panics if name is empty, f is nil, or name is already registered.
func RegisterPostOp(name string, f PostOpFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if name == "" || f == nil {
		panic("pattern: RegisterPostOp with empty name or nil factory")
	}
	if _, dup := postOps[name]; dup {
		panic("pattern: post op registered twice: " + name)
	}
	postOps[name] = f
}

// FieldCleanerNames returns the registered field cleaner names, sorted.
func FieldCleanerNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return sortedKeys(fieldCleaners)
}

// PostOpNames returns the registered post-clean operation names, sorted.
func PostOpNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return sortedKeys(postOps)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func lookupFieldCleaner(name string) (FieldCleanerFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := fieldCleaners[name]
	return f, ok
}

func lookupPostOp(name string) (PostOpFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := postOps[name]
	return f, ok
}

// timeCleaner parses values with the "layout" parameter (or def) in the
// location named by "tz" (UTC when unset).
func timeCleaner(def string) FieldCleanerFactory {
	return func(params map[string]string) (FieldCleaner, error) {
		layout := def
		if v := params["layout"]; v != "" {
			layout = v
		}
		loc := time.UTC
		if tz := params["tz"]; tz != "" {
			l, err := time.LoadLocation(tz)
			if err != nil {
				return nil, fmt.Errorf("invalid tz %q: %w", tz, err)
			}
			loc = l
		}
		return func(value string) (any, error) {
			return time.ParseInLocation(layout, value, loc)
		}, nil
	}
}

func toInt(value string) (any, error) {
	return strconv.Atoi(strings.TrimSpace(value))
}

func trimSpace(value string) (any, error) {
	return strings.TrimSpace(value), nil
}

func newMergeDateAndTime(spec OpSpec, fields FieldSet) (PostOp, error) {
	dateCol := spec.Param("date", "date")
	timeCol := spec.Param("time", "time")
	outCol := spec.Param("out", "datetime")
	for _, f := range []string{dateCol, timeCol} {
		if !fields.Has(f) {
			return nil, fmt.Errorf("field %q is not declared by any chunk", f)
		}
	}
	return func(rec *Record) error {
		dv, ok1 := rec.Get(dateCol)
		tv, ok2 := rec.Get(timeCol)
		if !ok1 || !ok2 {
			return nil
		}
		d, err := asTime(dv, DefaultDateLayout)
		if err != nil {
			return &CleanError{Field: dateCol, Op: "merge_date_and_time", Cause: err}
		}
		t, err := asTime(tv, DefaultTimeLayout)
		if err != nil {
			return &CleanError{Field: timeCol, Op: "merge_date_and_time", Cause: err}
		}
		merged := time.Date(d.Year(), d.Month(), d.Day(),
			t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), d.Location())
		rec.Replace(dateCol, outCol, merged)
		if timeCol != outCol {
			rec.Delete(timeCol)
		}
		return nil
	}, nil
}

func asTime(v any, layout string) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		return time.Parse(layout, x)
	default:
		return time.Time{}, fmt.Errorf("unsupported value type %T", v)
	}
}

func newRenameField(spec OpSpec, fields FieldSet) (PostOp, error) {
	from, to := spec.Param("from", ""), spec.Param("to", "")
	if from == "" || to == "" {
		return nil, fmt.Errorf("rename_field requires from and to")
	}
	if !fields.Has(from) {
		return nil, fmt.Errorf("field %q is not declared by any chunk", from)
	}
	return func(rec *Record) error {
		v, ok := rec.Get(from)
		if !ok {
			return nil
		}
		rec.Replace(from, to, v)
		return nil
	}, nil
}

func newDropFields(spec OpSpec, fields FieldSet) (PostOp, error) {
	var plain, repeated []string
	for _, f := range strings.Split(spec.Param("fields", ""), ",") {
		f = strings.TrimSpace(f)
		switch {
		case f == "":
		case fields.Has(f):
			plain = append(plain, f)
		case fields.HasRepeated(f):
			repeated = append(repeated, f)
		default:
			return nil, fmt.Errorf("field %q is not declared by any chunk", f)
		}
	}
	if len(plain)+len(repeated) == 0 {
		return nil, fmt.Errorf("drop_fields requires fields")
	}
	return func(rec *Record) error {
		for _, f := range plain {
			rec.Delete(f)
		}
		for _, f := range repeated {
			for _, n := range occurrences(rec, f) {
				rec.Delete(n)
			}
		}
		return nil
	}, nil
}

func newJoinRepeated(spec OpSpec, fields FieldSet) (PostOp, error) {
	field := spec.Param("field", "")
	if !fields.HasRepeated(field) {
		return nil, fmt.Errorf("field %q is not declared by a repeating chunk", field)
	}
	sep := "\n"
	if v, ok := spec.Params["sep"]; ok {
		sep = v
	}
	out := spec.Param("out", field)
	return func(rec *Record) error {
		names := occurrences(rec, field)
		if len(names) == 0 {
			return nil
		}
		parts := make([]string, 0, len(names))
		for _, n := range names {
			v, _ := rec.Get(n)
			parts = append(parts, fmt.Sprint(v))
			rec.Delete(n)
		}
		rec.Set(out, strings.Join(parts, sep))
		return nil
	}, nil
}

// occurrences returns base_0, base_1, ... for as long as they are present.
func occurrences(rec *Record, base string) []string {
	var names []string
	for i := 0; ; i++ {
		n := OccurrenceName(base, i)
		if _, ok := rec.Get(n); !ok {
			return names
		}
		names = append(names, n)
	}
}

// OccurrenceName returns the record field name of occurrence i of a
// repeating chunk's field.
func OccurrenceName(field string, i int) string {
	return field + "_" + strconv.Itoa(i)
}
