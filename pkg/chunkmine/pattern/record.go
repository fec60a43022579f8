package pattern

import "fmt"

// Line is one line of a document with its line number. Text carries no
// line terminator.
type Line struct {
	Num  int
	Text string
}

// Record is the merged field map produced by one complete pass of a
// Pattern, bounded by the inclusive line range [Start, End].
//
// Field order follows the order in which chunks produced the fields and is
// kept stable by Set and Delete.
type Record struct {
	Start int
	End   int

	fields map[string]any
	order  []string
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{fields: make(map[string]any)}
}

// Get returns the value of a field.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// Set assigns a field, appending it to the field order when new.
func (r *Record) Set(name string, v any) {
	if r.fields == nil {
		r.fields = make(map[string]any)
	}
	if _, ok := r.fields[name]; !ok {
		r.order = append(r.order, name)
	}
	r.fields[name] = v
}

// Delete removes a field. Deleting a missing field is a no-op.
func (r *Record) Delete(name string) {
	if _, ok := r.fields[name]; !ok {
		return
	}
	delete(r.fields, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
}

// Replace swaps field old for field name with value v, keeping old's
// position. When old is missing it behaves like Set.
func (r *Record) Replace(old, name string, v any) {
	if _, ok := r.fields[old]; !ok || old == name {
		r.Set(name, v)
		return
	}
	if _, exists := r.fields[name]; exists {
		r.Delete(name)
	}
	delete(r.fields, old)
	for i, n := range r.order {
		if n == old {
			r.order[i] = name
			break
		}
	}
	r.fields[name] = v
}

// Names returns the field names in order.
func (r *Record) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.order)
}

// Fields returns a copy of the field map.
func (r *Record) Fields() map[string]any {
	out := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of the record's bookkeeping. Field values are
// shared.
func (r *Record) Clone() *Record {
	c := &Record{Start: r.Start, End: r.End, fields: r.Fields(), order: r.Names()}
	return c
}

func (r *Record) String() string {
	return fmt.Sprintf("Record[%d-%d]%v", r.Start, r.End, r.order)
}
