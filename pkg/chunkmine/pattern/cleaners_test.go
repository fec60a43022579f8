package pattern_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkmine/chunkmine-go/pkg/chunkmine/pattern"
)

func dateTimeDef(post ...pattern.OpSpec) pattern.Definition {
	return pattern.Definition{
		ID: "dt",
		Chunks: []pattern.ChunkDef{
			{Regex: `(?P<date>\S+) (?P<time>\S+)`, Fields: []string{"date", "time"}},
		},
		PostClean: post,
	}
}

func TestMergeDateAndTime_FromStrings(t *testing.T) {
	p := mustPattern(t, dateTimeDef(pattern.OpSpec{Op: "merge_date_and_time"}))

	res, err := p.Match(context.Background(), toLines("2024-01-05 10:22:31,500"), 0)
	require.NoError(t, err)
	require.Equal(t, pattern.StatusComplete, res.Status)

	fields := res.Record.Fields()
	require.Len(t, fields, 1)
	assert.NotContains(t, fields, "date")
	assert.NotContains(t, fields, "time")
	want := time.Date(2024, 1, 5, 10, 22, 31, 500_000_000, time.UTC)
	assert.True(t, want.Equal(fields["datetime"].(time.Time)), "got %v", fields["datetime"])
}

func TestMergeDateAndTime_CustomColumns(t *testing.T) {
	p := mustPattern(t, dateTimeDef(pattern.OpSpec{
		Op:     "merge_date_and_time",
		Params: map[string]string{"date": "date", "time": "time", "out": "at"},
	}))

	res, err := p.Match(context.Background(), toLines("2024-01-05 10:22:31"), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"at"}, res.Record.Names())
}

func TestMergeDateAndTime_BadValue(t *testing.T) {
	p := mustPattern(t, dateTimeDef(pattern.OpSpec{Op: "merge_date_and_time"}))

	_, err := p.Match(context.Background(), toLines("yesterday noon"), 0)
	require.Error(t, err)
	var ce *pattern.CleanError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "date", ce.Field)
	assert.Equal(t, 1, ce.Line)
}

func TestRenameAndDrop(t *testing.T) {
	p := mustPattern(t, dateTimeDef(
		pattern.OpSpec{Op: "rename_field", Params: map[string]string{"from": "date", "to": "day"}},
		pattern.OpSpec{Op: "drop_fields", Params: map[string]string{"fields": "time"}},
	))

	res, err := p.Match(context.Background(), toLines("2024-01-05 10:22:31"), 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"day": "2024-01-05"}, res.Record.Fields())
}

func TestJoinRepeated(t *testing.T) {
	def := repeatingDef(false)
	def.PostClean = []pattern.OpSpec{{Op: "join_repeated", Params: map[string]string{"field": "item", "sep": ","}}}
	p := mustPattern(t, def)

	res, err := p.Match(context.Background(), toLines("list fruit:\n- apple\n- pear\nend"), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "item"}, res.Record.Names())
	assert.Equal(t, "apple,pear", res.Record.Fields()["item"])
}

func TestDropFields_Repeated(t *testing.T) {
	def := repeatingDef(false)
	def.PostClean = []pattern.OpSpec{{Op: "drop_fields", Params: map[string]string{"fields": "item"}}}
	p := mustPattern(t, def)

	res, err := p.Match(context.Background(), toLines("list fruit:\n- apple\n- pear\nend"), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, res.Record.Names())
}

func TestNewPattern_PostOpConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		op      pattern.OpSpec
		wantMsg string
	}{
		{"unknown op", pattern.OpSpec{Op: "summon"}, `unknown post-clean operation "summon"`},
		{"merge undeclared", pattern.OpSpec{Op: "merge_date_and_time", Params: map[string]string{"date": "day"}}, `"day" is not declared`},
		{"rename missing params", pattern.OpSpec{Op: "rename_field"}, "requires from and to"},
		{"drop undeclared", pattern.OpSpec{Op: "drop_fields", Params: map[string]string{"fields": "nope"}}, `"nope" is not declared`},
		{"join non-repeating", pattern.OpSpec{Op: "join_repeated", Params: map[string]string{"field": "date"}}, "not declared by a repeating chunk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pattern.NewPattern(dateTimeDef(tt.op))
			require.Error(t, err)
			var ce *pattern.ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, "dt", ce.Pattern)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestNewPattern_ChunkErrorCarriesPosition(t *testing.T) {
	def := detectorDef()
	def.Chunks[2].Clean = map[string]pattern.OpSpec{"nope": {Op: "trim_space"}}

	_, err := pattern.NewPattern(def)
	var ce *pattern.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "detector", ce.Pattern)
	assert.Equal(t, 2, ce.Chunk)
	assert.True(t, strings.HasPrefix(err.Error(), `pattern "detector" chunk[2]`), err.Error())
}

func TestNewPattern_FieldDeclaredByTwoChunks(t *testing.T) {
	_, err := pattern.NewPattern(pattern.Definition{
		ID: "dup",
		Chunks: []pattern.ChunkDef{
			{Regex: `a(?P<x>\d)`, Fields: []string{"x"}},
			{Regex: `b(?P<x>\d)`, Fields: []string{"x"}},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already declared")
}

func TestNewPattern_OccurrenceCollision(t *testing.T) {
	_, err := pattern.NewPattern(pattern.Definition{
		ID: "collide",
		Chunks: []pattern.ChunkDef{
			{Regex: `a(?P<code_0>\d)`, Fields: []string{"code_0"}},
			{Regex: `b(?P<code>\d)`, Fields: []string{"code"}, Repeats: true},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collides")
}

func TestNewPattern_NoChunks(t *testing.T) {
	_, err := pattern.NewPattern(pattern.Definition{ID: "empty"})
	var ce *pattern.ConfigError
	require.True(t, errors.As(err, &ce))
}

func TestRegisterFieldCleaner(t *testing.T) {
	pattern.RegisterFieldCleaner("test_upper", func(map[string]string) (pattern.FieldCleaner, error) {
		return func(v string) (any, error) { return strings.ToUpper(v), nil }, nil
	})
	assert.Contains(t, pattern.FieldCleanerNames(), "test_upper")

	assert.Panics(t, func() {
		pattern.RegisterFieldCleaner("test_upper", func(map[string]string) (pattern.FieldCleaner, error) { return nil, nil })
	})

	p := mustPattern(t, pattern.Definition{
		ID: "upper",
		Chunks: []pattern.ChunkDef{
			{Regex: `(?P<w>\w+)`, Fields: []string{"w"}, Clean: map[string]pattern.OpSpec{"w": {Op: "test_upper"}}},
		},
	})
	res, err := p.Match(context.Background(), toLines("shout"), 0)
	require.NoError(t, err)
	assert.Equal(t, "SHOUT", res.Record.Fields()["w"])
}

func TestRegisterPostOp(t *testing.T) {
	pattern.RegisterPostOp("test_count", func(spec pattern.OpSpec, fields pattern.FieldSet) (pattern.PostOp, error) {
		return func(rec *pattern.Record) error {
			rec.Set("n_fields", rec.Len())
			return nil
		}, nil
	})
	assert.Contains(t, pattern.PostOpNames(), "test_count")
	assert.Panics(t, func() { pattern.RegisterPostOp("", nil) })

	p := mustPattern(t, dateTimeDef(pattern.OpSpec{Op: "test_count"}))
	res, err := p.Match(context.Background(), toLines("a b"), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Record.Fields()["n_fields"])
}

func TestRecord_ReplaceKeepsPosition(t *testing.T) {
	r := pattern.NewRecord()
	r.Set("a", 1)
	r.Set("b", 2)
	r.Set("c", 3)
	r.Replace("b", "bb", 20)
	assert.Equal(t, []string{"a", "bb", "c"}, r.Names())

	r.Delete("a")
	r.Delete("missing")
	assert.Equal(t, []string{"bb", "c"}, r.Names())
	assert.Equal(t, 2, r.Len())

	clone := r.Clone()
	clone.Set("d", 4)
	assert.Equal(t, 2, r.Len())
}
