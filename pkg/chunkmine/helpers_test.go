package chunkmine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chunkmine/chunkmine-go/pkg/chunkmine"
	"github.com/chunkmine/chunkmine-go/pkg/chunkmine/pattern"
)

const banditBlock = ">> Issue: [B101:assert_used]\nUse of assert detected.\n   Severity: Low   Confidence: High\n   Location: app.py:42\n42\tassert x > 0\n\n--------------------------------------------------"

// kvPattern matches single-line "key=<k> value=<v>" records.
func kvPattern(t testing.TB) *pattern.Pattern {
	t.Helper()
	p, err := pattern.NewPattern(pattern.Definition{
		ID: "kv",
		Chunks: []pattern.ChunkDef{
			{Regex: `key=(?P<key>\w+)`, Fields: []string{"key"}},
			{Regex: `\s+value=(?P<value>\w+)`, Fields: []string{"value"}},
		},
	})
	require.NoError(t, err)
	return p
}

// blockPattern matches "begin <name>", one or more "  item <x>" lines and
// an optional "end" line.
func blockPattern(t testing.TB) *pattern.Pattern {
	t.Helper()
	p, err := pattern.NewPattern(pattern.Definition{
		ID: "block",
		Chunks: []pattern.ChunkDef{
			{Regex: `begin (?P<name>\w+)`, Fields: []string{"name"}},
			{Regex: `\s+item (?P<item>\w+)`, Fields: []string{"item"}, Repeats: true},
			{Regex: `end`, Optional: true},
		},
	})
	require.NoError(t, err)
	return p
}

func banditPattern(t testing.TB) *pattern.Pattern {
	t.Helper()
	p, err := pattern.NewPattern(pattern.Definition{
		ID: "bandit",
		Chunks: []pattern.ChunkDef{
			{Regex: `>> Issue: \[(?P<issue_num>\w+):(?P<issue_name>\w+)\]`, Fields: []string{"issue_num", "issue_name"}},
			{Regex: `\s*(?P<issue_desc>.+)`, Fields: []string{"issue_desc"}},
			{Regex: `\s+Severity:\s+(?P<severity>\w+)\s+Confidence:\s+(?P<confidence>\w+)`, Fields: []string{"severity", "confidence"}},
			{Regex: `\s+Location:\s*(?P<file_name>[^:]+):(?P<line_num>\d+)`, Fields: []string{"file_name", "line_num"}},
			{Regex: `(?P<code>\d+\t.*)`, Fields: []string{"code"}, Repeats: true},
		},
	})
	require.NoError(t, err)
	return p
}

func newMiner(t testing.TB, p *pattern.Pattern, opts ...chunkmine.Option) *chunkmine.Miner {
	t.Helper()
	m, err := chunkmine.NewMiner(p, opts...)
	require.NoError(t, err)
	return m
}

func rec(start, end int, kv ...any) *pattern.Record {
	r := pattern.NewRecord()
	r.Start, r.End = start, end
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(kv[i].(string), kv[i+1])
	}
	return r
}
