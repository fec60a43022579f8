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

func toLines(text string) []pattern.Line {
	raw := strings.Split(text, "\n")
	lines := make([]pattern.Line, len(raw))
	for i, t := range raw {
		lines[i] = pattern.Line{Num: i + 1, Text: t}
	}
	return lines
}

func banditDef() pattern.Definition {
	return pattern.Definition{
		ID: "bandit",
		Chunks: []pattern.ChunkDef{
			{Regex: `>> Issue: \[(?P<issue_num>\w+):(?P<issue_name>\w+)\]`, Fields: []string{"issue_num", "issue_name"}},
			{Regex: `\s*(?P<issue_desc>.+)`, Fields: []string{"issue_desc"}},
			{Regex: `\s+Severity:\s+(?P<severity>\w+)\s+Confidence:\s+(?P<confidence>\w+)`, Fields: []string{"severity", "confidence"}},
			{Regex: `\s+CWE:\s+(?P<cwe>\S+).*`, Fields: []string{"cwe"}, Optional: true},
			{Regex: `\s+Location:\s*(?P<file_name>[^:]+):(?P<line_num>\d+)(?::\d+)?`, Fields: []string{"file_name", "line_num"}},
			{Regex: `(?P<code>\d+\t.*)`, Fields: []string{"code"}, Repeats: true},
		},
	}
}

func detectorDef() pattern.Definition {
	return pattern.Definition{
		ID: "detector",
		Chunks: []pattern.ChunkDef{
			{
				Regex:  `(?P<date>[0-9]{4}-[0-9]{2}-[0-9]{2})\s+(?P<time>\d+:\d+:\d+,\d+)`,
				Fields: []string{"date", "time"},
				Clean: map[string]pattern.OpSpec{
					"date": {Op: "convert_date"},
					"time": {Op: "convert_time"},
				},
			},
			{Regex: `\s+(?P<level>[A-Z]+):\s+PID:\s+(?P<pid>\d+)\s+\|\s+`, Fields: []string{"level", "pid"}},
			{Regex: `(?P<message>[^\[]+)\[in\s+(?P<path>[^:]+):(?P<line_number>\d+)\]`, Fields: []string{"message", "path", "line_number"}},
		},
		PostClean: []pattern.OpSpec{{Op: "merge_date_and_time"}},
	}
}

func mustPattern(t testing.TB, def pattern.Definition) *pattern.Pattern {
	t.Helper()
	p, err := pattern.NewPattern(def)
	require.NoError(t, err)
	return p
}

func TestMatch_SecurityScanBlock(t *testing.T) {
	p := mustPattern(t, banditDef())
	input := ">> Issue: [B101:assert_used]\nUse of assert detected.\n   Severity: Low   Confidence: High\n   Location: app.py:42\n42\tassert x > 0\n\n--------------------------------------------------"

	res, err := p.Match(context.Background(), toLines(input), 0)
	require.NoError(t, err)
	require.Equal(t, pattern.StatusComplete, res.Status)

	rec := res.Record
	want := map[string]any{
		"issue_num":  "B101",
		"issue_name": "assert_used",
		"issue_desc": "Use of assert detected.",
		"severity":   "Low",
		"confidence": "High",
		"file_name":  "app.py",
		"line_num":   "42",
		"code_0":     "42\tassert x > 0",
	}
	assert.Equal(t, want, rec.Fields())
	assert.Equal(t, 1, rec.Start)
	assert.Equal(t, 5, rec.End)
	assert.Equal(t, 5, res.Next)
}

func TestMatch_LeveledLogLine(t *testing.T) {
	p := mustPattern(t, detectorDef())
	input := "2024-01-05 10:22:31,500  ERROR: PID: 1234 | Disk full [in worker.py:88]"

	res, err := p.Match(context.Background(), toLines(input), 0)
	require.NoError(t, err)
	require.Equal(t, pattern.StatusComplete, res.Status)

	rec := res.Record
	assert.Equal(t, []string{"datetime", "level", "pid", "message", "path", "line_number"}, rec.Names())

	dt, ok := rec.Get("datetime")
	require.True(t, ok)
	assert.True(t, time.Date(2024, 1, 5, 10, 22, 31, 500_000_000, time.UTC).Equal(dt.(time.Time)))

	fields := rec.Fields()
	assert.Equal(t, "ERROR", fields["level"])
	assert.Equal(t, "1234", fields["pid"])
	assert.Equal(t, "Disk full ", fields["message"])
	assert.Equal(t, "worker.py", fields["path"])
	assert.Equal(t, "88", fields["line_number"])
	assert.NotContains(t, fields, "date")
	assert.NotContains(t, fields, "time")
	assert.Equal(t, 1, rec.Start)
	assert.Equal(t, 1, rec.End)
}

func TestMatch_SkipsLinesUntilRecordStarts(t *testing.T) {
	p := mustPattern(t, detectorDef())
	input := "starting worker\n\n2024-01-05 10:22:31,500  INFO: PID: 7 | ready [in main.py:1]"

	res, err := p.Match(context.Background(), toLines(input), 0)
	require.NoError(t, err)
	require.Equal(t, pattern.StatusComplete, res.Status)
	assert.Equal(t, 3, res.Record.Start)
	assert.Equal(t, 3, res.Record.End)
	assert.Equal(t, 3, res.Next)
}

func TestMatch_Exhausted(t *testing.T) {
	p := mustPattern(t, detectorDef())
	lines := toLines("nothing here\nor here")

	res, err := p.Match(context.Background(), lines, 0)
	require.NoError(t, err)
	assert.Equal(t, pattern.StatusExhausted, res.Status)
	assert.Nil(t, res.Record)
	assert.Equal(t, len(lines), res.Next)
}

func TestMatch_SeveralChunksOnOneLine(t *testing.T) {
	p := mustPattern(t, pattern.Definition{
		ID: "tagged",
		Chunks: []pattern.ChunkDef{
			{Regex: `\[(?P<tag>\w+)\]`, Fields: []string{"tag"}},
			{Regex: `\s*(?P<desc>.+)`, Fields: []string{"desc"}},
		},
	})

	res, err := p.Match(context.Background(), toLines("[WARN] low disk"), 0)
	require.NoError(t, err)
	require.Equal(t, pattern.StatusComplete, res.Status)
	assert.Equal(t, map[string]any{"tag": "WARN", "desc": "low disk"}, res.Record.Fields())
}

func repeatingDef(optional bool) pattern.Definition {
	return pattern.Definition{
		ID: "list",
		Chunks: []pattern.ChunkDef{
			{Regex: `list (?P<name>\w+):`, Fields: []string{"name"}},
			{Regex: `- (?P<item>\w+)`, Fields: []string{"item"}, Repeats: true, Optional: optional},
			{Regex: `end`},
		},
	}
}

func TestMatch_RepeatingChunkSuffixesOccurrences(t *testing.T) {
	p := mustPattern(t, repeatingDef(false))

	res, err := p.Match(context.Background(), toLines("list fruit:\n- apple\n- pear\n- plum\nend"), 0)
	require.NoError(t, err)
	require.Equal(t, pattern.StatusComplete, res.Status)
	assert.Equal(t, []string{"name", "item_0", "item_1", "item_2"}, res.Record.Names())
	assert.Equal(t, "plum", res.Record.Fields()["item_2"])
	assert.Equal(t, 5, res.Record.End)
}

func TestMatch_OptionalRepeatingChunkWithZeroOccurrences(t *testing.T) {
	p := mustPattern(t, repeatingDef(true))

	res, err := p.Match(context.Background(), toLines("list empty:\nend"), 0)
	require.NoError(t, err)
	require.Equal(t, pattern.StatusComplete, res.Status)
	assert.Equal(t, map[string]any{"name": "empty"}, res.Record.Fields())
}

func TestMatch_RequiredRepeatingChunkWithZeroOccurrences(t *testing.T) {
	p := mustPattern(t, repeatingDef(false))

	res, err := p.Match(context.Background(), toLines("list empty:\nend"), 0)
	require.NoError(t, err)
	require.Equal(t, pattern.StatusFailed, res.Status)
	require.NotNil(t, res.Failure)
	assert.Equal(t, 2, res.Failure.Line)
	assert.Equal(t, 1, res.Failure.Chunk)
	assert.Equal(t, 1, res.Failure.Start)
	assert.Equal(t, 1, res.Next)
}

func TestMatch_OptionalChunkSkipped(t *testing.T) {
	p := mustPattern(t, pattern.Definition{
		ID: "kv",
		Chunks: []pattern.ChunkDef{
			{Regex: `key=(?P<key>\w+)`, Fields: []string{"key"}},
			{Regex: `\s*note=(?P<note>\w+)`, Fields: []string{"note"}, Optional: true},
			{Regex: `\s*value=(?P<value>\w+)`, Fields: []string{"value"}},
		},
	})

	res, err := p.Match(context.Background(), toLines("key=a value=1"), 0)
	require.NoError(t, err)
	require.Equal(t, pattern.StatusComplete, res.Status)
	assert.Equal(t, map[string]any{"key": "a", "value": "1"}, res.Record.Fields())
}

func TestMatch_OptionalFirstChunkDoesNotStartRecord(t *testing.T) {
	p := mustPattern(t, pattern.Definition{
		ID: "opt",
		Chunks: []pattern.ChunkDef{
			{Regex: `#(?P<tag>\w+)`, Fields: []string{"tag"}, Optional: true},
			{Regex: `msg=(?P<msg>\w+)`, Fields: []string{"msg"}},
		},
	})

	res, err := p.Match(context.Background(), toLines("msg=hello\n#t\nmsg=world"), 0)
	require.NoError(t, err)
	require.Equal(t, pattern.StatusComplete, res.Status)
	assert.Equal(t, 2, res.Record.Start)
	assert.Equal(t, map[string]any{"tag": "t", "msg": "world"}, res.Record.Fields())
}

func TestMatch_FailureOnLaterLineResumesAtFailingLine(t *testing.T) {
	p := mustPattern(t, banditDef())
	input := ">> Issue: [B101:assert_used]\nUse of assert detected.\n>> Issue: [B102:exec_used]"

	res, err := p.Match(context.Background(), toLines(input), 0)
	require.NoError(t, err)
	require.Equal(t, pattern.StatusFailed, res.Status)
	assert.Equal(t, 3, res.Failure.Line)
	assert.Equal(t, 2, res.Failure.Chunk)
	assert.Equal(t, 2, res.Next)
	assert.Contains(t, res.Failure.Error(), "line 3")
}

func TestMatch_MalformedDocument(t *testing.T) {
	p := mustPattern(t, banditDef())
	input := ">> Issue: [B101:assert_used]\nUse of assert detected.\n   Severity: Low   Confidence: High"

	_, err := p.Match(context.Background(), toLines(input), 0)
	require.Error(t, err)

	var mde *pattern.MalformedDocumentError
	require.True(t, errors.As(err, &mde))
	assert.Equal(t, 1, mde.Start)
	assert.Equal(t, 3, mde.Line)
	assert.Equal(t, 3, mde.Pending)
	assert.ErrorIs(t, err, pattern.ErrMalformedDocument)
}

func TestMatch_RepeatingRunEndingTheDocumentIsMalformed(t *testing.T) {
	p := mustPattern(t, banditDef())
	input := ">> Issue: [B101:assert_used]\nUse of assert detected.\n   Severity: Low   Confidence: High\n   Location: app.py:42\n41\tdef f(x):\n42\t    assert x > 0"

	_, err := p.Match(context.Background(), toLines(input), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, pattern.ErrMalformedDocument)

	var mde *pattern.MalformedDocumentError
	require.True(t, errors.As(err, &mde))
	assert.Equal(t, 1, mde.Start)
	assert.Equal(t, 6, mde.Line)
	assert.Equal(t, 5, mde.Pending)
}

func TestMatch_TrailingOptionalChunkAtEndIsMalformed(t *testing.T) {
	p := mustPattern(t, pattern.Definition{
		ID: "ab",
		Chunks: []pattern.ChunkDef{
			{Regex: `A(?P<a>\d)`, Fields: []string{"a"}},
			{Regex: `B(?P<b>\d)`, Fields: []string{"b"}, Optional: true},
		},
	})

	_, err := p.Match(context.Background(), toLines("A1"), 0)
	var mde *pattern.MalformedDocumentError
	require.True(t, errors.As(err, &mde))
	assert.Equal(t, 1, mde.Pending)

	// A following line the optional chunk does not match closes the record.
	res, err := p.Match(context.Background(), toLines("A1\nC"), 0)
	require.NoError(t, err)
	require.Equal(t, pattern.StatusComplete, res.Status)
	assert.Equal(t, map[string]any{"a": "1"}, res.Record.Fields())
	assert.Equal(t, 1, res.Record.End)
}

func TestMatchPrefix_Incomplete(t *testing.T) {
	p := mustPattern(t, banditDef())
	input := "noise\n>> Issue: [B101:assert_used]\nUse of assert detected."

	res, err := p.MatchPrefix(context.Background(), toLines(input), 0)
	require.NoError(t, err)
	assert.Equal(t, pattern.StatusIncomplete, res.Status)
	assert.Equal(t, 1, res.Next)
}

func TestMatchPrefix_CompleteWhenChunksExhausted(t *testing.T) {
	p := mustPattern(t, detectorDef())

	res, err := p.MatchPrefix(context.Background(), toLines("2024-01-05 10:22:31,500  ERROR: PID: 1 | x [in a.py:1]"), 0)
	require.NoError(t, err)
	assert.Equal(t, pattern.StatusComplete, res.Status)
}

func TestMatch_StartsAtPosition(t *testing.T) {
	p := mustPattern(t, detectorDef())
	input := "2024-01-05 10:00:00,000  INFO: PID: 1 | first [in a.py:1]\n2024-01-05 10:00:01,000  INFO: PID: 1 | second [in a.py:2]"
	lines := toLines(input)

	first, err := p.Match(context.Background(), lines, 0)
	require.NoError(t, err)
	second, err := p.Match(context.Background(), lines, first.Next)
	require.NoError(t, err)

	require.Equal(t, pattern.StatusComplete, second.Status)
	assert.Equal(t, first.Record.End+1, second.Record.Start)
	assert.Equal(t, "second ", second.Record.Fields()["message"])
}

func TestMatch_ContextCancelled(t *testing.T) {
	p := mustPattern(t, detectorDef())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Match(ctx, toLines("a\nb"), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatch_CleanErrorCarriesLine(t *testing.T) {
	p := mustPattern(t, pattern.Definition{
		ID: "num",
		Chunks: []pattern.ChunkDef{
			{Regex: `n=(?P<n>\S+)`, Fields: []string{"n"}, Clean: map[string]pattern.OpSpec{"n": {Op: "to_int"}}},
		},
	})

	_, err := p.Match(context.Background(), toLines("\nn=abc"), 0)
	require.Error(t, err)
	var ce *pattern.CleanError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 2, ce.Line)
	assert.Equal(t, "n", ce.Field)
	assert.Equal(t, "to_int", ce.Op)
}

func TestMatch_FieldSetEqualsDeclaredFields(t *testing.T) {
	p := mustPattern(t, banditDef())
	input := ">> Issue: [B101:assert_used]\nUse of assert detected.\n   Severity: Low   Confidence: High\n   CWE: CWE-703 (https://cwe.mitre.org/data/definitions/703.html)\n   Location: ./app.py:42:4\n42\tassert x > 0\n43\tassert y\nend"

	res, err := p.Match(context.Background(), toLines(input), 0)
	require.NoError(t, err)
	require.Equal(t, pattern.StatusComplete, res.Status)
	assert.GreaterOrEqual(t, res.Record.End, res.Record.Start)

	var want []string
	for _, c := range p.Chunks() {
		for _, f := range c.Fields() {
			if c.Repeats() {
				want = append(want, pattern.OccurrenceName(f, 0), pattern.OccurrenceName(f, 1))
			} else {
				want = append(want, f)
			}
		}
	}
	assert.ElementsMatch(t, want, res.Record.Names())
	assert.Equal(t, "CWE-703", res.Record.Fields()["cwe"])
	assert.Equal(t, "./app.py", res.Record.Fields()["file_name"])
}

func TestPattern_SharedAcrossGoroutines(t *testing.T) {
	p := mustPattern(t, detectorDef())
	lines := toLines("2024-01-05 10:22:31,500  ERROR: PID: 1234 | Disk full [in worker.py:88]")

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			res, err := p.Match(context.Background(), lines, 0)
			if err == nil && res.Status != pattern.StatusComplete {
				err = errors.New("unexpected status " + res.Status.String())
			}
			errs <- err
		}()
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-errs)
	}
}
