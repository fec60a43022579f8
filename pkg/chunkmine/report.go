package chunkmine

import (
	"fmt"
	"time"

	"github.com/chunkmine/chunkmine-go/pkg/chunkmine/pattern"
)

// Report summarizes one mining run over a document.
type Report struct {
	Index    string
	Pattern  string
	Lines    int // lines in the document, or lines received when following
	Consumed int // lines the cursor moved past
	Records  int
	Failures []*pattern.MatchFailure
	Elapsed  time.Duration
}

// Failed reports whether any record attempt failed.
func (r *Report) Failed() bool {
	return len(r.Failures) > 0
}

func (r *Report) String() string {
	return fmt.Sprintf("%s: %d records from %d lines with %s, %d failures",
		r.Index, r.Records, r.Lines, r.Pattern, len(r.Failures))
}
