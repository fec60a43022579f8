// Package chunkmine extracts structured records from semi-structured text
// such as scanner reports, diagnostics dumps and multi-line log entries.
//
// A record is described by a [pattern.Pattern]: an ordered sequence of
// anchored regular expressions ("chunks") that must match consecutive
// pieces of one or more lines. A [Miner] runs a pattern over documents
// and collects the records into a [Store], one bucket per document index.
// Buckets are exported as a [Table] whose columns are start, end and the
// union of the record fields.
//
// This package allows you to:
//   - Mine one or more files as a single continuously numbered document
//   - Follow a growing file and mine records as they complete
//   - Define patterns in YAML or TOML, with field cleaners and post-clean
//     operations
//   - Export mined records as tables and evict them from memory
//
// # Basic Usage
//
//	p, err := pattern.NewPatternFromFile("patterns.yaml", "detector")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	m, err := chunkmine.NewMiner(p, chunkmine.WithLogger(slog.Default()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	table, report, err := m.MineAndExport(ctx, "run-1", true, "a.log", "b.log")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report)
//	for _, row := range table.Maps() {
//	    fmt.Println(row["start"], row["message"])
//	}
//
// # Failures
//
// A record attempt that fails after its first chunk matched is recorded in
// the [Report] and mining resumes after it. [WithStopOnFailure] turns the
// first failure into an error instead. A document that ends while a
// record still has chunks left returns an error matching
// [pattern.ErrMalformedDocument].
//
// # Following
//
// [Miner.Follow] mines lines from a channel and [Miner.FollowFile] tails
// a file. A record is stored as soon as its last chunk is behind the
// cursor; a record still pending when the stream ends is malformed.
package chunkmine
