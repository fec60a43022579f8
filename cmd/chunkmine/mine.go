package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chunkmine/chunkmine-go/internal/logfinder"
	"github.com/chunkmine/chunkmine-go/pkg/chunkmine"
	"github.com/chunkmine/chunkmine-go/pkg/chunkmine/pattern"
)

// mineOptions holds the resolved settings of one mine run.
type mineOptions struct {
	Pattern       patternFlags
	Out           outputFlags
	Files         []string
	Dir           string
	Glob          string
	Index         string
	Encoding      string
	MaxLineBytes  int
	StopOnFailure bool
	Progress      bool
}

var (
	mineFlags      mineOptions
	mineNoProgress bool
)

var mineCmd = &cobra.Command{
	Use:   "mine [FILE...]",
	Short: "Mine records from files and export them",
	Long: `Mine records from one or more files. The files are read as one document
in the order given, with line numbers continuing across files.

Records are written as CSV by default. Columns are start and end (the
line numbers the record spans) followed by the record fields.

Examples:
  # Mine a bandit report with the built-in preset
  chunkmine mine --preset bandit report.txt

  # Use your own pattern file and write JSON Lines
  chunkmine mine --patterns mine.yaml --format jsonl app.log

  # Mine every *.log in a directory, oldest first, into SQLite
  chunkmine mine --preset detector --dir /var/log/app --format sqlite --db runs.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := mineFlags
		opts.Files = args
		opts.Pattern = opts.Pattern.withDefaults()
		opts.Out = opts.Out.withDefaults()
		if opts.Dir == "" {
			opts.Dir = cfg.Dir
		}
		if opts.Glob == "" {
			opts.Glob = cfg.Glob
		}
		if opts.Encoding == "" {
			opts.Encoding = cfg.Encoding
		}
		if !cmd.Flags().Changed("max-line-bytes") {
			opts.MaxLineBytes = cfg.MaxLineBytes
		}
		opts.Progress = !mineNoProgress && isTerminal(cmd.ErrOrStderr())

		_, err := runMine(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		return err
	},
}

func init() {
	f := mineCmd.Flags()
	mineFlags.Pattern.register(mineCmd)
	f.StringVarP(&mineFlags.Out.Format, "format", "f", "",
		"Output format: csv, jsonl, pretty, sqlite (default from CHUNKMINE_FORMAT or csv)")
	f.StringVarP(&mineFlags.Out.Output, "output", "o", "",
		"Output file (default stdout)")
	f.StringVar(&mineFlags.Out.DBPath, "db", "",
		"SQLite database for --format sqlite (default chunkmine.db)")
	f.StringVarP(&mineFlags.Dir, "dir", "d", "",
		"Mine the files in this directory when no FILE is given")
	f.StringVar(&mineFlags.Glob, "glob", "",
		"File name pattern used with --dir (default *.log)")
	f.StringVar(&mineFlags.Index, "index", "",
		"Document index recorded with the records (default: first file name)")
	f.StringVar(&mineFlags.Encoding, "encoding", "",
		"Input charset, e.g. latin1, shift_jis (default utf-8)")
	f.IntVar(&mineFlags.MaxLineBytes, "max-line-bytes", 1024*1024,
		"Maximum length of one input line")
	f.BoolVar(&mineFlags.StopOnFailure, "stop-on-failure", false,
		"Abort on the first record that fails to match")
	f.BoolVar(&mineNoProgress, "no-progress", false,
		"Do not draw a progress bar on the terminal")
	rootCmd.AddCommand(mineCmd)
}

// runMine mines the input into a table and writes it to the sink. A
// document that ends mid-record still exports the records mined before
// the error, then returns it.
func runMine(ctx context.Context, opts mineOptions, stdout, stderr io.Writer) (*chunkmine.Report, error) {
	p, err := loadPattern(opts.Pattern)
	if err != nil {
		return nil, err
	}

	files, err := inputFiles(opts)
	if err != nil {
		return nil, err
	}
	index := opts.Index
	if index == "" {
		index = filepath.Base(files[0])
	}

	minerOpts := []chunkmine.Option{
		chunkmine.WithLogger(logger),
		chunkmine.WithEncoding(opts.Encoding),
		chunkmine.WithMaxLineBytes(opts.MaxLineBytes),
		chunkmine.WithStopOnFailure(opts.StopOnFailure),
	}
	var bar *progressBar
	if opts.Progress {
		bar = newProgressBar(stderr)
		minerOpts = append(minerOpts, chunkmine.WithProgress(bar.Update))
	}
	m, err := chunkmine.NewMiner(p, minerOpts...)
	if err != nil {
		return nil, err
	}

	rep, mineErr := m.MineFiles(ctx, index, files...)
	if bar != nil {
		bar.Done()
	}
	if mineErr != nil && !errors.Is(mineErr, pattern.ErrMalformedDocument) {
		return rep, mineErr
	}

	table, err := m.Export(index, true)
	if errors.Is(err, chunkmine.ErrNoRecords) {
		logger.Info("no records mined", "index", index)
		table, err = chunkmine.NewTable(index, nil), nil
	}
	if err != nil {
		return rep, err
	}

	s, closeSink, err := openSink(ctx, opts.Out, p.ID(), stdout)
	if err != nil {
		return rep, err
	}
	if err := s.Write(ctx, table); err != nil {
		_ = closeSink()
		return rep, fmt.Errorf("output error: %w", err)
	}
	if err := closeSink(); err != nil {
		return rep, fmt.Errorf("output error: %w", err)
	}

	printSummary(stderr, rep, inputSize(files))
	return rep, mineErr
}

// inputFiles returns the files to mine: the given ones, or every match of
// the glob in the directory, oldest first.
func inputFiles(opts mineOptions) ([]string, error) {
	if len(opts.Files) > 0 {
		return opts.Files, nil
	}
	if opts.Dir == "" {
		return nil, errors.New("no input: pass files or --dir")
	}
	dir, err := logfinder.FindDir(opts.Dir)
	if err != nil {
		return nil, err
	}
	return logfinder.FindFiles(dir, opts.Glob)
}

func inputSize(files []string) uint64 {
	var n uint64
	for _, f := range files {
		if info, err := os.Stat(f); err == nil {
			n += uint64(info.Size())
		}
	}
	return n
}

// maxListedFailures caps the failure locations printed under a summary.
const maxListedFailures = 10

func printSummary(w io.Writer, rep *chunkmine.Report, size uint64) {
	fmt.Fprintf(w, "%s: %s records from %s lines",
		rep.Index, humanize.Comma(int64(rep.Records)), humanize.Comma(int64(rep.Lines)))
	if size > 0 {
		fmt.Fprintf(w, " (%s)", humanize.Bytes(size))
	}
	fmt.Fprintf(w, " in %s", rep.Elapsed.Round(time.Millisecond))
	if n := len(rep.Failures); n > 0 {
		fmt.Fprintf(w, ", %s failed", humanize.Comma(int64(n)))
	}
	fmt.Fprintln(w)

	for i, f := range rep.Failures {
		if i == maxListedFailures {
			fmt.Fprintf(w, "  ... and %s more\n", humanize.Comma(int64(len(rep.Failures)-i)))
			break
		}
		fmt.Fprintf(w, "  line %d: chunk[%d] did not match (record started at line %d)\n", f.Line, f.Chunk, f.Start)
	}
}
