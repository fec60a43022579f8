package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chunkmine/chunkmine-go/internal/logfinder"
	"github.com/chunkmine/chunkmine-go/pkg/chunkmine"
)

// followOptions holds the resolved settings of one follow run.
type followOptions struct {
	Pattern      patternFlags
	Out          outputFlags
	File         string
	Dir          string
	Glob         string
	Index        string
	Encoding     string
	MaxLineBytes int
	FromStart    bool
	Poll         bool
}

var followFlags followOptions

var followCmd = &cobra.Command{
	Use:   "follow [FILE]",
	Short: "Mine records from a growing file",
	Long: `Follow a file as it grows and write each record as soon as it is
complete. Without FILE the most recently modified file matching --glob in
--dir is followed. Stop with Ctrl-C.

Examples:
  # Follow an application log with the detector preset
  chunkmine follow --preset detector app.log

  # Mine the existing content first, output as text
  chunkmine follow --preset detector --from-start --format pretty app.log

  # Follow the newest log in a directory
  chunkmine follow --patterns mine.yaml --dir /var/log/app --glob 'app-*.log'`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := followFlags
		if len(args) == 1 {
			opts.File = args[0]
		}
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
		return runFollow(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	f := followCmd.Flags()
	followFlags.Pattern.register(followCmd)
	f.StringVarP(&followFlags.Out.Format, "format", "f", "",
		"Output format: csv, jsonl, pretty, sqlite (default from CHUNKMINE_FORMAT or csv)")
	f.StringVarP(&followFlags.Out.Output, "output", "o", "",
		"Output file (default stdout)")
	f.StringVar(&followFlags.Out.DBPath, "db", "",
		"SQLite database for --format sqlite (default chunkmine.db)")
	f.StringVarP(&followFlags.Dir, "dir", "d", "",
		"Follow the newest matching file in this directory when no FILE is given")
	f.StringVar(&followFlags.Glob, "glob", "",
		"File name pattern used with --dir (default *.log)")
	f.StringVar(&followFlags.Index, "index", "",
		"Document index recorded with the records (default: file name)")
	f.StringVar(&followFlags.Encoding, "encoding", "",
		"Input charset, e.g. latin1, shift_jis (default utf-8)")
	f.IntVar(&followFlags.MaxLineBytes, "max-line-bytes", 1024*1024,
		"Maximum length of one input line")
	f.BoolVar(&followFlags.FromStart, "from-start", false,
		"Mine the existing content before following")
	f.BoolVar(&followFlags.Poll, "poll", false,
		"Poll for changes instead of using file system notifications")
	rootCmd.AddCommand(followCmd)
}

// runFollow follows one file until ctx is cancelled. Each record is
// exported with eviction and written immediately, so memory stays flat.
// Cancellation is the normal way to stop and is not an error.
func runFollow(ctx context.Context, opts followOptions, stdout, stderr io.Writer) error {
	p, err := loadPattern(opts.Pattern)
	if err != nil {
		return err
	}

	path := opts.File
	if path == "" {
		if opts.Dir == "" {
			return errors.New("no input: pass a file or --dir")
		}
		dir, err := logfinder.FindDir(opts.Dir)
		if err != nil {
			return err
		}
		if path, err = logfinder.FindLatestFile(dir, opts.Glob); err != nil {
			return err
		}
	}
	index := opts.Index
	if index == "" {
		index = filepath.Base(path)
	}

	s, closeSink, err := openSink(ctx, opts.Out, p.ID(), stdout)
	if err != nil {
		return err
	}
	defer func() { _ = closeSink() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		m        *chunkmine.Miner
		writeErr error
	)
	writeRecord := func(index string, _ *chunkmine.Record) {
		if writeErr != nil {
			return
		}
		table, err := m.Store().Export(index, true)
		if err == nil {
			err = s.Write(ctx, table)
		}
		if err != nil {
			writeErr = err
			cancel()
		}
	}

	m, err = chunkmine.NewMiner(p,
		chunkmine.WithLogger(logger),
		chunkmine.WithEncoding(opts.Encoding),
		chunkmine.WithMaxLineBytes(opts.MaxLineBytes),
		chunkmine.WithPolling(opts.Poll),
		chunkmine.WithOnRecord(writeRecord),
	)
	if err != nil {
		return err
	}

	logger.Info("following", "path", path, "pattern", p.ID(), "from_start", opts.FromStart)
	rep, err := m.FollowFile(ctx, index, path, opts.FromStart)
	if writeErr != nil {
		return fmt.Errorf("output error: %w", writeErr)
	}
	if rep != nil {
		printSummary(stderr, rep, 0)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
