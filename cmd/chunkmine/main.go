// Command chunkmine mines structured records from text files with
// chunk patterns and writes them as CSV, JSON Lines, text or SQLite.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chunkmine/chunkmine-go/internal/config"
	"github.com/chunkmine/chunkmine-go/pkg/chunkmine/pattern"
)

var version = "dev"

var (
	// global flags
	verbose  bool
	logLevel string
	envFile  string

	// set by PersistentPreRunE
	cfg    = config.Default()
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

var rootCmd = &cobra.Command{
	Use:   "chunkmine",
	Short: "Mine structured records from semi-structured text",
	Long: `chunkmine extracts records from reports and logs whose entries span
one or more lines. A pattern is an ordered list of anchored regular
expressions ("chunks"); each record is the sequence of lines the chunks
match, cleaned into typed fields.

Patterns come from a built-in preset (--preset) or a YAML/TOML file
(--patterns). Defaults can be set with CHUNKMINE_* environment variables
or a .env file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(envFile)
		if err != nil {
			return err
		}
		cfg = loaded

		level := cfg.LogLevel
		if logLevel != "" {
			level = logLevel
		} else if verbose {
			level = "debug"
		}
		l, err := newLogger(cmd.ErrOrStderr(), level)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: trace, debug, info, warn, error (default from CHUNKMINE_LOG_LEVEL or warn)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "",
		"Load CHUNKMINE_* defaults from this file instead of ./.env")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the stderr text logger. "trace" enables the per-line
// state machine trace of the pattern package.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && len(groups) == 0 {
				if l, ok := a.Value.Any().(slog.Level); ok && l == pattern.LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	})
	return slog.New(h), nil
}

func parseLevel(s string) (slog.Level, error) {
	if strings.EqualFold(s, "trace") {
		return pattern.LevelTrace, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q (valid: trace, debug, info, warn, error)", s)
	}
	return l, nil
}
