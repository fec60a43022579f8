package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chunkmine/chunkmine-go/internal/presets"
	"github.com/chunkmine/chunkmine-go/pkg/chunkmine/pattern"
)

// patternFlags selects the pattern a command mines with.
type patternFlags struct {
	Preset    string
	File      string
	PatternID string
}

func (f *patternFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Preset, "preset", "p", "",
		"Built-in pattern: "+strings.Join(presets.Names(), ", "))
	cmd.Flags().StringVar(&f.File, "patterns", "",
		"Pattern definition file (.yaml, .yml or .toml)")
	cmd.Flags().StringVar(&f.PatternID, "pattern-id", "",
		"Pattern to use when the file defines several")
	_ = cmd.RegisterFlagCompletionFunc("preset", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return presets.Names(), cobra.ShellCompDirectiveNoFileComp
	})
}

// withDefaults fills unset fields from the environment configuration.
func (f patternFlags) withDefaults() patternFlags {
	if f.File == "" && f.Preset == "" {
		f.File, f.Preset = cfg.PatternFile, cfg.Preset
	}
	if f.PatternID == "" {
		f.PatternID = cfg.PatternID
	}
	return f
}

// loadPattern builds the selected pattern. A pattern file takes precedence
// over a preset.
func loadPattern(f patternFlags) (*pattern.Pattern, error) {
	switch {
	case f.File != "":
		p, err := pattern.NewPatternFromFile(f.File, f.PatternID)
		if err != nil {
			// Error from pattern package is already sanitized (no path)
			return nil, fmt.Errorf("pattern file: %w", err)
		}
		return p, nil
	case f.Preset != "":
		return presets.Load(f.Preset)
	default:
		return nil, errors.New("no pattern given: use --preset or --patterns")
	}
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect built-in presets and check pattern files",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, name := range presets.Names() {
			p, err := presets.Load(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%d chunks\t%s\n", name, len(p.Chunks()), p.Description())
		}
		return tw.Flush()
	},
}

var patternsShowCmd = &cobra.Command{
	Use:       "show NAME",
	Short:     "Print the definition of a built-in preset",
	Args:      cobra.ExactArgs(1),
	ValidArgs: presets.Names(),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := presets.Source(args[0])
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(src)
		return err
	},
}

var patternsCheckCmd = &cobra.Command{
	Use:   "check FILE...",
	Short: "Validate pattern definition files",
	Long: `Load each file, validate it and compile every pattern it defines.
Regex, cleaner and field declaration errors are reported per file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range args {
			ids, err := checkPatternFile(path)
			if err != nil {
				failed++
				fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
				continue
			}
			fmt.Fprintf(out, "ok   %s (%s)\n", path, strings.Join(ids, ", "))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d pattern files invalid", failed, len(args))
		}
		return nil
	},
}

var patternsOpsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List field cleaners and post-clean operations",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "field cleaners: %s\n", strings.Join(pattern.FieldCleanerNames(), ", "))
		fmt.Fprintf(out, "post-clean:     %s\n", strings.Join(pattern.PostOpNames(), ", "))
	},
}

// checkPatternFile returns the pattern ids of a valid file in declaration
// order.
func checkPatternFile(path string) ([]string, error) {
	pf, err := pattern.Load(path)
	if err != nil {
		return nil, err
	}
	if _, err := pf.Compile(); err != nil {
		return nil, err
	}
	ids := make([]string, len(pf.Patterns))
	for i, d := range pf.Patterns {
		ids[i] = d.ID
	}
	return ids, nil
}

func init() {
	patternsCmd.AddCommand(patternsListCmd, patternsShowCmd, patternsCheckCmd, patternsOpsCmd)
	rootCmd.AddCommand(patternsCmd)
}
