package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var completionNoDesc bool

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for chunkmine. Preset names complete
for --preset and "patterns show".

Bash:
  $ source <(chunkmine completion bash)
  $ chunkmine completion bash > /etc/bash_completion.d/chunkmine

Zsh:
  $ chunkmine completion zsh > "${fpath[1]}/_chunkmine"

Fish:
  $ chunkmine completion fish > ~/.config/fish/completions/chunkmine.fish

PowerShell:
  PS> chunkmine completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := cmd.Root()
		out := cmd.OutOrStdout()
		desc := !completionNoDesc

		switch args[0] {
		case "bash":
			return root.GenBashCompletionV2(out, desc)
		case "zsh":
			if desc {
				return root.GenZshCompletion(out)
			}
			return root.GenZshCompletionNoDesc(out)
		case "fish":
			return root.GenFishCompletion(out, desc)
		case "powershell":
			if desc {
				return root.GenPowerShellCompletionWithDesc(out)
			}
			return root.GenPowerShellCompletion(out)
		}
		return fmt.Errorf("unsupported shell %q", args[0])
	},
}

func init() {
	completionCmd.Flags().BoolVar(&completionNoDesc, "no-descriptions", false,
		"Omit completion descriptions")
	rootCmd.AddCommand(completionCmd)
}
