package cmd

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// completionCmd generates shell completion scripts.
func completionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate completion scripts for your shell.

  # Bash (add to ~/.bashrc)
  eval "$(ripple completion bash)"

  # Zsh (add to ~/.zshrc)
  eval "$(ripple completion zsh)"

  # Fish
  ripple completion fish | source

  # PowerShell
  ripple completion powershell | Out-String | Invoke-Expression`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Run: func(cmd *cobra.Command, args []string) {
			switch args[0] {
			case "bash":
				_ = rootCmd.GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				_ = rootCmd.GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				_ = rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				_ = rootCmd.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
			}
		},
	}
	return cmd
}

// sceneCompletion offers built-in scene names and falls back to files.
func sceneCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	docs, err := builtinScenes()
	if err != nil {
		return nil, cobra.ShellCompDirectiveDefault
	}
	var names []string
	for _, d := range docs {
		if strings.HasPrefix(d.Name, toComplete) {
			names = append(names, d.Name)
		}
	}
	sort.Strings(names)
	return names, cobra.ShellCompDirectiveDefault
}

// traceCompletion offers trace files from the trace directory, newest first.
func traceCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return traceNames(currentConfig().TraceDir(), toComplete), cobra.ShellCompDirectiveDefault
}

func traceNames(dir, prefix string) []string {
	files, _ := filepath.Glob(filepath.Join(dir, "*.jsonl.zst"))
	var names []string
	for _, f := range files {
		if name := filepath.Base(f); strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names
}
