package cmd

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/msalah0e/ripple/internal/config"
	"github.com/msalah0e/ripple/internal/ui"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration as TOML",
			Run: func(cmd *cobra.Command, args []string) {
				if err := toml.NewEncoder(os.Stdout).Encode(currentConfig()); err != nil {
					fail("%v", err)
				}
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write a default config file if none exists",
			Run: func(cmd *cobra.Command, args []string) {
				if err := config.EnsureExists(); err != nil {
					fail("%v", err)
				}
				fmt.Printf("  %s %s\n", ui.StatusIcon(true), config.Path())
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(config.Path())
			},
		},
	)
	return cmd
}
