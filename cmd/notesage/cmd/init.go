package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/notesage/notesage/configs"
	"github.com/notesage/notesage/internal/config"
	"github.com/notesage/notesage/internal/output"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config into the notes directory",
		Long: `Write a commented .notesage.yaml into the notes directory.

The file documents every setting with its default; edit it and rerun
"notesage index". Without a config file, built-in defaults apply.`,
		Example: `  # Initialize the current directory
  notesage init

  # Initialize another corpus
  notesage init --notes ~/notes

  # Overwrite an existing config
  notesage init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())

			path := filepath.Join(notesDir, config.ConfigFileName)
			if _, err := os.Stat(path); err == nil && !force {
				out.Warning(fmt.Sprintf("%s already exists (use --force to overwrite)", path))
				return nil
			}

			if err := os.MkdirAll(notesDir, 0o755); err != nil {
				return fmt.Errorf("create notes directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			// The template must stay loadable; catch drift early.
			if _, err := config.LoadOrDefault(notesDir); err != nil {
				return fmt.Errorf("generated config is invalid: %w", err)
			}

			out.Successf("Wrote %s", path)
			out.Status("", "Edit it, then run "+out.Bold("notesage index"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}
