package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kfrem/recapify/internal/config"
)

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				path = config.DefaultPath()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Config written to "+path)
			banner(cmd.OutOrStdout(), "Edit the [filesystem] dirs and [llm] sections, then run `recapify check`.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}
