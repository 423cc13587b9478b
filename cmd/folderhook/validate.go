package main

import (
	"fmt"

	"github.com/aleister1102/folderhook/internal/config"
	"github.com/aleister1102/folderhook/internal/models"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file without starting a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		gCfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := config.ValidateConfig(gCfg); err != nil {
			return err
		}

		folders := models.EnabledFolders(gCfg.WatchConfig.Folders)
		endpoints := models.EnabledEndpoints(gCfg.DispatchConfig.Endpoints)
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration valid: %d enabled folder(s), %d enabled webhook(s)\n",
			len(folders), len(endpoints))
		if len(folders) == 0 || len(endpoints) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Warning: monitoring needs at least one enabled folder and one enabled webhook")
		}
		return nil
	},
}
