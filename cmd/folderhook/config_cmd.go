package main

import (
	"fmt"

	"github.com/aleister1102/folderhook/internal/config"
	"github.com/spf13/cobra"
)

var (
	configOut        string
	importSkipVerify bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or migrate configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SaveGlobalConfig(config.NewDefaultGlobalConfig(), configOut); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", configOut)
		return nil
	},
}

var configImportLegacyCmd = &cobra.Command{
	Use:   "import-legacy <settings.json>",
	Short: "Convert a legacy desktop settings file into a configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gCfg, err := config.LoadLegacySettings(args[0])
		if err != nil {
			return err
		}
		if !importSkipVerify {
			if err := config.ValidateConfig(gCfg); err != nil {
				return err
			}
		}
		if err := config.SaveGlobalConfig(gCfg, configOut); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d folder(s) and %d webhook(s) into %s\n",
			len(gCfg.WatchConfig.Folders), len(gCfg.DispatchConfig.Endpoints), configOut)
		return nil
	},
}

func init() {
	configCmd.PersistentFlags().StringVarP(&configOut, "out", "o", "config.yaml", "Destination file (.yaml, .yml or .json)")
	configImportLegacyCmd.Flags().BoolVar(&importSkipVerify, "no-validate", false, "Write the result even if it fails validation")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configImportLegacyCmd)
}
