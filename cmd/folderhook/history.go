package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aleister1102/folderhook/internal/datastore"
	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyJSON   bool
	exportOut     string
	exportSession string
	exportCodec   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and export delivery history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent monitoring sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		gCfg, zLogger, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := datastore.NewHistoryDB(gCfg.HistoryConfig.DBPath, zLogger)
		if err != nil {
			return err
		}
		defer db.Close()

		sessions, err := db.ListSessions(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		if historyJSON {
			data, err := json.MarshalIndent(sessions, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tSTARTED\tENDED\tFOLDERS\tWEBHOOKS\tDELIVERED\tFAILED")
		for _, s := range sessions {
			ended := "running"
			if s.EndedAt != nil {
				ended = s.EndedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
				s.ID, s.StartedAt.Format(time.RFC3339), ended, s.Folders, s.Endpoints, s.Delivered, s.Failed)
		}
		return w.Flush()
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export delivery records to a Parquet file",
	RunE: func(cmd *cobra.Command, args []string) error {
		gCfg, zLogger, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := datastore.NewHistoryDB(gCfg.HistoryConfig.DBPath, zLogger)
		if err != nil {
			return err
		}
		defer db.Close()

		records, err := db.ListDeliveries(cmd.Context(), exportSession)
		if err != nil {
			return err
		}

		codec := exportCodec
		if codec == "" {
			codec = gCfg.HistoryConfig.ExportCompression
		}
		n, err := datastore.ExportDeliveriesParquet(records, exportOut, codec, zLogger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d delivery record(s) to %s\n", n, exportOut)
		return nil
	},
}

func init() {
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of sessions to show")
	historyListCmd.Flags().BoolVar(&historyJSON, "json", false, "Output as JSON")

	historyExportCmd.Flags().StringVarP(&exportOut, "out", "o", "deliveries.parquet", "Output Parquet file")
	historyExportCmd.Flags().StringVar(&exportSession, "session", "", "Only export this session ID")
	historyExportCmd.Flags().StringVar(&exportCodec, "codec", "", "Compression: zstd, snappy, gzip or none (default from history_config)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyExportCmd)
}
