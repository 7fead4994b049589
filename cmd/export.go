/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/mymiscarriage/apiserver/config"
	"github.com/mymiscarriage/apiserver/internal/db"
	"github.com/mymiscarriage/apiserver/internal/services"
	"github.com/mymiscarriage/apiserver/internal/storage"
	"github.com/mymiscarriage/apiserver/internal/store"
	"github.com/spf13/cobra"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Writes approved testimonies to object storage",
	Long: `Writes every approved testimony as one JSON array to
exports/approved-<timestamp>.json in the configured bucket.
Requires STORAGE_BACKEND to be set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.LoadConfig()

		objects, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		if objects == nil {
			return errors.New("export needs object storage; set STORAGE_BACKEND")
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket: %w", err)
		}

		handle, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer handle.Close()

		exporter := services.NewExportService(store.NewTestimonyRepository(handle.DB()), objects)
		result, err := exporter.ExportApproved(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "exported %d testimonies to %s\n", result.Count, objects.Location(result.Key))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
