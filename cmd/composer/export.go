package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"assetcomposer/internal/codec"
	"assetcomposer/internal/services"

	"github.com/spf13/cobra"
)

var (
	exportOwner       string
	exportComposition string
	exportOutput      string
)

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportOwner, "owner", "", "ID of the user that owns the composition")
	exportCmd.Flags().StringVar(&exportComposition, "composition", "", "ID of the composition to export")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "File to write (defaults to a name derived from the composition; - for stdout)")
	_ = exportCmd.MarkFlagRequired("owner")
	_ = exportCmd.MarkFlagRequired("composition")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a saved composition to a composition file",
	Long: `Export a saved composition in the same format as the export endpoint.

Example:
  composer export --owner <user-id> --composition <composition-id> -o plan.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openCompositionService()
		if err != nil {
			return err
		}
		defer closeFn()
		return runExport(cmd.OutOrStdout(), svc, exportOwner, exportComposition, exportOutput, time.Now())
	},
}

func runExport(w io.Writer, svc services.CompositionServicer, ownerID, compositionID, output string, now time.Time) error {
	opened, err := svc.OpenComposition(ownerID, compositionID)
	if err != nil {
		return fmt.Errorf("opening composition %s: %w", compositionID, err)
	}

	name := opened.Composition.Name
	doc := codec.Export(opened.Graph, name, opened.Composition.Description, now)
	data, err := codec.Encode(doc)
	if err != nil {
		return err
	}

	if output == "-" {
		_, err = w.Write(data)
		return err
	}
	if output == "" {
		output = codec.FileName(name, now)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}

	return writeSummary(w, "exported", FileSummary{
		File:          output,
		Name:          name,
		Nodes:         len(opened.Graph.Nodes),
		Edges:         len(opened.Graph.Edges),
		CompositionID: compositionID,
	})
}
