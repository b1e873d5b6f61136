package main

import (
	"fmt"
	"io"
	"os"

	"assetcomposer/internal/codec"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a composition file without loading it anywhere",
	Long: `Check that a composition file would be accepted by an import.

Example:
  composer validate retirement-20260101-120000.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd.OutOrStdout(), args[0])
	},
}

func runValidate(w io.Writer, path string) error {
	decoded, err := readCompositionFile(path)
	if err != nil {
		return err
	}
	return writeSummary(w, "valid", FileSummary{
		File:    path,
		Name:    decoded.Name,
		Nodes:   len(decoded.Graph.Nodes),
		Edges:   len(decoded.Graph.Edges),
		Wrapper: decoded.Wrapper,
	})
}

func readCompositionFile(path string) (*codec.Decoded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	decoded, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return decoded, nil
}
