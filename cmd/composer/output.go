package main

import (
	"encoding/json"
	"fmt"
	"io"
)

// FileSummary describes a composition file that was read or written.
type FileSummary struct {
	File          string `json:"file"`
	Name          string `json:"name"`
	Nodes         int    `json:"nodes"`
	Edges         int    `json:"edges"`
	Wrapper       string `json:"wrapper,omitempty"`
	CompositionID string `json:"composition_id,omitempty"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSummary(w io.Writer, verb string, s FileSummary) error {
	if !humanOutput {
		return writeJSON(w, s)
	}
	_, err := fmt.Fprintf(w, "%s %s: %q, %d nodes, %d edges\n", verb, s.File, s.Name, s.Nodes, s.Edges)
	if err == nil && s.CompositionID != "" {
		_, err = fmt.Fprintf(w, "composition %s\n", s.CompositionID)
	}
	return err
}
