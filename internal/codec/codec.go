// Package codec converts composition graphs to and from the versioned JSON
// document used for file export and import.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "assetcomposer/internal/errors"
	"assetcomposer/internal/graph"
)

// SchemaVersion is the only document version this codec reads and writes.
const SchemaVersion = "1.0"

// Wrapper keys, in the order Decode looks for them.
const (
	WrapperAssetComposition = "assetComposition"
	WrapperFlow             = "flow"
)

var wrapperKeys = []string{WrapperAssetComposition, WrapperFlow}

// Body is the wrapped part of a document.
type Body struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Nodes       []graph.Node `json:"nodes"`
	Edges       []graph.Edge `json:"edges"`
}

// Document is the exported file. Only one of AssetComposition and Flow is
// set; Export always writes AssetComposition.
type Document struct {
	AssetComposition *Body     `json:"assetComposition,omitempty"`
	Flow             *Body     `json:"flow,omitempty"`
	ExportedAt       time.Time `json:"exported_at"`
	Version          string    `json:"version"`
}

// SchemaVersion returns the document's version string.
func (d Document) SchemaVersion() string { return d.Version }

// Body returns the wrapped composition, preferring assetComposition over flow.
func (d Document) Body() *Body {
	if d.AssetComposition != nil {
		return d.AssetComposition
	}
	return d.Flow
}

// Export builds a document from g. Apart from exportedAt the result depends
// only on its inputs.
func Export(g graph.Graph, name, description string, exportedAt time.Time) Document {
	g = g.Clone()
	return Document{
		AssetComposition: &Body{
			Name:        name,
			Description: description,
			Nodes:       g.Nodes,
			Edges:       g.Edges,
		},
		ExportedAt: exportedAt.UTC(),
		Version:    SchemaVersion,
	}
}

// Encode renders doc as indented UTF-8 JSON.
func Encode(doc Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// Decoded is a document that passed every check and can be loaded into a store.
type Decoded struct {
	Name        string
	Description string
	Graph       graph.Graph
	Wrapper     string
	ExportedAt  *time.Time
}

// Decode parses and checks a document. A missing version is read as
// SchemaVersion so files written before the field existed still load.
func Decode(data []byte) (*Decoded, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrImportMalformedJSON, err)
	}

	if err := checkVersion(top); err != nil {
		return nil, err
	}

	var wrapper string
	var rawBody json.RawMessage
	for _, key := range wrapperKeys {
		if raw, ok := top[key]; ok && !isNull(raw) {
			wrapper, rawBody = key, raw
			break
		}
	}
	if rawBody == nil {
		return nil, apperrors.WithMessage(apperrors.ErrImportMissingFields,
			fmt.Sprintf("Composition file has neither %q nor %q", WrapperAssetComposition, WrapperFlow))
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrImportMalformedJSON, err)
	}
	for _, field := range []string{"nodes", "edges"} {
		if raw, ok := body[field]; !ok || isNull(raw) {
			return nil, apperrors.WithMessage(apperrors.ErrImportMissingFields,
				fmt.Sprintf("Composition file is missing %q", field))
		}
	}

	out := &Decoded{Wrapper: wrapper}
	if err := decodeOptionalString(body, "name", &out.Name); err != nil {
		return nil, err
	}
	if err := decodeOptionalString(body, "description", &out.Description); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body["nodes"], &out.Graph.Nodes); err != nil {
		return nil, invalidGraph(err)
	}
	if err := json.Unmarshal(body["edges"], &out.Graph.Edges); err != nil {
		return nil, invalidGraph(err)
	}
	if err := graph.CheckGraph(out.Graph.Nodes, out.Graph.Edges); err != nil {
		return nil, err
	}

	if raw, ok := top["exported_at"]; ok {
		var ts time.Time
		if json.Unmarshal(raw, &ts) == nil {
			out.ExportedAt = &ts
		}
	}
	return out, nil
}

// Import decodes data and replaces the contents of store with it. The store
// is left untouched if anything fails.
func Import(store *graph.Store, data []byte) (*Decoded, error) {
	decoded, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := store.ReplaceAll(decoded.Graph.Nodes, decoded.Graph.Edges); err != nil {
		return nil, err
	}
	return decoded, nil
}

var unsafeFileChars = regexp.MustCompile(`[^a-z0-9]+`)

// FileName suggests a download name for a composition export.
func FileName(name string, at time.Time) string {
	slug := strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		slug = "composition"
	}
	return fmt.Sprintf("%s-%s.json", slug, at.UTC().Format("20060102-150405"))
}

func checkVersion(top map[string]json.RawMessage) error {
	raw, ok := top["version"]
	if !ok {
		raw, ok = top["schemaVersion"]
	}
	if !ok {
		return nil
	}
	var version string
	if err := json.Unmarshal(raw, &version); err != nil || version != SchemaVersion {
		return apperrors.WithMessage(apperrors.ErrImportUnknownSchemaVersion,
			fmt.Sprintf("Unsupported composition version %s (expected %q)", strings.TrimSpace(string(raw)), SchemaVersion))
	}
	return nil
}

func decodeOptionalString(body map[string]json.RawMessage, field string, dst *string) error {
	raw, ok := body[field]
	if !ok || isNull(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.Wrap(apperrors.ErrImportMalformedJSON, fmt.Errorf("%s: %w", field, err))
	}
	return nil
}

func invalidGraph(err error) error {
	appErr := apperrors.Wrap(apperrors.ErrInvalidGraph, err)
	appErr.Message = fmt.Sprintf("%s: %v", appErr.Message, err)
	return appErr
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
