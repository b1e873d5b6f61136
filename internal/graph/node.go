// Package graph holds the in-memory asset composition graph: typed nodes,
// the edges between them, the registry of node variants and the Store that
// keeps the graph consistent while it is being edited.
package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NodeType tags the payload carried by a Node.
type NodeType string

const (
	NodeTypeSourceAsset NodeType = "sourceAsset"
	NodeTypeCashflowSet NodeType = "cashflowSet"
	NodeTypeFormulaSet  NodeType = "formulaSet"
	NodeTypeRiskProfile NodeType = "riskProfile"
)

// NodeTypes lists every node variant in palette order.
var NodeTypes = []NodeType{
	NodeTypeSourceAsset,
	NodeTypeCashflowSet,
	NodeTypeFormulaSet,
	NodeTypeRiskProfile,
}

// Valid reports whether t names a known node variant.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeSourceAsset, NodeTypeCashflowSet, NodeTypeFormulaSet, NodeTypeRiskProfile:
		return true
	}
	return false
}

// Position is a node's location on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData is the payload of a node. The set of implementations is closed:
// SourceAssetData, CashflowSetData, FormulaSetData and RiskProfileData.
type NodeData interface {
	NodeType() NodeType
	clone() NodeData
}

// Node is one typed unit of a composition.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	if n.Data != nil {
		n.Data = n.Data.clone()
	}
	return n
}

// UnmarshalJSON decodes the payload according to the node's type tag.
func (n *Node) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID       string          `json:"id"`
		Type     NodeType        `json:"type"`
		Position Position        `json:"position"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	data, err := decodeData(raw.Type, raw.Data, false)
	if err != nil {
		return fmt.Errorf("node %q: %w", raw.ID, err)
	}

	*n = Node{ID: raw.ID, Type: raw.Type, Position: raw.Position, Data: data}
	return nil
}

// decodeData builds the payload variant for t from raw JSON.
func decodeData(t NodeType, raw json.RawMessage, strict bool) (NodeData, error) {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil, fmt.Errorf("missing data for node type %q", t)
	}

	var data NodeData
	switch t {
	case NodeTypeSourceAsset:
		data = &SourceAssetData{}
	case NodeTypeCashflowSet:
		data = &CashflowSetData{}
	case NodeTypeFormulaSet:
		data = &FormulaSetData{}
	case NodeTypeRiskProfile:
		data = &RiskProfileData{}
	default:
		return nil, fmt.Errorf("unknown node type %q", t)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(data); err != nil {
		return nil, fmt.Errorf("decoding %s data: %w", t, err)
	}
	return data, nil
}

// SourceAssetData describes the holding a composition is built around.
type SourceAssetData struct {
	AssetRef     string  `json:"assetRef,omitempty" validate:"omitempty,uuid"`
	Name         string  `json:"name" validate:"required,max=200"`
	AssetClass   string  `json:"assetClass" validate:"required,asset_class"`
	Quantity     float64 `json:"quantity" validate:"gte=0"`
	CostBasis    float64 `json:"costBasis" validate:"gte=0"`
	CurrentValue float64 `json:"currentValue" validate:"gte=0"`
	PurchaseDate string  `json:"purchaseDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

func (*SourceAssetData) NodeType() NodeType { return NodeTypeSourceAsset }

func (d *SourceAssetData) clone() NodeData {
	c := *d
	return &c
}

// CashflowEntry is one dated amount. ID links it to a persisted cashflow row.
type CashflowEntry struct {
	ID          string  `json:"id,omitempty" validate:"omitempty,uuid"`
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category" validate:"required,max=100"`
	Description string  `json:"description,omitempty" validate:"max=500"`
}

// CashflowSetData is a labelled schedule of cashflows.
type CashflowSetData struct {
	Label   string          `json:"label" validate:"required,max=200"`
	Entries []CashflowEntry `json:"entries" validate:"dive"`
}

func (*CashflowSetData) NodeType() NodeType { return NodeTypeCashflowSet }

func (d *CashflowSetData) clone() NodeData {
	c := *d
	if d.Entries != nil {
		c.Entries = append([]CashflowEntry{}, d.Entries...)
	}
	return &c
}

// Formula is a named valuation expression. Expressions are displayed, never evaluated.
type Formula struct {
	ID          string `json:"id,omitempty" validate:"omitempty,uuid"`
	Name        string `json:"name" validate:"required,max=200"`
	Expression  string `json:"expression" validate:"required,max=2000"`
	Description string `json:"description,omitempty" validate:"max=500"`
}

// FormulaSetData is a labelled group of formulas.
type FormulaSetData struct {
	Label    string    `json:"label" validate:"required,max=200"`
	Formulas []Formula `json:"formulas" validate:"dive"`
}

func (*FormulaSetData) NodeType() NodeType { return NodeTypeFormulaSet }

func (d *FormulaSetData) clone() NodeData {
	c := *d
	if d.Formulas != nil {
		c.Formulas = append([]Formula{}, d.Formulas...)
	}
	return &c
}

// Severity grades a risk factor.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// RiskFactor is one named risk classification.
type RiskFactor struct {
	Name     string   `json:"name" validate:"required,max=200"`
	Severity Severity `json:"severity" validate:"required,severity"`
}

// RiskProfileData is a labelled set of risk factors.
type RiskProfileData struct {
	Label   string       `json:"label" validate:"required,max=200"`
	Factors []RiskFactor `json:"factors" validate:"dive"`
}

func (*RiskProfileData) NodeType() NodeType { return NodeTypeRiskProfile }

func (d *RiskProfileData) clone() NodeData {
	c := *d
	if d.Factors != nil {
		c.Factors = append([]RiskFactor{}, d.Factors...)
	}
	return &c
}
