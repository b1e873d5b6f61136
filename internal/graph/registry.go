package graph

import (
	"fmt"
	"math/rand/v2"

	apperrors "assetcomposer/internal/errors"
	"assetcomposer/internal/uuid"
	"assetcomposer/internal/validator"
)

// Canvas area used when a new node is placed without an explicit position.
const (
	canvasWidth  = 400
	canvasHeight = 300
)

// Default payload values.
const (
	DefaultAssetName       = "New Asset"
	DefaultAssetClass      = "stock"
	DefaultCashflowLabel   = "Cashflows"
	DefaultFormulaLabel    = "Formulas"
	DefaultRiskProfileName = "Risk Profile"
)

// NewNode returns a node of type t with a fresh id and the variant's default
// payload. A nil pos places the node at a random spot on the canvas.
func NewNode(t NodeType, pos *Position) (Node, error) {
	data, err := DefaultData(t)
	if err != nil {
		return Node{}, err
	}

	var p Position
	if pos != nil {
		p = *pos
	} else {
		p = Position{X: rand.Float64() * canvasWidth, Y: rand.Float64() * canvasHeight}
	}

	return Node{ID: uuid.New(), Type: t, Position: p, Data: data}, nil
}

// DefaultData returns the default payload for t.
func DefaultData(t NodeType) (NodeData, error) {
	switch t {
	case NodeTypeSourceAsset:
		return &SourceAssetData{Name: DefaultAssetName, AssetClass: DefaultAssetClass}, nil
	case NodeTypeCashflowSet:
		return &CashflowSetData{Label: DefaultCashflowLabel, Entries: []CashflowEntry{}}, nil
	case NodeTypeFormulaSet:
		return &FormulaSetData{Label: DefaultFormulaLabel, Formulas: []Formula{}}, nil
	case NodeTypeRiskProfile:
		return &RiskProfileData{Label: DefaultRiskProfileName, Factors: []RiskFactor{}}, nil
	}
	return nil, invalidNodeData(fmt.Errorf("unknown node type %q", t))
}

// Validate checks that n has an id, a known type and a payload whose shape
// matches that type.
func Validate(n Node) error {
	if n.ID == "" {
		return invalidNodeData(fmt.Errorf("node id is required"))
	}
	if !n.Type.Valid() {
		return invalidNodeData(fmt.Errorf("node %q: unknown node type %q", n.ID, n.Type))
	}
	if n.Data == nil {
		return invalidNodeData(fmt.Errorf("node %q: missing data", n.ID))
	}
	if n.Data.NodeType() != n.Type {
		return invalidNodeData(fmt.Errorf("node %q: %s data on a %s node", n.ID, n.Data.NodeType(), n.Type))
	}
	if err := validator.Engine().Struct(n.Data); err != nil {
		return invalidNodeData(fmt.Errorf("node %q: %w", n.ID, err))
	}
	return nil
}

func invalidNodeData(err error) error {
	appErr := apperrors.Wrap(apperrors.ErrInvalidNodeData, err)
	appErr.Message = fmt.Sprintf("%s: %v", appErr.Message, err)
	return appErr
}
