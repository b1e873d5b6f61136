package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "assetcomposer/internal/errors"
	"assetcomposer/internal/graph"
	"assetcomposer/internal/logger"
	"assetcomposer/internal/models"
	"assetcomposer/internal/pagination"
	"assetcomposer/internal/uuid"
	"assetcomposer/internal/validator"
)

const dateLayout = "2006-01-02"

// compositionService persists composition graphs and hydrates them from assets.
type compositionService struct {
	db *gorm.DB
}

// NewCompositionService creates a new CompositionServicer.
func NewCompositionService(db *gorm.DB) CompositionServicer {
	return &compositionService{db: db}
}

// Hydrate builds a single-node graph from one persisted asset. It does not
// look for compositions previously saved around that asset.
func (s *compositionService) Hydrate(ownerID, assetID string) (*graph.Graph, error) {
	if !uuid.IsValid(assetID) {
		return nil, apperrors.ErrAssetNotFound
	}

	var asset models.Asset
	if err := s.db.Where("id = ? AND owner_id = ?", assetID, ownerID).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAssetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}

	return &graph.Graph{
		Nodes: []graph.Node{{
			ID:       uuid.New(),
			Type:     graph.NodeTypeSourceAsset,
			Position: graph.Position{X: 0, Y: 0},
			Data:     sourceAssetFromRecord(&asset),
		}},
		Edges: []graph.Edge{},
	}, nil
}

// Save writes the graph's backing rows and the composition record in one
// transaction. On failure nothing is committed.
func (s *compositionService) Save(ownerID string, req SaveRequest) (*SaveResult, error) {
	if ownerID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Composition name is required")
	}
	if err := graph.CheckGraph(req.Graph.Nodes, req.Graph.Edges); err != nil {
		return nil, err
	}

	provenance := req.Provenance
	if provenance == "" {
		provenance = models.AssetProvenanceDerived
	}

	blob, err := json.Marshal(req.Graph)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}

	result := &SaveResult{Links: []graph.RecordLink{}}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		portfolio, txErr := getOrCreateDefaultPortfolio(tx, ownerID)
		if txErr != nil {
			return txErr
		}

		// Source assets first so cashflows can reference their rows.
		assetRefs := make(map[string]string)
		for _, n := range req.Graph.Nodes {
			data, ok := n.Data.(*graph.SourceAssetData)
			if !ok {
				continue
			}
			assetID, txErr := upsertAsset(tx, ownerID, portfolio.ID, data, provenance)
			if txErr != nil {
				return txErr
			}
			assetRefs[n.ID] = assetID
			result.AssetsWritten++
			if assetID != data.AssetRef {
				result.Links = append(result.Links, graph.RecordLink{NodeID: n.ID, RecordID: assetID})
			}
		}

		for _, n := range req.Graph.Nodes {
			switch data := n.Data.(type) {
			case *graph.CashflowSetData:
				assetID := linkedAsset(req.Graph, n.ID, assetRefs)
				for i, entry := range data.Entries {
					id, txErr := upsertCashflow(tx, ownerID, assetID, entry)
					if txErr != nil {
						return txErr
					}
					result.CashflowsUpserted++
					if id != entry.ID {
						result.Links = append(result.Links, graph.RecordLink{NodeID: n.ID, Index: i, RecordID: id})
					}
				}
			case *graph.FormulaSetData:
				for i, formula := range data.Formulas {
					id, txErr := upsertFormula(tx, ownerID, formula)
					if txErr != nil {
						return txErr
					}
					result.FormulasUpserted++
					if id != formula.ID {
						result.Links = append(result.Links, graph.RecordLink{NodeID: n.ID, Index: i, RecordID: id})
					}
				}
			case *graph.SourceAssetData, *graph.RiskProfileData:
				// Source assets were written above; risk profiles live only in the graph blob.
			}
		}

		compositionID, txErr := upsertComposition(tx, ownerID, req.CompositionID, name, req.Description, blob, req.Graph)
		if txErr != nil {
			return txErr
		}
		result.CompositionID = compositionID
		return nil
	})
	if err != nil {
		logger.Named("composition").Errorw("composition save failed",
			"owner_id", ownerID,
			"composition_id", req.CompositionID,
			"error", err,
		)
		return nil, err
	}

	logger.Named("composition").Infow("composition saved",
		"owner_id", ownerID,
		"composition_id", result.CompositionID,
		"nodes", len(req.Graph.Nodes),
		"edges", len(req.Graph.Edges),
		"links", len(result.Links),
	)
	return result, nil
}

// CreateAssetFromNode persists a source asset node as a new asset row in the
// owner's default portfolio.
func (s *compositionService) CreateAssetFromNode(ownerID string, node graph.Node) (string, error) {
	data, ok := node.Data.(*graph.SourceAssetData)
	if !ok || node.Type != graph.NodeTypeSourceAsset {
		return "", apperrors.WithMessage(apperrors.ErrInvalidNodeData, "Only source asset nodes can become assets")
	}
	if err := graph.Validate(node); err != nil {
		return "", err
	}

	var assetID string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		portfolio, txErr := getOrCreateDefaultPortfolio(tx, ownerID)
		if txErr != nil {
			return txErr
		}
		asset := assetFromSourceData(ownerID, portfolio.ID, data, models.AssetProvenanceManual)
		if txErr := tx.Create(asset).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrPersistence, txErr)
		}
		assetID = asset.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	return assetID, nil
}

// GetOrCreateDefaultPortfolio returns the owner's default portfolio, creating it once.
func (s *compositionService) GetOrCreateDefaultPortfolio(ownerID string) (*models.Portfolio, error) {
	return getOrCreateDefaultPortfolio(s.db, ownerID)
}

var compositionSortKeys = pagination.SortKeys{
	"updated_at": "updated_at",
	"created_at": "created_at",
	"name":       "name",
	"node_count": "node_count",
}

// ListCompositions returns the owner's compositions, most recently saved
// first unless the page asks for another order.
func (s *compositionService) ListCompositions(ownerID string, page pagination.PageRequest) (*pagination.PageResponse[models.Composition], error) {
	page.Defaults()
	order, err := pagination.Order(page, compositionSortKeys, "-updated_at")
	if err != nil {
		return nil, err
	}

	var totalItems int64
	base := s.db.Model(&models.Composition{}).Where("owner_id = ?", ownerID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}

	var compositions []models.Composition
	if err := s.db.Omit("graph").Where("owner_id = ?", ownerID).
		Scopes(order, pagination.Paginate(page)).
		Find(&compositions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}

	result := pagination.NewPageResponse(compositions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetComposition returns one of the owner's compositions including its graph blob.
func (s *compositionService) GetComposition(ownerID, compositionID string) (*models.Composition, error) {
	if !uuid.IsValid(compositionID) {
		return nil, apperrors.ErrCompositionNotFound
	}

	var composition models.Composition
	if err := s.db.Where("id = ? AND owner_id = ?", compositionID, ownerID).First(&composition).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCompositionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}
	return &composition, nil
}

// OpenComposition decodes a saved composition's graph blob.
func (s *compositionService) OpenComposition(ownerID, compositionID string) (*OpenedComposition, error) {
	composition, err := s.GetComposition(ownerID, compositionID)
	if err != nil {
		return nil, err
	}

	var g graph.Graph
	if err := json.Unmarshal(composition.Graph, &g); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidGraph, err)
	}
	if g.Nodes == nil {
		g.Nodes = []graph.Node{}
	}
	if g.Edges == nil {
		g.Edges = []graph.Edge{}
	}
	if err := graph.CheckGraph(g.Nodes, g.Edges); err != nil {
		return nil, err
	}
	return &OpenedComposition{Composition: composition, Graph: g}, nil
}

// getOrCreateDefaultPortfolio is idempotent: repeated calls return the same row.
func getOrCreateDefaultPortfolio(tx *gorm.DB, ownerID string) (*models.Portfolio, error) {
	if ownerID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var portfolio models.Portfolio
	if err := tx.Where("owner_id = ? AND is_default = ?", ownerID, true).
		Attrs(models.Portfolio{Name: models.DefaultPortfolioName}).
		FirstOrCreate(&portfolio, models.Portfolio{OwnerID: ownerID, IsDefault: true}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, err)
	}
	return &portfolio, nil
}

// upsertAsset updates the asset referenced by data or creates a new one. A
// reference that does not resolve to one of the owner's rows gets a fresh row,
// since the id may be deleted or belong to someone else.
func upsertAsset(tx *gorm.DB, ownerID, portfolioID string, data *graph.SourceAssetData, provenance models.AssetProvenance) (string, error) {
	asset := assetFromSourceData(ownerID, portfolioID, data, provenance)

	if data.AssetRef != "" {
		var existing models.Asset
		err := tx.Where("id = ? AND owner_id = ?", data.AssetRef, ownerID).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&existing).Updates(map[string]interface{}{
				"name":           asset.Name,
				"asset_class":    asset.AssetClass,
				"quantity":       asset.Quantity,
				"purchase_price": asset.PurchasePrice,
				"current_price":  asset.CurrentPrice,
				"total_value":    asset.TotalValue,
				"purchase_date":  asset.PurchaseDate,
			}).Error; err != nil {
				return "", apperrors.Wrap(apperrors.ErrPersistence, err)
			}
			return existing.ID, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return "", apperrors.Wrap(apperrors.ErrPersistence, err)
		}
	}

	if err := tx.Create(asset).Error; err != nil {
		return "", apperrors.Wrap(apperrors.ErrPersistence, err)
	}
	return asset.ID, nil
}

func upsertCashflow(tx *gorm.DB, ownerID string, assetID *string, entry graph.CashflowEntry) (string, error) {
	date, err := time.Parse(dateLayout, entry.Date)
	if err != nil {
		return "", apperrors.WithMessage(apperrors.ErrInvalidNodeData, fmt.Sprintf("Invalid cashflow date %q", entry.Date))
	}
	row := &models.Cashflow{
		OwnerID:     ownerID,
		AssetID:     assetID,
		Amount:      toCents(decimal.NewFromFloat(entry.Amount)),
		Category:    entry.Category,
		Date:        date,
		Description: entry.Description,
	}

	if entry.ID != "" {
		var existing models.Cashflow
		err := tx.Where("id = ? AND owner_id = ?", entry.ID, ownerID).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&existing).Updates(map[string]interface{}{
				"asset_id":    row.AssetID,
				"amount":      row.Amount,
				"category":    row.Category,
				"date":        row.Date,
				"description": row.Description,
			}).Error; err != nil {
				return "", apperrors.Wrap(apperrors.ErrPersistence, err)
			}
			return existing.ID, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return "", apperrors.Wrap(apperrors.ErrPersistence, err)
		}
	}

	if err := tx.Create(row).Error; err != nil {
		return "", apperrors.Wrap(apperrors.ErrPersistence, err)
	}
	return row.ID, nil
}

func upsertFormula(tx *gorm.DB, ownerID string, formula graph.Formula) (string, error) {
	row := &models.Formula{
		OwnerID:     ownerID,
		Name:        formula.Name,
		Expression:  formula.Expression,
		Description: formula.Description,
	}

	if formula.ID != "" {
		var existing models.Formula
		err := tx.Where("id = ? AND owner_id = ?", formula.ID, ownerID).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&existing).Updates(map[string]interface{}{
				"name":        row.Name,
				"expression":  row.Expression,
				"description": row.Description,
			}).Error; err != nil {
				return "", apperrors.Wrap(apperrors.ErrPersistence, err)
			}
			return existing.ID, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return "", apperrors.Wrap(apperrors.ErrPersistence, err)
		}
	}

	if err := tx.Create(row).Error; err != nil {
		return "", apperrors.Wrap(apperrors.ErrPersistence, err)
	}
	return row.ID, nil
}

func upsertComposition(tx *gorm.DB, ownerID, compositionID, name, description string, blob []byte, g graph.Graph) (string, error) {
	if compositionID == "" {
		composition := &models.Composition{
			OwnerID:     ownerID,
			Name:        name,
			Description: description,
			Graph:       datatypes.JSON(blob),
			NodeCount:   len(g.Nodes),
			EdgeCount:   len(g.Edges),
		}
		if err := tx.Create(composition).Error; err != nil {
			return "", apperrors.Wrap(apperrors.ErrPersistence, err)
		}
		return composition.ID, nil
	}

	if !uuid.IsValid(compositionID) {
		return "", apperrors.ErrCompositionNotFound
	}
	var existing models.Composition
	if err := tx.Where("id = ? AND owner_id = ?", compositionID, ownerID).First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrCompositionNotFound
		}
		return "", apperrors.Wrap(apperrors.ErrPersistence, err)
	}
	if err := tx.Model(&existing).Updates(map[string]interface{}{
		"name":        name,
		"description": description,
		"graph":       datatypes.JSON(blob),
		"node_count":  len(g.Nodes),
		"edge_count":  len(g.Edges),
	}).Error; err != nil {
		return "", apperrors.Wrap(apperrors.ErrPersistence, err)
	}
	return existing.ID, nil
}

// linkedAsset returns the asset row of the first source asset connected to
// nodeID, or nil when the node is not attached to one.
func linkedAsset(g graph.Graph, nodeID string, assetRefs map[string]string) *string {
	for _, n := range g.Neighbors(nodeID) {
		if n.Type != graph.NodeTypeSourceAsset {
			continue
		}
		if id, ok := assetRefs[n.ID]; ok {
			return &id
		}
	}
	return nil
}

// AssetValuation holds the per-unit prices and total value, in cents, derived
// from a source asset's totals.
type AssetValuation struct {
	PurchasePrice int64
	CurrentPrice  int64
	TotalValue    int64
}

// ValueSourceAsset converts node totals into per-unit prices. Quantities
// below one divide by one so a zero quantity keeps its value as the price.
// TotalValue is quantity times the rounded current price.
func ValueSourceAsset(data *graph.SourceAssetData) AssetValuation {
	quantity := decimal.NewFromFloat(data.Quantity)
	divisor := decimal.Max(quantity, decimal.NewFromInt(1))

	currentPerUnit := decimal.NewFromFloat(data.CurrentValue).Div(divisor)
	costPerUnit := decimal.NewFromFloat(data.CostBasis).Div(divisor)

	currentPrice := toCents(currentPerUnit)
	return AssetValuation{
		PurchasePrice: toCents(costPerUnit),
		CurrentPrice:  currentPrice,
		TotalValue:    quantity.Mul(decimal.NewFromInt(currentPrice)).Round(0).IntPart(),
	}
}

func assetFromSourceData(ownerID, portfolioID string, data *graph.SourceAssetData, provenance models.AssetProvenance) *models.Asset {
	v := ValueSourceAsset(data)
	asset := &models.Asset{
		OwnerID:       ownerID,
		PortfolioID:   portfolioID,
		Name:          data.Name,
		AssetClass:    data.AssetClass,
		Quantity:      data.Quantity,
		PurchasePrice: v.PurchasePrice,
		CurrentPrice:  v.CurrentPrice,
		TotalValue:    v.TotalValue,
		Provenance:    provenance,
	}
	if data.PurchaseDate != "" {
		if d, err := time.Parse(dateLayout, data.PurchaseDate); err == nil {
			asset.PurchaseDate = &d
		}
	}
	return asset
}

func sourceAssetFromRecord(asset *models.Asset) *graph.SourceAssetData {
	class := asset.AssetClass
	if !validator.IsAssetClass(class) {
		class = "other"
	}
	quantity := decimal.NewFromFloat(asset.Quantity)
	data := &graph.SourceAssetData{
		AssetRef:     asset.ID,
		Name:         asset.Name,
		AssetClass:   class,
		Quantity:     asset.Quantity,
		CostBasis:    fromCents(decimal.NewFromInt(asset.PurchasePrice).Mul(quantity)),
		CurrentValue: fromCents(decimal.NewFromInt(asset.TotalValue)),
	}
	if asset.PurchaseDate != nil {
		data.PurchaseDate = asset.PurchaseDate.Format(dateLayout)
	}
	return data
}

func toCents(v decimal.Decimal) int64 {
	return v.Shift(2).Round(0).IntPart()
}

func fromCents(cents decimal.Decimal) float64 {
	return cents.Shift(-2).InexactFloat64()
}
