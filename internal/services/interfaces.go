package services

import (
	"assetcomposer/internal/graph"
	"assetcomposer/internal/models"
	"assetcomposer/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
}

// SaveRequest is one save of a composition graph. An empty CompositionID
// creates a new composition record. Provenance marks asset rows the save
// creates and defaults to derived.
type SaveRequest struct {
	Graph         graph.Graph
	Name          string
	Description   string
	CompositionID string
	Provenance    models.AssetProvenance
}

// SaveResult reports where a save landed. Links name the rows created for
// nodes and entries that had no backing record yet.
type SaveResult struct {
	CompositionID     string             `json:"composition_id"`
	Links             []graph.RecordLink `json:"links"`
	AssetsWritten     int                `json:"assets_written"`
	CashflowsUpserted int                `json:"cashflows_upserted"`
	FormulasUpserted  int                `json:"formulas_upserted"`
}

// OpenedComposition is a saved composition decoded back into a graph.
type OpenedComposition struct {
	Composition *models.Composition
	Graph       graph.Graph
}

// CompositionServicer translates composition graphs to and from persisted
// records. Every method is scoped to the owner it is given and never mutates
// the graph it receives.
type CompositionServicer interface {
	Hydrate(ownerID, assetID string) (*graph.Graph, error)
	Save(ownerID string, req SaveRequest) (*SaveResult, error)
	CreateAssetFromNode(ownerID string, node graph.Node) (string, error)
	GetOrCreateDefaultPortfolio(ownerID string) (*models.Portfolio, error)
	ListCompositions(ownerID string, page pagination.PageRequest) (*pagination.PageResponse[models.Composition], error)
	GetComposition(ownerID, compositionID string) (*models.Composition, error)
	OpenComposition(ownerID, compositionID string) (*OpenedComposition, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
