package testutil

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	"assetcomposer/internal/graph"
	"assetcomposer/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestPortfolio creates a non-default portfolio for the owner.
func CreateTestPortfolio(t *testing.T, db *gorm.DB, ownerID string) *models.Portfolio {
	t.Helper()

	portfolio := &models.Portfolio{
		OwnerID: ownerID,
		Name:    fmt.Sprintf("Test Portfolio %d", nextID()),
	}
	if err := db.Create(portfolio).Error; err != nil {
		t.Fatalf("failed to create test portfolio: %v", err)
	}
	return portfolio
}

// CreateTestAsset creates 10 units of a stock priced at $100.00 with a
// $90.00 purchase price.
func CreateTestAsset(t *testing.T, db *gorm.DB, ownerID, portfolioID string) *models.Asset {
	t.Helper()

	asset := &models.Asset{
		OwnerID:       ownerID,
		PortfolioID:   portfolioID,
		Name:          fmt.Sprintf("Test Asset %d", nextID()),
		AssetClass:    "stock",
		Quantity:      10,
		PurchasePrice: 9000,
		CurrentPrice:  10000,
		TotalValue:    100000,
		Provenance:    models.AssetProvenanceManual,
	}
	if err := db.Create(asset).Error; err != nil {
		t.Fatalf("failed to create test asset: %v", err)
	}
	return asset
}

// CreateTestComposition saves g as a composition owned by ownerID.
func CreateTestComposition(t *testing.T, db *gorm.DB, ownerID string, g graph.Graph) *models.Composition {
	t.Helper()

	blob, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("failed to encode test graph: %v", err)
	}
	composition := &models.Composition{
		OwnerID:   ownerID,
		Name:      fmt.Sprintf("Test Composition %d", nextID()),
		Graph:     datatypes.JSON(blob),
		NodeCount: len(g.Nodes),
		EdgeCount: len(g.Edges),
	}
	if err := db.Create(composition).Error; err != nil {
		t.Fatalf("failed to create test composition: %v", err)
	}
	return composition
}

// NewTestNode returns a valid node of type t at the origin, failing the test
// on error.
func NewTestNode(t *testing.T, nodeType graph.NodeType) graph.Node {
	t.Helper()

	n, err := graph.NewNode(nodeType, &graph.Position{})
	if err != nil {
		t.Fatalf("failed to create %s node: %v", nodeType, err)
	}
	return n
}
