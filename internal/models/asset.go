package models

import "time"

// AssetProvenance records how an asset row came to exist.
type AssetProvenance string

const (
	AssetProvenanceManual   AssetProvenance = "manual"
	AssetProvenanceDerived  AssetProvenance = "derived"
	AssetProvenanceImported AssetProvenance = "imported"
)

// Asset is a persisted holding. Monetary columns are in cents; PurchasePrice
// and CurrentPrice are per unit.
type Asset struct {
	Base
	OwnerID       string          `gorm:"type:uuid;not null;index" json:"owner_id"`
	PortfolioID   string          `gorm:"type:uuid;not null;index" json:"portfolio_id"`
	Name          string          `gorm:"not null" json:"name"`
	AssetClass    string          `gorm:"not null" json:"asset_class"`
	Quantity      float64         `gorm:"not null" json:"quantity"`
	PurchasePrice int64           `gorm:"type:bigint;not null" json:"purchase_price"`
	CurrentPrice  int64           `gorm:"type:bigint;not null" json:"current_price"`
	TotalValue    int64           `gorm:"type:bigint;not null" json:"total_value"`
	PurchaseDate  *time.Time      `json:"purchase_date,omitempty"`
	Provenance    AssetProvenance `gorm:"not null;default:manual" json:"provenance"`

	// Relationships
	Portfolio Portfolio  `gorm:"foreignKey:PortfolioID" json:"-"`
	Cashflows []Cashflow `gorm:"foreignKey:AssetID" json:"cashflows,omitempty"`
}
