package models

// Portfolio groups the assets of one owner. Every owner has at most one
// default portfolio, created lazily on first save.
type Portfolio struct {
	Base
	OwnerID   string  `gorm:"type:uuid;not null;index" json:"owner_id"`
	Name      string  `gorm:"not null" json:"name"`
	IsDefault bool    `gorm:"not null;default:false" json:"is_default"`
	Assets    []Asset `gorm:"foreignKey:PortfolioID" json:"assets,omitempty"`
}

// DefaultPortfolioName is the name given to lazily created default portfolios.
const DefaultPortfolioName = "My Portfolio"
