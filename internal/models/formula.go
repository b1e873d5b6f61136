package models

// Formula stores valuation formula text. Expressions are never evaluated.
type Formula struct {
	Base
	OwnerID     string `gorm:"type:uuid;not null;index" json:"owner_id"`
	Name        string `gorm:"not null" json:"name"`
	Expression  string `gorm:"not null" json:"expression"`
	Description string `json:"description,omitempty"`
}
