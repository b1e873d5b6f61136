package models

import "time"

// Cashflow is one dated amount, optionally tied to an asset. Amount is in cents.
type Cashflow struct {
	Base
	OwnerID     string    `gorm:"type:uuid;not null;index" json:"owner_id"`
	AssetID     *string   `gorm:"type:uuid;index" json:"asset_id,omitempty"`
	Amount      int64     `gorm:"type:bigint;not null" json:"amount"`
	Category    string    `gorm:"not null" json:"category"`
	Date        time.Time `gorm:"not null" json:"date"`
	Description string    `json:"description,omitempty"`
}
