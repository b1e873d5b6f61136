package models

import "gorm.io/datatypes"

// Composition is a named, saved graph. Graph holds the nodes, edges and
// layout as an opaque JSON blob.
type Composition struct {
	Base
	OwnerID     string         `gorm:"type:uuid;not null;index" json:"owner_id"`
	Name        string         `gorm:"not null" json:"name"`
	Description string         `json:"description"`
	Graph       datatypes.JSON `json:"graph"`
	NodeCount   int            `gorm:"not null;default:0" json:"node_count"`
	EdgeCount   int            `gorm:"not null;default:0" json:"edge_count"`
}
