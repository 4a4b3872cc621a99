package model

import "time"

// Document is one ingested text document. Immutable once committed; removed
// only by an explicit delete or a full reset.
type Document struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:256;not null" json:"name"`
	Content    string    `gorm:"type:longtext" json:"-"`
	ChunkCount int       `gorm:"not null" json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}
