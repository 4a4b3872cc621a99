package model

import "time"

// QueryLog is an audit row for one answered query. Written asynchronously by
// the query log worker; loss-tolerant.
type QueryLog struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Query           string    `gorm:"type:text;not null" json:"query"`
	Answer          string    `gorm:"type:text" json:"answer"`
	Confidence      string    `gorm:"size:16" json:"confidence"`
	RetrievedChunks int       `gorm:"not null" json:"retrieved_chunks"`
	ProcessingMs    int64     `gorm:"not null" json:"processing_ms"`
	CreatedAt       time.Time `json:"created_at"`
}
