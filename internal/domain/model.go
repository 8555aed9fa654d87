package domain

import "time"

// BaseModel is embedded by registry records. It has no DeletedAt, so
// deletes remove rows.
type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PageRequest is a parsed list query. Page is 1-based, Sort has the form
// "field:dir" and Filter keys may carry a "__like" suffix.
type PageRequest struct {
	Page     int
	PageSize int
	Sort     string
	Filter   map[string]string
}
