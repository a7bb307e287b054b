package model

import "time"

// Contact resolves a crew member or company name to an address.
type Contact struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email"`
	Category  string    `json:"category"`
	Company   string    `json:"company,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BagRecord is one big-bag pickup row of the separate bag file.
type BagRecord struct {
	ID              int64             `json:"id"`
	PeriodID        int64             `json:"period_id"`
	RowIndex        int               `json:"row_index"`
	LoadDate        time.Time         `json:"load_date"`
	HandlingCompany string            `json:"handling_company"`
	Details         map[string]string `json:"details,omitempty"`
}
