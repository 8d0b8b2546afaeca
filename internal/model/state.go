package model

import "time"

// StateRecord is the single-row durable copy of the occupancy snapshot. The
// in-memory snapshot stays authoritative; this row only survives restarts.
type StateRecord struct {
	ID        int64     `gorm:"primaryKey"`
	Data      string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
