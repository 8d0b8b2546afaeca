package model

import "time"

// Session status values. A session is open from authenticated entry until the
// matching exit confirmation closes it.
const (
	SessionOpen   = "open"
	SessionClosed = "closed"
)

// ParkingSession is one vehicle's billable stay.
type ParkingSession struct {
	ID              int64      `gorm:"primaryKey" json:"id"`
	UserID          int64      `gorm:"index;not null" json:"userId"`
	CardID          string     `gorm:"column:card_id;index:idx_sessions_card_status;size:64;not null" json:"cardId"`
	VehicleNumber   string     `gorm:"size:32" json:"vehicleNumber"`
	SlotID          *int       `json:"slotId"`
	EntryTime       time.Time  `gorm:"not null" json:"entryTime"`
	ExitTime        *time.Time `json:"exitTime"`
	DurationSeconds *int64     `json:"durationSeconds"`
	Status          string     `gorm:"index:idx_sessions_card_status;size:16;not null;default:open" json:"status"`
	CreatedAt       time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`

	// Associations
	User User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
