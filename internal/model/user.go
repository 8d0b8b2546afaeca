package model

import "time"

// Roles accepted at registration.
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// User is a registered card holder.
type User struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	Email         string    `gorm:"uniqueIndex;size:256;not null" json:"email"`
	Username      string    `gorm:"uniqueIndex;size:128;not null" json:"username"`
	Password      string    `gorm:"size:128;not null" json:"-"`
	CardID        string    `gorm:"column:card_id;index;size:64;not null" json:"cardId"`
	VehicleNumber string    `gorm:"size:32;not null" json:"vehicleNumber"`
	Role          string    `gorm:"size:16;not null" json:"role"`
	IsActive      bool      `gorm:"not null;default:true" json:"is_active"`
	LastLogin     time.Time `json:"last_login"`
	CreatedAt     time.Time `gorm:"not null" json:"date_joined"`
	UpdatedAt     time.Time `json:"-"`

	// Associations
	Subscriptions []PushSubscription `gorm:"foreignKey:UserID" json:"-"`
}
