package models

import "time"

// Restaurant is a tenant of the platform. Its wheel can be switched off
// without deactivating the restaurant itself.
type Restaurant struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Name            string    `gorm:"not null" json:"name"`
	Slug            string    `gorm:"uniqueIndex;not null" json:"slug"`
	Address         string    `json:"address"`
	GoogleReviewURL string    `json:"googleReviewUrl"`
	Phone           string    `json:"phone,omitempty"`
	Email           string    `json:"email,omitempty"`
	IsActive        bool      `gorm:"not null" json:"isActive"`
	WheelActive     bool      `gorm:"not null" json:"wheelActive"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// CanSpin reports whether customers of the restaurant may spin the wheel.
func (r *Restaurant) CanSpin() bool {
	return r.IsActive && r.WheelActive
}
