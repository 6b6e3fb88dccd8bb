package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Prize is one slice of a restaurant's wheel. Percentage is the chance of
// landing on it, between 0 and 100 with one decimal.
type Prize struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	RestaurantID string          `gorm:"index;not null;size:36" json:"restaurantId"`
	Name         string          `gorm:"not null" json:"name"`
	Percentage   decimal.Decimal `gorm:"type:decimal(4,1);not null" json:"percentage"`
	Message      string          `json:"message"`
	IsActive     bool            `gorm:"not null" json:"isActive"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}
