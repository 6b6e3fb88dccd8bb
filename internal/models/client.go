package models

import "time"

// Client is a customer who filled the participation form of a restaurant.
// Phone and Email are stored normalized so they can be used as lookup keys.
type Client struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	RestaurantID string     `gorm:"index;not null;size:36" json:"restaurantId"`
	Phone        string     `gorm:"index" json:"phone,omitempty"`
	Email        string     `gorm:"index" json:"email,omitempty"`
	FirstName    string     `json:"firstName,omitempty"`
	LastName     string     `json:"lastName,omitempty"`
	City         string     `json:"city,omitempty"`
	AgeRange     string     `json:"ageRange,omitempty"`
	GDPRConsent  bool       `gorm:"column:gdpr_consent" json:"gdprConsent"`
	ConsentDate  *time.Time `json:"consentDate,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
