package models

import "time"

// ParticipationStatus is the lifecycle state of a participation.
type ParticipationStatus string

const (
	// StatusCreated: form submitted, wheel not spun yet.
	StatusCreated ParticipationStatus = "CREATED"
	// StatusNoWin: the spin landed on the lose segment. Terminal.
	StatusNoWin ParticipationStatus = "NO_WIN"
	// StatusPendingClaim: a prize was won and waits for redemption.
	StatusPendingClaim ParticipationStatus = "PENDING_CLAIM"
	// StatusClaimed: staff handed the prize over. Terminal.
	StatusClaimed ParticipationStatus = "CLAIMED"
	// StatusExpired: the claim window closed before redemption. Terminal.
	StatusExpired ParticipationStatus = "EXPIRED"
)

// ClaimWindow is how long a won prize stays redeemable.
const ClaimWindow = 7 * 24 * time.Hour

// Terminal reports whether no further transition is possible from s.
func (s ParticipationStatus) Terminal() bool {
	switch s {
	case StatusNoWin, StatusClaimed, StatusExpired:
		return true
	}
	return false
}

// Resolved reports whether the wheel has already been spun.
func (s ParticipationStatus) Resolved() bool {
	return s != StatusCreated && s != ""
}

// CanTransition reports whether moving from s to next is allowed.
// Transitions only ever move forward.
func (s ParticipationStatus) CanTransition(next ParticipationStatus) bool {
	switch s {
	case StatusCreated:
		return next == StatusNoWin || next == StatusPendingClaim
	case StatusPendingClaim:
		return next == StatusClaimed || next == StatusExpired
	}
	return false
}

// Participation is one customer's pass through the review, form and spin flow.
// It is never deleted.
type Participation struct {
	ID           string              `gorm:"primaryKey;size:36" json:"id"`
	RestaurantID string              `gorm:"index;not null;size:36" json:"restaurantId"`
	ClientID     string              `gorm:"index;not null;size:36" json:"clientId"`
	PrizeID      *string             `gorm:"size:36" json:"prizeId"`
	PrizeName    *string             `json:"prizeName,omitempty"`
	ClaimCode    *string             `gorm:"size:11" json:"claimCode"`
	Status       ParticipationStatus `gorm:"index;not null;size:16" json:"status"`
	WonAt        *time.Time          `json:"wonAt,omitempty"`
	ExpiresAt    *time.Time          `json:"expiresAt,omitempty"`
	ClaimedAt    *time.Time          `json:"claimedAt,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// Won reports whether the participation landed on a prize.
func (p *Participation) Won() bool {
	return p.PrizeID != nil
}

// ExpiredAt reports whether a pending claim is past its window at now.
func (p *Participation) ExpiredAt(now time.Time) bool {
	return p.Status == StatusPendingClaim && p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}
