package services

import (
	"context"
	"fmt"
	"time"

	"spinwheel/internal/models"
)

// ClaimValidator is the staff side of redemption: find what a customer can
// collect, then confirm the hand-over. Every call is scoped to one restaurant.
type ClaimValidator struct {
	store  Store
	ledger *ParticipationLedger
}

// NewClaimValidator creates a ClaimValidator on top of ledger.
func NewClaimValidator(store Store, ledger *ParticipationLedger) *ClaimValidator {
	return &ClaimValidator{store: store, ledger: ledger}
}

// Lookup returns the pending prizes matching key. A claim code matches
// exactly one participation; a phone or email returns every pending prize of
// that customer. Claims whose window closed are expired on the way and left
// out. No match is ErrNotFound.
func (v *ClaimValidator) Lookup(ctx context.Context, restaurantID string, key LookupKey) ([]models.Participation, error) {
	var (
		found []models.Participation
		err   error
	)
	switch key.Kind {
	case LookupCode:
		found, err = v.store.FindPendingByCode(ctx, restaurantID, key.Value)
	case LookupPhone:
		found, err = v.store.FindPendingByPhone(ctx, restaurantID, key.Value)
	case LookupEmail:
		found, err = v.store.FindPendingByEmail(ctx, restaurantID, key.Value)
	default:
		return nil, fmt.Errorf("%w: unknown lookup kind %q", ErrInvalidInput, key.Kind)
	}
	if err != nil {
		return nil, storeErr(err, "participations")
	}

	pending := make([]models.Participation, 0, len(found))
	for i := range found {
		p, err := v.ledger.expireIfDue(ctx, &found[i])
		if err != nil {
			return nil, err
		}
		if p.Status == models.StatusPendingClaim {
			pending = append(pending, *p)
		}
	}

	if len(pending) == 0 {
		return nil, fmt.Errorf("%w: no pending prize for %s %s", ErrNotFound, key.Kind, key.Value)
	}
	if key.Kind == LookupCode && len(pending) != 1 {
		return nil, fmt.Errorf("%w: claim code %s is ambiguous", ErrNotFound, key.Value)
	}
	return pending, nil
}

// Confirm redeems one participation of the restaurant and returns when it
// was claimed. Participations of other restaurants are reported as not found.
func (v *ClaimValidator) Confirm(ctx context.Context, restaurantID, participationID string) (time.Time, error) {
	p, err := v.store.GetParticipation(ctx, participationID)
	if err != nil {
		return time.Time{}, storeErr(err, "participation "+participationID)
	}
	if p.RestaurantID != restaurantID {
		return time.Time{}, fmt.Errorf("%w: participation %s", ErrNotFound, participationID)
	}

	claimed, err := v.ledger.Claim(ctx, participationID)
	if err != nil {
		if claimed != nil && claimed.ClaimedAt != nil {
			return *claimed.ClaimedAt, err
		}
		return time.Time{}, err
	}
	return *claimed.ClaimedAt, nil
}
