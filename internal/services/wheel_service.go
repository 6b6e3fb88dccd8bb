package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"spinwheel/internal/models"
	"spinwheel/internal/repository"

	"github.com/google/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WheelService is the entry point used by the HTTP layer. It bundles the
// prize configuration of each restaurant with the participation ledger and
// the claim validator.
type WheelService struct {
	store     Store
	ledger    *ParticipationLedger
	validator *ClaimValidator
	now       func() time.Time
	newID     func() string
}

// Option customizes a WheelService.
type Option func(*serviceOptions)

type serviceOptions struct {
	rng   RandomSource
	now   func() time.Time
	newID func() string
}

// WithRandomSource replaces the random source of the wheel and of claim codes.
func WithRandomSource(rng RandomSource) Option {
	return func(o *serviceOptions) { o.rng = rng }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

// WithIDGenerator replaces the UUIDv7 id generator.
func WithIDGenerator(newID func() string) Option {
	return func(o *serviceOptions) { o.newID = newID }
}

// NewWheelService creates and wires a WheelService on top of store.
func NewWheelService(store Store, opts ...Option) *WheelService {
	o := serviceOptions{
		rng:   NewRandomSource(),
		now:   func() time.Time { return time.Now().UTC() },
		newID: newUUID,
	}
	for _, opt := range opts {
		opt(&o)
	}

	ledger := NewParticipationLedger(
		store,
		NewWheelResolver(o.rng),
		NewClaimCodeGenerator(o.rng, store),
		o.now,
		o.newID,
	)
	return &WheelService{
		store:     store,
		ledger:    ledger,
		validator: NewClaimValidator(store, ledger),
		now:       o.now,
		newID:     o.newID,
	}
}

// newUUID returns a time-ordered id, so ordering prizes by id follows
// their creation order.
func newUUID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CreateRestaurant registers a restaurant. ID and timestamps are filled in.
func (s *WheelService) CreateRestaurant(ctx context.Context, r *models.Restaurant) error {
	r.Name = strings.TrimSpace(r.Name)
	r.Slug = strings.ToLower(strings.TrimSpace(r.Slug))
	if r.Name == "" || r.Slug == "" {
		return fmt.Errorf("%w: restaurant name and slug are required", ErrInvalidInput)
	}
	if r.ID == "" {
		r.ID = s.newID()
	}
	now := s.now()
	r.CreatedAt, r.UpdatedAt = now, now

	if err := s.store.CreateRestaurant(ctx, r); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("%w: slug %q is taken", ErrInvalidInput, r.Slug)
		}
		return storeErr(err, "restaurant")
	}
	logger.Infof("restaurant %s (%s) created", r.Slug, r.ID)
	return nil
}

// Restaurant returns a restaurant by id.
func (s *WheelService) Restaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	r, err := s.store.GetRestaurant(ctx, id)
	return r, storeErr(err, "restaurant "+id)
}

// RestaurantBySlug returns a restaurant by its public slug.
func (s *WheelService) RestaurantBySlug(ctx context.Context, slug string) (*models.Restaurant, error) {
	r, err := s.store.GetRestaurantBySlug(ctx, slug)
	return r, storeErr(err, "restaurant "+slug)
}

// GetPrizeTable returns the validated prize table of a restaurant.
func (s *WheelService) GetPrizeTable(ctx context.Context, restaurantID string) (*PrizeTable, error) {
	if _, err := s.Restaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	return s.ledger.PrizeTable(ctx, restaurantID)
}

// ListPrizes returns every prize of a restaurant, inactive ones included.
func (s *WheelService) ListPrizes(ctx context.Context, restaurantID string) ([]models.Prize, error) {
	if _, err := s.Restaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	prizes, err := s.store.ListPrizes(ctx, restaurantID)
	return prizes, storeErr(err, "prizes")
}

// PrizeInput holds the editable fields of a prize.
type PrizeInput struct {
	Name       string
	Percentage decimal.Decimal
	Message    string
	IsActive   bool
}

// CreatePrize adds a prize. The write is rejected with ErrConfiguration if
// the restaurant's active prizes would add up to more than 100%.
func (s *WheelService) CreatePrize(ctx context.Context, restaurantID string, in PrizeInput) (*models.Prize, error) {
	if _, err := s.Restaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	if err := validatePrizeInput(in); err != nil {
		return nil, err
	}

	now := s.now()
	p := &models.Prize{
		ID:           s.newID(),
		RestaurantID: restaurantID,
		Name:         strings.TrimSpace(in.Name),
		Percentage:   in.Percentage,
		Message:      in.Message,
		IsActive:     in.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.savePrize(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdatePrize replaces the editable fields of a prize.
func (s *WheelService) UpdatePrize(ctx context.Context, restaurantID, prizeID string, in PrizeInput) (*models.Prize, error) {
	if err := validatePrizeInput(in); err != nil {
		return nil, err
	}
	p, err := s.prizeOf(ctx, restaurantID, prizeID)
	if err != nil {
		return nil, err
	}

	p.Name = strings.TrimSpace(in.Name)
	p.Percentage = in.Percentage
	p.Message = in.Message
	p.IsActive = in.IsActive
	p.UpdatedAt = s.now()
	if err := s.savePrize(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SetPrizeActive switches a prize on or off the wheel.
func (s *WheelService) SetPrizeActive(ctx context.Context, restaurantID, prizeID string, active bool) (*models.Prize, error) {
	p, err := s.prizeOf(ctx, restaurantID, prizeID)
	if err != nil {
		return nil, err
	}
	p.IsActive = active
	p.UpdatedAt = s.now()
	if err := s.savePrize(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *WheelService) prizeOf(ctx context.Context, restaurantID, prizeID string) (*models.Prize, error) {
	p, err := s.store.GetPrize(ctx, prizeID)
	if err != nil {
		return nil, storeErr(err, "prize "+prizeID)
	}
	if p.RestaurantID != restaurantID {
		return nil, fmt.Errorf("%w: prize %s", ErrNotFound, prizeID)
	}
	return p, nil
}

func (s *WheelService) savePrize(ctx context.Context, p *models.Prize) error {
	err := s.store.SavePrize(ctx, p, func(prizes []models.Prize) error {
		_, err := NewPrizeTable(p.RestaurantID, prizes)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			logger.Warningf("rejected prize %q for restaurant %s: %v", p.Name, p.RestaurantID, err)
			return err
		}
		return storeErr(err, "prize "+p.ID)
	}
	logger.Infof("prize %q (%s%%, active=%t) saved for restaurant %s", p.Name, p.Percentage.String(), p.IsActive, p.RestaurantID)
	return nil
}

func validatePrizeInput(in PrizeInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: prize name is required", ErrInvalidInput)
	}
	if err := validatePercentage(in.Percentage); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return nil
}

// EnterParticipation records a customer's form and returns the participation
// to spin.
func (s *WheelService) EnterParticipation(ctx context.Context, restaurantID string, form EntryForm) (*models.Participation, error) {
	return s.ledger.Enter(ctx, restaurantID, form)
}

// GetParticipation returns a participation with expiry applied.
func (s *WheelService) GetParticipation(ctx context.Context, id string) (*models.Participation, error) {
	return s.ledger.Get(ctx, id)
}

// ResolveSpin spins the wheel once for a participation. See ParticipationLedger.Resolve.
func (s *WheelService) ResolveSpin(ctx context.Context, participationID string) (SpinResult, error) {
	return s.ledger.Resolve(ctx, participationID)
}

// RedeemClaim lists the pending prizes matching key in a restaurant.
func (s *WheelService) RedeemClaim(ctx context.Context, restaurantID string, key LookupKey) ([]models.Participation, error) {
	return s.validator.Lookup(ctx, restaurantID, key)
}

// ConfirmRedemption marks a prize as handed over.
func (s *WheelService) ConfirmRedemption(ctx context.Context, restaurantID, participationID string) (time.Time, error) {
	return s.validator.Confirm(ctx, restaurantID, participationID)
}

// CleanUpExpiredClaims expires pending claims whose window has closed. Reads
// already do this lazily; the sweep keeps stored statuses current for
// reporting.
func (s *WheelService) CleanUpExpiredClaims(ctx context.Context) (int, error) {
	n, err := s.ledger.ExpireOverdue(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Infof("expired %d overdue claims", n)
	}
	return n, nil
}
