package services

import (
	"context"
	"errors"

	"spinwheel/internal/models"

	"github.com/google/logger"
	"github.com/shopspring/decimal"
)

// DemoSlug is the slug of the restaurant created by SeedDemo.
const DemoSlug = "bistrot-gourmand"

// SeedDemo creates a demo restaurant with a 30/25/25 wheel (20% lose).
// It does nothing if the restaurant already exists.
func (s *WheelService) SeedDemo(ctx context.Context) (*models.Restaurant, error) {
	existing, err := s.RestaurantBySlug(ctx, DemoSlug)
	if err == nil {
		logger.Infof("demo restaurant already exists: %s", existing.ID)
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	r := &models.Restaurant{
		Name:            "Le Bistrot Gourmand",
		Slug:            DemoSlug,
		Address:         "15 Rue de la Gastronomie, 75001 Paris",
		GoogleReviewURL: "https://g.page/r/bistrot-gourmand/review",
		Phone:           "+33123456789",
		Email:           "contact@bistrot-gourmand.com",
		IsActive:        true,
		WheelActive:     true,
	}
	if err := s.CreateRestaurant(ctx, r); err != nil {
		return nil, err
	}

	prizes := []PrizeInput{
		{Name: "Café offert", Percentage: decimal.NewFromInt(30), Message: "Félicitations ! Vous avez gagné un café offert.", IsActive: true},
		{Name: "Dessert offert", Percentage: decimal.NewFromInt(25), Message: "Félicitations ! Vous avez gagné un dessert offert.", IsActive: true},
		{Name: "-10% prochaine commande", Percentage: decimal.NewFromInt(25), Message: "Félicitations ! Vous avez gagné une réduction de 10% sur votre prochaine commande.", IsActive: true},
	}
	for _, in := range prizes {
		if _, err := s.CreatePrize(ctx, r.ID, in); err != nil {
			return nil, err
		}
	}
	logger.Infof("seeded demo restaurant %s with %d prizes", r.Slug, len(prizes))
	return r, nil
}
