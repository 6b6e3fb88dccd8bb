package services

import (
	"context"
	"time"

	"spinwheel/internal/models"
	"spinwheel/internal/repository"
)

// Store is the persistence the wheel engine needs. Write methods must be
// atomic: ResolveParticipation, ClaimParticipation and ExpireParticipation
// are compare-and-swap operations on the participation status and report a
// lost race with repository.ErrStateConflict.
type Store interface {
	CreateRestaurant(ctx context.Context, r *models.Restaurant) error
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
	GetRestaurantBySlug(ctx context.Context, slug string) (*models.Restaurant, error)

	ListPrizes(ctx context.Context, restaurantID string) ([]models.Prize, error)
	GetPrize(ctx context.Context, id string) (*models.Prize, error)
	SavePrize(ctx context.Context, p *models.Prize, check func([]models.Prize) error) error

	SaveClient(ctx context.Context, c *models.Client) (*models.Client, error)

	CreateParticipation(ctx context.Context, p *models.Participation) error
	GetParticipation(ctx context.Context, id string) (*models.Participation, error)
	CodeInUse(ctx context.Context, restaurantID, code string) (bool, error)
	ResolveParticipation(ctx context.Context, p *models.Participation) error
	ClaimParticipation(ctx context.Context, id string, at time.Time) (*models.Participation, error)
	ExpireParticipation(ctx context.Context, id string, at time.Time) (*models.Participation, error)
	ExpireOverdue(ctx context.Context, at time.Time) (int, error)

	FindPendingByCode(ctx context.Context, restaurantID, code string) ([]models.Participation, error)
	FindPendingByPhone(ctx context.Context, restaurantID, phone string) ([]models.Participation, error)
	FindPendingByEmail(ctx context.Context, restaurantID, email string) ([]models.Participation, error)
}

var (
	_ Store = (*repository.MemoryStore)(nil)
	_ Store = (*repository.GormStore)(nil)
)
