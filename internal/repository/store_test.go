package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"spinwheel/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// store is the method set shared by MemoryStore and GormStore.
type store interface {
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

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

var errTooMuch = errors.New("too much")

func limitTo100(prizes []models.Prize) error {
	total := decimal.Zero
	for _, p := range prizes {
		total = total.Add(p.Percentage)
	}
	if total.GreaterThan(decimal.NewFromInt(100)) {
		return errTooMuch
	}
	return nil
}

func seedRestaurant(t *testing.T, s store, id, slug string) {
	t.Helper()
	require.NoError(t, s.CreateRestaurant(context.Background(), &models.Restaurant{
		ID: id, Name: slug, Slug: slug, IsActive: true, WheelActive: true, CreatedAt: t0, UpdatedAt: t0,
	}))
}

func seedClient(t *testing.T, s store, id, restaurantID, phone, email string) *models.Client {
	t.Helper()
	c, err := s.SaveClient(context.Background(), &models.Client{
		ID: id, RestaurantID: restaurantID, Phone: phone, Email: email, GDPRConsent: true, CreatedAt: t0, UpdatedAt: t0,
	})
	require.NoError(t, err)
	return c
}

func seedParticipation(t *testing.T, s store, id, restaurantID, clientID string) {
	t.Helper()
	require.NoError(t, s.CreateParticipation(context.Background(), &models.Participation{
		ID: id, RestaurantID: restaurantID, ClientID: clientID, Status: models.StatusCreated, CreatedAt: t0, UpdatedAt: t0,
	}))
}

func winning(id, restaurantID, code string, wonAt time.Time) *models.Participation {
	return &models.Participation{
		ID:           id,
		RestaurantID: restaurantID,
		Status:       models.StatusPendingClaim,
		PrizeID:      ptr("prize-1"),
		PrizeName:    ptr("Coffee"),
		ClaimCode:    ptr(code),
		WonAt:        ptr(wonAt),
		ExpiresAt:    ptr(wonAt.Add(models.ClaimWindow)),
		UpdatedAt:    wonAt,
	}
}

// runStoreContract checks the behaviour both stores must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) store) {
	ctx := context.Background()

	t.Run("restaurants", func(t *testing.T) {
		s := newStore(t)
		seedRestaurant(t, s, "r1", "bistrot")

		r, err := s.GetRestaurant(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "bistrot", r.Slug)
		assert.True(t, r.CanSpin())

		r, err = s.GetRestaurantBySlug(ctx, "bistrot")
		require.NoError(t, err)
		assert.Equal(t, "r1", r.ID)

		err = s.CreateRestaurant(ctx, &models.Restaurant{ID: "r2", Name: "Copy", Slug: "bistrot"})
		assert.ErrorIs(t, err, ErrDuplicate)

		_, err = s.GetRestaurant(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetRestaurantBySlug(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("prizes are checked before they are kept", func(t *testing.T) {
		s := newStore(t)
		seedRestaurant(t, s, "r1", "bistrot")
		limit := limitTo100

		for i, id := range []string{"p2", "p1"} {
			require.NoError(t, s.SavePrize(ctx, &models.Prize{
				ID: id, RestaurantID: "r1", Name: id, Percentage: decimal.NewFromInt(40), IsActive: true,
				CreatedAt: t0.Add(time.Duration(i) * time.Minute), UpdatedAt: t0,
			}, limit))
		}
		err := s.SavePrize(ctx, &models.Prize{ID: "p3", RestaurantID: "r1", Name: "p3", Percentage: decimal.RequireFromString("20.5"), IsActive: true}, limit)
		assert.ErrorIs(t, err, errTooMuch)

		prizes, err := s.ListPrizes(ctx, "r1")
		require.NoError(t, err)
		require.Len(t, prizes, 2)
		assert.Equal(t, "p1", prizes[0].ID)
		assert.Equal(t, "p2", prizes[1].ID)

		p, err := s.GetPrize(ctx, "p1")
		require.NoError(t, err)
		p.Percentage = decimal.RequireFromString("12.5")
		require.NoError(t, s.SavePrize(ctx, p, limit))
		p, err = s.GetPrize(ctx, "p1")
		require.NoError(t, err)
		assert.True(t, p.Percentage.Equal(decimal.RequireFromString("12.5")), "got %s", p.Percentage)

		_, err = s.GetPrize(ctx, "p3")
		assert.ErrorIs(t, err, ErrNotFound)

		empty, err := s.ListPrizes(ctx, "r-none")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("concurrent prize writes cannot exceed the limit", func(t *testing.T) {
		s := newStore(t)
		seedRestaurant(t, s, "r1", "bistrot")

		const writers = 10
		errs := make([]error, writers)
		var g errgroup.Group
		for i := 0; i < writers; i++ {
			g.Go(func() error {
				errs[i] = s.SavePrize(ctx, &models.Prize{
					ID: fmt.Sprintf("p%02d", i), RestaurantID: "r1", Name: "Coffee",
					Percentage: decimal.NewFromInt(20), IsActive: true, CreatedAt: t0, UpdatedAt: t0,
				}, limitTo100)
				return nil
			})
		}
		_ = g.Wait()

		saved := 0
		for _, err := range errs {
			if err == nil {
				saved++
				continue
			}
			assert.ErrorIs(t, err, errTooMuch)
		}
		assert.Equal(t, 5, saved)

		prizes, err := s.ListPrizes(ctx, "r1")
		require.NoError(t, err)
		assert.NoError(t, limitTo100(prizes))
		assert.Len(t, prizes, 5)
	})

	t.Run("prizes need an existing restaurant", func(t *testing.T) {
		s := newStore(t)
		err := s.SavePrize(ctx, &models.Prize{ID: "p1", RestaurantID: "missing", Name: "Coffee", Percentage: decimal.NewFromInt(10)}, limitTo100)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("clients are merged by phone or email", func(t *testing.T) {
		s := newStore(t)
		seedRestaurant(t, s, "r1", "bistrot")
		seedRestaurant(t, s, "r2", "brasserie")

		first := seedClient(t, s, "c1", "r1", "0612345678", "")
		second, err := s.SaveClient(ctx, &models.Client{
			ID: "c2", RestaurantID: "r1", Phone: "0612345678", Email: "jeanne@example.com", FirstName: "Jeanne", UpdatedAt: t0,
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "jeanne@example.com", second.Email)
		assert.Equal(t, "Jeanne", second.FirstName)

		byEmail := seedClient(t, s, "c3", "r1", "", "jeanne@example.com")
		assert.Equal(t, first.ID, byEmail.ID)

		elsewhere := seedClient(t, s, "c4", "r2", "0612345678", "")
		assert.Equal(t, "c4", elsewhere.ID)
	})

	t.Run("resolution is a compare and swap", func(t *testing.T) {
		s := newStore(t)
		seedRestaurant(t, s, "r1", "bistrot")
		c := seedClient(t, s, "c1", "r1", "0612345678", "")
		seedParticipation(t, s, "p1", "r1", c.ID)
		seedParticipation(t, s, "p2", "r1", c.ID)
		seedParticipation(t, s, "p3", "r1", c.ID)

		require.NoError(t, s.ResolveParticipation(ctx, winning("p1", "r1", "K7M-2QX-HNP", t0)))

		got, err := s.GetParticipation(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPendingClaim, got.Status)
		assert.Equal(t, "K7M-2QX-HNP", *got.ClaimCode)
		assert.Equal(t, "Coffee", *got.PrizeName)
		assert.True(t, got.ExpiresAt.Equal(t0.Add(models.ClaimWindow)))

		err = s.ResolveParticipation(ctx, winning("p1", "r1", "AAA-AAA-AAA", t0))
		assert.ErrorIs(t, err, ErrStateConflict)

		inUse, err := s.CodeInUse(ctx, "r1", "K7M-2QX-HNP")
		require.NoError(t, err)
		assert.True(t, inUse)
		inUse, err = s.CodeInUse(ctx, "r2", "K7M-2QX-HNP")
		require.NoError(t, err)
		assert.False(t, inUse)

		err = s.ResolveParticipation(ctx, winning("p2", "r1", "K7M-2QX-HNP", t0))
		assert.ErrorIs(t, err, ErrCodeTaken)
		got, err = s.GetParticipation(ctx, "p2")
		require.NoError(t, err)
		assert.Equal(t, models.StatusCreated, got.Status)
		assert.Nil(t, got.ClaimCode)

		lost := &models.Participation{ID: "p3", RestaurantID: "r1", Status: models.StatusNoWin, WonAt: ptr(t0), UpdatedAt: t0}
		require.NoError(t, s.ResolveParticipation(ctx, lost))
		got, err = s.GetParticipation(ctx, "p3")
		require.NoError(t, err)
		assert.Equal(t, models.StatusNoWin, got.Status)
		assert.Nil(t, got.PrizeID)

		err = s.ResolveParticipation(ctx, winning("missing", "r1", "BBB-BBB-BBB", t0))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("claims succeed once and only inside the window", func(t *testing.T) {
		s := newStore(t)
		seedRestaurant(t, s, "r1", "bistrot")
		c := seedClient(t, s, "c1", "r1", "0612345678", "")
		seedParticipation(t, s, "p1", "r1", c.ID)
		seedParticipation(t, s, "p2", "r1", c.ID)
		require.NoError(t, s.ResolveParticipation(ctx, winning("p1", "r1", "K7M-2QX-HNP", t0)))
		require.NoError(t, s.ResolveParticipation(ctx, winning("p2", "r1", "HNP-2QX-K7M", t0)))

		at := t0.Add(time.Hour)
		claimed, err := s.ClaimParticipation(ctx, "p1", at)
		require.NoError(t, err)
		assert.Equal(t, models.StatusClaimed, claimed.Status)
		assert.True(t, claimed.ClaimedAt.Equal(at))

		_, err = s.ClaimParticipation(ctx, "p1", at)
		assert.ErrorIs(t, err, ErrStateConflict)

		inUse, err := s.CodeInUse(ctx, "r1", "K7M-2QX-HNP")
		require.NoError(t, err)
		assert.False(t, inUse, "a claimed code is free again")

		_, err = s.ClaimParticipation(ctx, "p2", t0.Add(models.ClaimWindow))
		assert.ErrorIs(t, err, ErrStateConflict)

		_, err = s.ExpireParticipation(ctx, "p2", t0.Add(time.Hour))
		assert.ErrorIs(t, err, ErrStateConflict, "window still open")
		expired, err := s.ExpireParticipation(ctx, "p2", t0.Add(models.ClaimWindow))
		require.NoError(t, err)
		assert.Equal(t, models.StatusExpired, expired.Status)

		_, err = s.ClaimParticipation(ctx, "missing", at)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent resolutions commit once", func(t *testing.T) {
		s := newStore(t)
		seedRestaurant(t, s, "r1", "bistrot")
		c := seedClient(t, s, "c1", "r1", "0612345678", "")
		seedParticipation(t, s, "p1", "r1", c.ID)

		const workers = 20
		errs := make([]error, workers)
		var g errgroup.Group
		for i := 0; i < workers; i++ {
			g.Go(func() error {
				errs[i] = s.ResolveParticipation(ctx, winning("p1", "r1", fmt.Sprintf("K7M-2QX-%03d", i), t0))
				return nil
			})
		}
		_ = g.Wait()

		committed := 0
		for _, err := range errs {
			if err == nil {
				committed++
				continue
			}
			assert.ErrorIs(t, err, ErrStateConflict)
		}
		assert.Equal(t, 1, committed)

		got, err := s.GetParticipation(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPendingClaim, got.Status)
		require.NotNil(t, got.ClaimCode)
		inUse, err := s.CodeInUse(ctx, "r1", *got.ClaimCode)
		require.NoError(t, err)
		assert.True(t, inUse)
	})

	t.Run("an outstanding code is held once under contention", func(t *testing.T) {
		s := newStore(t)
		seedRestaurant(t, s, "r1", "bistrot")
		c := seedClient(t, s, "c1", "r1", "0612345678", "")

		const workers = 10
		for i := 0; i < workers; i++ {
			seedParticipation(t, s, fmt.Sprintf("p%02d", i), "r1", c.ID)
		}
		errs := make([]error, workers)
		var g errgroup.Group
		for i := 0; i < workers; i++ {
			g.Go(func() error {
				errs[i] = s.ResolveParticipation(ctx, winning(fmt.Sprintf("p%02d", i), "r1", "K7M-2QX-HNP", t0))
				return nil
			})
		}
		_ = g.Wait()

		committed := 0
		for _, err := range errs {
			if err == nil {
				committed++
				continue
			}
			assert.ErrorIs(t, err, ErrCodeTaken)
		}
		assert.Equal(t, 1, committed)

		found, err := s.FindPendingByCode(ctx, "r1", "K7M-2QX-HNP")
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})

	t.Run("concurrent claims succeed once", func(t *testing.T) {
		s := newStore(t)
		seedRestaurant(t, s, "r1", "bistrot")
		c := seedClient(t, s, "c1", "r1", "0612345678", "")
		seedParticipation(t, s, "p1", "r1", c.ID)
		require.NoError(t, s.ResolveParticipation(ctx, winning("p1", "r1", "K7M-2QX-HNP", t0)))

		const workers = 20
		errs := make([]error, workers)
		var g errgroup.Group
		for i := 0; i < workers; i++ {
			g.Go(func() error {
				_, errs[i] = s.ClaimParticipation(ctx, "p1", t0.Add(time.Hour))
				return nil
			})
		}
		_ = g.Wait()

		claimed := 0
		for _, err := range errs {
			if err == nil {
				claimed++
				continue
			}
			assert.ErrorIs(t, err, ErrStateConflict)
		}
		assert.Equal(t, 1, claimed)

		got, err := s.GetParticipation(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusClaimed, got.Status)
	})

	t.Run("sweep expires overdue claims", func(t *testing.T) {
		s := newStore(t)
		seedRestaurant(t, s, "r1", "bistrot")
		c := seedClient(t, s, "c1", "r1", "0612345678", "")
		codes := []string{"AAA-AAA-AAA", "BBB-BBB-BBB", "CCC-CCC-CCC"}
		for i, id := range []string{"p1", "p2", "p3"} {
			seedParticipation(t, s, id, "r1", c.ID)
			wonAt := t0.Add(time.Duration(i) * 24 * time.Hour)
			require.NoError(t, s.ResolveParticipation(ctx, winning(id, "r1", codes[i], wonAt)))
		}

		n, err := s.ExpireOverdue(ctx, t0.Add(models.ClaimWindow+36*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.ExpireOverdue(ctx, t0.Add(models.ClaimWindow+36*time.Hour))
		require.NoError(t, err)
		assert.Zero(t, n)

		p3, err := s.GetParticipation(ctx, "p3")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPendingClaim, p3.Status)
		inUse, err := s.CodeInUse(ctx, "r1", "AAA-AAA-AAA")
		require.NoError(t, err)
		assert.False(t, inUse)
	})

	t.Run("pending lookups", func(t *testing.T) {
		s := newStore(t)
		seedRestaurant(t, s, "r1", "bistrot")
		seedRestaurant(t, s, "r2", "brasserie")
		jeanne := seedClient(t, s, "c1", "r1", "0612345678", "jeanne@example.com")
		paul := seedClient(t, s, "c2", "r1", "0687654321", "")
		other := seedClient(t, s, "c3", "r2", "0612345678", "")

		seedParticipation(t, s, "p1", "r1", jeanne.ID)
		seedParticipation(t, s, "p2", "r1", jeanne.ID)
		seedParticipation(t, s, "p3", "r1", paul.ID)
		seedParticipation(t, s, "p4", "r2", other.ID)
		seedParticipation(t, s, "p5", "r1", jeanne.ID)
		require.NoError(t, s.ResolveParticipation(ctx, winning("p2", "r1", "BBB-BBB-BBB", t0)))
		require.NoError(t, s.ResolveParticipation(ctx, winning("p1", "r1", "AAA-AAA-AAA", t0.Add(time.Hour))))
		require.NoError(t, s.ResolveParticipation(ctx, winning("p3", "r1", "CCC-CCC-CCC", t0)))
		require.NoError(t, s.ResolveParticipation(ctx, winning("p4", "r2", "AAA-AAA-AAA", t0)))
		require.NoError(t, s.ResolveParticipation(ctx, winning("p5", "r1", "DDD-DDD-DDD", t0)))
		_, err := s.ClaimParticipation(ctx, "p5", t0.Add(time.Minute))
		require.NoError(t, err)

		found, err := s.FindPendingByCode(ctx, "r1", "AAA-AAA-AAA")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "p1", found[0].ID)

		found, err = s.FindPendingByCode(ctx, "r1", "DDD-DDD-DDD")
		require.NoError(t, err)
		assert.Empty(t, found)

		found, err = s.FindPendingByPhone(ctx, "r1", "0612345678")
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "p2", found[0].ID, "oldest win first")
		assert.Equal(t, "p1", found[1].ID)

		found, err = s.FindPendingByEmail(ctx, "r1", "jeanne@example.com")
		require.NoError(t, err)
		assert.Len(t, found, 2)

		found, err = s.FindPendingByPhone(ctx, "r2", "0687654321")
		require.NoError(t, err)
		assert.Empty(t, found)

		found, err = s.FindPendingByEmail(ctx, "r1", "")
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("unknown participation", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetParticipation(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
