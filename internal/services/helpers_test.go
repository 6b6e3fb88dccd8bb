package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"spinwheel/internal/models"
	"spinwheel/internal/repository"

	"github.com/shopspring/decimal"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequentialIDs returns ids that sort in creation order.
func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("id-%04d", n.Add(1))
	}
}

type fixture struct {
	store   *repository.MemoryStore
	service *WheelService
	clock   *fakeClock
	rest    *models.Restaurant
}

// newFixture builds a service over a memory store with one active
// restaurant whose prizes have the given percentages.
func newFixture(t *testing.T, rng RandomSource, percentages ...int64) *fixture {
	t.Helper()
	f := &fixture{store: repository.NewMemoryStore(), clock: newFakeClock()}
	f.service = NewWheelService(f.store,
		WithRandomSource(rng),
		WithClock(f.clock.Now),
		WithIDGenerator(sequentialIDs()),
	)
	f.rest = f.addRestaurant(t, "bistrot")
	for i, pct := range percentages {
		_, err := f.service.CreatePrize(context.Background(), f.rest.ID, PrizeInput{
			Name:       fmt.Sprintf("Prize %c", 'A'+i),
			Percentage: decimal.NewFromInt(pct),
			IsActive:   true,
		})
		if err != nil {
			t.Fatalf("create prize %d: %v", i, err)
		}
	}
	return f
}

func (f *fixture) addRestaurant(t *testing.T, slug string) *models.Restaurant {
	t.Helper()
	r := &models.Restaurant{Name: slug, Slug: slug, IsActive: true, WheelActive: true}
	if err := f.service.CreateRestaurant(context.Background(), r); err != nil {
		t.Fatalf("create restaurant: %v", err)
	}
	return r
}

func (f *fixture) enter(t *testing.T, restaurantID, phone, email string) *models.Participation {
	t.Helper()
	p, err := f.service.EnterParticipation(context.Background(), restaurantID, EntryForm{
		Phone:       phone,
		Email:       email,
		FirstName:   "Jeanne",
		GDPRConsent: true,
	})
	if err != nil {
		t.Fatalf("enter participation: %v", err)
	}
	return p
}

// win enters and spins a participation that is expected to win.
func (f *fixture) win(t *testing.T, restaurantID, phone, email string) SpinResult {
	t.Helper()
	p := f.enter(t, restaurantID, phone, email)
	res, err := f.service.ResolveSpin(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("resolve spin: %v", err)
	}
	if res.Prize == nil || res.ClaimCode == nil {
		t.Fatalf("expected a win, got %+v", res)
	}
	return res
}

func prize(id string, pct string, active bool) models.Prize {
	return models.Prize{ID: id, Name: "Prize " + id, Percentage: decimal.RequireFromString(pct), IsActive: active}
}
