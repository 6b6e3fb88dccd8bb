package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"spinwheel/internal/models"
)

// MemoryStore keeps every record in process memory. A single lock guards all
// maps, which makes each write method an atomic check-and-set.
type MemoryStore struct {
	mu             sync.RWMutex
	restaurants    map[string]models.Restaurant
	prizes         map[string]models.Prize
	clients        map[string]models.Client
	participations map[string]models.Participation
	// liveCodes maps restaurantID/code to the pending participation holding it.
	liveCodes map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		restaurants:    make(map[string]models.Restaurant),
		prizes:         make(map[string]models.Prize),
		clients:        make(map[string]models.Client),
		participations: make(map[string]models.Participation),
		liveCodes:      make(map[string]string),
	}
}

func codeKey(restaurantID, code string) string {
	return restaurantID + "/" + code
}

// CreateRestaurant stores a new restaurant. Slugs are unique.
func (s *MemoryStore) CreateRestaurant(ctx context.Context, r *models.Restaurant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.restaurants[r.ID]; exists {
		return ErrDuplicate
	}
	for _, other := range s.restaurants {
		if other.Slug == r.Slug {
			return ErrDuplicate
		}
	}
	s.restaurants[r.ID] = *r
	return nil
}

// GetRestaurant returns the restaurant with the given id.
func (s *MemoryStore) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.restaurants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

// GetRestaurantBySlug returns the restaurant with the given public slug.
func (s *MemoryStore) GetRestaurantBySlug(ctx context.Context, slug string) (*models.Restaurant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.restaurants {
		if r.Slug == slug {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

// ListPrizes returns every prize of a restaurant, active or not, by ascending id.
func (s *MemoryStore) ListPrizes(ctx context.Context, restaurantID string) ([]models.Prize, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prizesOf(restaurantID), nil
}

func (s *MemoryStore) prizesOf(restaurantID string) []models.Prize {
	out := make([]models.Prize, 0)
	for _, p := range s.prizes {
		if p.RestaurantID == restaurantID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetPrize returns the prize with the given id.
func (s *MemoryStore) GetPrize(ctx context.Context, id string) (*models.Prize, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prizes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// SavePrize inserts or replaces a prize. check receives the restaurant's
// prizes as they would be after the write; a non-nil result aborts it.
func (s *MemoryStore) SavePrize(ctx context.Context, p *models.Prize, check func([]models.Prize) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.restaurants[p.RestaurantID]; !ok {
		return ErrNotFound
	}
	if prev, exists := s.prizes[p.ID]; exists && prev.RestaurantID != p.RestaurantID {
		return ErrDuplicate
	}

	next := make([]models.Prize, 0)
	for _, existing := range s.prizesOf(p.RestaurantID) {
		if existing.ID != p.ID {
			next = append(next, existing)
		}
	}
	next = append(next, *p)
	sort.Slice(next, func(i, j int) bool { return next[i].ID < next[j].ID })

	if check != nil {
		if err := check(next); err != nil {
			return err
		}
	}
	s.prizes[p.ID] = *p
	return nil
}

// SaveClient stores the client, merging it into an existing client of the
// same restaurant that shares its phone or email. The stored record is returned.
func (s *MemoryStore) SaveClient(ctx context.Context, c *models.Client) (*models.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.clients {
		if existing.RestaurantID != c.RestaurantID {
			continue
		}
		if (c.Phone != "" && existing.Phone == c.Phone) || (c.Email != "" && existing.Email == c.Email) {
			merged := mergeClient(existing, *c)
			s.clients[id] = merged
			return &merged, nil
		}
	}
	s.clients[c.ID] = *c
	stored := *c
	return &stored, nil
}

// mergeClient applies the non-empty fields of update on top of existing.
func mergeClient(existing, update models.Client) models.Client {
	if update.Phone != "" {
		existing.Phone = update.Phone
	}
	if update.Email != "" {
		existing.Email = update.Email
	}
	if update.FirstName != "" {
		existing.FirstName = update.FirstName
	}
	if update.LastName != "" {
		existing.LastName = update.LastName
	}
	if update.City != "" {
		existing.City = update.City
	}
	if update.AgeRange != "" {
		existing.AgeRange = update.AgeRange
	}
	if update.GDPRConsent {
		existing.GDPRConsent = true
		existing.ConsentDate = update.ConsentDate
	}
	existing.UpdatedAt = update.UpdatedAt
	return existing
}

// CreateParticipation stores a new participation.
func (s *MemoryStore) CreateParticipation(ctx context.Context, p *models.Participation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.participations[p.ID]; exists {
		return ErrDuplicate
	}
	s.participations[p.ID] = *p
	return nil
}

// GetParticipation returns the participation with the given id.
func (s *MemoryStore) GetParticipation(ctx context.Context, id string) (*models.Participation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// CodeInUse reports whether code is held by a pending participation of the restaurant.
func (s *MemoryStore) CodeInUse(ctx context.Context, restaurantID, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, taken := s.liveCodes[codeKey(restaurantID, code)]
	return taken, nil
}

// ResolveParticipation records a spin outcome on a CREATED participation.
// Status, prize, claim code and timestamps are written together or not at all.
func (s *MemoryStore) ResolveParticipation(ctx context.Context, p *models.Participation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.participations[p.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != models.StatusCreated {
		return ErrStateConflict
	}
	if p.ClaimCode != nil {
		if _, taken := s.liveCodes[codeKey(stored.RestaurantID, *p.ClaimCode)]; taken {
			return ErrCodeTaken
		}
	}
	// last point where an abandoned request can still back out
	if err := ctx.Err(); err != nil {
		return err
	}

	stored.Status = p.Status
	stored.PrizeID = p.PrizeID
	stored.PrizeName = p.PrizeName
	stored.ClaimCode = p.ClaimCode
	stored.WonAt = p.WonAt
	stored.ExpiresAt = p.ExpiresAt
	stored.UpdatedAt = p.UpdatedAt
	s.participations[p.ID] = stored
	if stored.Status == models.StatusPendingClaim && stored.ClaimCode != nil {
		s.liveCodes[codeKey(stored.RestaurantID, *stored.ClaimCode)] = stored.ID
	}
	return nil
}

// ClaimParticipation marks a pending participation as claimed at the given
// time, provided its window is still open.
func (s *MemoryStore) ClaimParticipation(ctx context.Context, id string, at time.Time) (*models.Participation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.participations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if stored.Status != models.StatusPendingClaim || stored.ExpiredAt(at) {
		return nil, ErrStateConflict
	}
	claimedAt := at
	stored.Status = models.StatusClaimed
	stored.ClaimedAt = &claimedAt
	stored.UpdatedAt = at
	s.participations[id] = stored
	s.releaseCode(stored)
	return &stored, nil
}

// ExpireParticipation moves a pending participation whose window closed
// before at to EXPIRED.
func (s *MemoryStore) ExpireParticipation(ctx context.Context, id string, at time.Time) (*models.Participation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.participations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !stored.ExpiredAt(at) {
		return nil, ErrStateConflict
	}
	stored.Status = models.StatusExpired
	stored.UpdatedAt = at
	s.participations[id] = stored
	s.releaseCode(stored)
	return &stored, nil
}

// ExpireOverdue expires every pending participation whose window closed
// before at and returns how many were changed.
func (s *MemoryStore) ExpireOverdue(ctx context.Context, at time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for id, p := range s.participations {
		if !p.ExpiredAt(at) {
			continue
		}
		p.Status = models.StatusExpired
		p.UpdatedAt = at
		s.participations[id] = p
		s.releaseCode(p)
		expired++
	}
	return expired, nil
}

func (s *MemoryStore) releaseCode(p models.Participation) {
	if p.ClaimCode == nil {
		return
	}
	key := codeKey(p.RestaurantID, *p.ClaimCode)
	if s.liveCodes[key] == p.ID {
		delete(s.liveCodes, key)
	}
}

// FindPendingByCode returns the pending participation holding code, if any.
func (s *MemoryStore) FindPendingByCode(ctx context.Context, restaurantID, code string) ([]models.Participation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.liveCodes[codeKey(restaurantID, code)]
	if !ok {
		return []models.Participation{}, nil
	}
	return []models.Participation{s.participations[id]}, nil
}

// FindPendingByPhone returns the pending participations of the restaurant's
// clients with the given phone.
func (s *MemoryStore) FindPendingByPhone(ctx context.Context, restaurantID, phone string) ([]models.Participation, error) {
	return s.findPendingByClient(ctx, restaurantID, func(c models.Client) bool {
		return phone != "" && c.Phone == phone
	})
}

// FindPendingByEmail returns the pending participations of the restaurant's
// clients with the given email.
func (s *MemoryStore) FindPendingByEmail(ctx context.Context, restaurantID, email string) ([]models.Participation, error) {
	return s.findPendingByClient(ctx, restaurantID, func(c models.Client) bool {
		return email != "" && c.Email == email
	})
}

func (s *MemoryStore) findPendingByClient(ctx context.Context, restaurantID string, match func(models.Client) bool) ([]models.Participation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	clientIDs := make(map[string]bool)
	for id, c := range s.clients {
		if c.RestaurantID == restaurantID && match(c) {
			clientIDs[id] = true
		}
	}

	out := make([]models.Participation, 0)
	for _, p := range s.participations {
		if p.RestaurantID == restaurantID && p.Status == models.StatusPendingClaim && clientIDs[p.ClientID] {
			out = append(out, p)
		}
	}
	sortByWonAt(out)
	return out, nil
}

func sortByWonAt(ps []models.Participation) {
	sort.Slice(ps, func(i, j int) bool {
		a, b := ps[i].WonAt, ps[j].WonAt
		if a == nil || b == nil || a.Equal(*b) {
			return ps[i].ID < ps[j].ID
		}
		return a.Before(*b)
	})
}
