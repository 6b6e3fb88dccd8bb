package repository

import (
	"context"
	"errors"
	"time"

	"spinwheel/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists records through gorm. Status transitions are guarded
// updates (WHERE status = ?) checked through RowsAffected, and claim code
// uniqueness is backed by a partial unique index.
type GormStore struct {
	DB *gorm.DB
}

// NewGormStore wraps an opened gorm handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

const liveCodeIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_participations_live_code
ON participations (restaurant_id, claim_code) WHERE status = 'PENDING_CLAIM'`

// Migrate creates or updates the schema.
func (s *GormStore) Migrate(ctx context.Context) error {
	db := s.DB.WithContext(ctx)
	if err := db.AutoMigrate(
		&models.Restaurant{},
		&models.Prize{},
		&models.Client{},
		&models.Participation{},
	); err != nil {
		return err
	}
	return db.Exec(liveCodeIndex).Error
}

func (s *GormStore) CreateRestaurant(ctx context.Context, r *models.Restaurant) error {
	return translate(s.DB.WithContext(ctx).Create(r).Error)
}

func (s *GormStore) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	var r models.Restaurant
	if err := s.DB.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *GormStore) GetRestaurantBySlug(ctx context.Context, slug string) (*models.Restaurant, error) {
	var r models.Restaurant
	if err := s.DB.WithContext(ctx).First(&r, "slug = ?", slug).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *GormStore) ListPrizes(ctx context.Context, restaurantID string) ([]models.Prize, error) {
	return listPrizes(s.DB.WithContext(ctx), restaurantID)
}

func listPrizes(tx *gorm.DB, restaurantID string) ([]models.Prize, error) {
	out := make([]models.Prize, 0)
	err := tx.Where("restaurant_id = ?", restaurantID).Order("id ASC").Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) GetPrize(ctx context.Context, id string) (*models.Prize, error) {
	var p models.Prize
	if err := s.DB.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// SavePrize inserts or updates p, then runs check against the restaurant's
// prizes inside the same transaction. A check error rolls the write back.
// The restaurant row is locked first so prize writes of one restaurant are
// checked one at a time.
func (s *GormStore) SavePrize(ctx context.Context, p *models.Prize, check func([]models.Prize) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var restaurant models.Restaurant
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&restaurant, "id = ?", p.RestaurantID).Error; err != nil {
			return translate(err)
		}

		var existing models.Prize
		err := tx.First(&existing, "id = ?", p.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(p).Error; err != nil {
				return translate(err)
			}
		case err != nil:
			return translate(err)
		case existing.RestaurantID != p.RestaurantID:
			return ErrDuplicate
		default:
			if err := tx.Save(p).Error; err != nil {
				return translate(err)
			}
		}

		if check == nil {
			return nil
		}
		prizes, err := listPrizes(tx, p.RestaurantID)
		if err != nil {
			return err
		}
		return check(prizes)
	})
}

// SaveClient merges c into an existing client of the same restaurant sharing
// its phone or email, or creates it.
func (s *GormStore) SaveClient(ctx context.Context, c *models.Client) (*models.Client, error) {
	var stored models.Client
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("restaurant_id = ?", c.RestaurantID)
		switch {
		case c.Phone != "" && c.Email != "":
			q = q.Where("phone = ? OR email = ?", c.Phone, c.Email)
		case c.Phone != "":
			q = q.Where("phone = ?", c.Phone)
		default:
			q = q.Where("email = ?", c.Email)
		}

		var existing models.Client
		err := q.Order("created_at ASC").First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			stored = *c
			return translate(tx.Create(&stored).Error)
		}
		if err != nil {
			return translate(err)
		}
		stored = mergeClient(existing, *c)
		return translate(tx.Save(&stored).Error)
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *GormStore) CreateParticipation(ctx context.Context, p *models.Participation) error {
	return translate(s.DB.WithContext(ctx).Create(p).Error)
}

func (s *GormStore) GetParticipation(ctx context.Context, id string) (*models.Participation, error) {
	return getParticipation(s.DB.WithContext(ctx), id)
}

func getParticipation(tx *gorm.DB, id string) (*models.Participation, error) {
	var p models.Participation
	if err := tx.First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) CodeInUse(ctx context.Context, restaurantID, code string) (bool, error) {
	return codeInUse(s.DB.WithContext(ctx), restaurantID, code)
}

func codeInUse(tx *gorm.DB, restaurantID, code string) (bool, error) {
	var n int64
	err := tx.Model(&models.Participation{}).
		Where("restaurant_id = ? AND claim_code = ? AND status = ?", restaurantID, code, models.StatusPendingClaim).
		Count(&n).Error
	return n > 0, translate(err)
}

// ResolveParticipation writes a spin outcome onto a CREATED participation in
// one guarded update.
func (s *GormStore) ResolveParticipation(ctx context.Context, p *models.Participation) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.ClaimCode != nil {
			taken, err := codeInUse(tx, p.RestaurantID, *p.ClaimCode)
			if err != nil {
				return err
			}
			if taken {
				return ErrCodeTaken
			}
		}

		res := tx.Model(&models.Participation{}).
			Where("id = ? AND status = ?", p.ID, models.StatusCreated).
			Updates(map[string]any{
				"status":     p.Status,
				"prize_id":   p.PrizeID,
				"prize_name": p.PrizeName,
				"claim_code": p.ClaimCode,
				"won_at":     p.WonAt,
				"expires_at": p.ExpiresAt,
				"updated_at": p.UpdatedAt,
			})
		if res.Error != nil {
			if isUniqueViolation(res.Error) {
				return ErrCodeTaken
			}
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return missingOrConflict(tx, p.ID)
		}
		return nil
	})
}

func missingOrConflict(tx *gorm.DB, id string) error {
	if _, err := getParticipation(tx, id); err != nil {
		return err
	}
	return ErrStateConflict
}

// ClaimParticipation marks a pending participation as claimed if its window
// is still open at the given time.
func (s *GormStore) ClaimParticipation(ctx context.Context, id string, at time.Time) (*models.Participation, error) {
	return s.transition(ctx, id, at, models.StatusClaimed, func(p *models.Participation) bool {
		return p.Status == models.StatusPendingClaim && !p.ExpiredAt(at)
	})
}

// ExpireParticipation moves a pending participation past its window to EXPIRED.
func (s *GormStore) ExpireParticipation(ctx context.Context, id string, at time.Time) (*models.Participation, error) {
	return s.transition(ctx, id, at, models.StatusExpired, func(p *models.Participation) bool {
		return p.ExpiredAt(at)
	})
}

// transition moves a PENDING_CLAIM participation to next when allowed holds.
// Expiry is evaluated in Go because expires_at never changes once written.
func (s *GormStore) transition(ctx context.Context, id string, at time.Time, next models.ParticipationStatus, allowed func(*models.Participation) bool) (*models.Participation, error) {
	var out *models.Participation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := getParticipation(tx, id)
		if err != nil {
			return err
		}
		if !allowed(p) {
			return ErrStateConflict
		}

		updates := map[string]any{"status": next, "updated_at": at}
		if next == models.StatusClaimed {
			updates["claimed_at"] = at
		}
		res := tx.Model(&models.Participation{}).
			Where("id = ? AND status = ?", id, models.StatusPendingClaim).
			Updates(updates)
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStateConflict
		}

		p.Status = next
		p.UpdatedAt = at
		if next == models.StatusClaimed {
			claimedAt := at
			p.ClaimedAt = &claimedAt
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExpireOverdue expires every pending participation whose window closed before at.
func (s *GormStore) ExpireOverdue(ctx context.Context, at time.Time) (int, error) {
	var expired int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending []models.Participation
		if err := tx.Select("id", "status", "expires_at").
			Where("status = ?", models.StatusPendingClaim).
			Find(&pending).Error; err != nil {
			return translate(err)
		}

		ids := make([]string, 0)
		for i := range pending {
			if pending[i].ExpiredAt(at) {
				ids = append(ids, pending[i].ID)
			}
		}
		if len(ids) == 0 {
			return nil
		}

		res := tx.Model(&models.Participation{}).
			Where("id IN ? AND status = ?", ids, models.StatusPendingClaim).
			Updates(map[string]any{"status": models.StatusExpired, "updated_at": at})
		if res.Error != nil {
			return translate(res.Error)
		}
		expired = int(res.RowsAffected)
		return nil
	})
	return expired, err
}

func (s *GormStore) FindPendingByCode(ctx context.Context, restaurantID, code string) ([]models.Participation, error) {
	out := make([]models.Participation, 0)
	err := s.DB.WithContext(ctx).
		Where("restaurant_id = ? AND claim_code = ? AND status = ?", restaurantID, code, models.StatusPendingClaim).
		Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) FindPendingByPhone(ctx context.Context, restaurantID, phone string) ([]models.Participation, error) {
	return s.findPendingByClient(ctx, restaurantID, "clients.phone = ?", phone)
}

func (s *GormStore) FindPendingByEmail(ctx context.Context, restaurantID, email string) ([]models.Participation, error) {
	return s.findPendingByClient(ctx, restaurantID, "clients.email = ?", email)
}

func (s *GormStore) findPendingByClient(ctx context.Context, restaurantID, cond, value string) ([]models.Participation, error) {
	out := make([]models.Participation, 0)
	if value == "" {
		return out, nil
	}
	err := s.DB.WithContext(ctx).
		Select("participations.*").
		Joins("JOIN clients ON clients.id = participations.client_id").
		Where("participations.restaurant_id = ? AND participations.status = ?", restaurantID, models.StatusPendingClaim).
		Where(cond, value).
		Order("participations.won_at ASC, participations.id ASC").
		Find(&out).Error
	return out, translate(err)
}
