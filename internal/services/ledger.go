package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spinwheel/internal/metrics"
	"spinwheel/internal/models"
	"spinwheel/internal/repository"

	"github.com/google/logger"
)

// EntryForm is what a customer submits before spinning.
type EntryForm struct {
	Phone       string
	Email       string
	FirstName   string
	LastName    string
	City        string
	AgeRange    string
	GDPRConsent bool
}

// SpinResult is the outcome of resolving a participation. Prize, ClaimCode
// and ExpiresAt are nil when the customer did not win.
type SpinResult struct {
	Participation models.Participation `json:"participation"`
	Prize         *models.Prize        `json:"prize"`
	ClaimCode     *string              `json:"claimCode"`
	ExpiresAt     *time.Time           `json:"expiresAt"`
}

// ParticipationLedger owns the participation state machine:
//
//	CREATED -> NO_WIN
//	CREATED -> PENDING_CLAIM -> CLAIMED
//	                         -> EXPIRED
//
// Every transition is a compare-and-swap in the store, so concurrent
// requests for the same participation cannot both succeed.
type ParticipationLedger struct {
	store Store
	wheel *WheelResolver
	codes *ClaimCodeGenerator
	now   func() time.Time
	newID func() string
}

// NewParticipationLedger wires a ledger. now must return UTC times.
func NewParticipationLedger(store Store, wheel *WheelResolver, codes *ClaimCodeGenerator, now func() time.Time, newID func() string) *ParticipationLedger {
	return &ParticipationLedger{store: store, wheel: wheel, codes: codes, now: now, newID: newID}
}

// PrizeTable loads and validates the current prize table of a restaurant.
// Stored prizes are re-validated on every read.
func (l *ParticipationLedger) PrizeTable(ctx context.Context, restaurantID string) (*PrizeTable, error) {
	prizes, err := l.store.ListPrizes(ctx, restaurantID)
	if err != nil {
		return nil, storeErr(err, "prizes of restaurant "+restaurantID)
	}
	return NewPrizeTable(restaurantID, prizes)
}

// Enter records a form submission and opens a CREATED participation.
func (l *ParticipationLedger) Enter(ctx context.Context, restaurantID string, form EntryForm) (*models.Participation, error) {
	client, err := l.clientFromForm(restaurantID, form)
	if err != nil {
		return nil, err
	}

	restaurant, err := l.store.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, storeErr(err, "restaurant "+restaurantID)
	}
	if !restaurant.CanSpin() {
		return nil, fmt.Errorf("%w: %s", ErrWheelInactive, restaurant.Slug)
	}

	stored, err := l.store.SaveClient(ctx, client)
	if err != nil {
		return nil, storeErr(err, "client")
	}

	now := l.now()
	p := &models.Participation{
		ID:           l.newID(),
		RestaurantID: restaurantID,
		ClientID:     stored.ID,
		Status:       models.StatusCreated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := l.store.CreateParticipation(ctx, p); err != nil {
		return nil, storeErr(err, "participation")
	}
	logger.Infof("participation %s opened for restaurant %s", p.ID, restaurantID)
	return p, nil
}

func (l *ParticipationLedger) clientFromForm(restaurantID string, form EntryForm) (*models.Client, error) {
	var phone, email string
	if form.Phone != "" {
		normalized, ok := NormalizePhone(form.Phone)
		if !ok {
			return nil, fmt.Errorf("%w: invalid phone %q", ErrInvalidInput, form.Phone)
		}
		phone = normalized
	}
	if form.Email != "" {
		normalized, ok := NormalizeEmail(form.Email)
		if !ok {
			return nil, fmt.Errorf("%w: invalid email %q", ErrInvalidInput, form.Email)
		}
		email = normalized
	}
	if phone == "" && email == "" {
		return nil, fmt.Errorf("%w: a phone number or an email is required", ErrInvalidInput)
	}
	if !form.GDPRConsent {
		return nil, fmt.Errorf("%w: consent is required to take part", ErrInvalidInput)
	}

	now := l.now()
	return &models.Client{
		ID:           l.newID(),
		RestaurantID: restaurantID,
		Phone:        phone,
		Email:        email,
		FirstName:    form.FirstName,
		LastName:     form.LastName,
		City:         form.City,
		AgeRange:     form.AgeRange,
		GDPRConsent:  true,
		ConsentDate:  &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Resolve spins the wheel for a CREATED participation and records the
// outcome. Status, prize, claim code and expiry are committed together.
// A participation that was already resolved is not spun again: its stored
// outcome is returned together with ErrAlreadyResolved.
func (l *ParticipationLedger) Resolve(ctx context.Context, id string) (SpinResult, error) {
	p, err := l.store.GetParticipation(ctx, id)
	if err != nil {
		return SpinResult{}, storeErr(err, "participation "+id)
	}
	if p.Status.Resolved() {
		return l.replay(ctx, p)
	}

	restaurant, err := l.store.GetRestaurant(ctx, p.RestaurantID)
	if err != nil {
		return SpinResult{}, storeErr(err, "restaurant "+p.RestaurantID)
	}
	if !restaurant.CanSpin() {
		return SpinResult{}, fmt.Errorf("%w: %s", ErrWheelInactive, restaurant.Slug)
	}

	table, err := l.PrizeTable(ctx, p.RestaurantID)
	if err != nil {
		return SpinResult{}, err
	}
	outcome, err := l.wheel.Spin(table)
	if err != nil {
		return SpinResult{}, err
	}

	now := l.now()
	resolved := *p
	resolved.WonAt = &now
	resolved.UpdatedAt = now

	if outcome.Won() {
		expiresAt := now.Add(models.ClaimWindow)
		prizeID, prizeName := outcome.Prize.ID, outcome.Prize.Name
		resolved.Status = models.StatusPendingClaim
		resolved.PrizeID = &prizeID
		resolved.PrizeName = &prizeName
		resolved.ExpiresAt = &expiresAt
		_, err = l.codes.Issue(ctx, p.RestaurantID, func(code string) error {
			resolved.ClaimCode = &code
			return l.store.ResolveParticipation(ctx, &resolved)
		})
	} else {
		resolved.Status = models.StatusNoWin
		err = l.store.ResolveParticipation(ctx, &resolved)
	}

	if errors.Is(err, repository.ErrStateConflict) {
		// a concurrent spin committed first; report its outcome
		latest, gerr := l.store.GetParticipation(ctx, id)
		if gerr != nil {
			return SpinResult{}, storeErr(gerr, "participation "+id)
		}
		return l.replay(ctx, latest)
	}
	if err != nil {
		if errors.Is(err, ErrGenerationExhausted) {
			logger.Errorf("participation %s left unresolved: %v", id, err)
			return SpinResult{}, err
		}
		return SpinResult{}, storeErr(err, "participation "+id)
	}

	metrics.RecordSpin(outcome.Won())
	if outcome.Won() {
		logger.Infof("participation %s won %q (draw %.3f), code %s", id, outcome.Prize.Name, outcome.Draw, *resolved.ClaimCode)
	} else {
		logger.Infof("participation %s lost (draw %.3f)", id, outcome.Draw)
	}
	return l.result(ctx, &resolved, outcome.Prize), nil
}

func (l *ParticipationLedger) replay(ctx context.Context, p *models.Participation) (SpinResult, error) {
	p, err := l.expireIfDue(ctx, p)
	if err != nil {
		return SpinResult{}, err
	}
	return l.result(ctx, p, nil), fmt.Errorf("%w: participation %s is %s", ErrAlreadyResolved, p.ID, p.Status)
}

func (l *ParticipationLedger) result(ctx context.Context, p *models.Participation, prize *models.Prize) SpinResult {
	res := SpinResult{Participation: *p, ClaimCode: p.ClaimCode, ExpiresAt: p.ExpiresAt}
	if prize == nil && p.PrizeID != nil {
		stored, err := l.store.GetPrize(ctx, *p.PrizeID)
		if err != nil {
			// the snapshot is enough to tell the customer what they won
			logger.Warningf("prize %s of participation %s unavailable: %v", *p.PrizeID, p.ID, err)
			stored = &models.Prize{ID: *p.PrizeID, RestaurantID: p.RestaurantID}
			if p.PrizeName != nil {
				stored.Name = *p.PrizeName
			}
		}
		prize = stored
	}
	res.Prize = prize
	return res
}

// Get returns a participation, expiring it first if its claim window closed.
func (l *ParticipationLedger) Get(ctx context.Context, id string) (*models.Participation, error) {
	p, err := l.store.GetParticipation(ctx, id)
	if err != nil {
		return nil, storeErr(err, "participation "+id)
	}
	return l.expireIfDue(ctx, p)
}

// expireIfDue moves a pending participation past its window to EXPIRED.
func (l *ParticipationLedger) expireIfDue(ctx context.Context, p *models.Participation) (*models.Participation, error) {
	now := l.now()
	if !p.ExpiredAt(now) {
		return p, nil
	}

	expired, err := l.store.ExpireParticipation(ctx, p.ID, now)
	if errors.Is(err, repository.ErrStateConflict) {
		latest, gerr := l.store.GetParticipation(ctx, p.ID)
		if gerr != nil {
			return nil, storeErr(gerr, "participation "+p.ID)
		}
		return latest, nil
	}
	if err != nil {
		return nil, storeErr(err, "participation "+p.ID)
	}

	metrics.RecordExpired(1)
	logger.Infof("participation %s expired (window closed %s)", p.ID, p.ExpiresAt.Format(time.RFC3339))
	return expired, nil
}

// Claim redeems a pending participation. It fails with ErrExpired once the
// window has closed (the participation is then EXPIRED) and with
// ErrAlreadyClaimed if it was redeemed before. The current record is
// returned along with those errors.
func (l *ParticipationLedger) Claim(ctx context.Context, id string) (*models.Participation, error) {
	claimed, err := l.store.ClaimParticipation(ctx, id, l.now())
	if err == nil {
		metrics.RecordClaim(metrics.ClaimRedeemed)
		logger.Infof("participation %s claimed (code %s)", id, derefString(claimed.ClaimCode))
		return claimed, nil
	}
	if !errors.Is(err, repository.ErrStateConflict) {
		return nil, storeErr(err, "participation "+id)
	}

	p, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case models.StatusClaimed:
		metrics.RecordClaim(metrics.ClaimAlreadyClaimed)
		return p, fmt.Errorf("%w: participation %s was redeemed at %s", ErrAlreadyClaimed, id, p.ClaimedAt.Format(time.RFC3339))
	case models.StatusExpired:
		metrics.RecordClaim(metrics.ClaimExpired)
		return p, fmt.Errorf("%w: participation %s expired at %s", ErrExpired, id, p.ExpiresAt.Format(time.RFC3339))
	}
	metrics.RecordClaim(metrics.ClaimRejected)
	return p, fmt.Errorf("%w: participation %s has no pending prize (%s)", ErrNotFound, id, p.Status)
}

// ExpireOverdue expires every pending claim whose window has closed.
func (l *ParticipationLedger) ExpireOverdue(ctx context.Context) (int, error) {
	n, err := l.store.ExpireOverdue(ctx, l.now())
	if err != nil {
		return 0, storeErr(err, "participations")
	}
	if n > 0 {
		metrics.RecordExpired(n)
	}
	return n, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
