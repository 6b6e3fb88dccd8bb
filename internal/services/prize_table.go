package services

import (
	"fmt"
	"sort"

	"spinwheel/internal/models"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// PrizeTable is an immutable snapshot of a restaurant's active prizes, in
// the order the wheel walks them. The lose segment always comes last.
type PrizeTable struct {
	RestaurantID string
	prizes       []models.Prize
	total        decimal.Decimal
}

// Segment is one slice of the wheel: [From, To) on the 0-100 scale.
// PrizeID and Name are empty for the lose segment.
type Segment struct {
	PrizeID string          `json:"prizeId,omitempty"`
	Name    string          `json:"name"`
	From    decimal.Decimal `json:"from"`
	To      decimal.Decimal `json:"to"`
	Lose    bool            `json:"lose"`
}

// NewPrizeTable builds the table from a restaurant's prizes. Inactive prizes
// are ignored. It fails with ErrConfiguration if a percentage is out of range
// or has more than one decimal, or if the active percentages exceed 100.
func NewPrizeTable(restaurantID string, prizes []models.Prize) (*PrizeTable, error) {
	active := make([]models.Prize, 0, len(prizes))
	total := zero
	for _, p := range prizes {
		if !p.IsActive {
			continue
		}
		if err := validatePercentage(p.Percentage); err != nil {
			return nil, fmt.Errorf("%w: prize %q: %v", ErrConfiguration, p.Name, err)
		}
		total = total.Add(p.Percentage)
		active = append(active, p)
	}
	if total.GreaterThan(hundred) {
		return nil, fmt.Errorf("%w: active prizes of restaurant %s add up to %s%%", ErrConfiguration, restaurantID, total.String())
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	return &PrizeTable{RestaurantID: restaurantID, prizes: active, total: total}, nil
}

func validatePercentage(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return fmt.Errorf("percentage %s is outside 0-100", pct.String())
	}
	if !pct.Round(1).Equal(pct) {
		return fmt.Errorf("percentage %s has more than one decimal", pct.String())
	}
	return nil
}

// Prizes returns a copy of the active prizes in wheel order.
func (t *PrizeTable) Prizes() []models.Prize {
	out := make([]models.Prize, len(t.prizes))
	copy(out, t.prizes)
	return out
}

// Total is the sum of the active percentages.
func (t *PrizeTable) Total() decimal.Decimal {
	return t.total
}

// LoseWeight is the implicit chance of winning nothing.
func (t *PrizeTable) LoseWeight() decimal.Decimal {
	return decimal.Max(zero, hundred.Sub(t.total))
}

// Segments returns the cumulative partition of [0, 100) walked by the wheel.
// Zero-width segments are kept so that every active prize is listed.
func (t *PrizeTable) Segments() []Segment {
	segments := make([]Segment, 0, len(t.prizes)+1)
	lower := zero
	for _, p := range t.prizes {
		upper := lower.Add(p.Percentage)
		segments = append(segments, Segment{PrizeID: p.ID, Name: p.Name, From: lower, To: upper})
		lower = upper
	}
	return append(segments, Segment{Name: "lose", From: lower, To: hundred, Lose: true})
}
