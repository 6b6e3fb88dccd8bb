package services

import (
	"fmt"
	"math"

	"spinwheel/internal/models"

	"github.com/shopspring/decimal"
)

// Outcome is the result of one spin. Prize is nil when the wheel landed on
// the lose segment.
type Outcome struct {
	Prize *models.Prize
	// Draw is the value in [0, 100) that produced the outcome.
	Draw float64
}

// Won reports whether the outcome is a prize.
func (o Outcome) Won() bool {
	return o.Prize != nil
}

// Resolve maps a draw r in [0, 100) onto the table. The first segment whose
// upper bound exceeds r wins, so a draw on a boundary belongs to the next
// segment. The result depends only on r and the table.
func Resolve(r float64, table *PrizeTable) (Outcome, error) {
	if table == nil {
		return Outcome{}, fmt.Errorf("%w: no prize table", ErrConfiguration)
	}
	if math.IsNaN(r) || r < 0 || r >= 100 {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidDraw, r)
	}

	draw := decimal.NewFromFloat(r)
	upper := zero
	for i := range table.prizes {
		upper = upper.Add(table.prizes[i].Percentage)
		if draw.LessThan(upper) {
			prize := table.prizes[i]
			return Outcome{Prize: &prize, Draw: r}, nil
		}
	}
	return Outcome{Draw: r}, nil
}

// WheelResolver spins a prize table with an injected random source.
type WheelResolver struct {
	rng RandomSource
}

// NewWheelResolver creates a WheelResolver drawing from rng.
func NewWheelResolver(rng RandomSource) *WheelResolver {
	return &WheelResolver{rng: rng}
}

// Spin draws one value and resolves it against table.
func (w *WheelResolver) Spin(table *PrizeTable) (Outcome, error) {
	r := w.rng.NextUniform() * 100
	// guard against a source returning values at or above 1
	if r >= 100 {
		r = math.Nextafter(100, 0)
	}
	return Resolve(r, table)
}
