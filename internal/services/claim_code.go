package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"spinwheel/internal/metrics"
	"spinwheel/internal/repository"

	"github.com/google/logger"
)

const (
	// CodeAlphabet has 32 symbols and leaves out 0, O, 1 and I.
	CodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	codeGroups   = 3
	codeGroupLen = 3
	// firstLetter is the index of 'A' in CodeAlphabet.
	firstLetter = 8
	// MaxCodeAttempts bounds how many collisions Issue tolerates.
	MaxCodeAttempts = 10
)

var codePattern = regexp.MustCompile(`^[2-9A-HJ-NP-Z]{3}-[2-9A-HJ-NP-Z]{3}-[2-9A-HJ-NP-Z]{3}$`)

// CodeChecker reports whether a code is held by an outstanding claim.
type CodeChecker interface {
	CodeInUse(ctx context.Context, restaurantID, code string) (bool, error)
}

// ClaimCodeGenerator produces claim codes like "K7M-2QX-HNP".
type ClaimCodeGenerator struct {
	rng   RandomSource
	codes CodeChecker
}

// NewClaimCodeGenerator creates a generator drawing from rng and checking
// collisions against codes.
func NewClaimCodeGenerator(rng RandomSource, codes CodeChecker) *ClaimCodeGenerator {
	return &ClaimCodeGenerator{rng: rng, codes: codes}
}

// Generate returns one formatted code. A code made only of digits could be
// mistaken for a phone number, so an all-digit draw gets its last symbol
// moved into the letter range.
func (g *ClaimCodeGenerator) Generate() string {
	raw := make([]byte, codeGroups*codeGroupLen)
	hasLetter := false
	last := 0
	for i := range raw {
		idx := int(g.rng.NextUniform() * float64(len(CodeAlphabet)))
		if idx >= len(CodeAlphabet) {
			idx = len(CodeAlphabet) - 1
		}
		raw[i] = CodeAlphabet[idx]
		hasLetter = hasLetter || idx >= firstLetter
		last = idx
	}
	if !hasLetter {
		raw[len(raw)-1] = CodeAlphabet[firstLetter+last]
	}
	return formatCode(string(raw))
}

// Issue generates a code that no outstanding claim of the restaurant holds
// and hands it to commit, which must persist it atomically. A commit failing
// with repository.ErrCodeTaken lost a race and counts as a collision.
func (g *ClaimCodeGenerator) Issue(ctx context.Context, restaurantID string, commit func(code string) error) (string, error) {
	for attempt := 1; attempt <= MaxCodeAttempts; attempt++ {
		code := g.Generate()

		taken, err := g.codes.CodeInUse(ctx, restaurantID, code)
		if err != nil {
			return "", storeErr(err, "claim code")
		}
		if !taken {
			err = commit(code)
			if err == nil {
				return code, nil
			}
			if !errors.Is(err, repository.ErrCodeTaken) {
				return "", err
			}
		}

		logger.Warningf("claim code collision for restaurant %s (attempt %d/%d)", restaurantID, attempt, MaxCodeAttempts)
		metrics.RecordCodeCollision()
	}
	return "", fmt.Errorf("%w: %d attempts for restaurant %s", ErrGenerationExhausted, MaxCodeAttempts, restaurantID)
}

// NormalizeCode turns user input such as " k7m 2qx-hnp" into the canonical
// "K7M-2QX-HNP". ok is false when the input cannot be a claim code.
func NormalizeCode(input string) (code string, ok bool) {
	var b strings.Builder
	for _, r := range strings.ToUpper(input) {
		switch {
		case r == '-' || r == ' ' || r == '\t':
			continue
		case r > 127 || !strings.ContainsRune(CodeAlphabet, r):
			return "", false
		}
		b.WriteRune(r)
	}
	raw := b.String()
	if len(raw) != codeGroups*codeGroupLen {
		return "", false
	}
	return formatCode(raw), true
}

// IsClaimCode reports whether s is a canonical claim code.
func IsClaimCode(s string) bool {
	return codePattern.MatchString(s)
}

func formatCode(raw string) string {
	parts := make([]string, 0, codeGroups)
	for i := 0; i < len(raw); i += codeGroupLen {
		parts = append(parts, raw[i:i+codeGroupLen])
	}
	return strings.Join(parts, "-")
}
