package services

import (
	"fmt"
	"strings"
)

// LookupKind says how staff identify a customer at the counter.
type LookupKind string

const (
	LookupCode  LookupKind = "code"
	LookupPhone LookupKind = "phone"
	LookupEmail LookupKind = "email"
)

// LookupKey is a normalized phone, email or claim code.
type LookupKey struct {
	Kind  LookupKind
	Value string
}

// ParseLookupKey guesses the kind of a free-text search. Anything with an
// "@" is an email, nine alphabet symbols with at least one letter are a claim
// code, and the rest must be a phone number.
func ParseLookupKey(input string) (LookupKey, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return LookupKey{}, fmt.Errorf("%w: empty search", ErrInvalidInput)
	}
	if strings.Contains(s, "@") {
		return NewLookupKey(LookupEmail, s)
	}
	if code, ok := NormalizeCode(s); ok && strings.ContainsAny(code, CodeAlphabet[firstLetter:]) {
		return LookupKey{Kind: LookupCode, Value: code}, nil
	}
	if phone, ok := NormalizePhone(s); ok {
		return LookupKey{Kind: LookupPhone, Value: phone}, nil
	}
	return LookupKey{}, fmt.Errorf("%w: %q is not a phone, email or claim code", ErrInvalidInput, s)
}

// NewLookupKey normalizes value as the given kind.
func NewLookupKey(kind LookupKind, value string) (LookupKey, error) {
	var (
		normalized string
		ok         bool
	)
	switch kind {
	case LookupCode:
		normalized, ok = NormalizeCode(value)
	case LookupPhone:
		normalized, ok = NormalizePhone(value)
	case LookupEmail:
		normalized, ok = NormalizeEmail(value)
	default:
		return LookupKey{}, fmt.Errorf("%w: unknown lookup kind %q", ErrInvalidInput, kind)
	}
	if !ok {
		return LookupKey{}, fmt.Errorf("%w: %q is not a valid %s", ErrInvalidInput, value, kind)
	}
	return LookupKey{Kind: kind, Value: normalized}, nil
}

// NormalizePhone strips separators from a phone number, keeping a leading
// "+". Between 6 and 15 digits are accepted.
func NormalizePhone(input string) (string, bool) {
	s := strings.TrimSpace(input)
	var b strings.Builder
	digits := 0
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '.' || r == '-' || r == '(' || r == ')':
		default:
			return "", false
		}
	}
	if digits < 6 || digits > 15 {
		return "", false
	}
	return b.String(), true
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(input string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(input))
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 || strings.ContainsAny(s, " \t") {
		return "", false
	}
	return s, true
}
