package services

import (
	"context"
	"errors"
	"fmt"

	"spinwheel/internal/repository"
)

// Errors returned by the wheel engine. Callers classify them with errors.Is;
// most are wrapped with details about the offending record.
var (
	// ErrConfiguration: the active prizes of a restaurant do not form a valid wheel.
	ErrConfiguration = errors.New("invalid prize configuration")
	// ErrAlreadyResolved: the participation was spun before. The stored
	// outcome is returned alongside it.
	ErrAlreadyResolved = errors.New("participation already resolved")
	ErrAlreadyClaimed  = errors.New("prize already claimed")
	ErrExpired         = errors.New("claim window has expired")
	ErrNotFound        = errors.New("not found")
	// ErrGenerationExhausted: no free claim code after the retry budget.
	ErrGenerationExhausted = errors.New("claim code generation exhausted")
	ErrWheelInactive       = errors.New("wheel is not active for this restaurant")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidDraw         = errors.New("draw outside [0, 100)")
	// ErrTransient: the store timed out or the request was abandoned. Nothing
	// was committed and the call can be retried.
	ErrTransient = errors.New("temporary failure, retry")
)

// storeErr converts a repository error into an engine error. what names the
// record for not-found messages.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}
