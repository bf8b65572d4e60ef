package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/hanko-field/cartclone/internal/platform/i18n"
	"github.com/hanko-field/cartclone/internal/repositories"
)

var (
	// ErrCloneInvalidInput indicates the caller supplied missing or malformed data.
	ErrCloneInvalidInput = errors.New("cart clone: invalid input")
	// ErrCloneNotFound indicates a referenced cart or entity is missing or not visible to the caller.
	ErrCloneNotFound = errors.New("cart clone: not found")
	// ErrClonePersistence indicates a save or apply operation failed.
	ErrClonePersistence = errors.New("cart clone: persistence failure")
	// ErrCloneUnavailable indicates a dependency is missing or a backend is down.
	ErrCloneUnavailable = errors.New("cart clone: unavailable")
	// ErrCloneConfiguration indicates a component was invoked without its required inputs.
	ErrCloneConfiguration = errors.New("cart clone: configuration error")
	// ErrCheckoutNotAllowed indicates the cart may not receive checkout mutations.
	ErrCheckoutNotAllowed = errors.New("cart clone: checkout not allowed")
	// ErrCartHasNoProducts is returned by coupon managers when the cart is empty.
	ErrCartHasNoProducts = errors.New("cart clone: cart has no products")
	// ErrNoShippingMethod is returned when a cart has no shipping method selected.
	ErrNoShippingMethod = errors.New("cart clone: no shipping method selected")
)

// messageError carries a caller facing, localized message next to its classification.
type messageError struct {
	kind    error
	message string
	cause   error
}

func (e *messageError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%v: %s", e.kind, e.message)
}

func (e *messageError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

func newMessageError(kind error, message string, cause error) error {
	return &messageError{kind: kind, message: message, cause: cause}
}

func inputError(locale, key string, args ...any) error {
	return newMessageError(ErrCloneInvalidInput, i18n.Sprintf(locale, key, args...), nil)
}

func notFoundError(locale, key string, args ...any) error {
	return newMessageError(ErrCloneNotFound, i18n.Sprintf(locale, key, args...), nil)
}

// UserMessage returns the localized message attached to err, if any.
func UserMessage(err error) (string, bool) {
	var msgErr *messageError
	if errors.As(err, &msgErr) {
		return msgErr.message, true
	}
	return "", false
}

// CloneError reports the pipeline stage that aborted a clone. The destination
// cart is left in place with whatever the earlier stages wrote.
type CloneError struct {
	Stage  CloneStage
	CartID string
	Err    error
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("cart clone: stage %s failed for cart %s: %v", e.Stage, e.CartID, e.Err)
}

func (e *CloneError) Unwrap() error {
	return e.Err
}

// classifyStageError keeps errors that already carry a caller facing category
// and turns anything else into a not-found error carrying the original message.
func classifyStageError(err error) error {
	switch {
	case errors.Is(err, ErrCloneInvalidInput),
		errors.Is(err, ErrCloneNotFound),
		errors.Is(err, ErrClonePersistence),
		errors.Is(err, ErrCheckoutNotAllowed),
		errors.Is(err, ErrCloneUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return newMessageError(ErrCloneNotFound, err.Error(), err)
}

func translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCloneNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrClonePersistence, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrCloneUnavailable, err)
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
