package studenthub

import (
	goerrors "github.com/goliatone/go-errors"
)

// UserStatus tracks where an account sits in its lifecycle. Accounts whose
// role requires review start in pending and only authenticate once an admin
// activates them.
type UserStatus string

const (
	UserStatusPending   UserStatus = "pending"
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusDisabled  UserStatus = "disabled"
)

// ErrInvalidStatusTransition is returned when a requested status change is not allowed.
var ErrInvalidStatusTransition = goerrors.New("invalid account status transition", goerrors.CategoryValidation).
	WithTextCode("INVALID_STATUS_TRANSITION").
	WithCode(goerrors.CodeBadRequest)

// ErrAccountPending blocks authentication for accounts still in the approval queue.
var ErrAccountPending = goerrors.New("Your account is awaiting approval", goerrors.CategoryAuth).
	WithTextCode(textCodeAccountPending).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountBlocked blocks authentication for suspended or disabled accounts.
var ErrAccountBlocked = goerrors.New("Your account is not allowed to sign in", goerrors.CategoryAuth).
	WithTextCode(textCodeAccountBlocked).
	WithCode(goerrors.CodeUnauthorized)

// statusTransitions is the allowed lifecycle graph. Disabled is terminal.
var statusTransitions = map[UserStatus]map[UserStatus]struct{}{
	UserStatusPending: {
		UserStatusActive:   {},
		UserStatusDisabled: {},
	},
	UserStatusActive: {
		UserStatusSuspended: {},
		UserStatusDisabled:  {},
	},
	UserStatusSuspended: {
		UserStatusActive:   {},
		UserStatusDisabled: {},
	},
	UserStatusDisabled: {},
}

// IsValid reports whether s is a known status.
func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusPending, UserStatusActive, UserStatusSuspended, UserStatusDisabled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the lifecycle graph permits moving to target.
func (s UserStatus) CanTransitionTo(target UserStatus) bool {
	allowed, ok := statusTransitions[s]
	if !ok {
		return false
	}
	_, ok = allowed[target]
	return ok
}

// statusAuthError translates a status into the error returned at login time,
// or nil when the account may authenticate.
func statusAuthError(status UserStatus) error {
	switch status {
	case UserStatusActive, "":
		return nil
	case UserStatusPending:
		return ErrAccountPending
	default:
		return ErrAccountBlocked
	}
}
