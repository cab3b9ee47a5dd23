package service

import (
	"errors"
	"fmt"

	"github.com/questboard/questboard/internal/repository"
)

// ValidationError marks input the caller must fix; handlers answer 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func invalid(err error) error {
	return &ValidationError{Msg: err.Error()}
}

func invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

var (
	ErrInvalidStatus    = &ValidationError{Msg: "invalid status: must be one of active, completed, paused, archived"}
	ErrNoValidKPIs      = &ValidationError{Msg: "no valid KPIs provided"}
	ErrCannotFollowSelf = &ValidationError{Msg: "you cannot follow yourself"}

	ErrProfilePrivate     = errors.New("this profile is private")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrSignupDisabled     = errors.New("signup is disabled")
)

// IsNotFound reports whether err means the requested row is absent or not
// owned by the caller.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrQuestNotFound) ||
		errors.Is(err, repository.ErrKPINotFound) ||
		errors.Is(err, repository.ErrProfileNotFound) ||
		errors.Is(err, repository.ErrUserNotFound) ||
		errors.Is(err, repository.ErrFileNotFound)
}
