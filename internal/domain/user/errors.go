package user

import (
	"fmt"

	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
)

var (
	ErrUserNotFound          = fmt.Errorf("%w: user not found", apperror.ErrNotFound)
	ErrEmailAlreadyExists    = fmt.Errorf("%w: email already registered", apperror.ErrConflict)
	ErrPhoneAlreadyExists    = fmt.Errorf("%w: phone already registered", apperror.ErrConflict)
	ErrUsernameAlreadyExists = fmt.Errorf("%w: username already taken", apperror.ErrConflict)
)
