package payment

import (
	"fmt"

	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
)

var (
	ErrPaymentNotFound    = fmt.Errorf("%w: payment not found", apperror.ErrNotFound)
	ErrInvalidTransition  = fmt.Errorf("%w: invalid payment status transition", apperror.ErrConflict)
	ErrDuplicateReference = fmt.Errorf("%w: payment reference already used", apperror.ErrConflict)
)
