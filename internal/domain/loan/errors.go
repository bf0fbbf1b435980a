package loan

import (
	"fmt"

	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
)

var (
	ErrLoanNotFound      = fmt.Errorf("%w: loan not found", apperror.ErrNotFound)
	ErrOpenLoanExists    = fmt.Errorf("%w: an open loan already exists", apperror.ErrConflict)
	ErrLoanNotPending    = fmt.Errorf("%w: loan is not awaiting a decision", apperror.ErrConflict)
	ErrLoanNotRepayable  = fmt.Errorf("%w: loan is not active", apperror.ErrConflict)
	ErrRepaymentTooLarge = apperror.Validation("amount", "exceeds the outstanding balance")
	ErrPrincipalTooLarge = apperror.Validation("principal", "exceeds the maximum loan amount")
)
