package wallet

import (
	"fmt"

	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
)

var (
	ErrWalletNotFound    = fmt.Errorf("%w: wallet not found", apperror.ErrNotFound)
	ErrInsufficientFunds = fmt.Errorf("%w: available balance too low", apperror.ErrInsufficientFunds)
	ErrNegativeBalance   = fmt.Errorf("%w: balance would go negative", apperror.ErrInsufficientFunds)
	ErrWalletFrozen      = fmt.Errorf("%w: operation not allowed", apperror.ErrWalletFrozen)
	ErrSameWallet        = apperror.Validation("receiver", "cannot transfer to the same wallet")

	ErrDailyLimitExceeded   = fmt.Errorf("%w: daily funding limit exceeded", apperror.ErrLimitExceeded)
	ErrMonthlyLimitExceeded = fmt.Errorf("%w: monthly funding limit exceeded", apperror.ErrLimitExceeded)
)
