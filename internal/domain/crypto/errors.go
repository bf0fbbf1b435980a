package crypto

import (
	"fmt"

	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
)

var (
	ErrTransactionNotFound = fmt.Errorf("%w: crypto transaction not found", apperror.ErrNotFound)
	ErrDuplicateTxHash     = fmt.Errorf("%w: transaction hash already submitted", apperror.ErrConflict)
)
