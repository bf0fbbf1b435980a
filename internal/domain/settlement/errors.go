package settlement

import (
	"fmt"

	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
)

var (
	ErrSelfTransfer            = apperror.Validation("receiver_identifier", "cannot send money to yourself")
	ErrWithdrawalLimitExceeded = fmt.Errorf("%w: daily withdrawal limit exceeded", apperror.ErrLimitExceeded)
	ErrRailNotConfigured       = fmt.Errorf("%w: payment rail is not configured", apperror.ErrGateway)
	ErrNotSettleable           = fmt.Errorf("%w: payment type is settled synchronously", apperror.ErrConflict)

	errUnsupportedAsset = apperror.Validation("crypto_type", "must be USDT or USDC")
)
