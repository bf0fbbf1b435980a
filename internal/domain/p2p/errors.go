package p2p

import (
	"fmt"

	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
)

var (
	ErrReceiverNotFound         = fmt.Errorf("%w: receiver not found", apperror.ErrNotFound)
	ErrTransferNotFound         = fmt.Errorf("%w: transfer not found", apperror.ErrNotFound)
	ErrDuplicateClientReference = fmt.Errorf("%w: client reference already used", apperror.ErrConflict)
)
