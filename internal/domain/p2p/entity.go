package p2p

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer is a settled wallet-to-wallet payment. It has no pending state.
type Transfer struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	Reference        string          `db:"reference" json:"reference"`
	ClientReference  sql.NullString  `db:"client_reference" json:"-"`
	SenderID         uuid.UUID       `db:"sender_id" json:"sender_id"`
	ReceiverID       uuid.UUID       `db:"receiver_id" json:"receiver_id"`
	SenderWalletID   uuid.UUID       `db:"sender_wallet_id" json:"sender_wallet_id"`
	ReceiverWalletID uuid.UUID       `db:"receiver_wallet_id" json:"receiver_wallet_id"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Fee              decimal.Decimal `db:"fee" json:"fee"`
	Note             string          `db:"note" json:"note"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// Direction is the transfer as seen by one participant.
func (t *Transfer) Direction(userID uuid.UUID) string {
	if t.SenderID == userID {
		return "sent"
	}
	return "received"
}
