package remita

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/pkg/gateway"
)

// Notification is one entry of the payment notification array Remita posts.
type Notification struct {
	RRR             string          `json:"rrr"`
	OrderRef        string          `json:"orderRef"`
	Amount          decimal.Decimal `json:"amount"`
	Channel         string          `json:"channel"`
	TransactionDate string          `json:"transactiondate"`
	DebitDate       string          `json:"debitdate"`
}

func ParseNotifications(payload []byte) ([]Notification, error) {
	var items []Notification
	if err := json.Unmarshal(payload, &items); err != nil {
		var single Notification
		if errSingle := json.Unmarshal(payload, &single); errSingle != nil || single.RRR == "" {
			return nil, fmt.Errorf("decode remita notification: %w", err)
		}
		items = []Notification{single}
	}
	return items, nil
}

// Settlement treats a notification as a successful payment of the RRR.
func (n Notification) Settlement(raw []byte) *gateway.SettlementEvent {
	return &gateway.SettlementEvent{
		Reference:         n.OrderRef,
		ExternalReference: n.RRR,
		Outcome:           gateway.OutcomeSuccess,
		Amount:            n.Amount,
		ExternalTimestamp: parseTime(n.TransactionDate),
		Raw:               raw,
	}
}
