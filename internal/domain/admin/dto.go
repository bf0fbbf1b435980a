package admin

import "github.com/google/uuid"

type AuditVerifyResponse struct {
	WalletID uuid.UUID `json:"wallet_id"`
	Entries  int       `json:"entries"`
	Intact   bool      `json:"intact"`
	BrokenAt *int64    `json:"broken_at_seq,omitempty"`
}
