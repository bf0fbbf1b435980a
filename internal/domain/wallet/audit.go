package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const auditTimeFormat = "2006-01-02T15:04:05.000000Z"

// ComputeHash chains e onto prev. Amounts are fixed at token precision so the
// hash survives a NUMERIC round trip.
func ComputeHash(prev string, e AuditEntry) string {
	h := sha256.New()
	_, _ = h.Write([]byte(prev))
	_, _ = h.Write([]byte("|" + e.ID.String() + "|" + e.WalletID.String()))
	_, _ = h.Write([]byte("|" + string(e.Type) + "|" + string(e.Asset)))
	_, _ = h.Write([]byte(fmt.Sprintf("|%s|%s|%s",
		e.Amount.StringFixed(6), e.PreviousBalance.StringFixed(6), e.NewBalance.StringFixed(6))))
	_, _ = h.Write([]byte("|" + e.Reference + "|" + e.Reason))
	_, _ = h.Write([]byte("|" + e.CreatedAt.UTC().Format(auditTimeFormat)))
	return hex.EncodeToString(h.Sum(nil))
}

// ChainBreak describes the first audit row whose hash does not verify.
type ChainBreak struct {
	Seq      int64
	Expected string
	Actual   string
}

// VerifyChain recomputes hashes over entries in seq order.
func VerifyChain(entries []AuditEntry) *ChainBreak {
	prev := ""
	for _, e := range entries {
		if e.PrevHash != prev {
			return &ChainBreak{Seq: e.Seq, Expected: prev, Actual: e.PrevHash}
		}
		want := ComputeHash(prev, e)
		if e.Hash != want {
			return &ChainBreak{Seq: e.Seq, Expected: want, Actual: e.Hash}
		}
		prev = e.Hash
	}
	return nil
}
