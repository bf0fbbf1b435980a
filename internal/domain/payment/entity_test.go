package payment

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusCancelled, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusRefunded, true},
		{StatusProcessing, StatusPending, false},
		{StatusProcessing, StatusCancelled, false},
		{StatusCompleted, StatusRefunded, true},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusCompleted, false},
		{StatusCancelled, StatusProcessing, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, s := range []Status{StatusFailed, StatusRefunded, StatusCancelled} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
		if len(transitions[s]) != 0 {
			t.Fatalf("%s has outgoing edges", s)
		}
	}
	if !StatusCompleted.Terminal() {
		t.Fatal("COMPLETED should be terminal")
	}
	if got := transitions[StatusCompleted]; len(got) != 1 || got[0] != StatusRefunded {
		t.Fatalf("COMPLETED exits = %v, want only REFUNDED", got)
	}
}

func TestOnlyPayoutsAreReversible(t *testing.T) {
	for typ, want := range map[Type]bool{
		TypeWithdrawal:       true,
		TypeRemittance:       true,
		TypeRRR:              true,
		TypeFunding:          false,
		TypeP2P:              false,
		TypeCryptoWithdrawal: false,
		TypeLoanRepayment:    false,
	} {
		if got := typ.Reversible(); got != want {
			t.Fatalf("%s.Reversible() = %v, want %v", typ, got, want)
		}
	}
}

func TestNewUsesKindPrefix(t *testing.T) {
	p := New(uuid.New(), uuid.New(), decimal.NewFromInt(500), decimal.Zero, money.NGN, MethodBankTransfer,
		Withdrawal{BankAccount: BankAccount{AccountNumber: "0123456789", BankCode: "058"}})

	if p.Type != TypeWithdrawal || p.Status != StatusPending {
		t.Fatalf("unexpected payment: type=%s status=%s", p.Type, p.Status)
	}
	if !strings.HasPrefix(p.Reference, "WDR-") {
		t.Fatalf("reference %q lacks WDR prefix", p.Reference)
	}
	if New(uuid.New(), uuid.New(), decimal.NewFromInt(1), decimal.Zero, money.NGN, MethodCard, Funding{}).Reference == p.Reference {
		t.Fatal("references must be unique")
	}
}

func TestDetailsRoundTrip(t *testing.T) {
	receiver := uuid.New()
	ops := []Operation{
		Funding{CallbackURL: "https://app.campuspay.ng/cb"},
		P2P{ReceiverWalletID: receiver, TransferID: uuid.New()},
		Remittance{
			Recipient:    RemittanceRecipient{Name: "Ama Mensah", AccountNumber: "0011223344", BankCode: "GH001"},
			Currency:     "GHS",
			Rate:         decimal.RequireFromString("0.0085"),
			PayoutAmount: decimal.RequireFromString("85"),
		},
		CryptoWithdrawal{Asset: money.USDT, ToAddress: "0x000000000000000000000000000000000000dEaD"},
	}

	for _, op := range ops {
		t.Run(string(op.Kind()), func(t *testing.T) {
			v, err := Details{Operation: op}.Value()
			if err != nil {
				t.Fatalf("value: %v", err)
			}
			s, ok := v.(string)
			if !ok {
				t.Fatalf("jsonb value must be text, got %T", v)
			}
			if !strings.Contains(s, `"kind":"`+string(op.Kind())+`"`) {
				t.Fatalf("missing discriminator: %s", s)
			}

			var d Details
			if err := d.Scan([]byte(s)); err != nil {
				t.Fatalf("scan: %v", err)
			}
			if d.Operation.Kind() != op.Kind() {
				t.Fatalf("kind = %s, want %s", d.Operation.Kind(), op.Kind())
			}
		})
	}

	var d Details
	if err := d.Scan([]byte(`{"kind":"p2p","data":{"receiver_wallet_id":"` + receiver.String() + `"}}`)); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got := d.Operation.(P2P).ReceiverWalletID; got != receiver {
		t.Fatalf("receiver = %s, want %s", got, receiver)
	}
}

func TestDecodeOperation(t *testing.T) {
	op, err := DecodeOperation([]byte(`{}`))
	if err != nil || op != nil {
		t.Fatalf("empty details = %v, %v; want nil, nil", op, err)
	}
	if _, err := DecodeOperation([]byte(`{"kind":"lottery","data":{}}`)); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestJSONRawMessageValue(t *testing.T) {
	v, err := JSONRawMessage(nil).Value()
	if err != nil || v != nil {
		t.Fatalf("nil message = %v, %v", v, err)
	}
	if _, err := JSONRawMessage(`{broken`).Value(); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
