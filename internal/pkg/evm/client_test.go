package evm

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/pkg/gateway"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

const (
	usdtContract = "0x00000000000000000000000000000000000000aa"
	usdcContract = "0x00000000000000000000000000000000000000bb"
	platformAddr = "0x00000000000000000000000000000000000000cc"
	senderAddr   = "0x00000000000000000000000000000000000000dd"
)

type stubBackend struct {
	receipts map[common.Hash]*types.Receipt
	head     uint64
	sent     []*types.Transaction
	sendErr  error
}

func (s *stubBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	r, ok := s.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (s *stubBackend) BlockNumber(ctx context.Context) (uint64, error) { return s.head, nil }

func (s *stubBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 7, nil
}

func (s *stubBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

// SendTransaction records tx even when it fails: a node can accept a
// transaction and still drop the connection before answering.
func (s *stubBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	s.sent = append(s.sent, tx)
	return s.sendErr
}

func transferLog(t *testing.T, token, to string, value *big.Int) *types.Log {
	t.Helper()
	data, err := parsedERC20.Events["Transfer"].Inputs.NonIndexed().Pack(value)
	if err != nil {
		t.Fatalf("pack value: %v", err)
	}
	return &types.Log{
		Address: common.HexToAddress(token),
		Topics: []common.Hash{
			parsedERC20.Events["Transfer"].ID,
			common.BytesToHash(common.HexToAddress(senderAddr).Bytes()),
			common.BytesToHash(common.HexToAddress(to).Bytes()),
		},
		Data: data,
	}
}

func newTestClient(t *testing.T, backend *stubBackend, withKey bool) *Client {
	t.Helper()
	cfg := Config{
		ChainID:          1,
		PlatformAddress:  platformAddr,
		USDTContract:     usdtContract,
		USDCContract:     usdcContract,
		TokenDecimals:    6,
		MinConfirmations: 3,
	}
	if withKey {
		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		cfg.HotWalletKey = common.Bytes2Hex(crypto.FromECDSA(key))
	}
	c, err := NewClient(backend, cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestVerifyDeposit(t *testing.T) {
	hash := common.HexToHash("0x01")
	tenUSDT := big.NewInt(10_000_000)

	tests := []struct {
		name    string
		receipt *types.Receipt
		head    uint64
		asset   money.Asset
		want    DepositStatus
		confs   uint64
	}{
		{
			name:  "not mined",
			asset: money.USDT,
			want:  DepositPending,
		},
		{
			name:    "reverted",
			receipt: &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(100)},
			head:    110,
			asset:   money.USDT,
			want:    DepositFailed,
		},
		{
			name: "confirming",
			receipt: &types.Receipt{
				Status:      types.ReceiptStatusSuccessful,
				BlockNumber: big.NewInt(100),
				Logs:        []*types.Log{transferLog(t, usdtContract, platformAddr, tenUSDT)},
			},
			head:  101,
			asset: money.USDT,
			want:  DepositConfirming,
			confs: 2,
		},
		{
			name: "confirmed",
			receipt: &types.Receipt{
				Status:      types.ReceiptStatusSuccessful,
				BlockNumber: big.NewInt(100),
				Logs:        []*types.Log{transferLog(t, usdtContract, platformAddr, tenUSDT)},
			},
			head:  102,
			asset: money.USDT,
			want:  DepositConfirmed,
			confs: 3,
		},
		{
			name: "wrong token",
			receipt: &types.Receipt{
				Status:      types.ReceiptStatusSuccessful,
				BlockNumber: big.NewInt(100),
				Logs:        []*types.Log{transferLog(t, usdcContract, platformAddr, tenUSDT)},
			},
			head:  120,
			asset: money.USDT,
			want:  DepositFailed,
		},
		{
			name: "wrong recipient",
			receipt: &types.Receipt{
				Status:      types.ReceiptStatusSuccessful,
				BlockNumber: big.NewInt(100),
				Logs:        []*types.Log{transferLog(t, usdtContract, senderAddr, tenUSDT)},
			},
			head:  120,
			asset: money.USDT,
			want:  DepositFailed,
		},
		{
			name: "short amount",
			receipt: &types.Receipt{
				Status:      types.ReceiptStatusSuccessful,
				BlockNumber: big.NewInt(100),
				Logs:        []*types.Log{transferLog(t, usdtContract, platformAddr, big.NewInt(9_999_999))},
			},
			head:  120,
			asset: money.USDT,
			want:  DepositFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &stubBackend{receipts: map[common.Hash]*types.Receipt{}, head: tt.head}
			if tt.receipt != nil {
				backend.receipts[hash] = tt.receipt
			}
			c := newTestClient(t, backend, false)

			check, err := c.VerifyDeposit(context.Background(), hash.Hex(), tt.asset, decimal.NewFromInt(10))
			if err != nil {
				t.Fatalf("VerifyDeposit() error = %v", err)
			}
			if check.Status != tt.want {
				t.Fatalf("status = %s, want %s (%s)", check.Status, tt.want, check.Reason)
			}
			if check.Confirmations != tt.confs {
				t.Fatalf("confirmations = %d, want %d", check.Confirmations, tt.confs)
			}
			if tt.want == DepositConfirmed && !check.Amount.Equal(decimal.NewFromInt(10)) {
				t.Fatalf("amount = %s, want 10", check.Amount)
			}
		})
	}
}

func TestSendToken(t *testing.T) {
	backend := &stubBackend{}
	c := newTestClient(t, backend, true)

	hash, err := c.SendToken(context.Background(), money.USDC, senderAddr, decimal.RequireFromString("2.5"))
	if err != nil {
		t.Fatalf("SendToken() error = %v", err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(backend.sent))
	}
	tx := backend.sent[0]
	if tx.Hash().Hex() != hash {
		t.Fatalf("returned hash %s does not match tx %s", hash, tx.Hash().Hex())
	}
	if *tx.To() != common.HexToAddress(usdcContract) {
		t.Fatalf("tx sent to %s, want the USDC contract", tx.To().Hex())
	}
	if tx.Nonce() != 7 {
		t.Fatalf("nonce = %d, want 7", tx.Nonce())
	}

	args, err := parsedERC20.Methods["transfer"].Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		t.Fatalf("unpack transfer: %v", err)
	}
	if args[1].(*big.Int).Cmp(big.NewInt(2_500_000)) != 0 {
		t.Fatalf("amount = %v, want 2500000 base units", args[1])
	}
}

func TestSendTokenErrors(t *testing.T) {
	t.Run("no key is definite", func(t *testing.T) {
		c := newTestClient(t, &stubBackend{}, false)
		_, err := c.SendToken(context.Background(), money.USDT, senderAddr, decimal.NewFromInt(1))
		if err == nil || gateway.IsAmbiguous(err) {
			t.Fatalf("expected definite rejection, got %v", err)
		}
	})

	t.Run("invalid address is definite", func(t *testing.T) {
		c := newTestClient(t, &stubBackend{}, true)
		_, err := c.SendToken(context.Background(), money.USDT, "not-an-address", decimal.NewFromInt(1))
		if err == nil || gateway.IsAmbiguous(err) {
			t.Fatalf("expected definite rejection, got %v", err)
		}
	})

	t.Run("broadcast failure is ambiguous and keeps the hash", func(t *testing.T) {
		backend := &stubBackend{sendErr: errors.New("i/o timeout")}
		c := newTestClient(t, backend, true)
		_, err := c.SendToken(context.Background(), money.USDT, senderAddr, decimal.NewFromInt(1))
		if !gateway.IsAmbiguous(err) {
			t.Fatalf("expected ambiguous error, got %v", err)
		}
		if got, want := gateway.ExternalReferenceOf(err), backend.sent[0].Hash().Hex(); got != want {
			t.Fatalf("error hash = %q, want %q", got, want)
		}
	})
}

func TestAdapterResolvesTimedOutBroadcast(t *testing.T) {
	backend := &stubBackend{sendErr: errors.New("i/o timeout"), head: 80}
	a := NewAdapter(newTestClient(t, backend, true))

	init, err := a.Initiate(context.Background(), gateway.Request{
		Reference: "CW-9", Asset: money.USDT, Amount: decimal.NewFromInt(3), ToAddress: senderAddr,
	})
	if init != nil || !gateway.IsAmbiguous(err) {
		t.Fatalf("Initiate() = %v, %v; want ambiguous error", init, err)
	}
	hash := gateway.ExternalReferenceOf(err)
	if hash == "" {
		t.Fatal("expected the signed hash on the error")
	}

	// the transaction was mined despite the timeout
	backend.receipts = map[common.Hash]*types.Receipt{
		common.HexToHash(hash): {Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(70)},
	}
	ev, err := a.CheckStatus(context.Background(), gateway.Lookup{Reference: "CW-9", ExternalReference: hash})
	if err != nil {
		t.Fatalf("CheckStatus() error = %v", err)
	}
	if ev.Outcome != gateway.OutcomeSuccess {
		t.Fatalf("outcome = %s, want success", ev.Outcome)
	}
}

func TestAdapterCheckStatus(t *testing.T) {
	hash := common.HexToHash("0x02")
	backend := &stubBackend{
		receipts: map[common.Hash]*types.Receipt{
			hash: {Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(50)},
		},
		head: 60,
	}
	a := NewAdapter(newTestClient(t, backend, false))

	ev, err := a.CheckStatus(context.Background(), gateway.Lookup{Reference: "CW-1", ExternalReference: hash.Hex()})
	if err != nil {
		t.Fatalf("CheckStatus() error = %v", err)
	}
	if ev.Outcome != gateway.OutcomeSuccess {
		t.Fatalf("outcome = %s, want success", ev.Outcome)
	}

	ev, err = a.CheckStatus(context.Background(), gateway.Lookup{Reference: "CW-2", ExternalReference: common.HexToHash("0x03").Hex()})
	if err != nil {
		t.Fatalf("CheckStatus() error = %v", err)
	}
	if ev.Outcome != gateway.OutcomePending {
		t.Fatalf("outcome = %s, want pending", ev.Outcome)
	}
}
