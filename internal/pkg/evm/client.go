package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/pkg/gateway"
	"github.com/campuspay/campuspay-api/internal/pkg/metrics"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

const provider = "evm"

type Config struct {
	RPCURL           string
	ChainID          int64
	HotWalletKey     string
	PlatformAddress  string
	USDTContract     string
	USDCContract     string
	TokenDecimals    int32
	MinConfirmations uint64
	GasLimit         uint64
}

// Backend is the subset of ethclient.Client used here.
type Backend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

type DepositStatus string

const (
	DepositPending    DepositStatus = "PENDING"
	DepositConfirming DepositStatus = "CONFIRMING"
	DepositConfirmed  DepositStatus = "CONFIRMED"
	DepositFailed     DepositStatus = "FAILED"
)

// DepositCheck is the result of matching a transaction against an expected deposit.
type DepositCheck struct {
	Status        DepositStatus
	Confirmations uint64
	BlockNumber   uint64
	Amount        decimal.Decimal
	From          string
	Reason        string
}

type Client struct {
	backend   Backend
	config    Config
	key       *ecdsa.PrivateKey
	hotWallet common.Address
	platform  common.Address
	contracts map[money.Asset]common.Address
}

// Dial connects to the RPC endpoint.
func Dial(cfg Config) (*Client, error) {
	backend, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM node: %w", err)
	}
	return NewClient(backend, cfg)
}

func NewClient(backend Backend, cfg Config) (*Client, error) {
	if cfg.TokenDecimals == 0 {
		cfg.TokenDecimals = money.TokenPlaces
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = 100000
	}
	c := &Client{
		backend: backend,
		config:  cfg,
		contracts: map[money.Asset]common.Address{
			money.USDT: common.HexToAddress(cfg.USDTContract),
			money.USDC: common.HexToAddress(cfg.USDCContract),
		},
	}
	if cfg.HotWalletKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.HotWalletKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid hot wallet key: %w", err)
		}
		c.key = key
		c.hotWallet = crypto.PubkeyToAddress(key.PublicKey)
	}
	c.platform = c.hotWallet
	if cfg.PlatformAddress != "" {
		c.platform = common.HexToAddress(cfg.PlatformAddress)
	}
	return c, nil
}

// DepositAddress is where users send USDT/USDC to fund their sub-balances.
func (c *Client) DepositAddress() string {
	return c.platform.Hex()
}

// VerifyDeposit checks that txHash moved at least expected of asset to the
// platform address and reports how many blocks have confirmed it.
func (c *Client) VerifyDeposit(ctx context.Context, txHash string, asset money.Asset, expected decimal.Decimal) (*DepositCheck, error) {
	contract, ok := c.contracts[asset]
	if !ok {
		return nil, gateway.Rejected(provider, "verify_deposit", 0, fmt.Errorf("unsupported asset %s", asset))
	}

	start := time.Now()
	receipt, err := c.backend.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			observe("receipt", "not_found", start)
			return &DepositCheck{Status: DepositPending, Reason: "transaction not yet mined"}, nil
		}
		observe("receipt", "error", start)
		return nil, &gateway.Error{Provider: provider, Op: "receipt", Ambiguous: true, Err: err}
	}
	observe("receipt", "ok", start)

	check := &DepositCheck{BlockNumber: receipt.BlockNumber.Uint64()}
	if receipt.Status != types.ReceiptStatusSuccessful {
		check.Status = DepositFailed
		check.Reason = "transaction reverted"
		return check, nil
	}

	want := money.ToBaseUnits(expected, c.config.TokenDecimals)
	var matched *TransferEvent
	for _, ev := range ParseTransferLogs(receipt) {
		if ev.Token != contract || ev.To != c.platform {
			continue
		}
		if ev.Value.Cmp(want) >= 0 {
			ev := ev
			matched = &ev
			break
		}
	}
	if matched == nil {
		check.Status = DepositFailed
		check.Reason = "no matching transfer to the platform address"
		return check, nil
	}
	check.Amount = money.FromBaseUnits(matched.Value, c.config.TokenDecimals)
	check.From = matched.From.Hex()

	confirmations, err := c.confirmations(ctx, receipt)
	if err != nil {
		return nil, err
	}
	check.Confirmations = confirmations
	if confirmations >= c.config.MinConfirmations {
		check.Status = DepositConfirmed
	} else {
		check.Status = DepositConfirming
	}
	return check, nil
}

// ReceiptOutcome reports the state of an outbound transaction.
func (c *Client) ReceiptOutcome(ctx context.Context, txHash string) (gateway.Outcome, uint64, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return gateway.OutcomePending, 0, nil
		}
		return "", 0, &gateway.Error{Provider: provider, Op: "receipt", Ambiguous: true, Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return gateway.OutcomeFailure, 0, nil
	}
	confirmations, err := c.confirmations(ctx, receipt)
	if err != nil {
		return "", 0, err
	}
	if confirmations < c.config.MinConfirmations {
		return gateway.OutcomePending, confirmations, nil
	}
	return gateway.OutcomeSuccess, confirmations, nil
}

// SendToken signs and broadcasts an ERC-20 transfer from the hot wallet.
func (c *Client) SendToken(ctx context.Context, asset money.Asset, to string, amount decimal.Decimal) (string, error) {
	if c.key == nil {
		return "", gateway.Rejected(provider, "send_token", 0, errors.New("hot wallet key is not configured"))
	}
	contract, ok := c.contracts[asset]
	if !ok {
		return "", gateway.Rejected(provider, "send_token", 0, fmt.Errorf("unsupported asset %s", asset))
	}
	if !common.IsHexAddress(to) {
		return "", gateway.Rejected(provider, "send_token", 0, fmt.Errorf("invalid destination %q", to))
	}

	data, err := packTransfer(common.HexToAddress(to), money.ToBaseUnits(amount, c.config.TokenDecimals))
	if err != nil {
		return "", gateway.Rejected(provider, "send_token", 0, fmt.Errorf("pack transfer: %w", err))
	}

	// Nothing has been broadcast yet, so failures up to SendTransaction are definite.
	nonce, err := c.backend.PendingNonceAt(ctx, c.hotWallet)
	if err != nil {
		return "", gateway.Rejected(provider, "nonce", 0, err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return "", gateway.Rejected(provider, "gas_price", 0, err)
	}

	tx := types.NewTransaction(nonce, contract, big.NewInt(0), c.config.GasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(big.NewInt(c.config.ChainID)), c.key)
	if err != nil {
		return "", gateway.Rejected(provider, "sign", 0, err)
	}

	// The hash is fixed once signed; a failed broadcast may still be mined.
	hash := signed.Hash().Hex()
	start := time.Now()
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		observe("send", "error", start)
		return "", &gateway.Error{Provider: provider, Op: "send", Ambiguous: true, ExternalReference: hash, Err: err}
	}
	observe("send", "ok", start)

	log.Info().Str("tx_hash", hash).Str("asset", string(asset)).Str("to", to).Str("amount", amount.String()).Msg("ERC-20 transfer broadcast")
	return hash, nil
}

func (c *Client) confirmations(ctx context.Context, receipt *types.Receipt) (uint64, error) {
	head, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return 0, &gateway.Error{Provider: provider, Op: "block_number", Ambiguous: true, Err: err}
	}
	mined := receipt.BlockNumber.Uint64()
	if head < mined {
		return 0, nil
	}
	return head - mined + 1, nil
}

func observe(op, result string, start time.Time) {
	metrics.GatewayRequests.WithLabelValues(provider, op, result).Observe(time.Since(start).Seconds())
}
