// Package bootstrap builds the ledger and settlement object graph shared by
// the api and worker binaries.
package bootstrap

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/campuspay/campuspay-api/internal/config"
	"github.com/campuspay/campuspay-api/internal/domain/crypto"
	"github.com/campuspay/campuspay-api/internal/domain/loan"
	"github.com/campuspay/campuspay-api/internal/domain/p2p"
	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/domain/remittance"
	"github.com/campuspay/campuspay-api/internal/domain/settlement"
	"github.com/campuspay/campuspay-api/internal/domain/user"
	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/pkg/clock"
	"github.com/campuspay/campuspay-api/internal/pkg/database"
	"github.com/campuspay/campuspay-api/internal/pkg/events"
	"github.com/campuspay/campuspay-api/internal/pkg/evm"
	"github.com/campuspay/campuspay-api/internal/pkg/paystack"
	"github.com/campuspay/campuspay-api/internal/pkg/remita"
)

type Components struct {
	Retry database.RetryPolicy
	Clock clock.Clock

	Users    user.Repository
	Wallets  *wallet.Store
	Engine   *wallet.Engine
	Payments *payment.Repository
	P2P      *p2p.Repository
	Loans    *loan.Repository
	LoanSvc  *loan.Service
	Crypto   *crypto.Repository
	Quoter   *remittance.Quoter

	Charge *paystack.ChargeAdapter
	Payout *paystack.PayoutAdapter
	Remita *remita.Adapter
	Events events.Publisher

	Orchestrator *settlement.Orchestrator
}

func RetryPolicy(cfg *config.Config) database.RetryPolicy {
	policy := database.DefaultRetryPolicy()
	if cfg.DBRetryAttempts > 0 {
		policy.Attempts = cfg.DBRetryAttempts
	}
	if cfg.DBRetryBackoff > 0 {
		policy.BaseDelay = cfg.DBRetryBackoff
	}
	return policy
}

func PoolConfig(cfg *config.Config) database.PoolConfig {
	pool := database.DefaultPoolConfig()
	pool.MaxOpenConns = cfg.DBMaxOpenConns
	pool.MaxIdleConns = cfg.DBMaxIdleConns
	return pool
}

// Build wires repositories, gateway adapters and the orchestrator. notifier may be nil.
func Build(cfg *config.Config, db *sqlx.DB, notifier settlement.Notifier) (*Components, error) {
	c := &Components{
		Retry: RetryPolicy(cfg),
		Clock: clock.RealClock{},
	}

	c.Users = user.NewRepository(db)
	c.Wallets = wallet.NewStore(db, c.Clock)
	c.Engine = wallet.NewEngine(c.Wallets, c.Clock, cfg.Location())
	c.Payments = payment.NewRepository(db, c.Clock)
	c.P2P = p2p.NewRepository(db)
	c.Loans = loan.NewRepository(db)
	c.Crypto = crypto.NewRepository(db)
	c.Quoter = remittance.NewQuoter(cfg.RemittanceCorridors, int64(cfg.RemittanceFeeBps))
	c.LoanSvc = loan.NewService(db, c.Loans, c.Wallets, loan.Terms{
		MaxPrincipal: cfg.MaxLoanPrincipal,
		InterestBps:  int64(cfg.LoanInterestBps),
	}, c.Clock, c.Retry)

	paystackClient := paystack.NewClient(paystack.Config{
		BaseURL:     cfg.PaystackBaseURL,
		SecretKey:   cfg.PaystackSecretKey,
		CallbackURL: cfg.PaystackCallbackURL,
		Timeout:     cfg.PaystackTimeout,
	})
	c.Charge = paystack.NewChargeAdapter(paystackClient)
	c.Payout = paystack.NewPayoutAdapter(paystackClient)

	c.Remita = remita.NewAdapter(remita.NewClient(remita.Config{
		BaseURL:       cfg.RemitaBaseURL,
		MerchantID:    cfg.RemitaMerchantID,
		APIKey:        cfg.RemitaAPIKey,
		ServiceTypeID: cfg.RemitaServiceTypeID,
		Timeout:       cfg.RemitaTimeout,
	}))

	c.Events = events.New(events.KafkaConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	})

	deps := settlement.Deps{
		DB:       db,
		Retry:    c.Retry,
		Clock:    c.Clock,
		Wallets:  c.Wallets,
		Engine:   c.Engine,
		Payments: c.Payments,
		Guard:    payment.NewGuard(c.Payments, c.Clock),
		Users:    c.Users,
		P2P:      c.P2P,
		Loans:    c.Loans,
		Crypto:   c.Crypto,
		Quoter:   c.Quoter,
		Charge:   c.Charge,
		Payout:   c.Payout,
		Remita:   c.Remita,
		Events:   c.Events,
		Policy:   settlement.PolicyFromConfig(cfg),
	}
	if notifier != nil {
		deps.Notifier = notifier
	}

	if cfg.EVMRPCURL != "" {
		chain, err := evm.Dial(evm.Config{
			RPCURL:           cfg.EVMRPCURL,
			ChainID:          cfg.EVMChainID,
			HotWalletKey:     cfg.EVMHotWalletKey,
			PlatformAddress:  cfg.EVMPlatformAddress,
			USDTContract:     cfg.EVMUSDTContract,
			USDCContract:     cfg.EVMUSDCContract,
			TokenDecimals:    int32(cfg.EVMTokenDecimals),
			MinConfirmations: uint64(cfg.EVMMinConfirmations),
			GasLimit:         uint64(cfg.EVMGasLimit),
		})
		if err != nil {
			c.Events.Close()
			return nil, err
		}
		deps.EVM = evm.NewAdapter(chain)
		deps.Chain = chain
	} else {
		log.Warn().Msg("EVM_RPC_URL not set, crypto rails disabled")
	}

	c.Orchestrator = settlement.New(deps)
	return c, nil
}

// Close flushes the settlement event publisher.
func (c *Components) Close() {
	if c == nil || c.Events == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		if err := c.Events.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing event publisher")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Event publisher close timed out")
	}
}
