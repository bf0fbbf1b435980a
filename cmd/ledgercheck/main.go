// Command ledgercheck walks every wallet, verifies its audit hash chain,
// checks balances against ledger balances and open reservations, and prints
// the total NGN held. It exits non-zero when any wallet fails.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/campuspay/campuspay-api/internal/bootstrap"
	"github.com/campuspay/campuspay-api/internal/config"
	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/pkg/clock"
	"github.com/campuspay/campuspay-api/internal/pkg/database"
)

func main() {
	batch := flag.Int("batch", 500, "wallets per page")
	only := flag.String("wallet", "", "check a single wallet id")
	flag.Parse()

	cfg := config.Load()

	db, err := database.NewPostgres(cfg.DatabaseURL, bootstrap.PoolConfig(cfg))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.ClosePostgres(db)

	ctx := context.Background()
	store := wallet.NewStore(db, clock.RealClock{})
	payments := payment.NewRepository(db, clock.RealClock{})

	var ids []uuid.UUID
	if *only != "" {
		id, err := uuid.Parse(*only)
		if err != nil {
			log.Fatalf("Invalid wallet id %q: %v", *only, err)
		}
		ids = []uuid.UUID{id}
	}

	checked := 0
	var problems []problem
	check := func(id uuid.UUID) {
		w, err := store.GetByID(ctx, id)
		if err != nil {
			problems = append(problems, problem{WalletID: id.String(), Detail: err.Error()})
			return
		}
		chain, err := store.AuditChain(ctx, id)
		if err != nil {
			problems = append(problems, problem{WalletID: id.String(), Detail: err.Error()})
			return
		}
		reserved, err := payments.ReservedNGN(ctx, id)
		if err != nil {
			problems = append(problems, problem{WalletID: id.String(), Detail: err.Error()})
			return
		}
		problems = append(problems, inspect(w, chain, reserved)...)
		checked++
	}

	if len(ids) > 0 {
		for _, id := range ids {
			check(id)
		}
	} else {
		after := uuid.Nil
		for {
			page, err := store.ListIDs(ctx, after, *batch)
			if err != nil {
				log.Fatalf("Failed to list wallets: %v", err)
			}
			for _, id := range page {
				check(id)
			}
			if len(page) < *batch {
				break
			}
			after = page[len(page)-1]
		}
	}

	total, err := store.TotalBalance(ctx)
	if err != nil {
		log.Fatalf("Failed to sum balances: %v", err)
	}

	fmt.Println("--- Ledger check ---")
	fmt.Printf("Wallets checked: %d\n", checked)
	fmt.Printf("Total NGN balance: %s\n", total.StringFixed(2))
	for _, p := range problems {
		fmt.Printf("FAIL %s: %s\n", p.WalletID, p.Detail)
	}
	fmt.Println("--------------------")

	if len(problems) > 0 {
		os.Exit(1)
	}
}
