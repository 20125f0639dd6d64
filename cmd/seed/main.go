// Package main seeds a demo tenant with catalog items and opening stock.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"stockledger/internal/app"
	"stockledger/internal/bootstrap"
	"stockledger/internal/config"
	"stockledger/internal/core/actor"
	"stockledger/internal/core/tenant"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalog"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

type demoProduct struct {
	code, name string
	units      int64
}

var demoProducts = []demoProduct{
	{"SKU-0001", "Pallet jack", 12},
	{"SKU-0002", "Shrink wrap roll", 340},
	{"SKU-0003", "Barcode scanner", 25},
	{"SKU-0004", "Label printer ribbon", 0},
}

func main() {
	configPath := flag.String("config", "", "config file")
	slug := flag.String("slug", "demo", "slug of the tenant to create")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := bootstrap.NewLogger(cfg, "seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.ValidateStorage(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	ctx := logger.WithLogger(context.Background(), log)
	rt, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		log.Fatalw("startup failed", "error", err)
	}
	defer rt.Close(context.Background())

	t := &tenant.Tenant{Slug: *slug, DisplayName: "Demo warehouse operator", Status: tenant.StatusActive}
	if err := rt.Registry.Create(ctx, t); err != nil {
		log.Fatalw("failed to create tenant", "slug", *slug, "error", err)
	}
	log.Infow("tenant created", "tenant_id", t.ID, "slug", t.Slug)

	a := actor.Worker(t.ID, "seed")
	if err := seed(ctx, rt.Services, a); err != nil {
		log.Fatalw("failed to seed demo data", "error", err)
	}
	log.Infow("demo data seeded", "tenant_id", t.ID)
}

func seed(ctx context.Context, svc *app.Services, a actor.Actor) error {
	wh, err := svc.Catalog.Create(ctx, a, catalog.CreateInput{Kind: catalog.KindWarehouse, Code: "WH-MAIN", Name: "Main warehouse"})
	if err != nil {
		return fmt.Errorf("warehouse: %w", err)
	}
	if _, err := svc.Catalog.Create(ctx, a, catalog.CreateInput{Kind: catalog.KindWarehouse, Code: "WH-EAST", Name: "East depot"}); err != nil {
		return fmt.Errorf("warehouse: %w", err)
	}
	mainID := wh.ID
	if _, err := svc.Catalog.Create(ctx, a, catalog.CreateInput{
		Kind: catalog.KindLocation, ParentID: &mainID, Code: "A-01", Name: "Aisle A, bay 1",
	}); err != nil {
		return fmt.Errorf("location: %w", err)
	}

	for _, p := range demoProducts {
		item, err := svc.Catalog.Create(ctx, a, catalog.CreateInput{Kind: catalog.KindProduct, Code: p.code, Name: p.name})
		if err != nil {
			return fmt.Errorf("product %s: %w", p.code, err)
		}
		if p.units == 0 {
			continue
		}
		if _, err := svc.Ledger.Append(ctx, a, ledger.Draft{
			ProductID:   item.ID,
			Type:        ledger.MovementIn,
			Quantity:    types.NewQuantity(p.units),
			WarehouseID: mainID,
			Reference:   "opening-balance",
		}); err != nil {
			return fmt.Errorf("opening stock %s: %w", p.code, err)
		}
		logger.Info(ctx, "opening stock received", "product", p.code, "units", p.units, "product_id", item.ID)
	}
	return nil
}
