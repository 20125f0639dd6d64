// Package main provides a CLI for tenant management.
// Usage: tenant create -slug acme -name "ACME Corp"
//
//	tenant list
//	tenant migrate
//	tenant suspend <tenant-id>
//	tenant activate <tenant-id>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"stockledger/internal/config"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/infrastructure/storage/postgres"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "create":
		err = createTenant(ctx, args)
	case "list":
		err = listTenants(ctx, args)
	case "migrate":
		err = migrate(ctx, args)
	case "suspend":
		err = setStatus(ctx, args, tenant.StatusSuspended)
	case "activate":
		err = setStatus(ctx, args, tenant.StatusActive)
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`stockledger tenant management

Usage:
  tenant <command> [options]

Commands:
  create    Register a new tenant
  list      List all tenants
  migrate   Apply the schema to the ledger database
  suspend   Suspend a tenant (requests get 403, background jobs skip it)
  activate  Activate a suspended tenant
  help      Show this help

Every command accepts -config <file>. The database DSN may also come from
STOCKLEDGER_DATABASE_DSN.

Examples:
  tenant create -slug acme -name "ACME Corporation"
  tenant list
  tenant suspend 0190f1c2-...`)
}

// openRegistry loads the config and connects; the caller closes the pool.
func openRegistry(ctx context.Context, configPath string) (*postgres.Pool, *tenant.PostgresRegistry, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.DSN == "" {
		return nil, nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN)
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 0
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return pool, tenant.NewPostgresRegistry(pool.Pool), nil
}

func createTenant(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	configPath := fs.String("config", "", "config file")
	slug := fs.String("slug", "", "unique tenant slug")
	name := fs.String("name", "", "display name")
	rawID := fs.String("id", "", "tenant id (generated when empty)")
	_ = fs.Parse(args)

	if *slug == "" || *name == "" {
		return fmt.Errorf("-slug and -name are required")
	}
	tenantID, err := id.ParseOptional(*rawID)
	if err != nil {
		return fmt.Errorf("-id: %w", err)
	}

	pool, registry, err := openRegistry(ctx, *configPath)
	if err != nil {
		return err
	}
	defer pool.Close()

	t := &tenant.Tenant{
		Slug:        strings.ToLower(*slug),
		DisplayName: *name,
		Status:      tenant.StatusActive,
	}
	if tenantID != nil {
		t.ID = *tenantID
	}
	if err := registry.Create(ctx, t); err != nil {
		return err
	}

	fmt.Printf("Tenant '%s' created\n", t.Slug)
	fmt.Printf("  Tenant ID: %s\n", t.ID)
	fmt.Printf("  Status:    %s\n", t.Status)
	return nil
}

func listTenants(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "config file")
	_ = fs.Parse(args)

	pool, registry, err := openRegistry(ctx, *configPath)
	if err != nil {
		return err
	}
	defer pool.Close()

	tenants, err := registry.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(tenants) == 0 {
		fmt.Println("No tenants found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TENANT_ID\tSLUG\tNAME\tSTATUS\tCREATED")
	for _, t := range tenants {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Slug, truncate(t.DisplayName, 30), t.Status, t.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func migrate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "config file")
	_ = fs.Parse(args)

	pool, _, err := openRegistry(ctx, *configPath)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		return err
	}
	fmt.Println("Schema is up to date")
	return nil
}

func setStatus(ctx context.Context, args []string, status tenant.Status) error {
	fs := flag.NewFlagSet(string(status), flag.ExitOnError)
	configPath := fs.String("config", "", "config file")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: tenant %s <tenant-id>", os.Args[1])
	}
	tenantID, err := id.Parse(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("tenant id: %w", err)
	}

	pool, registry, err := openRegistry(ctx, *configPath)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := registry.UpdateStatus(ctx, tenantID, status); err != nil {
		return err
	}
	fmt.Printf("Tenant %s is now %s\n", tenantID, status)
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
