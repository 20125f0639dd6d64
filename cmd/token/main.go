// Package main mints bearer tokens for local development and smoke tests.
// Usage: token -tenant <tenant-id> -user alice [-roles operator,admin] [-ttl 1h]
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/auth"
)

func main() {
	configPath := flag.String("config", "", "config file providing jwt.secret and jwt.issuer")
	rawTenant := flag.String("tenant", "", "tenant id (required)")
	user := flag.String("user", "dev", "user id placed in the uid claim")
	roles := flag.String("roles", "", "comma-separated roles")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to jwt.access_ttl)")
	flag.Parse()

	if err := run(*configPath, *rawTenant, *user, *roles, *ttl); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, rawTenant, user, roles string, ttl time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	tenantID, err := id.Parse(rawTenant)
	if err != nil {
		return fmt.Errorf("-tenant: %w", err)
	}

	jwtCfg := auth.DefaultJWTConfig(cfg.JWT.Secret)
	if cfg.JWT.Issuer != "" {
		jwtCfg.Issuer = cfg.JWT.Issuer
	}
	jwtCfg.AccessTokenTTL = cfg.JWT.AccessTTL
	if ttl > 0 {
		jwtCfg.AccessTokenTTL = ttl
	}
	svc, err := auth.NewJWTService(jwtCfg)
	if err != nil {
		return err
	}

	token, expiresAt, err := svc.GenerateAccessToken(user, tenantID, splitRoles(roles))
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}

func splitRoles(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
