package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/scentmarket/internal/auth"
	"github.com/noah-isme/scentmarket/internal/coupon"
	"github.com/noah-isme/scentmarket/internal/db"
	"github.com/noah-isme/scentmarket/internal/obs"
	"github.com/noah-isme/scentmarket/internal/pricing"
)

// Fixed identifiers keep reruns idempotent and let the printed tokens match seeded wallets.
var (
	vendorAurum   = stableID("vendor:aurum-atelier")
	vendorNocturn = stableID("vendor:nocturne-house")
)

type demoUser struct {
	Name  string
	Roles []string
	Coins int64
}

var demoUsers = []demoUser{
	{Name: "admin", Roles: []string{"admin"}},
	{Name: "alice", Roles: []string{"customer"}, Coins: 1000},
	{Name: "bima", Roles: []string{"customer"}, Coins: 150},
	{Name: "citra", Roles: []string{"customer"}},
}

type demoProduct struct {
	Slug     string
	Title    string
	Vendor   uuid.UUID
	Price    string
	Variants map[string]string
}

var demoProducts = []demoProduct{
	{Slug: "oud-royale", Title: "Oud Royale Eau de Parfum", Vendor: vendorAurum, Price: "210.00",
		Variants: map[string]string{"50ml": "210.00", "100ml": "340.00"}},
	{Slug: "amber-dusk", Title: "Amber Dusk Extrait", Vendor: vendorAurum, Price: "95.50",
		Variants: map[string]string{"30ml": "95.50"}},
	{Slug: "midnight-iris", Title: "Midnight Iris Eau de Toilette", Vendor: vendorNocturn, Price: "64.99"},
	{Slug: "citrus-veil", Title: "Citrus Veil Body Mist", Vendor: vendorNocturn, Price: "19.99"},
}

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger("console", "info")

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(dbURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}
	pool, err := db.NewPool(ctx, dbURL, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := seedCatalog(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("seed catalog")
	}
	logger.Info().Int("products", len(demoProducts)).Msg("catalog seeded")

	if err := seedCoupons(ctx, pool, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed coupons")
	}
	if err := seedWallets(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("seed wallets")
	}
	logger.Info().Int("users", len(demoUsers)).Msg("wallets seeded")

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		printTokens(secret, strings.TrimSpace(os.Getenv("JWT_ISSUER")), logger)
	}
	logger.Info().Msg("seeding completed")
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool) error {
	batch := &pgx.Batch{}
	for _, p := range demoProducts {
		productID := stableID("product:" + p.Slug)
		batch.Queue(`
INSERT INTO products (id, vendor_id, slug, title, price)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (slug) DO NOTHING`, productID, p.Vendor, p.Slug, p.Title, decimal.RequireFromString(p.Price))
		for name, price := range p.Variants {
			batch.Queue(`
INSERT INTO product_variants (id, product_id, name, price)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING`, stableID("variant:"+p.Slug+":"+name), productID, name, decimal.RequireFromString(price))
		}
	}
	return pool.SendBatch(ctx, batch).Close()
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	now := time.Now().UTC()
	minOrder := decimal.NewFromInt(150)
	maxDisc := decimal.NewFromInt(40)
	limit := 100
	vendor := vendorAurum
	coupons := []pricing.Coupon{
		{Code: "WELCOME10", DiscountType: pricing.DiscountPercentage, DiscountValue: decimal.NewFromInt(10),
			MaxDiscount: &maxDisc, StartDate: now.AddDate(0, -1, 0), EndDate: now.AddDate(1, 0, 0), IsActive: true},
		{Code: "FLAT25", DiscountType: pricing.DiscountFixed, DiscountValue: decimal.NewFromInt(25),
			MinOrderAmount: &minOrder, UsageLimit: &limit, StartDate: now.AddDate(0, -1, 0), EndDate: now.AddDate(0, 3, 0), IsActive: true},
		{Code: "AURUM15", DiscountType: pricing.DiscountPercentage, DiscountValue: decimal.NewFromInt(15),
			VendorID: &vendor, StartDate: now.AddDate(0, 0, -7), EndDate: now.AddDate(0, 1, 0), IsActive: true},
		{Code: "EXPIRED5", DiscountType: pricing.DiscountFixed, DiscountValue: decimal.NewFromInt(5),
			StartDate: now.AddDate(-1, 0, 0), EndDate: now.AddDate(0, 0, -1), IsActive: true},
	}
	store := coupon.Store{DB: pool}
	for _, c := range coupons {
		if err := c.Check(); err != nil {
			return fmt.Errorf("%s: %w", c.Code, err)
		}
		_, err := store.Create(ctx, c)
		switch {
		case errors.Is(err, coupon.ErrDuplicateCode):
			logger.Info().Str("code", c.Code).Msg("coupon exists, skipped")
		case err != nil:
			return fmt.Errorf("%s: %w", c.Code, err)
		default:
			logger.Info().Str("code", c.Code).Msg("coupon created")
		}
	}
	return nil
}

func seedWallets(ctx context.Context, pool *pgxpool.Pool) error {
	batch := &pgx.Batch{}
	for _, u := range demoUsers {
		batch.Queue(`
INSERT INTO wallets (user_id, balance)
VALUES ($1, $2)
ON CONFLICT (user_id) DO NOTHING`, stableID("user:"+u.Name), u.Coins)
	}
	return pool.SendBatch(ctx, batch).Close()
}

func printTokens(secret, issuer string, logger zerolog.Logger) {
	verifier, err := auth.NewVerifier(secret, issuer)
	if err != nil {
		logger.Error().Err(err).Msg("token verifier")
		return
	}
	for _, u := range demoUsers {
		id := stableID("user:" + u.Name)
		token, err := verifier.Issue(id, u.Roles, 24*time.Hour)
		if err != nil {
			logger.Error().Err(err).Str("user", u.Name).Msg("issue token")
			continue
		}
		fmt.Printf("%-6s %s\n       %s\n", u.Name, id, token)
	}
}

func stableID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("scentmarket:"+name))
}
