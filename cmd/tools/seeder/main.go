package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/designer-pricing/internal/auth"
	"github.com/noah-isme/designer-pricing/internal/db"
	"github.com/noah-isme/designer-pricing/internal/pricing"
	"github.com/noah-isme/designer-pricing/internal/promo"
	"github.com/noah-isme/designer-pricing/internal/repo"
	"github.com/noah-isme/designer-pricing/internal/store"
	"github.com/noah-isme/designer-pricing/internal/tenant"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	shops := flag.String("shops", "demo.myshopify.com", "comma separated shops to seed")
	migrateFirst := flag.Bool("migrate", true, "apply migrations before seeding")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	if *migrateFirst {
		if err := db.Up(dbURL); err != nil {
			log.Fatalf("Failed to migrate: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	scoped, err := store.NewScoped(store.ScopedConfig{Inner: store.NewPostgres(pool)})
	if err != nil {
		log.Fatalf("Failed to build store: %v", err)
	}
	configs := repo.PricingConfigs{Store: scoped}
	codes := repo.PromoCodes{Store: scoped}

	var verifier *auth.Verifier
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		verifier, err = auth.NewVerifier(auth.VerifierConfig{
			Secret:   secret,
			Issuer:   os.Getenv("JWT_ISSUER"),
			Audience: os.Getenv("JWT_AUDIENCE"),
		})
		if err != nil {
			log.Fatalf("Failed to build token issuer: %v", err)
		}
	}

	for _, shop := range strings.Split(*shops, ",") {
		shop = strings.ToLower(strings.TrimSpace(shop))
		if shop == "" {
			continue
		}
		err := tenant.Run(ctx, shop, func(ctx context.Context) error {
			if err := seedConfigs(ctx, configs); err != nil {
				return err
			}
			return seedPromoCodes(ctx, codes)
		})
		if err != nil {
			log.Fatalf("Failed to seed %s: %v", shop, err)
		}
		log.Printf("Seeded %s", shop)
		if verifier != nil {
			token, err := verifier.Issue("seeder", shop, 24*time.Hour)
			if err != nil {
				log.Fatalf("Failed to issue token: %v", err)
			}
			log.Printf("Merchant token for %s: %s", shop, token)
		}
	}
	log.Println("Seeding completed successfully!")
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedConfigs(ctx context.Context, configs repo.PricingConfigs) error {
	global := pricing.Configuration{
		GlobalPricing: pricing.GlobalPricing{Enabled: true, BasePrice: dec("2.50")},
		TextPricing:   pricing.TextPricing{Mode: pricing.TextModePerField, PricePerField: dec("3")},
		ImagePricing:  pricing.ImagePricing{UploadFee: dec("4")},
	}
	if _, err := configs.Save(ctx, pricing.GlobalConfigID, global); err != nil {
		return err
	}

	tenPercent := pricing.BulkTier{MinQuantity: 10, DiscountType: pricing.TierPercentage, DiscountValue: dec("10")}
	fiftyOff := pricing.BulkTier{MinQuantity: 50, DiscountType: pricing.TierFixed, DiscountValue: dec("40")}
	shirt := pricing.Configuration{
		GlobalPricing: pricing.GlobalPricing{Enabled: true, BasePrice: dec("12")},
		TextPricing:   pricing.TextPricing{Mode: pricing.TextModePerCharacter, PricePerCharacter: dec("0.15"), FreeCharacters: 10},
		ImagePricing:  pricing.ImagePricing{UploadFee: dec("5")},
		BulkPricing:   pricing.BulkPricing{Enabled: true, Tiers: []pricing.BulkTier{tenPercent, fiftyOff}},
		PrintingMethods: pricing.PrintingMethods{
			ScreenPrint: pricing.ScreenPrint{Enabled: true, SetupFeePerColor: dec("15"), PrintFeePerItem: dec("1.25")},
			DTG:         pricing.DTG{Enabled: true, BasePrice: dec("6")},
		},
		PricingRules: []pricing.PricingRule{
			{Trigger: pricing.TriggerTotalElements, Operator: pricing.OperatorGreaterThan, Threshold: dec("4"), Action: pricing.ActionAddFee, Value: dec("2")},
		},
	}
	_, err := configs.Save(ctx, "classic-tee", shirt)
	return err
}

func seedPromoCodes(ctx context.Context, codes repo.PromoCodes) error {
	limit := 100
	minOrder := dec("25")
	seed := []promo.Code{
		{Code: "WELCOME10", Active: true, DiscountType: promo.DiscountPercentage, DiscountValue: dec("10")},
		{Code: "BULK5OFF", Active: true, UsageLimit: &limit, MinOrderAmount: &minOrder, DiscountType: promo.DiscountFixedAmount, DiscountValue: dec("5")},
	}
	for _, c := range seed {
		current, found, err := codes.Get(ctx, c.Code)
		if err != nil {
			return err
		}
		if found {
			c.UsageCount = current.UsageCount
		}
		if _, err := codes.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
