package main

import (
	"context"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/app"
	"github.com/noah-isme/backend-resto/internal/config"
	"github.com/noah-isme/backend-resto/internal/menu"
	"github.com/noah-isme/backend-resto/internal/obs"
	"github.com/noah-isme/backend-resto/internal/purchase"
)

var demoMenu = []struct {
	name     string
	category string
	price    string
}{
	{"Margherita Pizza", "mains", "11.50"},
	{"Fish and Chips", "mains", "14.00"},
	{"Caesar Salad", "starters", "7.25"},
	{"Garlic Bread", "starters", "4.50"},
	{"Sticky Toffee Pudding", "desserts", "6.75"},
	{"House Lemonade", "drinks", "3.20"},
}

func main() {
	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if cfg.StoreDriver != "postgres" {
		logger.Fatal().Str("store", cfg.StoreDriver).Msg("seeder only runs against postgres")
	}
	// Seeding never needs task fan-out.
	cfg.RedisURL = ""

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx)

	deps, err := app.Build(ctx, cfg, logger, app.Options{ServiceName: "resto-seeder"})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	current, err := deps.Settings.GetOrCreate(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("ensure accounting settings")
	}
	logger.Info().Str("company", current.CompanyName).Str("vat_rate", current.StandardVATRate.String()).Msg("accounting settings ready")

	existing, err := deps.Menu.List(ctx, true)
	if err != nil {
		logger.Fatal().Err(err).Msg("list menu")
	}
	if len(existing) > 0 && os.Getenv("SEED_FORCE") == "" {
		logger.Info().Int("items", len(existing)).Msg("menu already seeded; set SEED_FORCE=1 to add demo items anyway")
		return
	}
	for _, m := range demoMenu {
		item, err := deps.Menu.Create(ctx, menu.CreateInput{
			Name:     m.name,
			Category: m.category,
			Price:    decimal.RequireFromString(m.price),
		})
		if err != nil {
			logger.Fatal().Err(err).Str("name", m.name).Msg("create menu item")
		}
		logger.Info().Str("id", item.ID.String()).Str("name", item.Name).Msg("menu item created")
	}

	sup, err := deps.Purchases.CreateSupplier(ctx, purchase.SupplierInput{Name: "Demo Wholesale Foods"})
	if err != nil {
		logger.Fatal().Err(err).Msg("create supplier")
	}
	logger.Info().Str("id", sup.ID.String()).Msg("supplier created")
}
